// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt renders a transcript into the single text prompt the
// Replicate chat models continue from, and builds the request input.
package prompt

import (
	"sort"
	"strings"

	"github.com/jeranaias/replichat/internal/model"
)

// =============================================================================
// PROMPT ASSEMBLY
// =============================================================================

const turnSeparator = "\n\n"

// Assemble renders preamble, every turn in order, the new user message, and
// an open assistant cue. The result ends exactly at "Assistant: " so the
// model continues from there. Output depends only on the inputs.
func Assemble(turns []model.Turn, preamble, userMessage string) string {
	var b strings.Builder
	b.Grow(estimateSize(turns, preamble, userMessage))

	b.WriteString(preamble)
	b.WriteString(turnSeparator)

	for _, t := range turns {
		writeTurn(&b, t.Role, t.Content)
	}
	writeTurn(&b, model.RoleUser, userMessage)

	b.WriteString(model.RoleAssistant.Label())
	b.WriteString(": ")
	return b.String()
}

func writeTurn(b *strings.Builder, role model.Role, content string) {
	b.WriteString(role.Label())
	b.WriteString(": ")
	b.WriteString(content)
	b.WriteString(turnSeparator)
}

func estimateSize(turns []model.Turn, preamble, userMessage string) int {
	n := len(preamble) + len(userMessage) + 32
	for _, t := range turns {
		n += len(t.Content) + 16
	}
	return n
}

// =============================================================================
// REQUEST INPUT
// =============================================================================

// Input keys sent to the prediction endpoint.
const (
	KeyPrompt            = "prompt"
	KeyTemperature       = "temperature"
	KeyTopP              = "top_p"
	KeyMaxTokens         = "max_tokens"
	KeyRepetitionPenalty = "repetition_penalty"
)

// Input is the parameter set for one prediction.
type Input map[string]any

// BuildInput returns the request parameters for profile. top_p is only
// present when the profile supports it; it is omitted, never zeroed.
func BuildInput(profile model.ModelProfile, cfg model.GenerationConfig, prompt string) Input {
	in := Input{
		KeyPrompt:            prompt,
		KeyTemperature:       cfg.Temperature,
		KeyMaxTokens:         cfg.MaxTokens,
		KeyRepetitionPenalty: model.RepetitionPenalty,
	}
	if profile.SupportsTopP {
		in[KeyTopP] = cfg.TopP
	}
	return in
}

// Has reports whether key is present.
func (in Input) Has(key string) bool {
	_, ok := in[key]
	return ok
}

// Map returns the input as a plain map for JSON encoding.
func (in Input) Map() map[string]any {
	return map[string]any(in)
}

// Keys returns the parameter names in sorted order.
func (in Input) Keys() []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
