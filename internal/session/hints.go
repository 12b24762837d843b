// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"

	"github.com/jeranaias/replichat/internal/model"
)

// =============================================================================
// PARAMETER HINTS
// =============================================================================

// HintLevel is the severity of a hint.
type HintLevel int

const (
	HintInfo HintLevel = iota
	HintWarning
)

// String returns the level name.
func (l HintLevel) String() string {
	if l == HintWarning {
		return "warning"
	}
	return "info"
}

// Hint is advisory text shown next to a parameter control.
type Hint struct {
	Level HintLevel
	Field string
	Text  string
}

// Field names used in hints.
const (
	FieldModel       = "model"
	FieldTemperature = "temperature"
	FieldTopP        = "top_p"
	FieldMaxTokens   = "max_tokens"
)

// Thresholds at which hints appear.
const (
	CreativeTemperature      = 1.0
	DeterministicTemperature = 0.1
	FocusedTopP              = 0.5
)

// Hints returns the hints for cfg under profile, ordered model, temperature,
// top_p, max tokens.
func Hints(profile model.ModelProfile, cfg model.GenerationConfig) []Hint {
	var hints []Hint

	if !profile.SupportsTopP {
		hints = append(hints, Hint{HintWarning, FieldModel,
			fmt.Sprintf("%s does not use the top_p parameter.", profile.ID)})
	}
	if profile.MinTokens > model.DefaultMinTokens {
		hints = append(hints, Hint{HintWarning, FieldModel,
			fmt.Sprintf("%s requires at least %d output tokens.", profile.ID, profile.MinTokens)})
	}

	switch {
	case cfg.Temperature >= CreativeTemperature:
		hints = append(hints, Hint{HintInfo, FieldTemperature,
			"Higher temperature makes output more creative and less predictable."})
	case cfg.Temperature < DeterministicTemperature:
		hints = append(hints, Hint{HintWarning, FieldTemperature,
			"Very low temperature produces nearly deterministic output."})
	}

	if profile.SupportsTopP {
		switch {
		case cfg.TopP < FocusedTopP:
			hints = append(hints, Hint{HintWarning, FieldTopP,
				"Low top_p keeps output narrowly focused."})
		case cfg.TopP == model.MaxTopP:
			hints = append(hints, Hint{HintInfo, FieldTopP,
				"top_p of 1.0 applies no nucleus filtering."})
		}
	}

	if cfg.MaxTokens < profile.MinTokens {
		hints = append(hints, Hint{HintWarning, FieldMaxTokens,
			fmt.Sprintf("max_tokens %d is below the %d minimum for %s.", cfg.MaxTokens, profile.MinTokens, profile.ID)})
	}

	return hints
}

// Hints returns the hints for the session's current model and parameters.
func (s *State) Hints() []Hint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked()
	return Hints(s.profile, s.config)
}
