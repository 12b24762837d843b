// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "math"

// =============================================================================
// GENERATION CONFIG
// =============================================================================

// Parameter bounds.
const (
	MinTemperature = 0.0
	MaxTemperature = 5.0
	MinTopP        = 0.0
	MaxTopP        = 1.0
	MaxMaxTokens   = 4096

	// Slider steps used by the front-ends.
	TemperatureStep = 0.05
	TopPStep        = 0.05
	MaxTokensStep   = 8
)

// Defaults.
const (
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
	DefaultMaxTokens   = 512

	DefaultSystemPrompt = "You are a helpful assistant. You do not respond as 'User' or pretend to be 'User'. You only respond once as 'Assistant'."

	// RepetitionPenalty is sent with every request.
	RepetitionPenalty = 1
)

// GenerationConfig holds the sampling parameters and system prompt.
type GenerationConfig struct {
	Temperature  float64 `json:"temperature" toml:"temperature"`
	TopP         float64 `json:"top_p" toml:"top_p"`
	MaxTokens    int     `json:"max_tokens" toml:"max_tokens"`
	SystemPrompt string  `json:"system_prompt" toml:"system_prompt"`
}

// DefaultGenerationConfig returns the documented defaults.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:  DefaultTemperature,
		TopP:         DefaultTopP,
		MaxTokens:    DefaultMaxTokens,
		SystemPrompt: DefaultSystemPrompt,
	}
}

// Clamp returns a copy of c with every field inside its bounds for profile.
// MaxTokens is raised to the profile minimum when it falls below it.
func (c GenerationConfig) Clamp(profile ModelProfile) GenerationConfig {
	c.Temperature = ClampTemperature(c.Temperature)
	c.TopP = ClampTopP(c.TopP)
	c.MaxTokens = ClampMaxTokens(c.MaxTokens, profile)
	return c
}

// ClampTemperature forces t into [MinTemperature, MaxTemperature].
func ClampTemperature(t float64) float64 {
	return clampFloat(roundStep(t), MinTemperature, MaxTemperature)
}

// ClampTopP forces p into [MinTopP, MaxTopP].
func ClampTopP(p float64) float64 {
	return clampFloat(roundStep(p), MinTopP, MaxTopP)
}

// ClampMaxTokens forces n into [profile.MinTokens, MaxMaxTokens].
func ClampMaxTokens(n int, profile ModelProfile) int {
	if n < profile.MinTokens {
		return profile.MinTokens
	}
	if n > MaxMaxTokens {
		return MaxMaxTokens
	}
	return n
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundStep trims float noise from repeated slider steps (0.7+0.05 etc).
func roundStep(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
