// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for transcripts, turns, and the
// static catalog of Replicate-hosted models.
//
// # Key Types
//
//   - Turn: Single conversation turn with role, content, and timestamp
//   - Transcript: Ordered, append-only list of turns for one session
//   - ModelProfile: Catalog entry (endpoint, docs link, top_p support, min tokens)
//   - GenerationConfig: Sampling parameters and system prompt for a session
//   - Role: Turn role enumeration (user, assistant)
//
// # Usage
//
// Build a transcript:
//
//	t := model.NewTranscript()
//	t.Append(model.NewAssistantTurn(model.Greeting))
//	t.Append(model.NewUserTurn("Hi"))
//
// Resolve a model:
//
//	p, ok := model.LookupModel("meta-llama-3-8b-instruct")
//	cfg := model.DefaultGenerationConfig().Clamp(p)
package model
