// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// MODEL PROFILE TYPE
// =============================================================================

// ModelProfile describes one Replicate-hosted model the client can talk to.
type ModelProfile struct {
	// ID is the identifier shown in the model picker
	ID string `json:"id"`

	// Endpoint is the Replicate model reference ("owner/name")
	Endpoint string `json:"endpoint"`

	// DocsURL links to the model's Replicate page
	DocsURL string `json:"docs_url"`

	// SupportsTopP reports whether the model accepts the top_p parameter
	SupportsTopP bool `json:"supports_top_p"`

	// MinTokens is the smallest max_tokens value the model accepts
	MinTokens int `json:"min_tokens"`
}

// Owner returns the owner part of the endpoint reference.
func (p ModelProfile) Owner() string {
	owner, _, _ := strings.Cut(p.Endpoint, "/")
	return owner
}

// Name returns the model-name part of the endpoint reference.
func (p ModelProfile) Name() string {
	_, name, _ := strings.Cut(p.Endpoint, "/")
	return name
}

// Summary returns a one-line description for pickers and listings.
func (p ModelProfile) Summary() string {
	topP := "top_p"
	if !p.SupportsTopP {
		topP = "no top_p"
	}
	return fmt.Sprintf("%s (%s, min %d tokens)", p.Endpoint, topP, p.MinTokens)
}

// =============================================================================
// MODEL CATALOG
// =============================================================================

// DefaultMinTokens is the minimum output length for most catalog models.
const DefaultMinTokens = 64

// catalog is the static, ordered model list. The first entry is the default.
var catalog = []ModelProfile{
	newProfile("meta-llama-3-8b-instruct", "meta/meta-llama-3-8b-instruct", true, DefaultMinTokens),
	newProfile("meta-llama-3-70b-instruct", "meta/meta-llama-3-70b-instruct", true, DefaultMinTokens),
	newProfile("meta-llama-3.1-405b-instruct", "meta/meta-llama-3.1-405b-instruct", true, DefaultMinTokens),
	newProfile("meta-llama-4-17b-maverick-instruct", "meta/llama-4-maverick-instruct", true, DefaultMinTokens),
	newProfile("anthropic-claude-3.7-sonnet", "anthropic/claude-3.7-sonnet", false, 1024),
}

func newProfile(id, endpoint string, topP bool, minTokens int) ModelProfile {
	return ModelProfile{
		ID:           id,
		Endpoint:     endpoint,
		DocsURL:      "https://replicate.com/" + endpoint,
		SupportsTopP: topP,
		MinTokens:    minTokens,
	}
}

// LookupModel returns the catalog entry for id.
func LookupModel(id string) (ModelProfile, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return ModelProfile{}, false
}

// ModelIDs returns every catalog identifier in catalog order.
func ModelIDs() []string {
	ids := make([]string, len(catalog))
	for i, p := range catalog {
		ids[i] = p.ID
	}
	return ids
}

// Catalog returns a copy of the catalog in order.
func Catalog() []ModelProfile {
	out := make([]ModelProfile, len(catalog))
	copy(out, catalog)
	return out
}

// DefaultModel returns the first catalog entry.
func DefaultModel() ModelProfile {
	return catalog[0]
}

// NextModelID returns the identifier delta positions away from id, wrapping
// around the catalog. Unknown ids start from the default.
func NextModelID(id string, delta int) string {
	idx := 0
	for i, p := range catalog {
		if p.ID == id {
			idx = i
			break
		}
	}
	n := len(catalog)
	idx = ((idx+delta)%n + n) % n
	return catalog[idx].ID
}
