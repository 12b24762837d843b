// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
)

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestCatalog_Entries(t *testing.T) {
	tests := []struct {
		id        string
		endpoint  string
		topP      bool
		minTokens int
	}{
		{"meta-llama-3-8b-instruct", "meta/meta-llama-3-8b-instruct", true, 64},
		{"meta-llama-3-70b-instruct", "meta/meta-llama-3-70b-instruct", true, 64},
		{"meta-llama-3.1-405b-instruct", "meta/meta-llama-3.1-405b-instruct", true, 64},
		{"meta-llama-4-17b-maverick-instruct", "meta/llama-4-maverick-instruct", true, 64},
		{"anthropic-claude-3.7-sonnet", "anthropic/claude-3.7-sonnet", false, 1024},
	}

	if got := len(Catalog()); got != len(tests) {
		t.Fatalf("Catalog() has %d entries, expected %d", got, len(tests))
	}

	for i, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			p, ok := LookupModel(tc.id)
			if !ok {
				t.Fatalf("LookupModel(%q) not found", tc.id)
			}
			if p.Endpoint != tc.endpoint {
				t.Errorf("Endpoint = %q, expected %q", p.Endpoint, tc.endpoint)
			}
			if p.SupportsTopP != tc.topP {
				t.Errorf("SupportsTopP = %v, expected %v", p.SupportsTopP, tc.topP)
			}
			if p.MinTokens != tc.minTokens {
				t.Errorf("MinTokens = %d, expected %d", p.MinTokens, tc.minTokens)
			}
			if p.DocsURL != "https://replicate.com/"+tc.endpoint {
				t.Errorf("DocsURL = %q", p.DocsURL)
			}
			if ModelIDs()[i] != tc.id {
				t.Errorf("ModelIDs()[%d] = %q, expected %q", i, ModelIDs()[i], tc.id)
			}
		})
	}
}

func TestLookupModel_Unknown(t *testing.T) {
	if _, ok := LookupModel("gpt-4o"); ok {
		t.Error("LookupModel(gpt-4o) should not be found")
	}
}

func TestDefaultModel(t *testing.T) {
	if got := DefaultModel().ID; got != "meta-llama-3-8b-instruct" {
		t.Errorf("DefaultModel() = %q", got)
	}
}

func TestModelProfile_OwnerName(t *testing.T) {
	p, _ := LookupModel("meta-llama-4-17b-maverick-instruct")
	if p.Owner() != "meta" || p.Name() != "llama-4-maverick-instruct" {
		t.Errorf("Owner/Name = %q/%q", p.Owner(), p.Name())
	}
}

func TestNextModelID_Wraps(t *testing.T) {
	ids := ModelIDs()
	if got := NextModelID(ids[len(ids)-1], 1); got != ids[0] {
		t.Errorf("NextModelID(last, 1) = %q, expected %q", got, ids[0])
	}
	if got := NextModelID(ids[0], -1); got != ids[len(ids)-1] {
		t.Errorf("NextModelID(first, -1) = %q, expected %q", got, ids[len(ids)-1])
	}
	if got := NextModelID("unknown", 1); got != ids[1] {
		t.Errorf("NextModelID(unknown, 1) = %q, expected %q", got, ids[1])
	}
}

// =============================================================================
// GENERATION CONFIG TESTS
// =============================================================================

func TestGenerationConfig_Clamp(t *testing.T) {
	llama := DefaultModel()
	claude, _ := LookupModel("anthropic-claude-3.7-sonnet")

	tests := []struct {
		name    string
		profile ModelProfile
		in      GenerationConfig
		want    GenerationConfig
	}{
		{
			name:    "defaults unchanged",
			profile: llama,
			in:      DefaultGenerationConfig(),
			want:    DefaultGenerationConfig(),
		},
		{
			name:    "max tokens raised to model minimum",
			profile: claude,
			in:      GenerationConfig{Temperature: 0.7, TopP: 0.9, MaxTokens: 512},
			want:    GenerationConfig{Temperature: 0.7, TopP: 0.9, MaxTokens: 1024},
		},
		{
			name:    "out of range values",
			profile: llama,
			in:      GenerationConfig{Temperature: 9, TopP: -1, MaxTokens: 100000},
			want:    GenerationConfig{Temperature: 5, TopP: 0, MaxTokens: 4096},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Clamp(tc.profile)
			if got != tc.want {
				t.Errorf("Clamp() = %+v, expected %+v", got, tc.want)
			}
		})
	}
}

func TestClampTemperature_StepNoise(t *testing.T) {
	v := 0.7
	for i := 0; i < 3; i++ {
		v = ClampTemperature(v + TemperatureStep)
	}
	if v != 0.85 {
		t.Errorf("three steps from 0.7 = %v, expected 0.85", v)
	}
}

// =============================================================================
// TURN AND TRANSCRIPT TESTS
// =============================================================================

func TestRole_Label(t *testing.T) {
	if RoleUser.Label() != "User" || RoleAssistant.Label() != "Assistant" {
		t.Errorf("labels = %q/%q", RoleUser.Label(), RoleAssistant.Label())
	}
	if Role("system").IsValid() {
		t.Error("system role should not be valid")
	}
}

func TestNewTurn_ID(t *testing.T) {
	a := NewUserTurn("hi")
	b := NewUserTurn("hi")
	if !strings.HasPrefix(a.ID, "turn_") || len(a.ID) != len("turn_")+16 {
		t.Errorf("ID = %q", a.ID)
	}
	if a.ID == b.ID {
		t.Error("turn IDs should be unique")
	}
}

func TestTurn_Preview(t *testing.T) {
	turn := NewUserTurn("hello   there\nworld")
	if got := turn.Preview(0); got != "hello there world" {
		t.Errorf("Preview(0) = %q", got)
	}
	if got := turn.Preview(8); got != "hello..." {
		t.Errorf("Preview(8) = %q", got)
	}
}

func TestTranscript_Order(t *testing.T) {
	tr := NewGreetingTranscript()
	tr.Append(NewUserTurn("one"))
	tr.Append(NewAssistantTurn("two"))

	turns := tr.Turns()
	if len(turns) != 3 {
		t.Fatalf("Len = %d, expected 3", len(turns))
	}
	if turns[0].Content != Greeting || turns[1].Content != "one" || turns[2].Content != "two" {
		t.Errorf("unexpected order: %+v", turns)
	}

	turns[0].Content = "mutated"
	if tr.Turns()[0].Content != Greeting {
		t.Error("Turns() should return a copy")
	}

	last, ok := tr.LastOf(RoleUser)
	if !ok || last.Content != "one" {
		t.Errorf("LastOf(user) = %+v, %v", last, ok)
	}
}

func TestStatistics(t *testing.T) {
	s := NewStatistics()
	s.RecordFragment()
	first := s.FirstTokenTime
	s.RecordFragment()
	s.Finalize()

	if s.Fragments != 2 {
		t.Errorf("Fragments = %d", s.Fragments)
	}
	if s.FirstTokenTime != first {
		t.Error("first token time should only be recorded once")
	}
	if !strings.Contains(s.Format(), "2 fragments") {
		t.Errorf("Format() = %q", s.Format())
	}
}
