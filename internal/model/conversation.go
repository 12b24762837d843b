// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered list of turns for one session. It has no size
// cap; growth is bounded only by the session's lifetime.
//
// Transcript is not safe for concurrent use. The session state that owns it
// serializes access.
type Transcript struct {
	turns []Turn
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// NewGreetingTranscript creates a transcript holding only the greeting turn.
func NewGreetingTranscript() *Transcript {
	t := NewTranscript()
	t.Append(NewAssistantTurn(Greeting))
	return t
}

// Append adds a turn at the end of the transcript.
func (t *Transcript) Append(turn Turn) {
	t.turns = append(t.turns, turn)
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// IsEmpty reports whether the transcript has no turns.
func (t *Transcript) IsEmpty() bool {
	return len(t.turns) == 0
}

// Turns returns a copy of the turns in chronological order.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Last returns the most recent turn.
func (t *Transcript) Last() (Turn, bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

// LastOf returns the most recent turn with the given role.
func (t *Transcript) LastOf(role Role) (Turn, bool) {
	for i := len(t.turns) - 1; i >= 0; i-- {
		if t.turns[i].Role == role {
			return t.turns[i], true
		}
	}
	return Turn{}, false
}

// Clone returns an independent copy of the transcript.
func (t *Transcript) Clone() *Transcript {
	return &Transcript{turns: t.Turns()}
}
