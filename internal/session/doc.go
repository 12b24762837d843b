// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the per-session chat state: transcript, selected
// model, generation parameters, and credential.
//
// A State is created explicitly and passed to whatever needs it; there is no
// package-level session. Front-ends observe it through Subscribe instead of
// polling.
//
// # Key Types
//
//   - State: Mutex-guarded session state with observers
//   - Change: Notification sent to observers after a mutation
//   - Hint: Advisory text about the current parameter values
//
// # Usage
//
//	st := session.New(session.WithCredential(token))
//	st.Initialize()
//	unsubscribe := st.Subscribe(func(c session.Change) {
//	    // re-render
//	})
//	defer unsubscribe()
//
//	release, err := st.BeginGeneration()
//	if err != nil {
//	    return err // session.ErrGenerationInFlight
//	}
//	defer release()
//
// # Invariants
//
// The transcript always starts non-empty (the greeting), MaxTokens is never
// below the active model's minimum, and at most one generation is in flight.
package session
