// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat implements the replichat terminal chat view as a Bubble Tea
model.

# Architecture

  - Model (model.go) - The tea.Model; owns the widgets and view state.
  - Update (update.go) - Message routing: keys, stream events, reloads.
  - View (view.go) - Header, transcript viewport, settings sidebar,
    input line and status bar.
  - StreamingBuffer (streaming.go) - Batches fragments to ~30 frames/s.
  - KeyMap (keys.go) - Key bindings and help text.

The session.State is the source of truth for the model, parameters,
transcript and credential. The chat Model only holds view state: the reply
being streamed, the last error and the edit mode.

# Streaming

Submitting a message starts conversation.Runner.Submit inside a tea.Cmd.
Each fragment is delivered to the program as a FragmentMsg through the
sender installed with SetSender (normally tea.Program.Send), buffered, and
drawn on the next StreamTickMsg. The command's result arrives as
StreamDoneMsg or StreamErrorMsg once the runner returns.

# Usage

	m := chat.New(chat.Options{State: state, Runner: runner, Config: cfg, Theme: theme})
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.SetSender(p.Send)
	_, err := p.Run()
*/
package chat
