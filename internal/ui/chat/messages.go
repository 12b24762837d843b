// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/replichat/internal/config"
	"github.com/jeranaias/replichat/internal/conversation"
	"github.com/jeranaias/replichat/internal/session"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// FragmentMsg carries one fragment of the reply being generated.
type FragmentMsg struct {
	Seq  int
	Text string
}

// StreamDoneMsg is sent when a reply completed and was appended.
type StreamDoneMsg struct {
	Seq    int
	Result *conversation.Result
}

// StreamErrorMsg is sent when a turn failed. Result is nil when the
// request was rejected before streaming began.
type StreamErrorMsg struct {
	Seq    int
	Err    error
	Result *conversation.Result
}

// StreamTickMsg triggers a frame while a reply is streaming.
type StreamTickMsg struct {
	Seq  int
	Time time.Time
}

// =============================================================================
// STATE MESSAGES
// =============================================================================

// StateChangedMsg reports a change to the session state made outside the
// Update loop.
type StateChangedMsg struct {
	Change session.Change
}

// ConfigReloadedMsg is sent when the config file changed on disk. Err is
// set when the new file failed to load; the previous config stays active.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}

// statusExpiredMsg clears a transient status line.
type statusExpiredMsg struct {
	seq int
}
