// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jeranaias/replichat/internal/model"
	"github.com/jeranaias/replichat/internal/ui/styles"
)

// =============================================================================
// TURN BUBBLES
// =============================================================================

// bubbleWidth leaves room for the bubble margin, border and padding.
func bubbleWidth(width int) int {
	w := width - 8
	if w < 20 {
		w = 20
	}
	return w
}

// RenderTurn renders one transcript turn as a labeled bubble.
func RenderTurn(theme *styles.Theme, r *Renderer, turn model.Turn, width int) string {
	inner := bubbleWidth(width)
	label := theme.TurnLabel.Render(turn.Role.DisplayName())

	if turn.Role == model.RoleUser {
		body := theme.UserBubble.Render(wordwrap.String(turn.Content, inner))
		return lipgloss.JoinVertical(lipgloss.Left, label, body)
	}
	body := theme.AssistantBubble.Render(r.Render(turn.Content, inner))
	return lipgloss.JoinVertical(lipgloss.Left, label, body)
}

// RenderStreaming renders the reply being generated. status is shown under
// the text, typically a spinner and elapsed time.
func RenderStreaming(theme *styles.Theme, r *Renderer, text, status string, width int) string {
	inner := bubbleWidth(width)
	label := theme.TurnLabel.Render(model.RoleAssistant.DisplayName())

	content := status
	if text != "" {
		content = r.RenderPlain(text, inner) + "\n" + status
	}
	return lipgloss.JoinVertical(lipgloss.Left, label, theme.StreamingBubble.Render(content))
}

// RenderError renders a failed turn. partial is the text received before
// the failure, shown when it was discarded from the transcript.
func RenderError(theme *styles.Theme, err error, partial string, width int) string {
	inner := bubbleWidth(width)
	msg := styles.StatusIndicators.Error + " " + err.Error()
	if partial != "" {
		msg += fmt.Sprintf("\n\nDiscarded partial reply (%d chars):\n%s", len(partial), partial)
	}
	return theme.ErrorBubble.Render(wordwrap.String(msg, inner))
}

// RenderStats renders the one-line statistics under a finished reply.
func RenderStats(theme *styles.Theme, stats *model.Statistics) string {
	if stats == nil {
		return ""
	}
	return theme.TurnMeta.Render(stats.Format())
}
