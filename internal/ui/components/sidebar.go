// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/jeranaias/replichat/internal/session"
	"github.com/jeranaias/replichat/internal/ui/styles"
	"github.com/jeranaias/replichat/internal/util"
)

// SidebarWidth is the fixed width of the settings sidebar.
const SidebarWidth = 34

// RenderSettings renders the model, parameters and, when showHints is set,
// the parameter hints for snap.
func RenderSettings(theme *styles.Theme, snap session.Snapshot, hints []session.Hint, showHints bool, height int) string {
	inner := SidebarWidth - 4
	var b strings.Builder

	b.WriteString(theme.SidebarTitle.Render("Settings"))
	b.WriteString("\n")

	row := func(label, value string) {
		b.WriteString(theme.SettingLabel.Render(util.PadRight(label, 13)))
		b.WriteString(theme.SettingValue.Render(value))
		b.WriteString("\n")
	}

	b.WriteString(theme.SettingActive.Render(util.TruncateWidth(snap.Model.ID, inner)))
	b.WriteString("\n")
	b.WriteString(theme.LinkStyle.Render(util.TruncateWidth(snap.Model.DocsURL, inner)))
	b.WriteString("\n\n")

	row("Temperature", fmt.Sprintf("%.2f", snap.Config.Temperature))
	if snap.Model.SupportsTopP {
		row("Top P", fmt.Sprintf("%.2f", snap.Config.TopP))
	} else {
		row("Top P", "n/a")
	}
	row("Max tokens", fmt.Sprintf("%d", snap.Config.MaxTokens))
	row("Min tokens", fmt.Sprintf("%d", snap.Model.MinTokens))
	row("Turns", fmt.Sprintf("%d", len(snap.Transcript)))

	b.WriteString("\n")
	b.WriteString(theme.SettingLabel.Render("System prompt"))
	b.WriteString("\n")
	b.WriteString(util.TruncateRunes(snap.Config.SystemPrompt, 120))
	b.WriteString("\n")

	if showHints && len(hints) > 0 {
		b.WriteString("\n")
		b.WriteString(theme.SidebarTitle.Render("Hints"))
		b.WriteString("\n")
		for _, h := range hints {
			b.WriteString(renderHint(theme, h, inner-4))
			b.WriteString("\n")
		}
	}

	style := theme.Sidebar.Width(SidebarWidth - 2)
	if height > 2 {
		style = style.Height(height - 2)
	}
	return style.Render(wordwrap.String(strings.TrimRight(b.String(), "\n"), inner))
}

// renderHint prefixes a hint with its indicator, amber for warnings.
func renderHint(theme *styles.Theme, h session.Hint, width int) string {
	text := wordwrap.String(h.Text, width)
	if h.Level == session.HintWarning {
		return theme.WarningStyle.Render(styles.StatusIndicators.Warning + " " + text)
	}
	return theme.InfoStyle.Render(styles.StatusIndicators.Info + " " + text)
}
