// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/replichat/internal/conversation"
	"github.com/jeranaias/replichat/internal/ui/components"
	"github.com/jeranaias/replichat/internal/ui/styles"
	"github.com/jeranaias/replichat/internal/util"
)

// =============================================================================
// LAYOUT
// =============================================================================

const (
	headerHeight     = 1
	statusHeight     = 1
	inputHeight      = 3
	systemEditHeight = 8
	credentialHeight = 4
)

// chatWidth is the width left for the transcript after the sidebar.
func (m *Model) chatWidth() int {
	w := m.width
	if m.theme.ShowSidebar() {
		w -= components.SidebarWidth
	}
	if w < 20 {
		w = 20
	}
	return w
}

func (m *Model) inputAreaHeight() int {
	switch m.mode {
	case ModeEditSystem:
		return systemEditHeight
	case ModeEditCredential:
		return credentialHeight
	default:
		return inputHeight
	}
}

func (m *Model) helpHeight() int {
	if !m.showHelp {
		return 0
	}
	return lipgloss.Height(m.helpView())
}

// layout resizes the widgets to the window.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	w := m.chatWidth()
	h := m.height - headerHeight - statusHeight - m.inputAreaHeight() - m.helpHeight()
	if h < 3 {
		h = 3
	}
	m.viewport.Width = w
	m.viewport.Height = h

	m.input.Width = m.width - 6
	m.token.Width = m.width - 12
	m.editor.SetWidth(m.width - 4)
	m.editor.SetHeight(systemEditHeight - 3)

	if m.renderWidth != w {
		m.renderCache = make(map[string]string)
		m.renderWidth = w
	}
	m.refresh()
}

// refresh rebuilds the transcript content.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	w := m.chatWidth()
	atBottom := m.viewport.AtBottom()

	var parts []string
	for _, turn := range m.state.Transcript() {
		rendered, ok := m.renderCache[turn.ID]
		if !ok {
			rendered = components.RenderTurn(m.theme, m.renderer, turn, w)
			m.renderCache[turn.ID] = rendered
		}
		parts = append(parts, rendered)
	}

	switch {
	case m.streaming:
		parts = append(parts, components.RenderStreaming(m.theme, m.renderer, m.streamText.String(), m.streamingStatus(), w))
	case m.lastErr != nil:
		text := m.lastErr.Error()
		if s := conversation.Suggestion(m.lastErr); s != "" {
			text += "\n" + s
		}
		parts = append(parts, components.RenderError(m.theme, fmt.Errorf("%s", text), m.lastPartial, w))
	case m.lastStats != nil:
		parts = append(parts, components.RenderStats(m.theme, m.lastStats))
	}

	m.viewport.SetContent(strings.Join(parts, "\n\n"))
	if atBottom || m.streaming {
		m.viewport.GotoBottom()
	}
}

func (m *Model) streamingStatus() string {
	elapsed := time.Since(m.streamStart).Truncate(100 * time.Millisecond)
	return m.spinner.View() + " " + m.theme.ThinkingText.Render(
		fmt.Sprintf("Generating with %s (%s)", m.state.Model().ID, elapsed))
}

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	body := m.viewport.View()
	if m.theme.ShowSidebar() {
		snap := m.state.Snapshot()
		sidebar := components.RenderSettings(m.theme, snap, m.state.Hints(), m.showHints, m.viewport.Height)
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, sidebar)
	}

	sections := []string{m.headerView(), body, m.inputView()}
	if m.showHelp {
		sections = append(sections, m.helpView())
	}
	sections = append(sections, m.statusView())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) headerView() string {
	snap := m.state.Snapshot()
	left := m.theme.HeaderBrand.Render("replichat") + "  " + m.theme.HeaderModel.Render(snap.Model.ID)

	params := fmt.Sprintf("temp %.2f", snap.Config.Temperature)
	if snap.Model.SupportsTopP {
		params += fmt.Sprintf(" | top_p %.2f", snap.Config.TopP)
	}
	params += fmt.Sprintf(" | max %d", snap.Config.MaxTokens)
	right := m.theme.HeaderMeta.Render(params + "  " + util.TruncateWidth(snap.ID, 13))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m *Model) inputView() string {
	switch m.mode {
	case ModeEditSystem:
		title := m.theme.EditTitle.Render("Edit system prompt") + "  " +
			m.help.ShortHelpView(systemEditKeys().ShortHelp())
		return m.theme.InputContainer.Width(m.width - 2).Render(title + "\n" + m.editor.View())
	case ModeEditCredential:
		title := m.theme.EditTitle.Render("Replicate API token") + "  " +
			m.help.ShortHelpView(credentialEditKeys().ShortHelp())
		return m.theme.InputContainer.Width(m.width - 2).Render(title + "\n" + m.token.View())
	}

	style := m.theme.InputContainer
	if !m.InputEnabled() {
		style = m.theme.InputContainerDisabled
	}
	return style.Width(m.width - 2).Render(m.input.View())
}

func (m *Model) helpView() string {
	h := m.help
	h.ShowAll = true
	h.Width = m.width
	return h.View(m.keys)
}

func (m *Model) statusView() string {
	var cred string
	if m.state.HasCredential() {
		cred = m.theme.CredentialOK.Render("token ok")
	} else {
		cred = m.theme.CredentialNone.Render("no token")
	}

	var left string
	switch {
	case m.status != "" && m.statusIsErr:
		left = m.theme.ErrorStyle.Render(styles.StatusIndicators.Error + " " + m.status)
	case m.status != "":
		left = m.theme.SuccessStyle.Render(styles.StatusIndicators.Success + " " + m.status)
	case m.streaming:
		left = m.spinner.View() + " " + m.theme.ThinkingText.Render("Generating...")
	default:
		h := m.help
		h.Width = m.width - lipgloss.Width(cred) - 4
		left = h.ShortHelpView(m.keys.ShortHelp())
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(cred) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + cred)
}
