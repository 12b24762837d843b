// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/replichat/internal/export"
	"github.com/jeranaias/replichat/internal/model"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.ready = true
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case FragmentMsg:
		if msg.Seq == m.streamSeq && m.streaming {
			m.buffer.Write(msg.Text)
		}
		return m, nil

	case StreamTickMsg:
		if !m.streaming || msg.Seq != m.streamSeq {
			return m, nil
		}
		if text, ok := m.buffer.Flush(); ok {
			m.streamText.WriteString(text)
		}
		m.refresh()
		return m, streamTickCmd(m.streamSeq, m.buffer.Interval())

	case StreamDoneMsg:
		if msg.Seq != m.streamSeq {
			return m, nil
		}
		m.finishStream()
		if msg.Result != nil {
			m.lastStats = msg.Result.Stats
		}
		m.refresh()
		return m, nil

	case StreamErrorMsg:
		return m, m.handleStreamError(msg)

	case StateChangedMsg:
		m.syncInput()
		m.refresh()
		return m, nil

	case ConfigReloadedMsg:
		if msg.Err != nil {
			return m, m.setStatus(fmt.Sprintf("Config reload failed: %v", msg.Err), true)
		}
		if msg.Config != nil {
			return m, m.applyConfig(msg.Config)
		}
		return m, nil

	case statusExpiredMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
			m.statusIsErr = false
		}
		return m, nil
	}

	return m.updateWidgets(msg)
}

// handleStreamError records a failed turn. Failures are shown once and
// never retried.
func (m *Model) handleStreamError(msg StreamErrorMsg) tea.Cmd {
	if msg.Seq != m.streamSeq {
		return nil
	}
	m.finishStream()

	m.lastErr = msg.Err
	m.lastPartial = ""
	if res := msg.Result; res != nil {
		m.lastStats = res.Stats
		if !res.Partial {
			m.lastPartial = res.Text
		}
	}
	m.streamText.Reset()
	m.refresh()
	return nil
}

// handleKey routes a key press by edit mode.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.Close()
		return m, tea.Quit
	}

	switch m.mode {
	case ModeEditSystem:
		return m.handleSystemEditKey(msg)
	case ModeEditCredential:
		return m.handleCredentialKey(msg)
	}
	return m.handleChatKey(msg)
}

func (m *Model) handleSystemEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.leaveEdit()
		return m, nil
	case key.Matches(msg, m.keys.EditSystem):
		return m, m.saveSystemPrompt()
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m *Model) handleCredentialKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.leaveEdit()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		return m, m.saveToken()
	}
	var cmd tea.Cmd
	m.token, cmd = m.token.Update(msg)
	return m, cmd
}

func (m *Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		// A running reply always completes; esc only dismisses help.
		if m.showHelp {
			m.showHelp = false
			m.layout()
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m, m.submit()

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.NextModel):
		return m, m.stepModel(1)
	case key.Matches(msg, m.keys.PrevModel):
		return m, m.stepModel(-1)

	case key.Matches(msg, m.keys.TempUp):
		return m, m.stepTemperature(model.TemperatureStep)
	case key.Matches(msg, m.keys.TempDown):
		return m, m.stepTemperature(-model.TemperatureStep)
	case key.Matches(msg, m.keys.TopPUp):
		return m, m.stepTopP(model.TopPStep)
	case key.Matches(msg, m.keys.TopPDown):
		return m, m.stepTopP(-model.TopPStep)
	case key.Matches(msg, m.keys.MaxUp):
		return m, m.stepMaxTokens(model.MaxTokensStep)
	case key.Matches(msg, m.keys.MaxDown):
		return m, m.stepMaxTokens(-model.MaxTokensStep)
	case key.Matches(msg, m.keys.ResetOpts):
		m.state.ResetConfig()
		m.refresh()
		return m, m.setStatus("Parameters reset to defaults", false)

	case key.Matches(msg, m.keys.Clear):
		if err := m.state.Clear(); err != nil {
			return m, m.setStatus("Cannot clear: "+err.Error(), true)
		}
		m.lastErr = nil
		m.lastPartial = ""
		m.lastStats = nil
		m.renderCache = make(map[string]string)
		m.refresh()
		return m, m.setStatus("Chat cleared", false)

	case key.Matches(msg, m.keys.Export):
		opts := export.DefaultOptions()
		if m.exportDir != "" {
			opts.OutputDir = m.exportDir
		}
		path, err := export.ToFile(m.state.Snapshot(), export.NewMarkdownExporter(opts), opts)
		if err != nil {
			return m, m.setStatus("Export failed: "+err.Error(), true)
		}
		return m, m.setStatus("Transcript saved to "+path, false)

	case key.Matches(msg, m.keys.EditSystem):
		return m, m.beginEditSystem()
	case key.Matches(msg, m.keys.EditCredential):
		return m, m.beginEditCredential()

	case key.Matches(msg, m.keys.ToggleMarkdown):
		m.renderer.SetMarkdown(!m.renderer.Markdown())
		m.renderCache = make(map[string]string)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if !m.InputEnabled() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// updateWidgets forwards other messages (blink, spinner, mouse) to the
// widgets that use them.
func (m *Model) updateWidgets(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	switch m.mode {
	case ModeEditSystem:
		m.editor, cmd = m.editor.Update(msg)
	case ModeEditCredential:
		m.token, cmd = m.token.Update(msg)
	default:
		m.input, cmd = m.input.Update(msg)
	}
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	if m.streaming {
		m.refresh()
	}
	return m, tea.Batch(cmds...)
}

// =============================================================================
// PARAMETER CONTROLS
// =============================================================================

func (m *Model) stepModel(delta int) tea.Cmd {
	next := model.NextModelID(m.state.Model().ID, delta)
	if err := m.state.SetModel(next); err != nil {
		return m.setStatus(err.Error(), true)
	}
	m.refresh()
	return m.setStatus("Model: "+next, false)
}

func (m *Model) stepTemperature(delta float64) tea.Cmd {
	v := m.state.SetTemperature(m.state.Config().Temperature + delta)
	m.refresh()
	return m.setStatus(fmt.Sprintf("Temperature: %.2f", v), false)
}

func (m *Model) stepTopP(delta float64) tea.Cmd {
	if !m.state.Model().SupportsTopP {
		return m.setStatus(m.state.Model().ID+" does not use top_p", true)
	}
	v := m.state.SetTopP(m.state.Config().TopP + delta)
	m.refresh()
	return m.setStatus(fmt.Sprintf("Top P: %.2f", v), false)
}

func (m *Model) stepMaxTokens(delta int) tea.Cmd {
	v := m.state.SetMaxTokens(m.state.Config().MaxTokens + delta)
	m.refresh()
	return m.setStatus(fmt.Sprintf("Max tokens: %d", v), false)
}
