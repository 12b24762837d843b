// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings for the chat view.
type KeyMap struct {
	Submit key.Binding

	NextModel key.Binding
	PrevModel key.Binding

	TempUp    key.Binding
	TempDown  key.Binding
	TopPUp    key.Binding
	TopPDown  key.Binding
	MaxUp     key.Binding
	MaxDown   key.Binding
	ResetOpts key.Binding

	Clear          key.Binding
	Export         key.Binding
	EditSystem     key.Binding
	EditCredential key.Binding
	ToggleMarkdown key.Binding

	PageUp   key.Binding
	PageDown key.Binding

	Help   key.Binding
	Escape key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		NextModel: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "next model"),
		),
		PrevModel: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("C-p", "previous model"),
		),
		TempUp: key.NewBinding(
			key.WithKeys("alt+t"),
			key.WithHelp("M-t", "temperature +0.05"),
		),
		TempDown: key.NewBinding(
			key.WithKeys("alt+T"),
			key.WithHelp("M-T", "temperature -0.05"),
		),
		TopPUp: key.NewBinding(
			key.WithKeys("alt+p"),
			key.WithHelp("M-p", "top_p +0.05"),
		),
		TopPDown: key.NewBinding(
			key.WithKeys("alt+P"),
			key.WithHelp("M-P", "top_p -0.05"),
		),
		MaxUp: key.NewBinding(
			key.WithKeys("alt+m"),
			key.WithHelp("M-m", "max tokens +8"),
		),
		MaxDown: key.NewBinding(
			key.WithKeys("alt+M"),
			key.WithHelp("M-M", "max tokens -8"),
		),
		ResetOpts: key.NewBinding(
			key.WithKeys("alt+r"),
			key.WithHelp("M-r", "reset parameters"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "clear chat"),
		),
		Export: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("C-e", "export transcript"),
		),
		EditSystem: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "system prompt"),
		),
		EditCredential: key.NewBinding(
			key.WithKeys("ctrl+k"),
			key.WithHelp("C-k", "API token"),
		),
		ToggleMarkdown: key.NewBinding(
			key.WithKeys("alt+d"),
			key.WithHelp("M-d", "toggle markdown"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("C-h", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.NextModel, k.EditCredential, k.Help, k.Quit}
}

// FullHelp returns the bindings shown in the help panel, grouped.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Escape, k.PageUp, k.PageDown, k.Quit},
		{k.NextModel, k.PrevModel, k.ResetOpts, k.ToggleMarkdown},
		{k.TempUp, k.TempDown, k.TopPUp, k.TopPDown, k.MaxUp, k.MaxDown},
		{k.Clear, k.Export, k.EditSystem, k.EditCredential, k.Help},
	}
}

// EditKeyMap is the help shown while editing the system prompt or token.
type EditKeyMap struct {
	Save   key.Binding
	Cancel key.Binding
}

// ShortHelp implements help.KeyMap.
func (k EditKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Save, k.Cancel}
}

// FullHelp implements help.KeyMap.
func (k EditKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func systemEditKeys() EditKeyMap {
	return EditKeyMap{
		Save:   key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("C-s", "save")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

func credentialEditKeys() EditKeyMap {
	return EditKeyMap{
		Save:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}
