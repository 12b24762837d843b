// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the replichat TUI.

All colors use Lip Gloss AdaptiveColor so one palette serves light and dark
terminals.

# Color System (colors.go)

  - Purple - Assistant turns and selections
  - Cyan - Brand color, user turns, key hints
  - Emerald - Success states and a configured credential
  - Amber - Warnings and parameter hints
  - Rose - Errors and a missing credential

Status text carries an ASCII indicator (StatusIndicators) as well as a
color, so "[OK] Token saved" and "[!] Top P is low" read without color.

# Themes (theme.go)

Theme holds every lipgloss.Style the chat view uses. NewTheme takes the
configured mode ("auto", "dark" or "light"); "auto" asks termenv whether the
terminal background is dark.

	theme := styles.NewTheme("auto")
	theme.SetSize(width, height)
	fmt.Println(theme.UserBubble.Render("Hello"))
*/
package styles
