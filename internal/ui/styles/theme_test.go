// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// THEME CREATION TESTS
// =============================================================================

func TestNewTheme_Modes(t *testing.T) {
	if !NewTheme(ModeDark).IsDark {
		t.Error("dark mode should report IsDark")
	}
	if NewTheme(ModeLight).IsDark {
		t.Error("light mode should not report IsDark")
	}
	if got := NewTheme(ModeDark).GlamourStyle(); got != "dark" {
		t.Errorf("GlamourStyle() = %q, want dark", got)
	}
	if got := NewTheme(ModeLight).GlamourStyle(); got != "light" {
		t.Errorf("GlamourStyle() = %q, want light", got)
	}
}

func TestThemeInitStyles(t *testing.T) {
	theme := NewTheme(ModeDark)

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Header", theme.Header},
		{"UserBubble", theme.UserBubble},
		{"AssistantBubble", theme.AssistantBubble},
		{"ErrorBubble", theme.ErrorBubble},
		{"Sidebar", theme.Sidebar},
		{"InputContainer", theme.InputContainer},
		{"StatusBar", theme.StatusBar},
		{"CodeBlock", theme.CodeBlock},
	}

	for _, s := range styles {
		if !strings.Contains(s.style.Render("test"), "test") {
			t.Errorf("%s style should render its content", s.name)
		}
	}
}

// =============================================================================
// LAYOUT TESTS
// =============================================================================

func TestGetLayoutMode(t *testing.T) {
	tests := []struct {
		width   int
		want    LayoutMode
		sidebar bool
	}{
		{40, LayoutNarrow, false},
		{59, LayoutNarrow, false},
		{60, LayoutMedium, false},
		{99, LayoutMedium, false},
		{100, LayoutWide, true},
		{200, LayoutWide, true},
	}

	theme := NewTheme(ModeDark)
	for _, tt := range tests {
		theme.SetSize(tt.width, 40)
		if got := theme.GetLayoutMode(); got != tt.want {
			t.Errorf("width %d: GetLayoutMode() = %v, want %v", tt.width, got, tt.want)
		}
		if got := theme.ShowSidebar(); got != tt.sidebar {
			t.Errorf("width %d: ShowSidebar() = %v, want %v", tt.width, got, tt.sidebar)
		}
	}
}

// =============================================================================
// STATUS INDICATOR TESTS
// =============================================================================

func TestStatusIndicators_Distinct(t *testing.T) {
	set := []string{StatusIndicators.Success, StatusIndicators.Error, StatusIndicators.Warning, StatusIndicators.Info}
	seen := make(map[string]bool)
	for _, ind := range set {
		if ind == "" || seen[ind] {
			t.Errorf("indicator %q is empty or repeated", ind)
		}
		seen[ind] = true
	}
}
