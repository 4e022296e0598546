// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the chat screen. It detects the
// terminal's color capability once at startup.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	Header    lipgloss.Style
	StatusBar lipgloss.Style

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	ErrorBubble     lipgloss.Style
	RoleLabel       lipgloss.Style
	Timestamp       lipgloss.Style

	InputPrompt lipgloss.Style
	Spinner     lipgloss.Style
	Notice      lipgloss.Style
	Hint        lipgloss.Style
}

// NewTheme builds the theme for the current terminal.
func NewTheme() *Theme {
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
	}

	t.Header = lipgloss.NewStyle().
		Foreground(Cyan).
		Background(SurfaceDim).
		Bold(true).
		Padding(0, 1)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)

	bubble := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder(), false, false, false, true).
		Padding(0, 1)

	t.UserBubble = bubble.
		Foreground(UserBubbleFg).
		BorderForeground(UserBubbleBorder)

	t.AssistantBubble = bubble.
		Foreground(AssistantBubbleFg).
		BorderForeground(AssistantBubbleBorder)

	t.ErrorBubble = bubble.
		Foreground(ErrorBubbleFg).
		BorderForeground(ErrorBubbleBorder)

	t.RoleLabel = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.Notice = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.Hint = lipgloss.NewStyle().
		Foreground(TextMuted)

	return t
}

// Resize records the current terminal dimensions.
func (t *Theme) Resize(width, height int) {
	t.Width = width
	t.Height = height
}
