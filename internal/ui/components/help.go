// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable UI components for the shoal TUI.
package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/shoal-tui/internal/ui/styles"
)

// =============================================================================
// HELP OVERLAY
// =============================================================================

// HelpEntry is one key-or-command row in the help overlay.
type HelpEntry struct {
	Key  string
	Desc string
}

// Help renders the keybinding and command reference panel, shown in
// place of the transcript while toggled on.
type Help struct {
	theme  *styles.Theme
	width  int
	height int

	keys     []HelpEntry
	commands []HelpEntry
}

// NewHelp creates the help overlay with the standard bindings.
func NewHelp(theme *styles.Theme) Help {
	return Help{
		theme: theme,
		keys: []HelpEntry{
			{"enter", "send message"},
			{"alt+enter", "insert newline"},
			{"esc", "cancel generation / close help"},
			{"pgup / pgdn", "scroll transcript"},
			{"ctrl+c", "quit"},
		},
		commands: []HelpEntry{
			{"/help", "toggle this panel"},
			{"/clear", "start a fresh conversation"},
			{"/model [tag]", "show or switch the active model"},
			{"/models", "list models on the server"},
			{"/image <path>", "attach an image to the next message"},
			{"/quit", "exit"},
		},
	}
}

// SetSize updates the panel dimensions.
func (h *Help) SetSize(width, height int) {
	h.width = width
	h.height = height
}

// View renders the panel centered in the available area.
func (h Help) View() string {
	var b strings.Builder

	b.WriteString(h.theme.HeaderTitle.Render("shoal help"))
	b.WriteString("\n\n")
	b.WriteString(h.section("keys", h.keys))
	b.WriteString("\n")
	b.WriteString(h.section("commands", h.commands))

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Overlay).
		Padding(1, 3).
		Render(b.String())

	if h.width <= 0 || h.height <= 0 {
		return panel
	}
	return lipgloss.Place(h.width, h.height, lipgloss.Center, lipgloss.Center, panel)
}

func (h Help) section(title string, entries []HelpEntry) string {
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, h.theme.ShortcutDesc.Render(strings.ToUpper(title)))
	for _, e := range entries {
		lines = append(lines, "  "+
			h.theme.ShortcutKey.Render(padRight(e.Key, 14))+
			h.theme.ShortcutDesc.Render(e.Desc))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-len(s))
}
