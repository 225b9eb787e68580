// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/shoal-tui/internal/model"
	"github.com/jeranaias/shoal-tui/internal/reasoning"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the complete chat screen.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(m.help.View())
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")
	b.WriteString(m.theme.InputContainer.Width(m.width).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	return b.String()
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("shoal")
	info := m.theme.ShortcutDesc.Render(" · " + m.cfg.Chat.Model)
	return m.theme.Header.Width(m.width).Render(title + info)
}

func (m Model) renderStatusBar() string {
	var left string
	if m.serverOnline {
		left = m.theme.Connected.Render("● online")
	} else {
		left = m.theme.Disconnected.Render("● offline")
	}

	var middle string
	switch {
	case m.state == StateStreaming:
		middle = m.spinner.View() + m.theme.ThinkingText.Render(" generating (esc to cancel)")
	case m.statusMsg != "":
		middle = m.theme.ShortcutDesc.Render(m.statusMsg)
	}

	if len(m.pendingNames) > 0 {
		middle += m.theme.Attachment.Render(
			fmt.Sprintf("  [%s]", strings.Join(m.pendingNames, ", ")))
	}

	return m.theme.StatusBar.Width(m.width).Render(left + "  " + middle)
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// renderMessages renders the full transcript for the viewport.
func (m Model) renderMessages() string {
	if m.conversation.Len() == 0 {
		return m.theme.SystemNote.Render("\n  Start a conversation, or /help for commands.\n")
	}

	var sections []string
	for _, msg := range m.conversation.Messages {
		switch msg.Role {
		case model.RoleUser:
			sections = append(sections, m.renderUser(msg))
		case model.RoleAssistant:
			sections = append(sections, m.renderAssistant(msg))
		case model.RoleSystem:
			sections = append(sections, m.theme.SystemNote.Render(msg.Content))
		}
	}
	return strings.Join(sections, "\n\n")
}

func (m Model) renderUser(msg *model.Message) string {
	label := m.theme.UserLabel.Render(msg.Role.DisplayName())
	body := m.theme.UserBody.Render(msg.Content)
	if n := len(msg.Images); n > 0 {
		body += "\n" + m.theme.Attachment.Render(fmt.Sprintf("  [%d image(s) attached]", n))
	}
	return label + "\n" + body
}

// renderAssistant renders a reply: optional reasoning block, rendered body,
// and any error annotation or statistics line.
func (m Model) renderAssistant(msg *model.Message) string {
	label := m.theme.AssistantLabel.Render(msg.Role.DisplayName())

	segments := reasoning.Split(msg.DisplayContent())

	var parts []string
	if segments.HasReasoning {
		parts = append(parts, m.renderReasoning(segments, msg.IsStreaming))
	}

	switch {
	case segments.Body != "":
		body := segments.Body
		if !msg.IsStreaming {
			// Markdown rendering only after the reply settles; re-rendering
			// a shifting prefix mid-stream causes layout jumps.
			body = m.renderer.Render(body)
		}
		parts = append(parts, m.theme.AssistantBody.Render(body))

	case msg.IsStreaming && !segments.HasReasoning:
		parts = append(parts, m.theme.ThinkingText.Render("..."))
	}

	if msg.HasError() {
		parts = append(parts, m.theme.ErrorBlock.Render(
			m.theme.ErrorLabel.Render("error: ")+msg.ErrorNote))
	}

	if !msg.IsStreaming && m.cfg.UI.ShowStats && msg.TokenCount > 0 {
		parts = append(parts, m.theme.StatsText.Render(formatStats(msg)))
	}

	if len(parts) == 0 {
		parts = append(parts, m.theme.ThinkingText.Render("..."))
	}

	return label + "\n" + lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderReasoning renders the model's thinking as a collapsed or expanded
// muted block. While the region is still open the block shows a live
// "thinking" state so an empty body is not mistaken for an empty reply.
func (m Model) renderReasoning(segments reasoning.Segments, streaming bool) string {
	label := m.theme.ReasoningLabel.Render("thinking")
	if segments.InProgress(!streaming) {
		label = m.theme.ReasoningLabel.Render("thinking") + m.spinner.View()
	}

	if !m.cfg.UI.ShowReasoning && !segments.InProgress(!streaming) {
		lines := strings.Count(segments.Reasoning, "\n") + 1
		return m.theme.ReasoningBlock.Render(
			fmt.Sprintf("%s (%d lines hidden)", label, lines))
	}

	return m.theme.ReasoningBlock.Render(label + "\n" + segments.Reasoning)
}

func formatStats(msg *model.Message) string {
	return fmt.Sprintf("%.1fs | %d tokens | %.1f tok/s",
		msg.TotalDuration.Seconds(), msg.TokenCount, msg.TokensPerSec)
}
