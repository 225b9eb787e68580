// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file implements the slash commands available at the prompt and the
// background commands that talk to the server.
package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// maxImageBytes caps attachments; vision models reject giant payloads
// anyway and base64 inflates them by a third.
const maxImageBytes = 20 * 1024 * 1024

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.SplitN(input, " ", 2)
	cmd := parts[0]
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case "/help":
		m.showHelp = !m.showHelp
		return m, nil

	case "/clear":
		m.conversation.Clear()
		m.pendingImages = nil
		m.pendingNames = nil
		m.statusMsg = "conversation cleared"
		m.updateViewport()
		return m, nil

	case "/model":
		if arg == "" {
			m.statusMsg = "current model: " + m.cfg.Chat.Model
			return m, nil
		}
		m.cfg.Chat.Model = arg
		m.conversation.Model = arg
		m.statusMsg = "model set to " + arg
		return m, nil

	case "/models":
		m.statusMsg = "fetching models..."
		return m, m.listModelsCmd()

	case "/image":
		if arg == "" {
			m.statusMsg = "usage: /image <path>"
			return m, nil
		}
		return m.attachImage(arg)

	case "/quit":
		m.cancelMgr.cancel()
		return m, tea.Quit
	}

	m.statusMsg = "unknown command " + cmd + " (/help)"
	return m, nil
}

// attachImage stages an image for the next user message.
func (m Model) attachImage(path string) (tea.Model, tea.Cmd) {
	info, err := os.Stat(path)
	if err != nil {
		m.statusMsg = "image: " + err.Error()
		return m, nil
	}
	if info.Size() > maxImageBytes {
		m.statusMsg = fmt.Sprintf("image too large (%d MB max)", maxImageBytes/(1024*1024))
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		m.statusMsg = "image: " + err.Error()
		return m, nil
	}

	m.pendingImages = append(m.pendingImages, base64.StdEncoding.EncodeToString(data))
	m.pendingNames = append(m.pendingNames, filepath.Base(path))
	m.statusMsg = fmt.Sprintf("attached %s (%d pending)", filepath.Base(path), len(m.pendingImages))
	return m, nil
}

// =============================================================================
// SERVER COMMANDS
// =============================================================================

// probeServerCmd checks whether the server is reachable.
func (m Model) probeServerCmd() tea.Cmd {
	client := m.client
	host := m.cfg.Server.Host
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := client.Probe(ctx, host)
		return ServerStatusMsg{Online: err == nil, Err: err}
	}
}

// listModelsCmd fetches the installed model list.
func (m Model) listModelsCmd() tea.Cmd {
	client := m.client
	host := m.cfg.Server.Host
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		models, err := client.ListModels(ctx, host)
		return ModelsMsg{Models: models, Err: err}
	}
}
