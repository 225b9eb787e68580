// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file defines the Bubble Tea message types used by the chat interface:
// streaming events, server status, config reloads, persistence results, and
// the render tick. All message types follow Bubble Tea conventions and are
// immutable.
package chat

import (
	"time"

	"github.com/jeranaias/shoal-tui/internal/config"
	"github.com/jeranaias/shoal-tui/internal/ollama"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// StreamEventMsg delivers one event from the active stream. ExchangeID ties
// the event to the exchange that produced it; events from a canceled
// exchange that are already in flight are dropped by the ID check.
type StreamEventMsg struct {
	ExchangeID string
	Event      ollama.StreamEvent
}

// StreamClosedMsg signals that the stream channel closed. The terminal
// event (Done or Error) always precedes it.
type StreamClosedMsg struct {
	ExchangeID string
}

// StreamTickMsg drives batched rendering while a stream is active.
type StreamTickMsg struct {
	Time time.Time
}

// =============================================================================
// SERVER MESSAGES
// =============================================================================

// ServerStatusMsg reports the result of a server probe.
type ServerStatusMsg struct {
	Online bool
	Err    error
}

// ModelsMsg delivers the list of models installed on the server.
type ModelsMsg struct {
	Models []ollama.ModelInfo
	Err    error
}

// =============================================================================
// CONFIG AND PERSISTENCE MESSAGES
// =============================================================================

// ConfigReloadedMsg carries a config reloaded by the file watcher. It takes
// effect on the next exchange.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// SaveResultMsg reports the outcome of a background conversation save.
type SaveResultMsg struct {
	Err error
}
