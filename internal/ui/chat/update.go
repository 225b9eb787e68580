// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/shoal-tui/internal/model"
	"github.com/jeranaias/shoal-tui/internal/ollama"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update is the Bubble Tea update loop for the chat view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamEventMsg:
		return m.handleStreamEvent(msg)

	case StreamClosedMsg:
		if msg.ExchangeID == m.exchangeID {
			m.events = nil
		}
		return m, nil

	case StreamTickMsg:
		return m.handleStreamTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state == StateStreaming {
			return m, cmd
		}
		return m, nil

	case ServerStatusMsg:
		m.serverOnline = msg.Online
		if !msg.Online && msg.Err != nil {
			m.statusMsg = msg.Err.Error()
		}
		return m, nil

	case ModelsMsg:
		return m.handleModels(msg)

	case ConfigReloadedMsg:
		// Applies from the next exchange; the in-flight one keeps its snapshot.
		m.cfg = msg.Config
		m.conversation.Model = msg.Config.Chat.Model
		m.conversation.SystemPrompt = msg.Config.Chat.SystemPrompt
		m.statusMsg = "config reloaded"
		return m, nil

	case SaveResultMsg:
		if msg.Err != nil {
			m.statusMsg = "save failed: " + msg.Err.Error()
		}
		return m, nil
	}

	return m.updateComponents(msg)
}

func (m Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// =============================================================================
// RESIZE
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 1
	statusHeight := 1
	inputHeight := m.input.Height() + 2

	m.viewport.Width = msg.Width
	m.viewport.Height = msg.Height - headerHeight - statusHeight - inputHeight
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
	m.input.SetWidth(msg.Width - 2)
	m.renderer.SetWidth(msg.Width - 6)
	m.help.SetSize(m.viewport.Width, m.viewport.Height)

	m.updateViewport()
	return m, nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.cancelMgr.cancel()
		return m, tea.Quit

	case tea.KeyEsc:
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		if m.state == StateStreaming {
			// Cancellation surfaces as an error event on the stream; partial
			// content stays in the transcript.
			m.cancelMgr.cancel()
			return m, nil
		}
		return m, nil

	case tea.KeyEnter:
		// Alt+Enter inserts a newline; bare Enter submits.
		if msg.Alt {
			break
		}
		return m.handleSubmit()

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return m, nil
	}
	if m.state == StateStreaming {
		m.statusMsg = "a reply is already streaming (esc to cancel)"
		return m, nil
	}

	m.input.Reset()
	m.statusMsg = ""
	m.showHelp = false

	if strings.HasPrefix(content, "/") {
		return m.handleCommand(content)
	}
	return m.startExchange(content)
}

// =============================================================================
// EXCHANGE LIFECYCLE
// =============================================================================

// startExchange appends the user turn, opens the stream, and switches to
// streaming state. The config snapshot is taken here; edits made while the
// reply streams apply to the next exchange.
func (m Model) startExchange(content string) (tea.Model, tea.Cmd) {
	m.snapshot = m.cfg.Snapshot()

	var userMsg *model.Message
	if len(m.pendingImages) > 0 {
		userMsg = model.NewUserMessageWithImages(content, m.pendingImages)
		m.pendingImages = nil
		m.pendingNames = nil
	} else {
		userMsg = model.NewUserMessage(content)
	}
	m.conversation.Append(userMsg)

	reply := model.NewAssistantMessage()
	m.conversation.Append(reply)

	m.exchangeID = reply.ID
	m.streamingStats = model.NewStatistics()
	m.warningCount = 0
	m.streamingBuffer.Reset()
	m.state = StateStreaming

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelMgr.set(cancel)

	client := ollama.NewClientWithConfig(ollama.ClientConfig{
		ConnectTimeout: m.snapshot.ConnectTimeout,
		ReadTimeout:    m.snapshot.ReadTimeout,
	})
	m.events = client.ChatStreamChan(ctx, ollama.ChatParams{
		Host:        m.snapshot.Host,
		Model:       m.snapshot.Model,
		Messages:    m.conversation.ToWireMessages(),
		Temperature: m.snapshot.Temperature,
	})

	m.updateViewport()
	m.viewport.GotoBottom()

	return m, tea.Batch(
		waitForEventCmd(m.exchangeID, m.events),
		m.spinner.Tick,
		streamTickCmd(),
	)
}

// waitForEventCmd receives one stream event and hands it to the update loop.
// Reissued after each event until the channel closes.
func waitForEventCmd(exchangeID string, events <-chan ollama.StreamEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return StreamClosedMsg{ExchangeID: exchangeID}
		}
		return StreamEventMsg{ExchangeID: exchangeID, Event: ev}
	}
}

func (m Model) handleStreamEvent(msg StreamEventMsg) (tea.Model, tea.Cmd) {
	if msg.ExchangeID != m.exchangeID || m.events == nil {
		return m, nil
	}

	listen := waitForEventCmd(m.exchangeID, m.events)

	switch msg.Event.Kind {
	case ollama.EventDelta:
		if m.streamingStats != nil {
			m.streamingStats.RecordFirstToken()
		}
		m.streamingBuffer.Write(msg.Event.Delta)
		return m, listen

	case ollama.EventWarning:
		m.warningCount++
		m.statusMsg = fmt.Sprintf("%d malformed line(s) skipped", m.warningCount)
		return m, listen

	case ollama.EventDone:
		m.finishExchange(msg.Event.Stats)
		return m, listen

	case ollama.EventError:
		m.failExchange(msg.Event.Err)
		return m, listen
	}

	return m, listen
}

// finishExchange settles the reply after a Done event.
func (m *Model) finishExchange(stats *ollama.Stats) {
	reply := m.currentReply()
	if reply == nil {
		return
	}

	if content, ok := m.streamingBuffer.ForceFlush(); ok {
		reply.AppendDelta(content)
	}

	tokens := 0
	if stats != nil {
		tokens = stats.CompletionTokens
	}
	if m.streamingStats != nil {
		m.streamingStats.Finalize(tokens)
	}
	reply.Finalize(m.streamingStats)

	m.settleExchange()
}

// failExchange settles the reply after an Error event, keeping whatever
// content arrived and annotating the failure.
func (m *Model) failExchange(cause error) {
	reply := m.currentReply()
	if reply == nil {
		return
	}

	if content, ok := m.streamingBuffer.ForceFlush(); ok {
		reply.AppendDelta(content)
	}
	reply.FinalizeWithError(cause)

	m.settleExchange()
}

func (m *Model) settleExchange() {
	m.state = StateReady
	m.streamingStats = nil
	m.cancelMgr.cancel()

	if m.store != nil {
		if err := m.store.Save(m.conversation); err != nil {
			m.statusMsg = "save failed: " + err.Error()
		}
	}

	m.updateViewport()
	m.viewport.GotoBottom()
	m.input.Focus()
}

func (m Model) currentReply() *model.Message {
	reply := m.conversation.LastAssistant()
	if reply == nil || reply.ID != m.exchangeID {
		return nil
	}
	return reply
}

// =============================================================================
// RENDER TICK
// =============================================================================

// handleStreamTick flushes batched deltas into the transcript at the render
// cap. Delta order is preserved; batching only changes redraw frequency.
func (m Model) handleStreamTick() (tea.Model, tea.Cmd) {
	if m.state != StateStreaming {
		return m, nil
	}

	if content, ok := m.streamingBuffer.Flush(); ok {
		if reply := m.currentReply(); reply != nil {
			reply.AppendDelta(content)
		}
		m.updateViewport()
		m.viewport.GotoBottom()
	}

	return m, streamTickCmd()
}

// =============================================================================
// MODELS LIST
// =============================================================================

func (m Model) handleModels(msg ModelsMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.statusMsg = "list models: " + msg.Err.Error()
		return m, nil
	}

	names := make([]string, 0, len(msg.Models))
	for _, info := range msg.Models {
		names = append(names, info.Name)
	}
	if len(names) == 0 {
		m.statusMsg = "no models installed"
	} else {
		m.statusMsg = "models: " + strings.Join(names, ", ")
	}
	return m, nil
}

// =============================================================================
// VIEWPORT UPDATE
// =============================================================================

func (m *Model) updateViewport() {
	m.viewport.SetContent(m.renderMessages())
}
