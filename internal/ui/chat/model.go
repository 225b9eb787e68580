// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/shoal-tui/internal/config"
	"github.com/jeranaias/shoal-tui/internal/markdown"
	"github.com/jeranaias/shoal-tui/internal/model"
	"github.com/jeranaias/shoal-tui/internal/ollama"
	"github.com/jeranaias/shoal-tui/internal/storage"
	"github.com/jeranaias/shoal-tui/internal/ui/components"
	"github.com/jeranaias/shoal-tui/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady     State = iota // Ready for input
	StateStreaming              // Receiving a streaming response
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// State
	state State

	// Styling and rendering
	theme    *styles.Theme
	renderer *markdown.Renderer

	// Dimensions
	width  int
	height int

	// Configuration. cfg is the live config (replaced on reload); snapshot
	// is the fixed view the in-flight exchange runs with.
	cfg      *config.Config
	snapshot config.Snapshot

	// Conversation
	conversation *model.Conversation

	// Current exchange
	exchangeID     string
	streamingStats *model.Statistics
	events         <-chan ollama.StreamEvent
	warningCount   int

	// Streaming optimization
	streamingBuffer *StreamingBuffer

	// Client and cancellation
	client    *ollama.Client
	cancelMgr *cancelManager // pointer: Bubble Tea copies the Model on update

	// Persistence (optional; nil disables saving)
	store *storage.Store

	// Images staged by /image for the next user message
	pendingImages []string
	pendingNames  []string

	// UI components
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     components.Help
	showHelp bool

	// Server status
	serverOnline bool
	statusMsg    string
}

// New creates the chat model.
func New(cfg *config.Config, client *ollama.Client, store *storage.Store) Model {
	theme := styles.NewTheme()

	input := textarea.New()
	input.Placeholder = "Send a message (/help for commands)"
	input.Prompt = "┃ "
	input.CharLimit = 0
	input.SetHeight(3)
	input.ShowLineNumbers = false
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	return Model{
		state:           StateReady,
		theme:           theme,
		renderer:        markdown.NewRenderer(markdown.DefaultWidth),
		cfg:             cfg,
		conversation:    newConversation(cfg),
		streamingBuffer: NewStreamingBuffer(),
		client:          client,
		cancelMgr:       newCancelManager(),
		store:           store,
		viewport:        viewport.New(0, 0),
		input:           input,
		spinner:         sp,
		help:            components.NewHelp(theme),
	}
}

func newConversation(cfg *config.Config) *model.Conversation {
	conv := model.NewConversationWithModel(cfg.Chat.Model)
	conv.SystemPrompt = cfg.Chat.SystemPrompt
	return conv
}

// Init probes the server so the status bar shows connectivity immediately.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.probeServerCmd(),
	)
}

// Conversation returns the current conversation.
func (m *Model) Conversation() *model.Conversation {
	return m.conversation
}

// SetConversation replaces the conversation, e.g. when resuming a saved one.
func (m *Model) SetConversation(conv *model.Conversation) {
	m.conversation = conv
}
