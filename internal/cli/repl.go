// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/shoal-tui/internal/config"
	"github.com/jeranaias/shoal-tui/internal/markdown"
	"github.com/jeranaias/shoal-tui/internal/model"
	"github.com/jeranaias/shoal-tui/internal/ollama"
	"github.com/jeranaias/shoal-tui/internal/reasoning"
	"github.com/jeranaias/shoal-tui/internal/storage"
	"github.com/jeranaias/shoal-tui/internal/ui/styles"
)

// ============================================================================
// Styles
// ============================================================================

var (
	welcomeStyle = lipgloss.NewStyle().Foreground(styles.Purple).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(styles.TextSecondary)
	commandStyle = lipgloss.NewStyle().Foreground(styles.Cyan)
	warningStyle = lipgloss.NewStyle().Foreground(styles.Amber)
	errorStyle   = lipgloss.NewStyle().Foreground(styles.Rose).Bold(true)
	statsStyle   = lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true)
	thinkStyle   = lipgloss.NewStyle().Foreground(styles.ReasoningFg).Italic(true)
)

const replPrompt = "shoal> "

// ============================================================================
// Session
// ============================================================================

// Session is the plain line-based REPL, the fallback for terminals
// where the full-screen interface is unwanted (or stdout is piped).
type Session struct {
	cfg    *config.Config
	client *ollama.Client
	store  *storage.Store // nil when persistence is unavailable
	conv   *model.Conversation

	reader   *lineReader
	renderer *markdown.Renderer
	out      io.Writer

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSession creates a REPL session. store may be nil.
func NewSession(cfg *config.Config, client *ollama.Client, store *storage.Store) *Session {
	conv := model.NewConversationWithModel(cfg.Chat.Model)
	conv.SystemPrompt = cfg.Chat.SystemPrompt

	return &Session{
		cfg:      cfg,
		client:   client,
		store:    store,
		conv:     conv,
		renderer: markdown.NewRenderer(markdown.DefaultWidth),
		out:      os.Stdout,
	}
}

// ApplyConfig swaps in a reloaded configuration. The change takes
// effect on the next exchange; an in-flight stream keeps its snapshot.
func (s *Session) ApplyConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.conv.Model = cfg.Chat.Model
	s.conv.SystemPrompt = cfg.Chat.SystemPrompt
	fmt.Fprintln(s.out, infoStyle.Render("config reloaded"))
}

// setCancel registers the cancel func for the in-flight exchange,
// aborting any previous one. Only one exchange runs at a time.
func (s *Session) setCancel(fn context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = fn
}

// Cancel aborts the in-flight exchange, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) snapshot() config.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Snapshot()
}

// ============================================================================
// Main loop
// ============================================================================

// Run drives the read-eval-print loop until the user exits.
func (s *Session) Run() error {
	s.reader = newLineReader()
	defer s.reader.close()

	// RELIABILITY: Ctrl+C during generation cancels the stream instead
	// of killing the process. At the prompt, liner reports it as
	// ErrPromptAborted and we exit there.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			s.Cancel()
		}
	}()

	s.printWelcome()

	for {
		input, err := s.reader.read(replPrompt)
		if err == liner.ErrPromptAborted || err == io.EOF {
			fmt.Fprintln(s.out, infoStyle.Render("bye"))
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if input == "" {
			continue
		}

		if input == "exit" || input == "quit" {
			fmt.Fprintln(s.out, infoStyle.Render("bye"))
			return nil
		}
		if strings.HasPrefix(input, "/") {
			if s.handleCommand(input) {
				return nil
			}
			continue
		}

		if err := s.processMessage(input); err != nil {
			fmt.Fprintf(s.out, "%s %v\n", errorStyle.Render("[error]"), err)
		}
	}
}

func (s *Session) printWelcome() {
	snap := s.snapshot()
	fmt.Fprintln(s.out, welcomeStyle.Render("shoal"))
	fmt.Fprintf(s.out, "%s\n", infoStyle.Render(
		fmt.Sprintf("model %s @ %s — /help for commands, Ctrl+D to quit", snap.Model, snap.Host)))
	fmt.Fprintln(s.out)
}

// ============================================================================
// Slash commands
// ============================================================================

// handleCommand dispatches a slash command. Returns true to exit.
func (s *Session) handleCommand(input string) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		s.printHelp()
	case "/clear":
		s.conv.Clear()
		fmt.Fprintln(s.out, infoStyle.Render("conversation cleared"))
	case "/model":
		if len(args) == 0 {
			fmt.Fprintf(s.out, "%s\n", infoStyle.Render("current model: "+s.conv.Model))
			break
		}
		s.mu.Lock()
		s.cfg.Chat.Model = args[0]
		s.conv.Model = args[0]
		s.mu.Unlock()
		fmt.Fprintf(s.out, "%s\n", infoStyle.Render("switched to "+args[0]))
	case "/models":
		s.listModels()
	case "/quit":
		fmt.Fprintln(s.out, infoStyle.Render("bye"))
		return true
	default:
		fmt.Fprintf(s.out, "%s\n", warningStyle.Render("unknown command "+cmd+" (try /help)"))
	}
	return false
}

func (s *Session) printHelp() {
	rows := [][2]string{
		{"/help", "show this help"},
		{"/clear", "start a fresh conversation"},
		{"/model [tag]", "show or switch the active model"},
		{"/models", "list models available on the server"},
		{"/quit", "exit (also: exit, quit, Ctrl+D)"},
	}
	for _, r := range rows {
		fmt.Fprintf(s.out, "  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-14s", r[0])),
			infoStyle.Render(r[1]))
	}
}

func (s *Session) listModels() {
	snap := s.snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	models, err := s.client.ListModels(ctx, snap.Host)
	if err != nil {
		fmt.Fprintf(s.out, "%s %v\n", errorStyle.Render("[error]"), err)
		return
	}
	if len(models) == 0 {
		fmt.Fprintln(s.out, infoStyle.Render("no models installed"))
		return
	}
	for _, m := range models {
		marker := "  "
		if m.Name == snap.Model {
			marker = commandStyle.Render("* ")
		}
		fmt.Fprintf(s.out, "%s%s\n", marker, m.Name)
	}
}

// ============================================================================
// Exchange
// ============================================================================

// processMessage sends one user turn and streams the reply to stdout.
// On a TTY the reply is collected and rendered as markdown when done;
// when piped, raw deltas go straight out so the stream stays live.
func (s *Session) processMessage(input string) error {
	snap := s.snapshot()
	useMarkdown := IsStdoutTTY()

	s.conv.Append(model.NewUserMessage(input))
	reply := model.NewAssistantMessage()

	ctx, cancel := context.WithCancel(context.Background())
	s.setCancel(cancel)
	defer s.Cancel()

	client := ollama.NewClientWithConfig(ollama.ClientConfig{
		ConnectTimeout: snap.ConnectTimeout,
		ReadTimeout:    snap.ReadTimeout,
	})

	stats := model.NewStatistics()
	var streamStats *ollama.Stats
	warnings := 0

	fmt.Fprintln(s.out)
	err := client.ChatStream(ctx, ollama.ChatParams{
		Host:        snap.Host,
		Model:       snap.Model,
		Messages:    s.conv.ToWireMessages(),
		Temperature: snap.Temperature,
	}, func(ev ollama.StreamEvent) {
		switch ev.Kind {
		case ollama.EventDelta:
			stats.RecordFirstToken()
			reply.AppendDelta(ev.Delta)
			if !useMarkdown {
				fmt.Fprint(s.out, ev.Delta)
			}
		case ollama.EventWarning:
			warnings++
		case ollama.EventDone:
			streamStats = ev.Stats
		}
	})

	if err != nil {
		// Keep whatever arrived before the failure; an annotated
		// partial answer beats a vanished one.
		reply.FinalizeWithError(err)
		s.conv.Append(reply)
		if useMarkdown {
			if reply.Content != "" {
				s.printReply(reply, nil, warnings)
			}
		} else if reply.Content != "" {
			fmt.Fprintln(s.out)
		}
		s.persist()
		return err
	}

	tokens := 0
	if streamStats != nil {
		tokens = streamStats.CompletionTokens
	}
	stats.Finalize(tokens)
	reply.Finalize(stats)
	s.conv.Append(reply)

	if useMarkdown {
		s.printReply(reply, streamStats, warnings)
	} else {
		fmt.Fprintln(s.out)
		fmt.Fprintln(s.out)
	}

	s.persist()
	return nil
}

// printReply renders a finalized reply for a TTY: reasoning dimmed,
// body through the markdown renderer, stats line underneath.
func (s *Session) printReply(reply *model.Message, st *ollama.Stats, warnings int) {
	segs := reasoning.Split(reply.DisplayContent())

	if segs.HasReasoning && s.cfg.UI.ShowReasoning {
		fmt.Fprintln(s.out, thinkStyle.Render(segs.Reasoning))
		fmt.Fprintln(s.out)
	}
	if segs.Body != "" {
		fmt.Fprintln(s.out, s.renderer.Render(segs.Body))
	}
	if reply.HasError() {
		fmt.Fprintf(s.out, "%s %s\n", errorStyle.Render("[error]"), reply.ErrorNote)
	}
	if warnings > 0 {
		fmt.Fprintf(s.out, "%s\n", warningStyle.Render(
			fmt.Sprintf("%d malformed line(s) skipped", warnings)))
	}
	if st != nil && s.cfg.UI.ShowStats {
		fmt.Fprintf(s.out, "%s\n", statsStyle.Render(fmt.Sprintf(
			"%.1fs | %d tokens | %.1f tok/s",
			st.TotalDuration.Seconds(), st.CompletionTokens, st.TokensPerSecond())))
	}
	fmt.Fprintln(s.out)
}

func (s *Session) persist() {
	if s.store == nil {
		return
	}
	if err := s.store.Save(s.conv); err != nil {
		fmt.Fprintf(s.out, "%s save failed: %v\n", warningStyle.Render("[warn]"), err)
	}
}
