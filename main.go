// shoal - A terminal chat interface for local LLM servers.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/shoal-tui/internal/cli"
	"github.com/jeranaias/shoal-tui/internal/config"
	"github.com/jeranaias/shoal-tui/internal/ollama"
	"github.com/jeranaias/shoal-tui/internal/storage"
	"github.com/jeranaias/shoal-tui/internal/ui/chat"
	"github.com/jeranaias/shoal-tui/internal/util"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

// run owns the process lifecycle so deferred cleanup (database close,
// watcher shutdown) survives the exit path.
func run() int {
	var (
		hostFlag    = flag.String("host", "", "Ollama server host (overrides config)")
		modelFlag   = flag.String("model", "", "model tag to chat with (overrides config)")
		plainFlag   = flag.Bool("plain", false, "line-based REPL instead of the full-screen interface")
		versionFlag = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Printf("shoal %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	if err := applyFlags(cfg, *hostFlag, *modelFlag); err != nil {
		fmt.Fprintf(os.Stderr, "flags: %v\n", err)
		return 1
	}

	client := ollama.NewClientWithConfig(ollama.ClientConfig{
		ConnectTimeout: cfg.Timeouts.Connect(),
		ReadTimeout:    cfg.Timeouts.Read(),
	})

	// Persistence is best-effort: a broken database means no history,
	// not no chat.
	store := openStore()
	if store != nil {
		defer store.Close()
	}

	// USABILITY: Piped output gets the plain REPL automatically so
	// transcripts stay free of alt-screen control sequences.
	if *plainFlag || !cli.IsStdoutTTY() {
		return runREPL(cfg, client, store)
	}
	return runTUI(cfg, client, store)
}

// applyFlags layers command-line overrides on top of the loaded config.
// Flag overrides are session-only; they are never written back to disk.
func applyFlags(cfg *config.Config, host, model string) error {
	if host != "" {
		normalized, err := util.NormalizeHost(host)
		if err != nil {
			return fmt.Errorf("invalid -host: %w", err)
		}
		cfg.Server.Host = normalized
	}
	if model != "" {
		cfg.Chat.Model = model
	}
	return nil
}

func openStore() *storage.Store {
	path, err := storage.DefaultPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: history disabled: %v\n", err)
		return nil
	}
	store, err := storage.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: history disabled: %v\n", err)
		return nil
	}
	return store
}

func runTUI(cfg *config.Config, client *ollama.Client, store *storage.Store) int {
	m := chat.New(cfg, client, store)
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Config edits land as messages on the program loop; they apply to
	// the next exchange, never the one in flight.
	watcher := watchConfig(func(next *config.Config) {
		p.Send(chat.ConfigReloadedMsg{Config: next})
	})
	if watcher != nil {
		defer watcher.Close()
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func runREPL(cfg *config.Config, client *ollama.Client, store *storage.Store) int {
	session := cli.NewSession(cfg, client, store)

	watcher := watchConfig(session.ApplyConfig)
	if watcher != nil {
		defer watcher.Close()
	}

	if err := session.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// watchConfig starts the live-reload watcher. Failure to watch is not
// fatal; edits just require a restart. Reload errors are reported on
// stderr and the running config stays in effect.
func watchConfig(onLoad func(*config.Config)) *config.Watcher {
	path, err := config.Path()
	if err != nil {
		return nil
	}
	watcher, err := config.NewWatcher(path, onLoad, func(err error) {
		fmt.Fprintf(os.Stderr, "config reload: %v\n", err)
	})
	if err != nil {
		return nil
	}
	if err := watcher.Watch(); err != nil {
		watcher.Close()
		return nil
	}
	return watcher
}
