// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/shoal-tui/internal/config"
)

// lineReader wraps liner with persistent history for the plain REPL.
type lineReader struct {
	line        *liner.State
	historyPath string
}

func newLineReader() *lineReader {
	l := liner.NewLiner()
	l.SetCtrlCAborts(true)

	lr := &lineReader{line: l}
	// No resolvable home directory means no persistent history, not
	// a broken prompt.
	if dir, err := config.Dir(); err == nil {
		lr.historyPath = filepath.Join(dir, "chat_history")
	}
	lr.loadHistory()
	return lr
}

func (lr *lineReader) loadHistory() {
	if lr.historyPath == "" {
		return
	}
	f, err := os.Open(lr.historyPath)
	if err != nil {
		return // first run, nothing to load
	}
	defer f.Close()
	lr.line.ReadHistory(f)
}

func (lr *lineReader) saveHistory() {
	if lr.historyPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(lr.historyPath), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(lr.historyPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	lr.line.WriteHistory(f)
}

// read prompts for a line and records non-empty input in history.
// Returns liner.ErrPromptAborted on Ctrl+C and io.EOF on Ctrl+D.
func (lr *lineReader) read(prompt string) (string, error) {
	input, err := lr.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	input = strings.TrimSpace(input)
	if input != "" {
		lr.line.AppendHistory(input)
	}
	return input, nil
}

func (lr *lineReader) close() {
	lr.saveHistory()
	lr.line.Close()
}
