// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown renders model output as rich terminal text.
//
// Rendering is a presentation concern only: the transcript always stores the
// verbatim content, and any render failure falls back to plain text rather
// than dropping the reply.
package markdown

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// DefaultWidth is the word-wrap width used when the caller does not know the
// terminal width yet.
const DefaultWidth = 80

// Renderer wraps a glamour terminal renderer with a plain-text fallback.
// Safe for concurrent use.
type Renderer struct {
	mu    sync.Mutex
	inner *glamour.TermRenderer
	width int
}

// NewRenderer creates a renderer wrapping at the given width. A width of
// zero or less selects DefaultWidth. Construction failure is not fatal: the
// renderer degrades to plain text.
func NewRenderer(width int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	r := &Renderer{width: width}
	r.inner, _ = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	return r
}

// Render renders markdown for terminal display. Returns the input unchanged
// if the underlying renderer is unavailable or fails.
func (r *Renderer) Render(content string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inner == nil {
		return content
	}
	rendered, err := r.inner.Render(content)
	if err != nil {
		return content
	}
	// glamour pads with a leading and trailing blank line; the transcript
	// view manages its own spacing.
	return strings.Trim(rendered, "\n")
}

// SetWidth rebuilds the renderer for a new wrap width. A no-op when the
// width is unchanged.
func (r *Renderer) SetWidth(width int) {
	if width <= 0 {
		width = DefaultWidth
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if width == r.width {
		return
	}
	r.width = width
	r.inner, _ = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
}
