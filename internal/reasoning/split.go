// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reasoning separates model deliberation text from the displayable
// answer body.
package reasoning

import "strings"

// Marker pair emitted by reasoning-capable models (DeepSeek-R1 style).
const (
	openTag  = "<think>"
	closeTag = "</think>"
)

// Segments is a derived view of one turn's raw text. It holds no state of
// its own and is recomputed from scratch on every content mutation.
type Segments struct {
	// Reasoning is the text inside the first marker pair, or everything
	// after an unclosed open marker while the model is still thinking.
	Reasoning string

	// HasReasoning distinguishes "no reasoning segment" from a present but
	// empty one.
	HasReasoning bool

	// Body is the displayable remainder with the first reasoning region and
	// its markers removed.
	Body string
}

// Split partitions raw turn text into an optional reasoning segment and the
// body. Pure function: identical input yields identical Segments.
//
// Only the first reasoning region is recognized. A second open marker, or a
// stray close marker with no opening one, passes through inside the body
// untouched. That mirrors how single-region model output actually looks;
// multi-region output is out of contract.
func Split(raw string) Segments {
	start := strings.Index(raw, openTag)
	if start < 0 {
		return Segments{Body: raw}
	}

	inner := start + len(openTag)
	end := strings.Index(raw[inner:], closeTag)
	if end < 0 {
		// Unterminated region: the model is still thinking. Reasoning grows
		// with each delta and the body stays empty until the close marker
		// arrives.
		return Segments{
			Reasoning:    raw[inner:],
			HasReasoning: true,
			Body:         raw[:start],
		}
	}
	end += inner

	return Segments{
		Reasoning:    raw[inner:end],
		HasReasoning: true,
		Body:         raw[:start] + raw[end+len(closeTag):],
	}
}

// InProgress reports whether a turn should render as "thinking": a present
// reasoning segment, no body yet, and the stream still open. Callers use it
// to show a streaming placeholder instead of the empty-message state.
func (s Segments) InProgress(finalized bool) bool {
	return s.HasReasoning && strings.TrimSpace(s.Body) == "" && !finalized
}
