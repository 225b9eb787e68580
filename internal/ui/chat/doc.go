// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// The view is a Bubble Tea model wiring three components: a viewport for
// the transcript, a textarea for input, and a spinner shown while a reply
// streams. One exchange runs at a time; its stream events arrive over a
// channel and are applied to the transcript in order by the update loop,
// with deltas batched through a StreamingBuffer so the viewport redraws at
// a capped frame rate.
//
// Reasoning regions in replies render as a muted, collapsible block
// distinct from the answer body. A turn that fails mid-stream keeps its
// partial content and shows the failure as an annotation; esc cancels the
// in-flight exchange the same way.
package chat
