// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the shoal TUI.
//
// All colors are lipgloss.AdaptiveColor pairs so the same theme works on
// light and dark terminals; termenv detects the profile at startup. The
// Theme struct groups the composed styles the chat view uses: message
// labels and bodies, the muted reasoning block, error annotations, the
// input area, and the status bar.
package styles
