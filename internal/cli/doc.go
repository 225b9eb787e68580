// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the plain line-based REPL, used with the -plain
// flag or whenever stdout is not a terminal. It shares the conversation
// model, streaming client, and persistence layer with the full-screen
// interface but reads input through liner and writes straight to stdout,
// rendering markdown only when a TTY is attached.
package cli
