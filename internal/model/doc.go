// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the conversation and message types shared across
// the TUI, the REPL, and the persistence layer.
//
// The central contract is the assistant message life cycle: a message is
// created in streaming state, accumulates deltas verbatim through
// AppendDelta, and is finalized exactly once — either normally with
// statistics, or through FinalizeWithError, which preserves the partial
// content and records the failure as an annotation. Once finalized, a
// message's content never changes; late deltas are rejected.
package model
