// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversations in a local SQLite database at
// ~/.shoal/shoal.db.
//
// The store is outside the streaming path: the chat loop treats it as an
// opaque sink, saving the transcript after each finalized turn. Only settled
// content is persisted; a turn still streaming is skipped and picked up by
// the next save.
package storage
