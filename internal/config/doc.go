// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for shoal.
//
// Configuration lives in ~/.shoal/config.toml. Values resolve in order of
// precedence: SHOAL_* environment variables, then the file, then built-in
// defaults. Saves are atomic, and a file watcher can reload the config in a
// running session.
//
// Exchanges never see live configuration: each one runs against a Snapshot
// taken at submit time, so an edit mid-generation applies only to the next
// turn.
package config
