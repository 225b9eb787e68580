// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions shared across shoal.
//
// String helpers cover width-aware truncation for terminal display
// (TruncateRunes, TruncateWidth). NormalizeHost canonicalizes the free-form
// server address from config or flags into a base URL. AtomicWriteFile is
// the crash-safe write used for persisting configuration.
package util
