// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with an
// Ollama-compatible model server.
//
// The client covers three endpoints: a connectivity probe (GET /), model
// listing (GET /api/tags), and streaming chat (POST /api/chat). Chat
// responses arrive as a chunked body of newline-delimited JSON records;
// ChatStream reassembles them through internal/ndjson and emits semantic
// StreamEvents — content deltas, decode warnings, and exactly one terminal
// Done or Error per exchange.
//
// All request parameters are snapshotted in ChatParams when an exchange
// starts; configuration edits made while a stream is in flight take effect
// on the next exchange only.
package ollama
