// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ndjson reassembles newline-delimited JSON records from a chunked
// byte stream.
//
// The Ollama chat endpoint responds with a Transfer-Encoding: chunked body
// where each newline-terminated line is an independent JSON object. Chunk
// boundaries are arbitrary: a single read may deliver half a record, three
// records and a prefix of a fourth, or a split in the middle of a multi-byte
// UTF-8 sequence. Decoder buffers the unterminated tail across Feed calls so
// callers always observe complete records, in stream order, with nothing
// dropped or duplicated.
//
// Malformed lines are not swallowed. Each one is surfaced as an error Frame
// carrying the raw line text, and decoding continues with the next line.
package ndjson
