// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with an
// Ollama-compatible model server.
package ollama

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/shoal-tui/internal/ndjson"
)

// readBufSize is the transport read granularity. Chunk boundaries carry no
// protocol meaning; the frame decoder reassembles records across them.
const readBufSize = 4096

// =============================================================================
// STREAM READER
// =============================================================================

// streamReader drives the frame decoder against a live response body and
// maps decoded records to semantic events. One reader per exchange.
type streamReader struct {
	ex          *exchange
	decoder     *ndjson.Decoder
	readTimeout time.Duration

	done       bool
	finalStats *Stats
	model      string
	warnings   int
}

func newStreamReader(ex *exchange, readTimeout time.Duration) *streamReader {
	return &streamReader{
		ex:          ex,
		decoder:     ndjson.NewDecoder(),
		readTimeout: readTimeout,
	}
}

// process reads the body to completion, feeding fragments into the decoder
// and emitting one event per decoded record. Returns nil when the stream
// ended cleanly; the caller then emits the single Done event.
//
// Decode errors surface as EventWarning and never abort the stream. Read
// failures abort with a classified error: per-read watchdog expiry maps to
// timed-out, caller cancellation to canceled, anything else to a broken
// response body.
func (s *streamReader) process(ctx context.Context, fn EventFunc) error {
	// The watchdog shares the exchange cancel: silence on the wire for
	// longer than readTimeout cancels the request context, which fails the
	// pending Read.
	watchdog := time.AfterFunc(s.readTimeout, func() {
		s.ex.timedOut.Store(true)
		s.ex.cancel()
	})
	defer watchdog.Stop()

	buf := make([]byte, readBufSize)
	for {
		n, err := s.ex.resp.Body.Read(buf)
		if n > 0 {
			watchdog.Reset(s.readTimeout)
			s.handleFrames(s.decoder.Feed(buf[:n]), fn)
			if s.done {
				// The done record is the logical end of the stream; the
				// server closes the connection right after it.
				return nil
			}
		}
		if err != nil {
			if err == io.EOF {
				s.handleFrames(s.decoder.Finish(), fn)
				return nil
			}
			return s.classifyReadError(ctx, err)
		}
	}
}

// handleFrames maps a batch of decoded frames to events, in order.
func (s *streamReader) handleFrames(frames []ndjson.Frame, fn EventFunc) {
	for _, frame := range frames {
		if s.done {
			return
		}
		if frame.Err != nil {
			s.warnings++
			fn(StreamEvent{Kind: EventWarning, Err: frame.Err})
			continue
		}

		var chunk ChatChunk
		if err := json.Unmarshal(frame.Record, &chunk); err != nil {
			// Valid JSON, wrong shape. Same contract as a malformed line:
			// observable, non-fatal.
			s.warnings++
			fn(StreamEvent{Kind: EventWarning, Err: &ndjson.DecodeError{Line: string(frame.Record), Cause: err}})
			continue
		}

		if chunk.Model != "" {
			s.model = chunk.Model
		}

		if chunk.Message.Content != "" {
			fn(StreamEvent{Kind: EventDelta, Delta: chunk.Message.Content})
		}

		if chunk.Done {
			s.done = true
			s.finalStats = &Stats{
				Model:            s.model,
				DoneReason:       chunk.DoneReason,
				TotalDuration:    time.Duration(chunk.TotalDuration),
				LoadDuration:     time.Duration(chunk.LoadDuration),
				PromptDuration:   time.Duration(chunk.PromptEvalDuration),
				EvalDuration:     time.Duration(chunk.EvalDuration),
				PromptTokens:     chunk.PromptEvalCount,
				CompletionTokens: chunk.EvalCount,
			}
		}
	}
}

// classifyReadError distinguishes why a body read failed.
func (s *streamReader) classifyReadError(ctx context.Context, err error) error {
	if s.ex.timedOut.Load() {
		return &ClientError{Kind: ErrKindTimeout, Message: "stream went silent", Cause: err}
	}
	if ctx.Err() != nil {
		return &ClientError{Kind: ErrKindCanceled, Message: "stream canceled", Cause: ctx.Err()}
	}
	return &ClientError{Kind: ErrKindMalformedBody, Message: "response body broke off", Cause: err}
}

// stats returns the statistics from the final record, or nil if the stream
// ended without one.
func (s *streamReader) stats() *Stats {
	return s.finalStats
}

// warningCount returns how many malformed frames were skipped.
func (s *streamReader) warningCount() int {
	return s.warnings
}
