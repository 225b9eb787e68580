// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ndjson reassembles newline-delimited JSON records from a chunked
// byte stream.
package ndjson

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrDecoderFinished is returned in a Frame if a Decoder is fed after Finish.
var ErrDecoderFinished = errors.New("decoder already finished")

// =============================================================================
// FRAME
// =============================================================================

// Frame is one element of the decoded output sequence: either a complete
// JSON record or a decode error for one malformed line. Exactly one of
// Record and Err is set.
type Frame struct {
	// Record holds one complete, syntactically valid JSON value.
	Record json.RawMessage

	// Err is set when a non-empty line failed to parse as JSON.
	Err error

	// Line is the raw text of the offending line when Err is set.
	Line string
}

// DecodeError reports a line that was not valid JSON.
type DecodeError struct {
	Line  string
	Cause error
}

func (e *DecodeError) Error() string {
	return "malformed frame: " + e.Cause.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns an ordered sequence of arbitrarily sized fragments into a
// sequence of complete JSON records. Transport chunk boundaries carry no
// meaning: a fragment may end mid-value, mid-line, or mid-rune, and the
// bytes carry over to the next Feed call.
//
// One Decoder decodes one stream. After Finish the Decoder is spent.
//
// Decoder is not safe for concurrent use; a stream has a single reader.
type Decoder struct {
	carry    []byte
	finished bool
}

// NewDecoder creates a Decoder with an empty carry-over buffer.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a fragment to the carry-over buffer and returns a Frame for
// every newline-terminated line now complete. The segment after the last
// newline stays buffered, whether or not it happens to look complete.
//
// A line that is non-empty after trimming but is not valid JSON yields an
// error Frame; decoding continues with the next line.
func (d *Decoder) Feed(fragment []byte) []Frame {
	if d.finished {
		return []Frame{{Err: ErrDecoderFinished}}
	}
	if len(fragment) == 0 {
		return nil
	}

	d.carry = append(d.carry, fragment...)

	var frames []Frame
	for {
		idx := bytes.IndexByte(d.carry, '\n')
		if idx < 0 {
			break
		}
		line := d.carry[:idx]
		d.carry = d.carry[idx+1:]
		if f, ok := decodeLine(line); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

// Finish flushes the carry-over buffer as one final line. Call exactly once,
// when the transport signals end-of-stream.
func (d *Decoder) Finish() []Frame {
	if d.finished {
		return nil
	}
	d.finished = true

	line := d.carry
	d.carry = nil
	if f, ok := decodeLine(line); ok {
		return []Frame{f}
	}
	return nil
}

// Buffered returns the number of carried-over bytes awaiting a newline.
func (d *Decoder) Buffered() int {
	return len(d.carry)
}

// decodeLine trims one line and parses it as a JSON value.
// Blank lines produce no frame.
func decodeLine(line []byte) (Frame, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return Frame{}, false
	}

	// The carry buffer is reused across Feed calls, so the record needs
	// its own backing array.
	record := make(json.RawMessage, len(trimmed))
	copy(record, trimmed)

	if err := checkValid(record); err != nil {
		return Frame{
			Err:  &DecodeError{Line: string(trimmed), Cause: err},
			Line: string(trimmed),
		}, true
	}
	return Frame{Record: record}, true
}

// checkValid verifies the line is exactly one well-formed JSON value.
func checkValid(data []byte) error {
	var v json.RawMessage
	return json.Unmarshal(data, &v)
}
