// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with an
// Ollama-compatible model server.
package ollama

import "time"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message represents a chat message in the conversation history sent to the
// server.
type Message struct {
	Role    string   `json:"role"`             // "user", "assistant", "system"
	Content string   `json:"content"`          // The message text
	Images  []string `json:"images,omitempty"` // Base64-encoded images (user messages only)
}

// ChatRequest is the request body for the /api/chat endpoint.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

// Options contains model sampling parameters for inference.
type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ChatChunk is one decoded record from the /api/chat streaming body. Each
// newline-terminated line of the response is one independent ChatChunk; the
// final record carries Done = true plus generation statistics.
type ChatChunk struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Message   struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done               bool   `json:"done"`
	DoneReason         string `json:"done_reason,omitempty"`
	TotalDuration      int64  `json:"total_duration,omitempty"`       // nanoseconds
	LoadDuration       int64  `json:"load_duration,omitempty"`        // nanoseconds
	PromptEvalCount    int    `json:"prompt_eval_count,omitempty"`    // prompt tokens
	PromptEvalDuration int64  `json:"prompt_eval_duration,omitempty"` // nanoseconds
	EvalCount          int    `json:"eval_count,omitempty"`           // generated tokens
	EvalDuration       int64  `json:"eval_duration,omitempty"`        // nanoseconds
}

// ServerError is the JSON error body an Ollama server returns alongside a
// non-success status.
type ServerError struct {
	Error string `json:"error"`
}

// =============================================================================
// MODEL TYPES
// =============================================================================

// ModelInfo describes one locally available model from /api/tags.
type ModelInfo struct {
	Name       string       `json:"name"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details,omitempty"`
}

// ModelDetails contains detailed information about a model.
type ModelDetails struct {
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// ListModelsResponse is the response from the /api/tags endpoint.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// =============================================================================
// STREAM EVENTS
// =============================================================================

// EventKind tags a StreamEvent variant.
type EventKind int

const (
	// EventDelta carries an incremental fragment of assistant text.
	EventDelta EventKind = iota
	// EventDone signals successful end-of-stream. Fired exactly once per
	// exchange, never together with EventError.
	EventDone
	// EventError signals the exchange aborted. Fired exactly once, never
	// together with EventDone. Partial deltas already delivered stand.
	EventError
	// EventWarning reports a malformed frame that was skipped. Non-fatal:
	// the stream continues and Done/Error semantics are unaffected.
	EventWarning
)

// StreamEvent is one semantic event produced from the streaming exchange.
// Events are delivered in the order the underlying records appeared on the
// wire and are never buffered beyond the current record.
type StreamEvent struct {
	Kind  EventKind
	Delta string // EventDelta: the content fragment, appended verbatim
	Err   error  // EventError / EventWarning: the cause
	Stats *Stats // EventDone: generation statistics, may be nil
}

// Stats holds the generation statistics from the final stream record.
type Stats struct {
	Model            string
	DoneReason       string
	TotalDuration    time.Duration
	LoadDuration     time.Duration
	PromptDuration   time.Duration
	EvalDuration     time.Duration
	PromptTokens     int
	CompletionTokens int
}

// TokensPerSecond calculates the generation speed.
func (s *Stats) TokensPerSecond() float64 {
	if s.EvalDuration <= 0 {
		return 0
	}
	return float64(s.CompletionTokens) / s.EvalDuration.Seconds()
}

// =============================================================================
// HELPER CONSTRUCTORS
// =============================================================================

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// NewUserMessageWithImages creates a user message carrying encoded images.
func NewUserMessageWithImages(content string, images []string) Message {
	return Message{Role: "user", Content: content, Images: images}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}
