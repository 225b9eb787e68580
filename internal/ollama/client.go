// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with an
// Ollama-compatible model server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// maxErrorBody bounds how much of an error response body is kept for the
// user-facing annotation.
const maxErrorBody = 8 * 1024

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the client.
type ClientConfig struct {
	// ConnectTimeout bounds establishing the connection and receiving
	// response headers (default: 10s).
	ConnectTimeout time.Duration

	// ReadTimeout bounds each individual read of the streaming body, not
	// the whole exchange: a model may generate for minutes, but silence
	// between chunks means something is wrong (default: 60s).
	ReadTimeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    60 * time.Second,
	}
}

// =============================================================================
// CHAT PARAMETERS
// =============================================================================

// ChatParams is the per-exchange snapshot of everything a streaming chat
// request needs. It is captured when the exchange starts; later edits to the
// user's configuration do not affect an exchange already in flight.
type ChatParams struct {
	// Host is the normalized base URL of the server (no trailing slash).
	Host string

	// Model is the model identifier to generate with.
	Model string

	// Messages is the full ordered history, system prompt first if any.
	Messages []Message

	// Temperature is the sampling temperature for this exchange.
	Temperature float64
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with an Ollama-compatible server.
// It is stateless between exchanges and safe for concurrent use.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient creates a client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client with custom timeouts.
func NewClientWithConfig(config ClientConfig) *Client {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 60 * time.Second
	}

	// No overall http.Client timeout: it would kill long generations
	// mid-stream. Connect and read deadlines are enforced per phase.
	return &Client{
		config:     config,
		httpClient: &http.Client{},
	}
}

// =============================================================================
// CONNECTIVITY PROBE
// =============================================================================

// Probe verifies the server at host is reachable. Any non-error status
// counts as success; the root path of an Ollama server answers 200 with a
// plain banner.
func (c *Client) Probe(ctx context.Context, host string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/", nil)
	if err != nil {
		return &ClientError{Kind: ErrKindUnknown, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode >= 400 {
		return &ClientError{
			Kind:       ErrKindServerStatus,
			Message:    "probe rejected",
			StatusCode: resp.StatusCode,
		}
	}
	return nil
}

// =============================================================================
// MODEL LISTING
// =============================================================================

// ListModels retrieves all available models from the server.
func (c *Client) ListModels(ctx context.Context, host string) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Kind: ErrKindUnknown, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("failed to list models", resp)
	}

	var result ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Kind: ErrKindMalformedBody, Message: "failed to decode model list", Cause: err}
	}
	return result.Models, nil
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// EventFunc receives every StreamEvent of one exchange, in stream order.
// Exactly one terminal event (EventDone or EventError) is delivered per
// exchange; EventWarning events may appear at any point and do not affect
// termination.
type EventFunc func(StreamEvent)

// ChatStream runs one streaming chat exchange and feeds semantic events to
// fn. The returned error mirrors the terminal event: nil after EventDone,
// the cause after EventError.
//
// fn is invoked synchronously on the calling goroutine; deltas arrive in the
// exact order the records appeared on the wire. The client holds no state
// for the exchange once ChatStream returns.
func (c *Client) ChatStream(ctx context.Context, params ChatParams, fn EventFunc) error {
	ex, err := c.openStream(ctx, params)
	if err != nil {
		fn(StreamEvent{Kind: EventError, Err: err})
		return err
	}
	defer ex.close()

	reader := newStreamReader(ex, c.config.ReadTimeout)
	if err := reader.process(ctx, fn); err != nil {
		fn(StreamEvent{Kind: EventError, Err: err})
		return err
	}

	fn(StreamEvent{Kind: EventDone, Stats: reader.stats()})
	return nil
}

// ChatStreamChan runs one streaming exchange and delivers events on a
// channel, closed when the exchange concludes. The terminal EventDone or
// EventError is always the last element.
func (c *Client) ChatStreamChan(ctx context.Context, params ChatParams) <-chan StreamEvent {
	ch := make(chan StreamEvent)

	go func() {
		defer close(ch)
		c.ChatStream(ctx, params, func(ev StreamEvent) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		})
	}()

	return ch
}

// exchange bundles the live response with the cancel plumbing that enforces
// the connect and read deadlines. The response body is tied to the derived
// context, so cancel must stay alive until the stream is fully consumed.
type exchange struct {
	resp     *http.Response
	cancel   context.CancelFunc
	timedOut *atomic.Bool
}

func (ex *exchange) close() {
	ex.resp.Body.Close()
	ex.cancel()
}

// openStream issues the chat request and validates the transport response.
// A non-success status is turned into a server-status error carrying the
// code and body text; the body is never stream-processed in that case.
func (c *Client) openStream(ctx context.Context, params ChatParams) (*exchange, error) {
	reqBody := ChatRequest{
		Model:    params.Model,
		Messages: params.Messages,
		Stream:   true,
		Options:  &Options{Temperature: params.Temperature},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ClientError{Kind: ErrKindUnknown, Message: "failed to marshal request", Cause: err}
	}

	// The deadline is enforced by a watchdog, not context.WithTimeout: the
	// body stays tied to this context for the life of the stream, and a
	// fixed deadline would kill long generations mid-read. The same
	// cancel/flag pair later backs the per-read watchdog in streamReader.
	reqCtx, cancel := context.WithCancel(ctx)
	timedOut := &atomic.Bool{}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, params.Host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, &ClientError{Kind: ErrKindUnknown, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	watchdog := time.AfterFunc(c.config.ConnectTimeout, func() {
		timedOut.Store(true)
		cancel()
	})

	resp, err := c.httpClient.Do(req)
	watchdog.Stop()
	if err != nil {
		cancel()
		if timedOut.Load() {
			return nil, &ClientError{Kind: ErrKindTimeout, Message: "connection timed out", Cause: err}
		}
		return nil, classifyTransport(err)
	}

	if resp.StatusCode != http.StatusOK {
		serr := statusError("chat request rejected", resp)
		drainAndClose(resp.Body)
		cancel()
		return nil, serr
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		cancel()
		return nil, ErrMissingBody
	}

	return &exchange{resp: resp, cancel: cancel, timedOut: timedOut}, nil
}

// statusError builds a server-status ClientError from a non-success
// response, preferring the server's structured error message when the body
// parses as one.
func statusError(msg string, resp *http.Response) *ClientError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	text := strings.TrimSpace(string(raw))

	var serverErr ServerError
	if json.Unmarshal(raw, &serverErr) == nil && serverErr.Error != "" {
		text = serverErr.Error
	}

	return &ClientError{
		Kind:       ErrKindServerStatus,
		Message:    msg,
		StatusCode: resp.StatusCode,
		Body:       text,
	}
}

// drainAndClose discards the remaining body so the connection can be reused.
func drainAndClose(r io.ReadCloser) {
	if r == nil {
		return
	}
	io.Copy(io.Discard, io.LimitReader(r, maxErrorBody))
	r.Close()
}
