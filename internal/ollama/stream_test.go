// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// chunkedServer streams the given fragments with a flush after each one, so
// the client observes the same chunk boundaries the fragments define.
func chunkedServer(t *testing.T, fragments ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer does not support flushing")
		}
		for _, frag := range fragments {
			io.WriteString(w, frag)
			flusher.Flush()
		}
	}))
}

// collect runs one exchange and gathers all events.
func collect(t *testing.T, client *Client, params ChatParams) ([]StreamEvent, error) {
	t.Helper()
	var events []StreamEvent
	err := client.ChatStream(context.Background(), params, func(ev StreamEvent) {
		events = append(events, ev)
	})
	return events, err
}

func deltas(events []StreamEvent) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Kind == EventDelta {
			b.WriteString(ev.Delta)
		}
	}
	return b.String()
}

func countKind(events []StreamEvent, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// =============================================================================
// FRAGMENTS SPLIT MID-RECORD
// =============================================================================

func TestChatStream_FragmentsAcrossRecords(t *testing.T) {
	srv := chunkedServer(t,
		`{"message":{"content":"He`,
		"llo\"}}\n{\"do",
		"ne\":true}\n",
	)
	defer srv.Close()

	events, err := collect(t, testClient(), ChatParams{Host: srv.URL, Model: "m"})
	if err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}

	if got := deltas(events); got != "Hello" {
		t.Errorf("accumulated deltas = %q, want %q", got, "Hello")
	}
	if n := countKind(events, EventDone); n != 1 {
		t.Errorf("Done events = %d, want exactly 1", n)
	}
	if n := countKind(events, EventError); n != 0 {
		t.Errorf("Error events = %d, want 0", n)
	}
	if events[len(events)-1].Kind != EventDone {
		t.Error("Done must be the final event")
	}
}

// =============================================================================
// ORDER PRESERVATION
// =============================================================================

func TestChatStream_DeltaOrder(t *testing.T) {
	parts := []string{"The ", "quick ", "brown ", "fox ", "jumps"}
	var fragments []string
	for _, p := range parts {
		line, _ := json.Marshal(map[string]any{"message": map[string]string{"content": p}})
		fragments = append(fragments, string(line)+"\n")
	}
	fragments = append(fragments, `{"done":true,"eval_count":5,"eval_duration":1000000000}`+"\n")

	srv := chunkedServer(t, fragments...)
	defer srv.Close()

	events, err := collect(t, testClient(), ChatParams{Host: srv.URL, Model: "m"})
	if err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}

	if got := deltas(events); got != "The quick brown fox jumps" {
		t.Errorf("accumulated deltas = %q", got)
	}

	final := events[len(events)-1]
	if final.Kind != EventDone || final.Stats == nil {
		t.Fatalf("final event = %+v, want Done with stats", final)
	}
	if final.Stats.CompletionTokens != 5 {
		t.Errorf("CompletionTokens = %d, want 5", final.Stats.CompletionTokens)
	}
	if tps := final.Stats.TokensPerSecond(); tps < 4.9 || tps > 5.1 {
		t.Errorf("TokensPerSecond = %f, want ~5", tps)
	}
}

// =============================================================================
// MALFORMED FRAMES ARE WARNINGS, NOT FAILURES
// =============================================================================

func TestChatStream_MalformedFrameContinues(t *testing.T) {
	srv := chunkedServer(t,
		`{"message":{"content":"before"}}`+"\n",
		"{this is not json}\n",
		`{"message":{"content":" after"}}`+"\n",
		`{"done":true}`+"\n",
	)
	defer srv.Close()

	events, err := collect(t, testClient(), ChatParams{Host: srv.URL, Model: "m"})
	if err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}

	if got := deltas(events); got != "before after" {
		t.Errorf("deltas = %q, want %q", got, "before after")
	}
	if n := countKind(events, EventWarning); n != 1 {
		t.Errorf("Warning events = %d, want 1", n)
	}
	if n := countKind(events, EventDone); n != 1 {
		t.Errorf("Done events = %d, want 1", n)
	}
}

// =============================================================================
// SERVER STATUS REJECTION
// =============================================================================

func TestChatStream_ServerStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "model not found")
	}))
	defer srv.Close()

	events, err := collect(t, testClient(), ChatParams{Host: srv.URL, Model: "nope"})

	if !IsServerStatus(err) {
		t.Fatalf("error = %v, want server-status kind", err)
	}

	var ce *ClientError
	errors.As(err, &ce)
	if ce.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", ce.StatusCode)
	}
	if !strings.Contains(ce.Body, "model not found") {
		t.Errorf("Body = %q, want to contain %q", ce.Body, "model not found")
	}

	if n := countKind(events, EventError); n != 1 {
		t.Errorf("Error events = %d, want exactly 1", n)
	}
	if n := countKind(events, EventDone); n != 0 {
		t.Errorf("Done events = %d, want 0 — never both Done and Error", n)
	}
	if n := countKind(events, EventDelta); n != 0 {
		t.Errorf("Delta events = %d, want 0 — error body must not be stream-processed", n)
	}
}

func TestChatStream_ServerStatusJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"model \"missing:7b\" not found"}`)
	}))
	defer srv.Close()

	_, err := collect(t, testClient(), ChatParams{Host: srv.URL, Model: "missing:7b"})

	var ce *ClientError
	if !errors.As(err, &ce) {
		t.Fatalf("error type = %T", err)
	}
	if !strings.Contains(ce.Body, "missing:7b") {
		t.Errorf("Body = %q, want structured server message extracted", ce.Body)
	}
}

// =============================================================================
// TRANSPORT FAILURES
// =============================================================================

func TestChatStream_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	events, err := collect(t, testClient(), ChatParams{Host: srv.URL, Model: "m"})

	if !IsUnreachable(err) {
		t.Errorf("error = %v, want unreachable kind", err)
	}
	if n := countKind(events, EventError); n != 1 {
		t.Errorf("Error events = %d, want 1", n)
	}
}

func TestChatStream_ReadTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		io.WriteString(w, `{"message":{"content":"partial"}}`+"\n")
		flusher.Flush()
		<-release // never send the rest
	}))
	defer srv.Close()
	defer close(release)

	client := NewClientWithConfig(ClientConfig{
		ConnectTimeout: 2 * time.Second,
		ReadTimeout:    100 * time.Millisecond,
	})

	events, err := collect(t, client, ChatParams{Host: srv.URL, Model: "m"})

	if !IsTimeout(err) {
		t.Fatalf("error = %v, want timeout kind", err)
	}
	// Partial content delivered before the stall is preserved.
	if got := deltas(events); got != "partial" {
		t.Errorf("deltas = %q, want %q", got, "partial")
	}
	if n := countKind(events, EventDone); n != 0 {
		t.Errorf("Done events = %d, want 0", n)
	}
}

func TestChatStream_CallerCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		io.WriteString(w, `{"message":{"content":"begun"}}`+"\n")
		flusher.Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())

	var events []StreamEvent
	errCh := make(chan error, 1)
	go func() {
		errCh <- testClient().ChatStream(ctx, ChatParams{Host: srv.URL, Model: "m"}, func(ev StreamEvent) {
			events = append(events, ev)
			if ev.Kind == EventDelta {
				cancel()
			}
		})
	}()

	select {
	case err := <-errCh:
		if !IsCanceled(err) {
			t.Errorf("error = %v, want canceled kind", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ChatStream did not return after cancellation")
	}

	if got := deltas(events); got != "begun" {
		t.Errorf("deltas = %q — cancellation must not undo applied deltas", got)
	}
}

// =============================================================================
// END-OF-STREAM WITHOUT DONE RECORD
// =============================================================================

func TestChatStream_EOFWithoutDoneRecord(t *testing.T) {
	// Final record lacks a trailing newline; Finish must still surface it,
	// and end-of-stream still yields exactly one Done.
	srv := chunkedServer(t,
		`{"message":{"content":"tail"}}`+"\n"+`{"message":{"content":" end"}}`,
	)
	defer srv.Close()

	events, err := collect(t, testClient(), ChatParams{Host: srv.URL, Model: "m"})
	if err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}

	if got := deltas(events); got != "tail end" {
		t.Errorf("deltas = %q, want %q", got, "tail end")
	}
	if n := countKind(events, EventDone); n != 1 {
		t.Errorf("Done events = %d, want 1", n)
	}
}

// =============================================================================
// REQUEST SHAPE
// =============================================================================

func TestChatStream_RequestBody(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("request body decode: %v", err)
		}
		io.WriteString(w, `{"done":true}`+"\n")
	}))
	defer srv.Close()

	params := ChatParams{
		Host:  srv.URL,
		Model: "qwen2.5:14b",
		Messages: []Message{
			NewSystemMessage("be terse"),
			NewUserMessageWithImages("what is this?", []string{"aGk="}),
		},
		Temperature: 0.7,
	}
	if _, err := collect(t, testClient(), params); err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}

	if got.Model != "qwen2.5:14b" {
		t.Errorf("Model = %q", got.Model)
	}
	if !got.Stream {
		t.Error("Stream must be true")
	}
	if got.Options == nil || got.Options.Temperature != 0.7 {
		t.Errorf("Options = %+v, want temperature 0.7", got.Options)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("Messages = %d, want 2", len(got.Messages))
	}
	if got.Messages[0].Role != "system" {
		t.Errorf("Messages[0].Role = %q", got.Messages[0].Role)
	}
	if len(got.Messages[1].Images) != 1 || got.Messages[1].Images[0] != "aGk=" {
		t.Errorf("Messages[1].Images = %v", got.Messages[1].Images)
	}
}

// =============================================================================
// CHANNEL VARIANT
// =============================================================================

func TestChatStreamChan(t *testing.T) {
	srv := chunkedServer(t,
		`{"message":{"content":"a"}}`+"\n",
		`{"message":{"content":"b"}}`+"\n",
		`{"done":true}`+"\n",
	)
	defer srv.Close()

	var events []StreamEvent
	for ev := range testClient().ChatStreamChan(context.Background(), ChatParams{Host: srv.URL, Model: "m"}) {
		events = append(events, ev)
	}

	if got := deltas(events); got != "ab" {
		t.Errorf("deltas = %q, want %q", got, "ab")
	}
	if events[len(events)-1].Kind != EventDone {
		t.Error("terminal event must be last on the channel")
	}
}
