// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jeranaias/shoal-tui/internal/config"
	"github.com/jeranaias/shoal-tui/internal/model"
	"github.com/jeranaias/shoal-tui/internal/ollama"
)

func testSession(t *testing.T) (*Session, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	s := NewSession(cfg, ollama.NewClient(), nil)
	buf := &bytes.Buffer{}
	s.out = buf
	return s, buf
}

// ndjsonServer answers /api/chat with the given NDJSON body.
func ndjsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleCommand_ModelSwitch(t *testing.T) {
	s, buf := testSession(t)

	s.handleCommand("/model llama3.2:3b")
	if s.conv.Model != "llama3.2:3b" {
		t.Fatalf("conversation model = %q, want llama3.2:3b", s.conv.Model)
	}
	if s.cfg.Chat.Model != "llama3.2:3b" {
		t.Fatalf("config model = %q, want llama3.2:3b", s.cfg.Chat.Model)
	}
	if !strings.Contains(buf.String(), "switched to llama3.2:3b") {
		t.Fatalf("output missing switch confirmation: %q", buf.String())
	}
}

func TestHandleCommand_ModelShow(t *testing.T) {
	s, buf := testSession(t)

	s.handleCommand("/model")
	if !strings.Contains(buf.String(), s.conv.Model) {
		t.Fatalf("output missing current model: %q", buf.String())
	}
}

func TestHandleCommand_Clear(t *testing.T) {
	s, _ := testSession(t)
	s.conv.Append(model.NewUserMessage("hello"))

	s.handleCommand("/clear")
	if s.conv.Len() != 0 {
		t.Fatalf("conversation length = %d after clear, want 0", s.conv.Len())
	}
}

func TestHandleCommand_Unknown(t *testing.T) {
	s, buf := testSession(t)

	if exit := s.handleCommand("/bogus"); exit {
		t.Fatal("unknown command requested exit")
	}
	if !strings.Contains(buf.String(), "unknown command /bogus") {
		t.Fatalf("output missing unknown-command notice: %q", buf.String())
	}
}

func TestHandleCommand_Quit(t *testing.T) {
	s, _ := testSession(t)
	if exit := s.handleCommand("/quit"); !exit {
		t.Fatal("/quit did not request exit")
	}
}

func TestProcessMessage_StreamsToOutput(t *testing.T) {
	srv := ndjsonServer(t,
		`{"message":{"content":"Hello"}}`+"\n"+
			`{"message":{"content":" world"}}`+"\n"+
			`{"done":true,"eval_count":2,"eval_duration":1000000000}`+"\n")

	s, buf := testSession(t)
	s.cfg.Server.Host = srv.URL

	if err := s.processMessage("hi"); err != nil {
		t.Fatalf("processMessage: %v", err)
	}

	// Stdout is not a TTY under go test, so deltas stream raw.
	if !strings.Contains(buf.String(), "Hello world") {
		t.Fatalf("output missing streamed reply: %q", buf.String())
	}

	if s.conv.Len() != 2 {
		t.Fatalf("conversation length = %d, want 2", s.conv.Len())
	}
	reply := s.conv.LastAssistant()
	if reply == nil || reply.Content != "Hello world" {
		t.Fatalf("reply not finalized with streamed content: %+v", reply)
	}
	if reply.IsStreaming {
		t.Fatal("reply still marked streaming after completion")
	}
	if reply.TokenCount != 2 {
		t.Fatalf("token count = %d, want 2", reply.TokenCount)
	}
}

func TestProcessMessage_ServerErrorKeepsUserTurn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	s, _ := testSession(t)
	s.cfg.Server.Host = srv.URL

	err := s.processMessage("hi")
	if err == nil {
		t.Fatal("expected error from failing server")
	}
	if !ollama.IsServerStatus(err) {
		t.Fatalf("error kind = %v, want server status", err)
	}

	// Both turns stay in the transcript; the reply carries the annotation.
	if s.conv.Len() != 2 {
		t.Fatalf("conversation length = %d, want 2", s.conv.Len())
	}
	reply := s.conv.LastAssistant()
	if reply == nil || !reply.HasError() {
		t.Fatalf("reply missing error annotation: %+v", reply)
	}
}

func TestProcessMessage_PartialContentSurvivesFailure(t *testing.T) {
	srv := ndjsonServer(t,
		`{"message":{"content":"partial"}}`+"\n"+
			`not json at all`+"\n") // stream ends without a done record

	s, buf := testSession(t)
	s.cfg.Server.Host = srv.URL

	// The decoder surfaces the malformed line as a warning and the
	// truncated stream still terminates; either way the partial delta
	// must survive in the transcript.
	_ = s.processMessage("hi")

	reply := s.conv.LastAssistant()
	if reply == nil {
		t.Fatal("no assistant reply recorded")
	}
	if !strings.Contains(reply.Content, "partial") {
		t.Fatalf("partial content lost: %q", reply.Content)
	}
	if !strings.Contains(buf.String(), "partial") {
		t.Fatalf("partial content not written to output: %q", buf.String())
	}
}

func TestApplyConfig_UpdatesNextExchange(t *testing.T) {
	s, buf := testSession(t)

	next := config.Default()
	next.Chat.Model = "mistral:7b"
	next.Chat.SystemPrompt = "be terse"
	s.ApplyConfig(next)

	if s.conv.Model != "mistral:7b" {
		t.Fatalf("conversation model = %q, want mistral:7b", s.conv.Model)
	}
	if s.conv.SystemPrompt != "be terse" {
		t.Fatalf("system prompt = %q, want be terse", s.conv.SystemPrompt)
	}
	if !strings.Contains(buf.String(), "config reloaded") {
		t.Fatalf("output missing reload notice: %q", buf.String())
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	s, _ := testSession(t)
	s.Cancel() // nothing in flight
	canceled := false
	s.setCancel(func() { canceled = true })
	s.Cancel()
	if !canceled {
		t.Fatal("registered cancel func not invoked")
	}
	s.Cancel() // second call must not panic
}
