// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions shared across shoal.
package util

import (
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxRunes int
		want     string
	}{
		{"shorter than max", "hello", 10, "hello"},
		{"exactly max", "hello", 5, "hello"},
		{"truncated with ellipsis", "hello world", 8, "hello..."},
		{"zero max", "hello", 0, ""},
		{"tiny max", "hello", 2, "he"},
		{"multibyte preserved", "héllo wörld", 8, "héllo..."},
		{"cjk runes", "你好世界你好世界", 5, "你好..."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TruncateRunes(tc.input, tc.maxRunes); got != tc.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tc.input, tc.maxRunes, got, tc.want)
			}
		})
	}
}

func TestTruncateWidth_CJK(t *testing.T) {
	// Each CJK character occupies two columns.
	got := TruncateWidth("你好世界", 4)
	if got != "你好" {
		t.Errorf("TruncateWidth = %q, want %q", got, "你好")
	}

	if w := StringWidth("你好"); w != 4 {
		t.Errorf("StringWidth = %d, want 4", w)
	}
}

func TestTruncateWidth_NeverExceedsMax(t *testing.T) {
	cases := []struct {
		in  string
		max int
	}{
		{"hello world", 5},
		{"你好世界", 5}, // odd budget cannot split a double-width cell
		{"你好世界", 1},
		{"short", 80},
		{"", 4},
	}
	for _, tc := range cases {
		got := TruncateWidth(tc.in, tc.max)
		if w := StringWidth(got); w > tc.max {
			t.Errorf("TruncateWidth(%q, %d) = %q, width %d exceeds max", tc.in, tc.max, got, w)
		}
	}

	if got := TruncateWidth("hello", 80); got != "hello" {
		t.Errorf("string within budget was altered: %q", got)
	}
	if got := TruncateWidth("你好世界", 5); got != "你好" {
		t.Errorf("TruncateWidth = %q, want %q", got, "你好")
	}
}

func TestFirstLine(t *testing.T) {
	if got := FirstLine("one\ntwo"); got != "one" {
		t.Errorf("FirstLine = %q, want %q", got, "one")
	}
	if got := FirstLine("no newline"); got != "no newline" {
		t.Errorf("FirstLine = %q, want %q", got, "no newline")
	}
}

// =============================================================================
// HOST NORMALIZATION TESTS
// =============================================================================

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare host", "localhost:11434", "http://localhost:11434", false},
		{"http scheme kept", "http://127.0.0.1:11434", "http://127.0.0.1:11434", false},
		{"https scheme kept", "https://llm.lan", "https://llm.lan", false},
		{"trailing slash stripped", "http://10.0.0.5:11434/", "http://10.0.0.5:11434", false},
		{"multiple trailing slashes", "http://host//", "http://host", false},
		{"surrounding whitespace", "  localhost:11434  ", "http://localhost:11434", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"bad scheme", "ftp://host", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeHost(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("NormalizeHost(%q) expected error, got %q", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeHost(%q) error: %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("NormalizeHost(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	if err := AtomicWriteFile(path, []byte("host = \"x\"\n"), 0644); err != nil {
		t.Fatalf("AtomicWriteFile error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if string(data) != "host = \"x\"\n" {
		t.Errorf("content = %q", data)
	}

	// Overwrite must replace, not append.
	if err := AtomicWriteFile(path, []byte("new"), 0644); err != nil {
		t.Fatalf("AtomicWriteFile overwrite error: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "new" {
		t.Errorf("content after overwrite = %q", data)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if e.Name() != "config.toml" {
			t.Errorf("leftover file: %s", e.Name())
		}
	}
}
