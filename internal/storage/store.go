// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for shoal.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/shoal-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotFound = errors.New("conversation not found")
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	model         TEXT NOT NULL DEFAULT '',
	system_prompt TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	seq             INTEGER NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	error_note      TEXT NOT NULL DEFAULT '',
	token_count     INTEGER NOT NULL DEFAULT 0,
	duration_ns     INTEGER NOT NULL DEFAULT 0,
	ttft_ns         INTEGER NOT NULL DEFAULT 0,
	tokens_per_sec  REAL NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation_id, seq);

CREATE INDEX IF NOT EXISTS idx_conversations_updated
	ON conversations(updated_at DESC);
`

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// Store persists conversations in a SQLite database.
type Store struct {
	db *sql.DB
}

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	ID           string
	Title        string
	Model        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// DefaultPath returns the default database location, ~/.shoal/shoal.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".shoal", "shoal.db"), nil
}

// Open opens (creating if necessary) the store at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the store and releases resources.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// =============================================================================
// SAVE / LOAD
// =============================================================================

// Save writes the conversation and all its messages in one transaction,
// replacing any previous version. Streaming (unfinalized) messages are
// skipped; only settled content is persisted.
func (s *Store) Save(conv *model.Conversation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO conversations (id, title, model, system_prompt, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			model = excluded.model,
			system_prompt = excluded.system_prompt,
			updated_at = excluded.updated_at
	`, conv.ID, conv.Title, conv.Model, conv.SystemPrompt,
		conv.CreatedAt.Unix(), conv.UpdatedAt.Unix())
	if err != nil {
		return err
	}

	// Replace the message rows wholesale; partial diffs are not worth the
	// complexity at transcript sizes.
	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id = ?", conv.ID); err != nil {
		return err
	}

	for seq, msg := range conv.Messages {
		if msg.IsStreaming {
			continue
		}
		_, err := tx.Exec(`
			INSERT INTO messages
				(id, conversation_id, seq, role, content, error_note,
				 token_count, duration_ns, ttft_ns, tokens_per_sec, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, msg.ID, conv.ID, seq, string(msg.Role), msg.Content, msg.ErrorNote,
			msg.TokenCount, int64(msg.TotalDuration), int64(msg.TTFT),
			msg.TokensPerSec, msg.Timestamp.Unix())
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Load reads a conversation and its messages by ID.
func (s *Store) Load(id string) (*model.Conversation, error) {
	conv := &model.Conversation{}
	var createdAt, updatedAt int64

	err := s.db.QueryRow(`
		SELECT id, title, model, system_prompt, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id).Scan(&conv.ID, &conv.Title, &conv.Model, &conv.SystemPrompt,
		&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	conv.CreatedAt = time.Unix(createdAt, 0)
	conv.UpdatedAt = time.Unix(updatedAt, 0)

	rows, err := s.db.Query(`
		SELECT id, role, content, error_note,
		       token_count, duration_ns, ttft_ns, tokens_per_sec, created_at
		FROM messages WHERE conversation_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		msg := &model.Message{}
		var role string
		var durationNS, ttftNS, msgCreated int64
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &msg.ErrorNote,
			&msg.TokenCount, &durationNS, &ttftNS, &msg.TokensPerSec,
			&msgCreated); err != nil {
			return nil, err
		}
		msg.Role = model.Role(role)
		msg.TotalDuration = time.Duration(durationNS)
		msg.TTFT = time.Duration(ttftNS)
		msg.Timestamp = time.Unix(msgCreated, 0)
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, rows.Err()
}

// List returns metadata for all conversations, most recently updated first.
func (s *Store) List() ([]ConversationMeta, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.title, c.model, c.created_at, c.updated_at,
		       COUNT(m.id)
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []ConversationMeta
	for rows.Next() {
		var meta ConversationMeta
		var createdAt, updatedAt int64
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.Model,
			&createdAt, &updatedAt, &meta.MessageCount); err != nil {
			return nil, err
		}
		meta.CreatedAt = time.Unix(createdAt, 0)
		meta.UpdatedAt = time.Unix(updatedAt, 0)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// Delete removes a conversation and its messages.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
