// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/shoal-tui/internal/ollama"
)

// MaxMessages is the maximum number of messages to keep in conversation
// history. When exceeded, old messages are pruned to prevent unbounded
// memory growth.
const MaxMessages = 1000

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds an ordered chat transcript with metadata.
type Conversation struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Messages, in arrival order
	Messages []*Message `json:"messages"`

	// Model used for assistant turns
	Model string `json:"model"`

	// System prompt (optional); sent as the first wire message when set
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// NewConversation creates a new conversation with a generated ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
	}
}

// NewConversationWithModel creates a new conversation with a specific model.
func NewConversationWithModel(model string) *Conversation {
	conv := NewConversation()
	conv.Model = model
	return conv
}

// =============================================================================
// CONVERSATION METHODS
// =============================================================================

// Append adds a message to the conversation, pruning the oldest turns when
// the history cap is exceeded.
func (c *Conversation) Append(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()

	if len(c.Messages) > MaxMessages {
		overflow := len(c.Messages) - MaxMessages
		c.Messages = c.Messages[overflow:]
	}

	if c.Title == "" && msg.Role == RoleUser {
		c.Title = msg.Preview(50)
	}
}

// Clear removes all messages but keeps the conversation identity, model,
// and system prompt.
func (c *Conversation) Clear() {
	c.Messages = c.Messages[:0]
	c.Title = ""
	c.UpdatedAt = time.Now()
}

// Len returns the number of messages in the conversation.
func (c *Conversation) Len() int {
	return len(c.Messages)
}

// LastAssistant returns the most recent assistant message, or nil.
func (c *Conversation) LastAssistant() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleAssistant {
			return c.Messages[i]
		}
	}
	return nil
}

// ToWireMessages converts the transcript to the request format the server
// expects. The system prompt, when set, is always the first message.
// Streaming (unfinalized) assistant turns and empty assistant turns are
// skipped: they carry no settled content to replay.
func (c *Conversation) ToWireMessages() []ollama.Message {
	wire := make([]ollama.Message, 0, len(c.Messages)+1)

	if c.SystemPrompt != "" {
		wire = append(wire, ollama.NewSystemMessage(c.SystemPrompt))
	}

	for _, msg := range c.Messages {
		switch msg.Role {
		case RoleUser:
			if len(msg.Images) > 0 {
				wire = append(wire, ollama.NewUserMessageWithImages(msg.Content, msg.Images))
			} else {
				wire = append(wire, ollama.NewUserMessage(msg.Content))
			}
		case RoleAssistant:
			if msg.IsStreaming || msg.Content == "" {
				continue
			}
			wire = append(wire, ollama.NewAssistantMessage(msg.Content))
		case RoleSystem:
			wire = append(wire, ollama.NewSystemMessage(msg.Content))
		}
	}

	return wire
}

// EstimateTokens returns a rough token count for the whole transcript.
func (c *Conversation) EstimateTokens() int {
	total := 0
	for _, msg := range c.Messages {
		total += msg.EstimateTokens()
	}
	return total
}
