// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/tauros/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "Tu"
	case RoleAssistant:
		return "TaurosAI"
	case RoleSystem:
		return "Sistema"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// ChatMessage is one entry of the conversation log. Treat it as immutable
// once created.
type ChatMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Role      `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Error     bool      `json:"error,omitempty"`
}

// NewMessage creates a message stamped with the current UTC time.
func NewMessage(sender Role, content string) ChatMessage {
	return NewMessageAt(sender, content, time.Now())
}

// NewMessageAt creates a message with an explicit timestamp.
func NewMessageAt(sender Role, content string, ts time.Time) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Content:   content,
		Sender:    sender,
		Timestamp: ts.UTC(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) ChatMessage {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) ChatMessage {
	return NewMessage(RoleAssistant, content)
}

// NewErrorMessage creates a system message flagged as an error.
func NewErrorMessage(content string) ChatMessage {
	msg := NewMessage(RoleSystem, content)
	msg.Error = true
	return msg
}

// Preview returns the content capped at maxLen user-perceived characters.
func (m ChatMessage) Preview(maxLen int) string {
	return util.TruncateGraphemes(m.Content, maxLen)
}

// CloneMessages returns a copy of msgs that shares no backing array.
func CloneMessages(msgs []ChatMessage) []ChatMessage {
	if msgs == nil {
		return []ChatMessage{}
	}
	out := make([]ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}
