// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/tauros/internal/logging"
	"github.com/jeranaias/tauros/internal/model"
)

// ConversationStore is the append-only chat log. Every Append rewrites the
// whole log into the conversation slot.
type ConversationStore struct {
	slots  Slots
	slot   string
	logger zerolog.Logger

	mu       sync.Mutex
	messages []model.ChatMessage
}

// NewConversationStore returns an empty store backed by slots. Call Load to
// pick up a previous session.
func NewConversationStore(slots Slots) *ConversationStore {
	return &ConversationStore{
		slots:    slots,
		slot:     SlotConversation,
		logger:   logging.Component("storage"),
		messages: []model.ChatMessage{},
	}
}

// WithLogger replaces the store's logger.
func (c *ConversationStore) WithLogger(logger zerolog.Logger) *ConversationStore {
	c.logger = logger
	return c
}

// Load reads the persisted log and makes it the current one. An absent or
// undecodable slot yields an empty log; only backend failures are errors.
func (c *ConversationStore) Load(ctx context.Context) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	data, err := c.slots.Get(ctx, c.slot)
	switch {
	case errors.Is(err, ErrSlotNotFound):
	case err != nil:
		return nil, fmt.Errorf("load conversation: %w", err)
	default:
		if err := json.Unmarshal(data, &msgs); err != nil {
			c.logger.Warn().Err(err).Int("bytes", len(data)).Msg("Discarding corrupt conversation")
			msgs = nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = model.CloneMessages(msgs)
	c.logger.Debug().Int("messages", len(c.messages)).Msg("Conversation loaded")
	return model.CloneMessages(c.messages), nil
}

// Append adds msg at the end of the log and persists the log. If the write
// fails the in-memory log is left unchanged.
func (c *ConversationStore) Append(ctx context.Context, msg model.ChatMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := append(model.CloneMessages(c.messages), msg)
	if err := PutJSON(ctx, c.slots, c.slot, next); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	c.messages = next
	return nil
}

// All returns a copy of the log in insertion order.
func (c *ConversationStore) All() []model.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.CloneMessages(c.messages)
}

// Len returns the number of messages.
func (c *ConversationStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Clear empties the log and removes the persisted copy.
func (c *ConversationStore) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.slots.Delete(ctx, c.slot); err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	c.messages = []model.ChatMessage{}
	return nil
}
