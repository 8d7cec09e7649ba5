// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jeranaias/tauros/internal/logging"
)

// Credentials stores the Mistral API key in its slot as a JSON string.
type Credentials struct {
	slots  Slots
	logger zerolog.Logger
}

// NewCredentials returns a credential store backed by slots.
func NewCredentials(slots Slots) *Credentials {
	return &Credentials{slots: slots, logger: logging.Component("storage")}
}

// WithLogger replaces the store's logger.
func (c *Credentials) WithLogger(logger zerolog.Logger) *Credentials {
	c.logger = logger
	return c
}

// Get returns the stored key, or "" when none is stored. An undecodable slot
// counts as no key so Set can overwrite it.
func (c *Credentials) Get(ctx context.Context) (string, error) {
	var key string
	err := GetJSON(ctx, c.slots, SlotAPIKey, &key)
	switch {
	case errors.Is(err, ErrSlotNotFound):
		return "", nil
	case errors.Is(err, ErrSlotCorrupt):
		c.logger.Warn().Err(err).Msg("Ignoring corrupt API key slot")
		return "", nil
	case err != nil:
		return "", fmt.Errorf("read api key: %w", err)
	}
	return key, nil
}

// Set stores key after trimming whitespace. An empty key removes the slot.
func (c *Credentials) Set(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		if err := c.slots.Delete(ctx, SlotAPIKey); err != nil {
			return fmt.Errorf("remove api key: %w", err)
		}
		return nil
	}
	if err := PutJSON(ctx, c.slots, SlotAPIKey, key); err != nil {
		return fmt.Errorf("store api key: %w", err)
	}
	return nil
}

// Has reports whether a non-empty key is stored.
func (c *Credentials) Has(ctx context.Context) (bool, error) {
	key, err := c.Get(ctx)
	if err != nil {
		return false, err
	}
	return key != "", nil
}
