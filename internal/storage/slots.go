// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jeranaias/tauros/internal/config"
)

// =============================================================================
// SLOT INTERFACE
// =============================================================================

// Named slots used by tauros. Each holds one JSON document.
const (
	SlotAPIKey       = "mistral_api_key"
	SlotUsageStats   = "mistral_usage_stats"
	SlotConversation = "tauros_conversation"
)

// ErrSlotNotFound is returned by Get when a slot has never been written or
// was deleted.
var ErrSlotNotFound = errors.New("slot not found")

// ErrSlotCorrupt is returned by GetJSON when a slot holds bytes that do not
// decode into the requested value.
var ErrSlotCorrupt = errors.New("slot corrupt")

// Slots is durable key-value storage addressed by slot name. Put replaces the
// whole value; readers never observe a partial write.
type Slots interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, value []byte) error
	Delete(ctx context.Context, name string) error
	Close() error
}

var slotName = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,127}$`)

func validateName(name string) error {
	if !slotName.MatchString(name) {
		return fmt.Errorf("invalid slot name %q", name)
	}
	return nil
}

// Open returns the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (Slots, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFileSlots(cfg.Dir)
	case config.BackendSQLite:
		return NewSQLiteSlots(cfg.SQLitePath)
	case config.BackendRedis:
		return NewRedisSlots(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case config.BackendMemory:
		return NewMemorySlots(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// =============================================================================
// JSON HELPERS
// =============================================================================

// GetJSON decodes slot name into v. It returns ErrSlotNotFound unchanged and
// wraps decode failures in ErrSlotCorrupt so callers can tell them apart.
func GetJSON(ctx context.Context, s Slots, name string, v any) error {
	data, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode slot %s: %w: %w", name, ErrSlotCorrupt, err)
	}
	return nil
}

// PutJSON encodes v and stores it in slot name.
func PutJSON(ctx context.Context, s Slots, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode slot %s: %w", name, err)
	}
	return s.Put(ctx, name, data)
}
