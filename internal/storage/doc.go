// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable slot storage and the stores built on it.
//
// A slot is a named JSON document. Three slots are used: the API key, the
// usage statistics and the conversation log. Every write replaces the whole
// value.
//
// # Backends
//
//   - FileSlots: one file per slot, written atomically (default)
//   - SQLiteSlots: a single table in a SQLite database
//   - RedisSlots: string keys prefixed with "tauros:"
//   - MemorySlots: process memory, for --ephemeral and tests
//
// # Usage
//
//	slots, err := storage.Open(ctx, cfg.Storage)
//	conv := storage.NewConversationStore(slots)
//	history, err := conv.Load(ctx)
package storage
