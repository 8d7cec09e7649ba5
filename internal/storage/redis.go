// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces tauros keys in a shared Redis.
const DefaultRedisPrefix = "tauros:"

// RedisOptions configures NewRedisSlots.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix defaults to DefaultRedisPrefix.
	Prefix string
}

// RedisSlots stores each slot as a plain string key.
type RedisSlots struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisSlots connects and pings the server.
func NewRedisSlots(ctx context.Context, opts RedisOptions) (*RedisSlots, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	// Verify connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisSlots{rdb: rdb, prefix: prefix}, nil
}

func (r *RedisSlots) key(name string) string {
	return r.prefix + name
}

// Get implements Slots.
func (r *RedisSlots) Get(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := r.rdb.Get(ctx, r.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read slot %s: %w", name, err)
	}
	return data, nil
}

// Put implements Slots.
func (r *RedisSlots) Put(ctx context.Context, name string, value []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key(name), value, 0).Err(); err != nil {
		return fmt.Errorf("write slot %s: %w", name, err)
	}
	return nil
}

// Delete implements Slots.
func (r *RedisSlots) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := r.rdb.Del(ctx, r.key(name)).Err(); err != nil {
		return fmt.Errorf("delete slot %s: %w", name, err)
	}
	return nil
}

// Close implements Slots.
func (r *RedisSlots) Close() error {
	return r.rdb.Close()
}
