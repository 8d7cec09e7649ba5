// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tauros/internal/config"
)

// backends returns a constructor per slot backend. Redis is included only
// when TAUROS_TEST_REDIS names a reachable server.
func backends(t *testing.T) map[string]func(t *testing.T) Slots {
	t.Helper()
	b := map[string]func(t *testing.T) Slots{
		"memory": func(t *testing.T) Slots { return NewMemorySlots() },
		"file": func(t *testing.T) Slots {
			s, err := NewFileSlots(filepath.Join(t.TempDir(), "slots"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Slots {
			s, err := NewSQLiteSlots(filepath.Join(t.TempDir(), "tauros.db"))
			require.NoError(t, err)
			return s
		},
	}
	if addr := os.Getenv("TAUROS_TEST_REDIS"); addr != "" {
		b["redis"] = func(t *testing.T) Slots {
			s, err := NewRedisSlots(context.Background(), RedisOptions{Addr: addr, Prefix: "tauros-test:" + t.Name() + ":"})
			require.NoError(t, err)
			return s
		}
	}
	return b
}

func TestSlots_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			_, err := s.Get(ctx, SlotUsageStats)
			assert.True(t, errors.Is(err, ErrSlotNotFound), "fresh slot: %v", err)

			require.NoError(t, s.Put(ctx, SlotUsageStats, []byte(`{"requests":1}`)))
			got, err := s.Get(ctx, SlotUsageStats)
			require.NoError(t, err)
			assert.JSONEq(t, `{"requests":1}`, string(got))

			require.NoError(t, s.Put(ctx, SlotUsageStats, []byte(`{"requests":2}`)))
			got, err = s.Get(ctx, SlotUsageStats)
			require.NoError(t, err)
			assert.JSONEq(t, `{"requests":2}`, string(got))

			require.NoError(t, s.Delete(ctx, SlotUsageStats))
			_, err = s.Get(ctx, SlotUsageStats)
			assert.True(t, errors.Is(err, ErrSlotNotFound))

			// Deleting twice is fine.
			assert.NoError(t, s.Delete(ctx, SlotUsageStats))
		})
	}
}

func TestSlots_RejectInvalidNames(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			for _, bad := range []string{"", "../etc/passwd", "a/b", "UPPER"} {
				assert.Error(t, s.Put(ctx, bad, []byte("x")), bad)
				_, err := s.Get(ctx, bad)
				assert.Error(t, err, bad)
			}
		})
	}
}

func TestMemorySlots_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySlots()
	value := []byte("abc")
	require.NoError(t, s.Put(ctx, "x", value))
	value[0] = 'z'

	got, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[0] = 'q'
	again, _ := s.Get(ctx, "x")
	assert.Equal(t, "abc", string(again))
}

func TestFileSlots_Layout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s, err := NewFileSlots(dir)
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), SlotAPIKey, []byte(`"k"`)))
	info, err := os.Stat(filepath.Join(dir, SlotAPIKey+".json"))
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestSQLiteSlots_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tauros.db")

	s, err := NewSQLiteSlots(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, SlotConversation, []byte(`[]`)))
	require.NoError(t, s.Close())

	s, err = NewSQLiteSlots(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, SlotConversation)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

func TestOpen_SelectsBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		backend string
		want    any
	}{
		{config.BackendFile, &FileSlots{}},
		{config.BackendSQLite, &SQLiteSlots{}},
		{config.BackendMemory, &MemorySlots{}},
	}
	for _, tt := range tests {
		s, err := Open(ctx, config.StorageConfig{
			Backend:    tt.backend,
			Dir:        dir,
			SQLitePath: filepath.Join(dir, "tauros.db"),
		})
		require.NoError(t, err, tt.backend)
		assert.IsType(t, tt.want, s)
		s.Close()
	}

	_, err := Open(ctx, config.StorageConfig{Backend: "etcd"})
	assert.Error(t, err)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySlots()

	type stats struct {
		Requests int `json:"requests"`
	}
	require.NoError(t, PutJSON(ctx, s, SlotUsageStats, stats{Requests: 4}))

	var got stats
	require.NoError(t, GetJSON(ctx, s, SlotUsageStats, &got))
	assert.Equal(t, 4, got.Requests)

	require.NoError(t, s.Put(ctx, SlotUsageStats, []byte("{broken")))
	err := GetJSON(ctx, s, SlotUsageStats, &got)
	assert.True(t, errors.Is(err, ErrSlotCorrupt))
	assert.False(t, errors.Is(err, ErrSlotNotFound))

	err = GetJSON(ctx, s, "absent", &got)
	assert.True(t, errors.Is(err, ErrSlotNotFound))
	assert.False(t, errors.Is(err, ErrSlotCorrupt))
}
