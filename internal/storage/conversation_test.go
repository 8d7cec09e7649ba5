// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tauros/internal/model"
)

func sampleMessages() []model.ChatMessage {
	base := time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC)
	user := model.NewMessageAt(model.RoleUser, "Ciao, come stai? 👋", base)
	bot := model.NewMessageAt(model.RoleAssistant, "Sto bene, grazie!", base.Add(1500*time.Millisecond))
	fail := model.NewMessageAt(model.RoleSystem, "Errore di connessione. Verifica la tua connessione internet.", base.Add(3*time.Second))
	fail.Error = true
	return []model.ChatMessage{user, bot, fail}
}

func TestConversationStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			slots := open(t)
			defer slots.Close()

			store := NewConversationStore(slots).WithLogger(zerolog.Nop())
			want := sampleMessages()
			for _, msg := range want {
				require.NoError(t, store.Append(ctx, msg))
			}

			reloaded := NewConversationStore(slots).WithLogger(zerolog.Nop())
			got, err := reloaded.Load(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("reloaded conversation mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want, reloaded.All()); diff != "" {
				t.Errorf("All() mismatch after Load (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConversationStore_LoadAbsent(t *testing.T) {
	store := NewConversationStore(NewMemorySlots()).WithLogger(zerolog.Nop())
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestConversationStore_LoadCorruptIsEmpty(t *testing.T) {
	ctx := context.Background()
	for _, data := range []string{"{not json", `{"messages": 3}`, `"text"`} {
		slots := NewMemorySlots()
		require.NoError(t, slots.Put(ctx, SlotConversation, []byte(data)))

		store := NewConversationStore(slots).WithLogger(zerolog.Nop())
		got, err := store.Load(ctx)
		require.NoError(t, err, data)
		assert.Empty(t, got, data)

		// The store stays usable after discarding corrupt data.
		require.NoError(t, store.Append(ctx, model.NewUserMessage("di nuovo")))
		assert.Equal(t, 1, store.Len())
	}
}

func TestConversationStore_AllIsACopy(t *testing.T) {
	ctx := context.Background()
	store := NewConversationStore(NewMemorySlots()).WithLogger(zerolog.Nop())
	require.NoError(t, store.Append(ctx, model.NewUserMessage("primo")))

	all := store.All()
	all[0].Content = "modificato"
	assert.Equal(t, "primo", store.All()[0].Content)
}

func TestConversationStore_Clear(t *testing.T) {
	ctx := context.Background()
	slots := NewMemorySlots()
	store := NewConversationStore(slots).WithLogger(zerolog.Nop())
	for _, msg := range sampleMessages() {
		require.NoError(t, store.Append(ctx, msg))
	}

	require.NoError(t, store.Clear(ctx))
	assert.Empty(t, store.All())

	_, err := slots.Get(ctx, SlotConversation)
	assert.True(t, errors.Is(err, ErrSlotNotFound))
}

// failingSlots rejects every write.
type failingSlots struct{ *MemorySlots }

func (failingSlots) Put(context.Context, string, []byte) error { return errors.New("disk full") }

func TestConversationStore_AppendFailureKeepsLog(t *testing.T) {
	ctx := context.Background()
	store := NewConversationStore(failingSlots{NewMemorySlots()}).WithLogger(zerolog.Nop())

	err := store.Append(ctx, model.NewUserMessage("perso"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Zero(t, store.Len())
}

func TestConversationStore_FileBackendSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "slots")

	first, err := NewFileSlots(dir)
	require.NoError(t, err)
	store := NewConversationStore(first).WithLogger(zerolog.Nop())
	require.NoError(t, store.Append(ctx, model.NewUserMessage("salvato")))

	second, err := NewFileSlots(dir)
	require.NoError(t, err)
	got, err := NewConversationStore(second).WithLogger(zerolog.Nop()).Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "salvato", got[0].Content)
}
