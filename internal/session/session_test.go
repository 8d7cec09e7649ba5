// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jeranaias/tauros/internal/cloud"
	"github.com/jeranaias/tauros/internal/export"
	"github.com/jeranaias/tauros/internal/model"
	"github.com/jeranaias/tauros/internal/prompt"
	"github.com/jeranaias/tauros/internal/storage"
	"github.com/jeranaias/tauros/internal/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// HELPERS
// =============================================================================

type fakeResponder struct {
	mu    sync.Mutex
	texts []string
	opts  []cloud.SendOptions
	resp  *cloud.Response
	err   error
}

func (f *fakeResponder) Send(_ context.Context, text string, opts cloud.SendOptions) (*cloud.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fixture struct {
	sess      *Session
	slots     *storage.MemorySlots
	client    *cloud.Client
	responder *fakeResponder
}

var fixedNow = time.Date(2026, 1, 5, 9, 7, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg, err := prompt.LoadBuiltin()
	require.NoError(t, err)
	engine := prompt.NewEngine(reg)

	nop := zerolog.Nop()
	slots := storage.NewMemorySlots()
	client := cloud.NewClient("", engine).WithLogger(nop)
	responder := &fakeResponder{resp: &cloud.Response{
		Content: "Ciao! Come posso aiutarti oggi? 👋",
		Model:   "mistral-large-latest",
		Usage:   cloud.Usage{TotalTokens: 12},
	}}

	sess, err := New(Deps{
		Client:       client,
		Engine:       engine,
		Conversation: storage.NewConversationStore(slots).WithLogger(nop),
		Credentials:  storage.NewCredentials(slots),
		Usage:        telemetry.NewUsageTracker(slots).WithLogger(nop),
		Responder:    responder,
		Logger:       &nop,
		Now:          func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	require.NoError(t, sess.Start(context.Background()))

	return &fixture{sess: sess, slots: slots, client: client, responder: responder}
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestNew_DefaultsResponderToClient(t *testing.T) {
	reg, err := prompt.LoadBuiltin()
	require.NoError(t, err)
	engine := prompt.NewEngine(reg)
	slots := storage.NewMemorySlots()
	client := cloud.NewClient("", engine)

	sess, err := New(Deps{
		Client:       client,
		Engine:       engine,
		Conversation: storage.NewConversationStore(slots),
		Credentials:  storage.NewCredentials(slots),
		Usage:        telemetry.NewUsageTracker(slots),
	})
	require.NoError(t, err)
	assert.Same(t, client, sess.responder)
}

func TestStart_LoadsCredentialAndHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.sess.SetAPIKey(ctx, "sk-stored"))
	_, err := f.sess.SendMessage(ctx, "Ciao", cloud.SendOptions{})
	require.NoError(t, err)

	// a fresh session over the same slots picks both up
	reg, err := prompt.LoadBuiltin()
	require.NoError(t, err)
	engine := prompt.NewEngine(reg)
	client := cloud.NewClient("", engine)
	sess, err := New(Deps{
		Client:       client,
		Engine:       engine,
		Conversation: storage.NewConversationStore(f.slots),
		Credentials:  storage.NewCredentials(f.slots),
		Usage:        telemetry.NewUsageTracker(f.slots),
	})
	require.NoError(t, err)
	require.NoError(t, sess.Start(ctx))

	assert.True(t, client.IsConfigured())
	assert.Len(t, sess.History(), 2)
}

// =============================================================================
// MESSAGING
// =============================================================================

func TestSendMessage_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	opts := cloud.SendOptions{Persona: "creative", Tone: "playful"}
	reply, err := f.sess.SendMessage(ctx, "Ciao", opts)
	require.NoError(t, err)

	assert.Equal(t, model.RoleAssistant, reply.Message.Sender)
	assert.Equal(t, "Ciao! Come posso aiutarti oggi? 👋", reply.Message.Content)
	assert.Equal(t, 12, reply.Response.Usage.TotalTokens)
	assert.Equal(t, []string{"Ciao"}, f.responder.texts)
	assert.Equal(t, []cloud.SendOptions{opts}, f.responder.opts)

	history := f.sess.History()
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleUser, history[0].Sender)
	assert.Equal(t, "Ciao", history[0].Content)
	assert.True(t, history[0].Timestamp.Equal(fixedNow))
	assert.Equal(t, model.RoleAssistant, history[1].Sender)
	assert.False(t, history[1].Error)

	// the log is persisted on every append
	raw, err := f.slots.Get(ctx, storage.SlotConversation)
	require.NoError(t, err)
	var persisted []model.ChatMessage
	require.NoError(t, json.Unmarshal(raw, &persisted))
	assert.Len(t, persisted, 2)
}

func TestSendMessage_Empty(t *testing.T) {
	f := newFixture(t)
	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := f.sess.SendMessage(context.Background(), text, cloud.SendOptions{})
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}
	assert.Empty(t, f.sess.History())
	assert.Empty(t, f.responder.texts)
}

func TestSendMessage_Failure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"missing key", &cloud.Error{Kind: cloud.KindMissingCredential}, cloud.KindMissingCredential.UserMessage()},
		{"rate limited", &cloud.Error{Kind: cloud.KindRateLimited, Status: 429}, cloud.KindRateLimited.UserMessage()},
		{"unknown with message", &cloud.Error{Kind: cloud.KindUnknown, Status: 400, Message: "Invalid model"}, "Errore Mistral AI: Invalid model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.responder.err = tt.err

			reply, err := f.sess.SendMessage(context.Background(), "Ciao", cloud.SendOptions{})
			assert.Nil(t, reply)
			assert.ErrorIs(t, err, tt.err)

			history := f.sess.History()
			require.Len(t, history, 2)
			assert.Equal(t, "Ciao", history[0].Content)
			assert.Equal(t, model.RoleSystem, history[1].Sender)
			assert.True(t, history[1].Error)
			assert.Equal(t, tt.want, history[1].Content)
		})
	}
}

func TestClearHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.sess.SendMessage(ctx, "Ciao", cloud.SendOptions{})
	require.NoError(t, err)

	require.NoError(t, f.sess.ClearHistory(ctx))
	assert.Empty(t, f.sess.History())

	_, err = f.slots.Get(ctx, storage.SlotConversation)
	assert.ErrorIs(t, err, storage.ErrSlotNotFound)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.sess.SendMessage(ctx, "Ciao", cloud.SendOptions{})
	require.NoError(t, err)

	dir := t.TempDir()
	path, err := f.sess.Export("json", &export.Options{
		OutputDir: dir,
		Location:  time.UTC,
		Now:       func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "conversation_20260105_090700.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc export.ChatExport
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 2, doc.MessageCount)
	assert.Equal(t, "bot", doc.Messages[1].Type)

	_, err = f.sess.Export("pdf", nil)
	assert.Error(t, err)
}

// =============================================================================
// CREDENTIAL
// =============================================================================

func TestSetAPIKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ok, err := f.sess.HasValidAPIKey(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "none", f.sess.KeyFingerprint())

	require.NoError(t, f.sess.SetAPIKey(ctx, " sk-new "))
	ok, err = f.sess.HasValidAPIKey(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.client.IsConfigured())
	assert.Equal(t, cloud.Fingerprint("sk-new"), f.sess.KeyFingerprint())

	require.NoError(t, f.sess.SetAPIKey(ctx, ""))
	ok, err = f.sess.HasValidAPIKey(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, f.client.IsConfigured())
}

func TestTestConnection_MissingKey(t *testing.T) {
	f := newFixture(t)
	ok, err := f.sess.TestConnection(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, cloud.ErrMissingCredential)
}

func TestAvailableModels_Fallback(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, model.FallbackModels(), f.sess.AvailableModels(context.Background()))
}

// =============================================================================
// USAGE / TEMPLATES / STATUS
// =============================================================================

func TestUsage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tracker := telemetry.NewUsageTracker(f.slots)
	require.NoError(t, tracker.Record(ctx, 40))

	stats, err := f.sess.UsageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Requests)
	assert.Equal(t, int64(40), stats.TokensUsed)

	require.NoError(t, f.sess.ResetUsage(ctx))
	stats, err = f.sess.UsageStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Requests)
}

func TestTemplatesAndPersonas(t *testing.T) {
	f := newFixture(t)

	templates := f.sess.ListTemplates()
	require.NotEmpty(t, templates)
	keys := make([]string, len(templates))
	for i, tpl := range templates {
		keys[i] = tpl.Key
	}
	assert.Contains(t, keys, "email_formal")
	assert.IsIncreasing(t, keys)

	personas := f.sess.ListPersonas()
	require.Len(t, personas, 3)
	assert.Equal(t, "analytical", personas[0].Key)

	rendered, err := f.sess.Render("email_formal", prompt.Variables{"recipient_name": "Rossi"}, "professional", "formal")
	require.NoError(t, err)
	assert.Contains(t, rendered.Text, "Rossi")

	_, err = f.sess.Render("nope", nil, "", "")
	assert.True(t, errors.Is(err, prompt.ErrTemplateNotFound))
}

func TestGetStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.sess.SendMessage(ctx, "Ciao", cloud.SendOptions{})
	require.NoError(t, err)

	st := f.sess.GetStatus()
	assert.Equal(t, "sess_20260105_090700", st.SessionID)
	assert.Equal(t, 2, st.Messages)
	assert.Equal(t, "mistral-large-latest", st.Model)
	assert.False(t, st.Configured)
	assert.Zero(t, st.Duration)
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		42 * time.Second:               "42s",
		5 * time.Minute:                "5m",
		5*time.Minute + 30*time.Second: "5m 30s",
	}
	for d, want := range tests {
		assert.Equal(t, want, FormatDuration(d))
	}
}
