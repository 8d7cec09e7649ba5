// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessage(t *testing.T) {
	before := time.Now()
	msg := NewUserMessage("Ciao")

	if msg.ID == "" {
		t.Error("expected a generated ID")
	}
	if msg.Sender != RoleUser {
		t.Errorf("Sender = %q, want user", msg.Sender)
	}
	if msg.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp should be UTC, got %v", msg.Timestamp.Location())
	}
	if msg.Timestamp.Before(before.Add(-time.Second)) {
		t.Errorf("Timestamp %v is too old", msg.Timestamp)
	}
	if msg.Error {
		t.Error("user message should not be an error")
	}

	other := NewUserMessage("Ciao")
	if other.ID == msg.ID {
		t.Error("IDs should be unique")
	}
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage("API Key non valida. Verifica la tua chiave Mistral AI.")
	if msg.Sender != RoleSystem || !msg.Error {
		t.Errorf("got sender=%q error=%v, want system error", msg.Sender, msg.Error)
	}
}

func TestChatMessage_JSONTimestampIsISO(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 30, 0, 123000000, time.FixedZone("CET", 3600))
	msg := NewMessageAt(RoleAssistant, "Risposta", ts)

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"timestamp":"2026-03-01T09:30:00.123Z"`) {
		t.Errorf("unexpected JSON: %s", data)
	}
	if strings.Contains(string(data), `"error"`) {
		t.Errorf("error flag should be omitted when false: %s", data)
	}
}

func TestChatMessage_Preview(t *testing.T) {
	msg := NewUserMessage("Buongiorno a tutti quanti")
	if got := msg.Preview(10); got != "Buongio..." {
		t.Errorf("Preview = %q", got)
	}
	if got := msg.Preview(100); got != msg.Content {
		t.Errorf("Preview should keep short content, got %q", got)
	}
}

func TestCloneMessages(t *testing.T) {
	orig := []ChatMessage{NewUserMessage("a"), NewAssistantMessage("b")}
	clone := CloneMessages(orig)
	clone[0].Content = "changed"
	if orig[0].Content != "a" {
		t.Error("clone shares backing array with original")
	}
	if got := CloneMessages(nil); got == nil || len(got) != 0 {
		t.Errorf("CloneMessages(nil) = %#v, want empty slice", got)
	}
}

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRole(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleSystem} {
		if !r.Valid() {
			t.Errorf("%q should be valid", r)
		}
		if r.DisplayName() == "" {
			t.Errorf("%q has no display name", r)
		}
	}
	if Role("tool").Valid() {
		t.Error("tool is not a chat role")
	}
}

// =============================================================================
// MODEL INFO TESTS
// =============================================================================

func TestFallbackModels(t *testing.T) {
	models := FallbackModels()
	if len(models) != 3 {
		t.Fatalf("expected 3 fallback models, got %d", len(models))
	}
	if models[0].ID != DefaultModel {
		t.Errorf("first fallback should be %s, got %s", DefaultModel, models[0].ID)
	}
	models[0].ID = "mutated"
	if FallbackModels()[0].ID != DefaultModel {
		t.Error("FallbackModels must return a copy")
	}
	if got := (ModelInfo{ID: "open-mistral-nemo"}).DisplayName(); got != "open-mistral-nemo" {
		t.Errorf("DisplayName = %q", got)
	}
}
