// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/tauros/internal/cloud"
)

func newTestSimulator(minDelay, maxDelay time.Duration, pick int) (*Simulator, *[]time.Duration) {
	var slept []time.Duration
	s := NewSimulator(minDelay, maxDelay).WithLogger(zerolog.Nop())
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	s.intN = func(n int) int {
		if pick >= n {
			return n - 1
		}
		return pick
	}
	return s, &slept
}

func TestSimulator_KeywordReplies(t *testing.T) {
	s, _ := newTestSimulator(0, 0, 0)

	tests := []struct {
		message string
		want    string
	}{
		{"Ciao a tutti", "Ciao! Come posso aiutarti oggi? 👋"},
		{"SALVE", "Ciao! Come posso aiutarti oggi? 👋"},
		{"Come stai?", "Sto bene, grazie! Sono qui e pronto a chattare con te. 😊"},
		{"mi serve aiuto", "Sono qui per aiutarti! Puoi scrivermi qualsiasi cosa e io farò del mio meglio per rispondere. Supporto anche il **markdown** e gli emoji! 🎉"},
		{"help", "Sono qui per aiutarti! Puoi scrivermi qualsiasi cosa e io farò del mio meglio per rispondere. Supporto anche il **markdown** e gli emoji! 🎉"},
		{"Grazie mille", "Prego! È sempre un piacere aiutare. 😊"},
		// greeting wins over later keywords
		{"ciao, grazie", "Ciao! Come posso aiutarti oggi? 👋"},
	}

	for _, tc := range tests {
		t.Run(tc.message, func(t *testing.T) {
			if got := s.Reply(tc.message); got != tc.want {
				t.Errorf("Reply(%q) = %q, want %q", tc.message, got, tc.want)
			}
		})
	}
}

func TestSimulator_GenericReplies(t *testing.T) {
	for i, want := range genericReplies {
		s, _ := newTestSimulator(0, 0, i)
		if got := s.Reply("parliamo di Go"); got != want {
			t.Errorf("Reply with pick %d = %q, want %q", i, got, want)
		}
	}
}

func TestSimulator_Send(t *testing.T) {
	s, slept := newTestSimulator(time.Second, 3*time.Second, 500)
	fixed := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	resp, err := s.Send(context.Background(), "ciao", cloud.SendOptions{Persona: "creative"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp.Content != "Ciao! Come posso aiutarti oggi? 👋" {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.Model != SimulatorModel {
		t.Errorf("Model = %q, want %q", resp.Model, SimulatorModel)
	}
	if !resp.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", resp.Timestamp, fixed)
	}
	if len(*slept) != 1 || (*slept)[0] != time.Second+500 {
		t.Errorf("slept %v, want one delay of 1s+500ns", *slept)
	}
}

func TestSimulator_DelayBounds(t *testing.T) {
	s := NewSimulator(time.Second, 3*time.Second)
	for i := 0; i < 200; i++ {
		d := s.typingDelay()
		if d < time.Second || d > 3*time.Second {
			t.Fatalf("typingDelay() = %v, outside [1s, 3s]", d)
		}
	}

	swapped := NewSimulator(3*time.Second, time.Second)
	if swapped.minDelay != time.Second || swapped.maxDelay != 3*time.Second {
		t.Errorf("bounds not normalized: [%v, %v]", swapped.minDelay, swapped.maxDelay)
	}

	fixed := NewSimulator(2*time.Second, 2*time.Second)
	if d := fixed.typingDelay(); d != 2*time.Second {
		t.Errorf("typingDelay() = %v, want 2s", d)
	}
}

func TestSimulator_Cancelled(t *testing.T) {
	s := NewSimulator(time.Hour, time.Hour).WithLogger(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Send(ctx, "ciao", cloud.SendOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Send on cancelled context = %v, want context.Canceled", err)
	}
}
