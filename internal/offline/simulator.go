// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/tauros/internal/cloud"
	"github.com/jeranaias/tauros/internal/logging"
)

// SimulatorModel is reported as the model of simulated replies.
const SimulatorModel = "tauros-offline"

// Default typing delay bounds.
const (
	DefaultMinDelay = 1000 * time.Millisecond
	DefaultMaxDelay = 3000 * time.Millisecond
)

// keywordReplies are checked in order against the lower-cased message.
var keywordReplies = []struct {
	keywords []string
	reply    string
}{
	{[]string{"ciao", "salve"}, "Ciao! Come posso aiutarti oggi? 👋"},
	{[]string{"come stai"}, "Sto bene, grazie! Sono qui e pronto a chattare con te. 😊"},
	{[]string{"aiuto", "help"}, "Sono qui per aiutarti! Puoi scrivermi qualsiasi cosa e io farò del mio meglio per rispondere. Supporto anche il **markdown** e gli emoji! 🎉"},
	{[]string{"grazie"}, "Prego! È sempre un piacere aiutare. 😊"},
}

var genericReplies = []string{
	"Interessante! Puoi dirmi di più?",
	"Capisco il tuo punto di vista. 🤔",
	"Grazie per aver condiviso questo con me!",
	"Hmm, lasciami pensare... 💭",
	"Ottima domanda! Ecco cosa penso...",
	"Mi fa piacere chattare con te! 😊",
	"Questo è un argomento affascinante.",
	"Puoi spiegarmi meglio questo concetto?",
	"Hai sollevato un punto molto valido.",
	"Mi piace il modo in cui pensi! 🚀",
}

// Simulator answers chat messages locally after a short "typing" pause.
// It never touches the network.
type Simulator struct {
	minDelay time.Duration
	maxDelay time.Duration

	sleep  func(ctx context.Context, d time.Duration) error
	intN   func(n int) int
	now    func() time.Time
	logger zerolog.Logger
}

// NewSimulator creates a simulator with a typing delay drawn from
// [minDelay, maxDelay]. Bounds are swapped if given in the wrong order.
func NewSimulator(minDelay, maxDelay time.Duration) *Simulator {
	if minDelay < 0 {
		minDelay = 0
	}
	if maxDelay < minDelay {
		minDelay, maxDelay = maxDelay, minDelay
		if minDelay < 0 {
			minDelay = 0
		}
	}
	return &Simulator{
		minDelay: minDelay,
		maxDelay: maxDelay,
		sleep:    sleepContext,
		intN:     rand.Intn,
		now:      time.Now,
		logger:   logging.Component("offline"),
	}
}

// WithLogger replaces the simulator's logger.
func (s *Simulator) WithLogger(logger zerolog.Logger) *Simulator {
	s.logger = logger
	return s
}

// Send waits for the typing delay and returns a canned reply. Options are
// accepted for interface compatibility and ignored.
func (s *Simulator) Send(ctx context.Context, text string, _ cloud.SendOptions) (*cloud.Response, error) {
	delay := s.typingDelay()
	s.logger.Debug().Dur("delay", delay).Msg("Simulating reply")
	if err := s.sleep(ctx, delay); err != nil {
		return nil, err
	}

	return &cloud.Response{
		Content:      s.Reply(text),
		Model:        SimulatorModel,
		Timestamp:    s.now().UTC(),
		FinishReason: "stop",
	}, nil
}

// Reply picks the answer for message without waiting.
func (s *Simulator) Reply(message string) string {
	lower := strings.ToLower(message)
	for _, kr := range keywordReplies {
		for _, kw := range kr.keywords {
			if strings.Contains(lower, kw) {
				return kr.reply
			}
		}
	}
	return genericReplies[s.intN(len(genericReplies))]
}

func (s *Simulator) typingDelay() time.Duration {
	spread := s.maxDelay - s.minDelay
	if spread <= 0 {
		return s.minDelay
	}
	// spread fits an int on every supported platform for realistic delays
	return s.minDelay + time.Duration(s.intN(int(spread)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
