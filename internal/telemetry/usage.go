// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/tauros/internal/logging"
	"github.com/jeranaias/tauros/internal/storage"
)

// =============================================================================
// USAGE STATS
// =============================================================================

// UsageStats are the running API counters. They only grow until Reset.
type UsageStats struct {
	Requests   int64     `json:"requests"`
	TokensUsed int64     `json:"tokens_used"`
	LastReset  time.Time `json:"last_reset"`
}

// AverageTokens returns tokens per request, 0 before the first request.
func (s UsageStats) AverageTokens() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.TokensUsed) / float64(s.Requests)
}

// =============================================================================
// USAGE TRACKER
// =============================================================================

// UsageTracker persists UsageStats in the usage slot.
type UsageTracker struct {
	slots  storage.Slots
	now    func() time.Time
	logger zerolog.Logger

	// Serializes read-modify-write cycles on the slot.
	mu sync.Mutex
}

// NewUsageTracker returns a tracker backed by slots.
func NewUsageTracker(slots storage.Slots) *UsageTracker {
	return &UsageTracker{
		slots:  slots,
		now:    time.Now,
		logger: logging.Component("usage"),
	}
}

// WithClock overrides the time source used for LastReset.
func (u *UsageTracker) WithClock(now func() time.Time) *UsageTracker {
	u.now = now
	return u
}

// WithLogger replaces the tracker's logger.
func (u *UsageTracker) WithLogger(logger zerolog.Logger) *UsageTracker {
	u.logger = logger
	return u
}

// Stats returns the current counters. When nothing has been recorded yet the
// counters are zero and LastReset is the zero time.
func (u *UsageTracker) Stats(ctx context.Context) (UsageStats, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.load(ctx)
}

// Record counts one successful request and adds tokens to the total.
// Negative token counts add nothing.
func (u *UsageTracker) Record(ctx context.Context, tokens int) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	stats, err := u.load(ctx)
	if err != nil {
		return err
	}
	if stats.LastReset.IsZero() {
		stats.LastReset = u.now().UTC()
	}
	stats.Requests++
	if tokens > 0 {
		stats.TokensUsed += int64(tokens)
	}
	if err := storage.PutJSON(ctx, u.slots, storage.SlotUsageStats, stats); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	u.logger.Debug().Int("tokens", tokens).Int64("requests", stats.Requests).Int64("total_tokens", stats.TokensUsed).Msg("Usage recorded")
	return nil
}

// Reset zeroes the counters and stamps LastReset.
func (u *UsageTracker) Reset(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	stats := UsageStats{LastReset: u.now().UTC()}
	if err := storage.PutJSON(ctx, u.slots, storage.SlotUsageStats, stats); err != nil {
		return fmt.Errorf("reset usage: %w", err)
	}
	u.logger.Info().Msg("Usage stats reset")
	return nil
}

// load reads the persisted counters. An absent slot and an undecodable one
// both start from zero; the first Record stamps LastReset.
func (u *UsageTracker) load(ctx context.Context) (UsageStats, error) {
	var stats UsageStats
	err := storage.GetJSON(ctx, u.slots, storage.SlotUsageStats, &stats)
	switch {
	case errors.Is(err, storage.ErrSlotNotFound):
		return UsageStats{}, nil
	case errors.Is(err, storage.ErrSlotCorrupt):
		u.logger.Warn().Err(err).Msg("Discarding corrupt usage stats")
		return UsageStats{}, nil
	case err != nil:
		return UsageStats{}, fmt.Errorf("load usage: %w", err)
	}
	return stats, nil
}
