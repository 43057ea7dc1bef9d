package circuit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"market-scanner-bot/internal/events"
)

// ErrNotTripped is returned when an override is attempted while the
// breaker is not tripped.
var ErrNotTripped = errors.New("circuit breaker is not tripped")

// SLHit records one stop-loss exit counted against the daily limit
type SLHit struct {
	Symbol   string    `json:"symbol"`
	Strategy string    `json:"strategy"`
	PnL      float64   `json:"pnl"`
	At       time.Time `json:"at"`
}

// ActivationStore persists breaker activations and overrides.
// LogOverride must fail with a not-found error when no activation
// exists for the day.
type ActivationStore interface {
	LogActivation(ctx context.Context, day time.Time, hits []SLHit, totalLoss float64) error
	LogOverride(ctx context.Context, day time.Time) error
	LogResume(ctx context.Context, day time.Time) error
}

// Breaker halts new signal acceptance after a configured number of
// stop-loss hits in a single trading day.
//
// State machine: NORMAL -> TRIPPED -> OVERRIDDEN -> (daily reset) -> NORMAL.
// A one-time warning alert fires at limit-1 hits. Override is sticky:
// once overridden, further hits in the same day never re-trip.
type Breaker struct {
	mu         sync.Mutex
	limit      int
	count      int
	active     bool
	overridden bool
	warned     bool
	hits       []SLHit

	store  ActivationStore
	bus    *events.Bus
	logger zerolog.Logger
}

// NewBreaker creates a breaker with the given daily stop-loss limit.
// store may be nil (activations are then only logged).
func NewBreaker(limit int, store ActivationStore, bus *events.Bus, logger zerolog.Logger) *Breaker {
	if limit < 1 {
		limit = 1
	}
	return &Breaker{
		limit:  limit,
		store:  store,
		bus:    bus,
		logger: logger.With().Str("component", "CircuitBreaker").Logger(),
	}
}

// OnSLHit records a stop-loss exit. At limit-1 hits a warning alert is
// emitted once; at the limit the breaker trips, persists an activation
// record and emits a detailed alert.
func (b *Breaker) OnSLHit(ctx context.Context, symbol, strategy string, pnl float64) {
	b.mu.Lock()

	b.count++
	b.hits = append(b.hits, SLHit{
		Symbol:   symbol,
		Strategy: strategy,
		PnL:      pnl,
		At:       time.Now(),
	})

	b.logger.Warn().
		Str("symbol", symbol).
		Str("strategy", strategy).
		Float64("pnl", pnl).
		Int("count", b.count).
		Int("limit", b.limit).
		Msg("Stop-loss hit recorded")

	var warn, trip bool
	if b.count == b.limit-1 && !b.warned {
		b.warned = true
		warn = true
	}
	if b.count >= b.limit && !b.active && !b.overridden {
		b.active = true
		trip = true
	}

	hits := make([]SLHit, len(b.hits))
	copy(hits, b.hits)
	b.mu.Unlock()

	if warn {
		b.emitWarning()
	}
	if trip {
		b.trip(ctx, hits)
	}
}

// emitWarning sends the one-time approaching-limit alert
func (b *Breaker) emitWarning() {
	b.logger.Warn().Int("limit", b.limit).Msg("One stop-loss away from circuit breaker limit")
	if b.bus != nil {
		b.bus.Emit(events.AlertMessageEvent{
			Title:    "Circuit Breaker Warning",
			Message:  fmt.Sprintf("One more stop-loss hit will halt new signals for the day (limit %d)", b.limit),
			Severity: "warning",
			At:       time.Now(),
		})
	}
}

// trip persists the activation and emits the detailed trip alert
func (b *Breaker) trip(ctx context.Context, hits []SLHit) {
	totalLoss := 0.0
	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		totalLoss += h.PnL
		lines = append(lines, fmt.Sprintf("%s (%s): %.2f", h.Symbol, h.Strategy, h.PnL))
	}

	b.logger.Error().
		Int("hits", len(hits)).
		Float64("total_loss", totalLoss).
		Msg("Circuit breaker tripped, halting new signals")

	if b.store != nil {
		if err := b.store.LogActivation(ctx, dayOf(time.Now()), hits, totalLoss); err != nil {
			b.logger.Error().Err(err).Msg("Failed to persist breaker activation")
		}
	}

	if b.bus != nil {
		b.bus.Emit(events.AlertMessageEvent{
			Title: "Circuit Breaker Tripped",
			Message: fmt.Sprintf("%d stop-loss hits today, total loss %.2f. No new signals until override or next day.\n%s",
				len(hits), totalLoss, strings.Join(lines, "\n")),
			Severity: "critical",
			At:       time.Now(),
		})
	}
}

// Override disables a tripped breaker for the rest of the day.
// Returns ErrNotTripped without changing state when the breaker is not
// currently tripped. Persistence failures (including a missing
// activation record) surface to the caller.
func (b *Breaker) Override(ctx context.Context) error {
	b.mu.Lock()
	if !b.active {
		b.mu.Unlock()
		return ErrNotTripped
	}
	b.active = false
	b.overridden = true
	b.mu.Unlock()

	b.logger.Warn().Msg("Circuit breaker manually overridden for the day")

	if b.store != nil {
		if err := b.store.LogOverride(ctx, dayOf(time.Now())); err != nil {
			return fmt.Errorf("persist breaker override: %w", err)
		}
	}
	return nil
}

// ResetDaily returns the breaker to NORMAL. Must be called exactly once
// at the start of each trading day.
func (b *Breaker) ResetDaily() {
	b.mu.Lock()
	b.count = 0
	b.active = false
	b.overridden = false
	b.warned = false
	b.hits = nil
	b.mu.Unlock()

	b.logger.Info().Msg("Circuit breaker reset for new trading day")
}

// IsActive reports whether the breaker currently blocks new signals
func (b *Breaker) IsActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Stats is a read-only snapshot of breaker state
type Stats struct {
	Count      int     `json:"count"`
	Limit      int     `json:"limit"`
	Active     bool    `json:"active"`
	Overridden bool    `json:"overridden"`
	TotalLoss  float64 `json:"total_loss"`
	Hits       []SLHit `json:"hits"`
}

// Snapshot returns the current breaker state
func (b *Breaker) Snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	hits := make([]SLHit, len(b.hits))
	copy(hits, b.hits)
	total := 0.0
	for _, h := range hits {
		total += h.PnL
	}
	return Stats{
		Count:      b.count,
		Limit:      b.limit,
		Active:     b.active,
		Overridden: b.overridden,
		TotalLoss:  total,
		Hits:       hits,
	}
}

// dayOf truncates a timestamp to its calendar day
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
