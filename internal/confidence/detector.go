package confidence

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"market-scanner-bot/internal/models"
)

// SignalHistory looks up which strategies recently signalled a symbol
type SignalHistory interface {
	RecentStrategies(ctx context.Context, symbol string, since time.Time) ([]string, error)
}

// Detector classifies multi-strategy agreement per symbol.
//
// Classification depends only on the set of distinct strategy names
// across the current batch and the trailing history window, never on
// arrival order or duplicate counts.
type Detector struct {
	window  time.Duration
	history SignalHistory
	logger  zerolog.Logger
}

// NewDetector creates a detector with the given trailing window.
// history may be nil; classification then uses the batch alone.
func NewDetector(window time.Duration, history SignalHistory, logger zerolog.Logger) *Detector {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Detector{
		window:  window,
		history: history,
		logger:  logger.With().Str("component", "ConfidenceDetector").Logger(),
	}
}

// Detect returns one confirmation result per symbol present in the
// batch. Every candidate for a symbol receives the same result.
func (d *Detector) Detect(ctx context.Context, candidates []models.CandidateSignal, now time.Time) map[string]models.ConfirmationResult {
	bySymbol := make(map[string]map[string]struct{})
	for _, c := range candidates {
		if bySymbol[c.Symbol] == nil {
			bySymbol[c.Symbol] = make(map[string]struct{})
		}
		bySymbol[c.Symbol][c.Strategy] = struct{}{}
	}

	cutoff := now.Add(-d.window)
	results := make(map[string]models.ConfirmationResult, len(bySymbol))

	for symbol, strategies := range bySymbol {
		if d.history != nil {
			recent, err := d.history.RecentStrategies(ctx, symbol, cutoff)
			if err != nil {
				// Degrade to batch-only classification rather than
				// failing the whole cycle.
				d.logger.Warn().Err(err).Str("symbol", symbol).Msg("Signal history lookup failed")
			} else {
				for _, s := range recent {
					strategies[s] = struct{}{}
				}
			}
		}
		results[symbol] = classify(strategies)
	}

	return results
}

// classify maps a distinct-strategy set to a confirmation result
func classify(strategies map[string]struct{}) models.ConfirmationResult {
	names := make([]string, 0, len(strategies))
	for s := range strategies {
		names = append(names, s)
	}
	sort.Strings(names)

	switch len(names) {
	case 0, 1:
		return models.ConfirmationResult{
			Level:          models.ConfirmationSingle,
			Strategies:     names,
			StarBoost:      0,
			SizeMultiplier: 1.0,
		}
	case 2:
		return models.ConfirmationResult{
			Level:          models.ConfirmationDouble,
			Strategies:     names,
			StarBoost:      1,
			SizeMultiplier: 1.5,
		}
	default:
		return models.ConfirmationResult{
			Level:          models.ConfirmationTriple,
			Strategies:     names,
			StarBoost:      2,
			SizeMultiplier: 2.0,
		}
	}
}
