package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"market-scanner-bot/internal/adaptive"
	"market-scanner-bot/internal/circuit"
	"market-scanner-bot/internal/confidence"
	"market-scanner-bot/internal/events"
	"market-scanner-bot/internal/models"
	"market-scanner-bot/internal/strategy"
)

// DataProvider supplies per-symbol market snapshots to the strategy
// and exit-monitor stages.
type DataProvider interface {
	Snapshot(ctx context.Context, symbol string) (strategy.MarketData, error)
}

// RegimeClassifier derives per-cycle modifiers from market conditions
type RegimeClassifier interface {
	Classify(ctx context.Context, now time.Time) (*models.RegimeModifiers, error)
}

// Scorer computes a composite score for a confirmed candidate
type Scorer interface {
	Score(c models.CandidateSignal, conf models.ConfirmationResult, regime *models.RegimeModifiers) float64
}

// DuplicateChecker filters candidates already signalled recently
type DuplicateChecker interface {
	IsDuplicate(ctx context.Context, c models.CandidateSignal) (bool, error)
}

// PositionProvider lists open positions for exit monitoring
type PositionProvider interface {
	OpenPositions(ctx context.Context) ([]models.OpenPosition, error)
}

// GateStage decides whether the cycle accepts new signals. It never
// aborts the cycle; downstream stages observe AcceptingSignals.
type GateStage struct {
	breaker *circuit.Breaker
	logger  zerolog.Logger
}

func NewGateStage(breaker *circuit.Breaker, logger zerolog.Logger) *GateStage {
	return &GateStage{breaker: breaker, logger: logger.With().Str("stage", "gate").Logger()}
}

func (s *GateStage) Name() string { return "gate" }

func (s *GateStage) Process(ctx context.Context, sc *ScanContext) error {
	if !sc.Phase.IsTradable() {
		sc.AcceptingSignals = false
		s.logger.Debug().Str("phase", string(sc.Phase)).Msg("Market not tradable, gating signals")
		return nil
	}
	if s.breaker != nil && s.breaker.IsActive() {
		sc.AcceptingSignals = false
		s.logger.Warn().Msg("Circuit breaker active, gating signals")
	}
	return nil
}

// RegimeStage attaches regime modifiers when a classifier is wired.
// A nil classifier leaves the context untouched.
type RegimeStage struct {
	classifier RegimeClassifier
	logger     zerolog.Logger
}

func NewRegimeStage(classifier RegimeClassifier, logger zerolog.Logger) *RegimeStage {
	return &RegimeStage{classifier: classifier, logger: logger.With().Str("stage", "regime").Logger()}
}

func (s *RegimeStage) Name() string { return "regime" }

func (s *RegimeStage) Process(ctx context.Context, sc *ScanContext) error {
	if s.classifier == nil {
		return nil
	}
	regime, err := s.classifier.Classify(ctx, sc.Timestamp)
	if err != nil {
		// Regime is advisory. Proceed without modifiers.
		s.logger.Warn().Err(err).Msg("Regime classification failed")
		return nil
	}
	sc.Regime = regime
	return nil
}

// StrategyStage evaluates every enabled, phase-active strategy across
// the watchlist concurrently and merges candidates into the context.
type StrategyStage struct {
	strategies []strategy.Strategy
	provider   DataProvider
	adaptive   *adaptive.Manager
	symbols    func() []string
	logger     zerolog.Logger
}

func NewStrategyStage(strategies []strategy.Strategy, provider DataProvider, manager *adaptive.Manager, symbols func() []string, logger zerolog.Logger) *StrategyStage {
	return &StrategyStage{
		strategies: strategies,
		provider:   provider,
		adaptive:   manager,
		symbols:    symbols,
		logger:     logger.With().Str("stage", "strategies").Logger(),
	}
}

func (s *StrategyStage) Name() string { return "strategies" }

func (s *StrategyStage) Process(ctx context.Context, sc *ScanContext) error {
	if !sc.AcceptingSignals || s.provider == nil {
		return nil
	}

	active := s.activeStrategies(sc)
	if len(active) == 0 {
		return nil
	}

	symbols := s.symbols()
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			data, err := s.provider.Snapshot(ctx, symbol)
			if err != nil {
				s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Snapshot failed, skipping symbol")
				return
			}

			var found []models.CandidateSignal
			for _, strat := range active {
				for _, sig := range strat.Evaluate(data, sc.Phase) {
					if s.permitted(sig, sc) {
						found = append(found, sig)
					}
				}
			}
			if len(found) > 0 {
				mu.Lock()
				sc.Candidates = append(sc.Candidates, found...)
				mu.Unlock()
			}
		}(symbol)
	}
	wg.Wait()

	// Deterministic order regardless of goroutine completion
	sort.Slice(sc.Candidates, func(i, j int) bool {
		a, b := sc.Candidates[i], sc.Candidates[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.Strategy < b.Strategy
	})
	return nil
}

func (s *StrategyStage) activeStrategies(sc *ScanContext) []strategy.Strategy {
	var active []strategy.Strategy
	for _, strat := range s.strategies {
		if len(sc.EnabledStrategies) > 0 && !sc.EnabledStrategies[strat.Name()] {
			continue
		}
		if !strategy.ActiveIn(strat, sc.Phase) {
			continue
		}
		active = append(active, strat)
	}
	return active
}

func (s *StrategyStage) permitted(sig models.CandidateSignal, sc *ScanContext) bool {
	if s.adaptive != nil && !s.adaptive.ShouldAllowSignal(sig.Strategy, sig.StarRating) {
		return false
	}
	if sc.Regime != nil && sc.Regime.MinStarRating > 0 && sig.StarRating < sc.Regime.MinStarRating {
		return false
	}
	return true
}

// ConfidenceStage classifies cross-strategy agreement per symbol
type ConfidenceStage struct {
	detector *confidence.Detector
}

func NewConfidenceStage(detector *confidence.Detector) *ConfidenceStage {
	return &ConfidenceStage{detector: detector}
}

func (s *ConfidenceStage) Name() string { return "confidence" }

func (s *ConfidenceStage) Process(ctx context.Context, sc *ScanContext) error {
	if s.detector == nil || len(sc.Candidates) == 0 {
		return nil
	}
	sc.Confirmations = s.detector.Detect(ctx, sc.Candidates, sc.Timestamp)
	return nil
}

// ScoringStage computes composite scores when a scorer is wired
type ScoringStage struct {
	scorer Scorer
}

func NewScoringStage(scorer Scorer) *ScoringStage {
	return &ScoringStage{scorer: scorer}
}

func (s *ScoringStage) Name() string { return "scoring" }

func (s *ScoringStage) Process(ctx context.Context, sc *ScanContext) error {
	if s.scorer == nil {
		return nil
	}
	for _, c := range sc.Candidates {
		conf := sc.Confirmations[c.Symbol]
		sc.Scores[ScoreKey(c)] = s.scorer.Score(c, conf, sc.Regime)
	}
	return nil
}

// DedupStage drops candidates the checker has seen recently. A checker
// error keeps the candidate; emitting twice beats dropping silently.
type DedupStage struct {
	checker DuplicateChecker
	logger  zerolog.Logger
}

func NewDedupStage(checker DuplicateChecker, logger zerolog.Logger) *DedupStage {
	return &DedupStage{checker: checker, logger: logger.With().Str("stage", "dedup").Logger()}
}

func (s *DedupStage) Name() string { return "dedup" }

func (s *DedupStage) Process(ctx context.Context, sc *ScanContext) error {
	if s.checker == nil || len(sc.Candidates) == 0 {
		return nil
	}

	kept := sc.Candidates[:0]
	for _, c := range sc.Candidates {
		dup, err := s.checker.IsDuplicate(ctx, c)
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", c.Symbol).Msg("Duplicate check failed, keeping candidate")
			kept = append(kept, c)
			continue
		}
		if !dup {
			kept = append(kept, c)
		}
	}
	sc.Candidates = kept
	return nil
}

// RankingStage orders surviving candidates by composite score and
// fills Ranked with 1-based ranks.
type RankingStage struct{}

func NewRankingStage() *RankingStage { return &RankingStage{} }

func (s *RankingStage) Name() string { return "ranking" }

func (s *RankingStage) Process(ctx context.Context, sc *ScanContext) error {
	if len(sc.Candidates) == 0 {
		return nil
	}

	ranked := make([]models.RankedSignal, 0, len(sc.Candidates))
	for _, c := range sc.Candidates {
		score, ok := sc.Scores[ScoreKey(c)]
		if !ok {
			// No scorer wired this cycle. Rank on stars plus boost.
			score = float64(c.StarRating + sc.Confirmations[c.Symbol].StarBoost)
		}
		ranked = append(ranked, models.RankedSignal{CandidateSignal: c, CompositeScore: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompositeScore > ranked[j].CompositeScore
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	sc.Ranked = ranked
	return nil
}

// ExitMonitorStage watches open positions for stop or target crossings
// and publishes exit alerts. It never creates signals.
type ExitMonitorStage struct {
	positions PositionProvider
	provider  DataProvider
	bus       *events.Bus
	logger    zerolog.Logger
}

func NewExitMonitorStage(positions PositionProvider, provider DataProvider, bus *events.Bus, logger zerolog.Logger) *ExitMonitorStage {
	return &ExitMonitorStage{
		positions: positions,
		provider:  provider,
		bus:       bus,
		logger:    logger.With().Str("stage", "exit_monitor").Logger(),
	}
}

func (s *ExitMonitorStage) Name() string { return "exit_monitor" }

func (s *ExitMonitorStage) Process(ctx context.Context, sc *ScanContext) error {
	if s.positions == nil || s.provider == nil {
		return nil
	}

	open, err := s.positions.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("load open positions: %w", err)
	}

	for _, pos := range open {
		data, err := s.provider.Snapshot(ctx, pos.Symbol)
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", pos.Symbol).Msg("Snapshot failed for open position")
			continue
		}
		if trigger := exitTrigger(pos, data.LastPrice); trigger != "" {
			s.logger.Info().
				Str("symbol", pos.Symbol).
				Str("trigger", trigger).
				Float64("last_price", data.LastPrice).
				Msg("Exit level crossed")
			if s.bus != nil {
				s.bus.Emit(events.ExitAlertEvent{
					Position:  pos,
					LastPrice: data.LastPrice,
					Trigger:   trigger,
					At:        sc.Timestamp,
				})
			}
		}
	}
	return nil
}

func exitTrigger(pos models.OpenPosition, lastPrice float64) string {
	if lastPrice <= 0 {
		return ""
	}
	switch pos.Direction {
	case models.DirectionLong:
		if lastPrice <= pos.StopLoss {
			return "stop_loss"
		}
		if lastPrice >= pos.Target {
			return "target"
		}
	case models.DirectionShort:
		if lastPrice >= pos.StopLoss {
			return "stop_loss"
		}
		if lastPrice <= pos.Target {
			return "target"
		}
	}
	return ""
}

// DiagnosticsStage records a per-cycle summary line
type DiagnosticsStage struct {
	logger zerolog.Logger
}

func NewDiagnosticsStage(logger zerolog.Logger) *DiagnosticsStage {
	return &DiagnosticsStage{logger: logger.With().Str("stage", "diagnostics").Logger()}
}

func (s *DiagnosticsStage) Name() string { return "diagnostics" }

func (s *DiagnosticsStage) Process(ctx context.Context, sc *ScanContext) error {
	evt := s.logger.Info().
		Str("cycle_id", sc.CycleID).
		Str("phase", string(sc.Phase)).
		Bool("accepting_signals", sc.AcceptingSignals).
		Int("candidates", len(sc.Candidates)).
		Int("confirmed_symbols", len(sc.Confirmations)).
		Int("ranked", len(sc.Ranked))
	if sc.Regime != nil {
		evt = evt.Str("regime", sc.Regime.Regime)
	}
	evt.Msg("Cycle diagnostics")
	return nil
}
