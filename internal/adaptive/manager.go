package adaptive

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Level is a strategy's current adaptation level
type Level string

const (
	LevelNormal  Level = "NORMAL"
	LevelReduced Level = "REDUCED"
	LevelPaused  Level = "PAUSED"
)

// AdaptationLog persists level transitions for audit
type AdaptationLog interface {
	LogAdaptation(ctx context.Context, strategy string, oldLevel, newLevel Level, losses int, reason string) error
}

// Config holds the throttle thresholds
type Config struct {
	ReduceAfter     int `json:"reduce_after"`      // consecutive losses before REDUCED
	PauseAfter      int `json:"pause_after"`       // consecutive losses before PAUSED
	ReducedMinStars int `json:"reduced_min_stars"` // minimum star rating allowed while REDUCED
}

// DefaultConfig returns the standard thresholds
func DefaultConfig() Config {
	return Config{
		ReduceAfter:     3,
		PauseAfter:      5,
		ReducedMinStars: 5,
	}
}

type strategyState struct {
	losses int
	level  Level
}

// Manager throttles strategies that are on a losing streak.
//
// Each strategy moves NORMAL -> REDUCED -> PAUSED as consecutive losses
// accumulate; any winning trade resets it to NORMAL. Strategies with no
// recorded exits are NORMAL by default.
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	state  map[string]*strategyState
	alog   AdaptationLog
	logger zerolog.Logger
}

// NewManager creates a manager with the given thresholds.
// alog may be nil (transitions are then only logged).
func NewManager(cfg Config, alog AdaptationLog, logger zerolog.Logger) *Manager {
	if cfg.ReduceAfter <= 0 {
		cfg.ReduceAfter = 3
	}
	if cfg.PauseAfter <= cfg.ReduceAfter {
		cfg.PauseAfter = cfg.ReduceAfter + 2
	}
	if cfg.ReducedMinStars <= 0 {
		cfg.ReducedMinStars = 5
	}
	return &Manager{
		cfg:    cfg,
		state:  make(map[string]*strategyState),
		alog:   alog,
		logger: logger.With().Str("component", "AdaptiveManager").Logger(),
	}
}

// OnTradeExit updates a strategy's streak from a trade result
func (m *Manager) OnTradeExit(ctx context.Context, strategy string, pnl float64) {
	m.mu.Lock()

	st, ok := m.state[strategy]
	if !ok {
		st = &strategyState{level: LevelNormal}
		m.state[strategy] = st
	}

	oldLevel := st.level
	if pnl >= 0 {
		st.losses = 0
		st.level = LevelNormal
	} else {
		st.losses++
		switch {
		case st.losses >= m.cfg.PauseAfter:
			st.level = LevelPaused
		case st.losses >= m.cfg.ReduceAfter:
			st.level = LevelReduced
		}
	}
	newLevel := st.level
	losses := st.losses
	m.mu.Unlock()

	if newLevel == oldLevel {
		return
	}

	reason := fmt.Sprintf("%d consecutive losses", losses)
	if newLevel == LevelNormal {
		reason = "winning trade reset streak"
	}

	m.logger.Info().
		Str("strategy", strategy).
		Str("old_level", string(oldLevel)).
		Str("new_level", string(newLevel)).
		Int("losses", losses).
		Msg("Strategy adaptation level changed")

	if m.alog != nil {
		if err := m.alog.LogAdaptation(ctx, strategy, oldLevel, newLevel, losses, reason); err != nil {
			m.logger.Error().Err(err).Str("strategy", strategy).Msg("Failed to persist adaptation")
		}
	}
}

// ShouldAllowSignal enforces the current level for a strategy:
// NORMAL allows everything, REDUCED only ratings at or above the raised
// floor, PAUSED nothing.
func (m *Manager) ShouldAllowSignal(strategy string, starRating int) bool {
	switch m.Level(strategy) {
	case LevelPaused:
		return false
	case LevelReduced:
		return starRating >= m.cfg.ReducedMinStars
	default:
		return true
	}
}

// Level returns a strategy's current adaptation level
func (m *Manager) Level(strategy string) Level {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.state[strategy]; ok {
		return st.level
	}
	return LevelNormal
}

// Levels returns a snapshot of all non-NORMAL strategies
func (m *Manager) Levels() map[string]Level {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Level, len(m.state))
	for name, st := range m.state {
		out[name] = st.level
	}
	return out
}

// ResetDaily clears all per-strategy state at the start of a trading day
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	m.state = make(map[string]*strategyState)
	m.mu.Unlock()

	m.logger.Info().Msg("Adaptive manager reset for new trading day")
}
