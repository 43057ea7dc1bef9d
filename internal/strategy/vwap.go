package strategy

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"market-scanner-bot/internal/models"
)

// VWAPConfig configures the VWAP reversion strategy
type VWAPConfig struct {
	DeviationPercent float64       `json:"deviation_percent"` // distance from VWAP to trigger
	StopPercent      float64       `json:"stop_percent"`
	MaxSignalsPerDay int           `json:"max_signals_per_day"` // per symbol
	Cooldown         time.Duration `json:"cooldown"`            // between signals per symbol
}

// DefaultVWAPConfig returns standard reversion parameters
func DefaultVWAPConfig() VWAPConfig {
	return VWAPConfig{
		DeviationPercent: 1.0,
		StopPercent:      0.5,
		MaxSignalsPerDay: 3,
		Cooldown:         30 * time.Minute,
	}
}

// cooldownEntry tracks per-symbol signal frequency
type cooldownEntry struct {
	Count      int       `json:"count"`
	LastSignal time.Time `json:"last_signal"`
}

// CooldownTracker throttles how often the VWAP strategy may signal the
// same symbol. State survives crashes via Serialize/Restore.
type CooldownTracker struct {
	mu      sync.Mutex
	entries map[string]*cooldownEntry
}

// NewCooldownTracker creates an empty tracker
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{entries: make(map[string]*cooldownEntry)}
}

// Allow reports whether a symbol may signal again under the limits
func (t *CooldownTracker) Allow(symbol string, now time.Time, maxPerDay int, cooldown time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[symbol]
	if !ok {
		return true
	}
	if maxPerDay > 0 && e.Count >= maxPerDay {
		return false
	}
	return now.Sub(e.LastSignal) >= cooldown
}

// Record registers a signal emission for a symbol
func (t *CooldownTracker) Record(symbol string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[symbol]
	if !ok {
		e = &cooldownEntry{}
		t.entries[symbol] = e
	}
	e.Count++
	e.LastSignal = now
}

// Reset clears all cooldown state (trading-day start)
func (t *CooldownTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*cooldownEntry)
}

// Serialize encodes the tracker state for crash recovery
func (t *CooldownTracker) Serialize() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return json.Marshal(t.entries)
}

// Restore replaces the tracker state from serialized data
func (t *CooldownTracker) Restore(data []byte) error {
	entries := make(map[string]*cooldownEntry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("restore cooldown state: %w", err)
	}

	t.mu.Lock()
	t.entries = entries
	t.mu.Unlock()
	return nil
}

// VWAPReversionStrategy signals mean reversion toward VWAP when price
// stretches too far from it. Signal frequency per symbol is throttled
// by the cooldown tracker.
type VWAPReversionStrategy struct {
	config   VWAPConfig
	cooldown *CooldownTracker
}

// NewVWAPReversionStrategy creates a VWAP reversion strategy sharing
// the given cooldown tracker.
func NewVWAPReversionStrategy(config VWAPConfig, cooldown *CooldownTracker) *VWAPReversionStrategy {
	if cooldown == nil {
		cooldown = NewCooldownTracker()
	}
	return &VWAPReversionStrategy{config: config, cooldown: cooldown}
}

func (s *VWAPReversionStrategy) Name() string { return "vwap_reversion" }

func (s *VWAPReversionStrategy) ActivePhases() []models.MarketPhase {
	return []models.MarketPhase{models.PhaseMorning, models.PhaseMidday, models.PhaseClosing}
}

// Cooldown exposes the tracker for persistence wiring
func (s *VWAPReversionStrategy) Cooldown() *CooldownTracker {
	return s.cooldown
}

func (s *VWAPReversionStrategy) Evaluate(data MarketData, phase models.MarketPhase) []models.CandidateSignal {
	if data.LastPrice <= 0 || len(data.Candles) == 0 {
		return nil
	}

	vwap := data.VWAP
	if vwap <= 0 {
		vwap = CalculateVWAP(data.Candles)
	}
	if vwap <= 0 {
		return nil
	}

	now := time.Now()
	if !s.cooldown.Allow(data.Symbol, now, s.config.MaxSignalsPerDay, s.config.Cooldown) {
		return nil
	}

	deviation := (data.LastPrice - vwap) / vwap * 100

	var signal *models.CandidateSignal
	if deviation <= -s.config.DeviationPercent {
		// Stretched below VWAP, expect reversion up
		entry := data.LastPrice
		stop := entry * (1 - s.config.StopPercent/100)
		signal = &models.CandidateSignal{
			Symbol:     data.Symbol,
			Direction:  models.DirectionLong,
			Strategy:   s.Name(),
			EntryPrice: entry,
			StopLoss:   stop,
			Target:     vwap,
			StarRating: starRating(entry, stop, vwap),
			Reason:     fmt.Sprintf("Price %.2f is %.2f%% below VWAP %.2f", entry, -deviation, vwap),
			Timestamp:  now,
		}
	} else if deviation >= s.config.DeviationPercent {
		entry := data.LastPrice
		stop := entry * (1 + s.config.StopPercent/100)
		signal = &models.CandidateSignal{
			Symbol:     data.Symbol,
			Direction:  models.DirectionShort,
			Strategy:   s.Name(),
			EntryPrice: entry,
			StopLoss:   stop,
			Target:     vwap,
			StarRating: starRating(entry, stop, vwap),
			Reason:     fmt.Sprintf("Price %.2f is %.2f%% above VWAP %.2f", entry, deviation, vwap),
			Timestamp:  now,
		}
	}

	if signal == nil {
		return nil
	}

	s.cooldown.Record(data.Symbol, now)
	return []models.CandidateSignal{*signal}
}
