package pipeline

import (
	"time"

	"github.com/google/uuid"

	"market-scanner-bot/internal/models"
)

// ScanContext is the shared mutable state of one scan cycle. Stages
// read what earlier stages wrote and append their own results. It is
// never reused across cycles.
type ScanContext struct {
	CycleID   string
	Timestamp time.Time
	Phase     models.MarketPhase

	// AcceptingSignals is cleared by the gate stage when risk controls
	// forbid new entries. Later stages still run for diagnostics.
	AcceptingSignals bool

	// EnabledStrategies restricts which strategies evaluate this cycle.
	// Empty means all registered strategies.
	EnabledStrategies map[string]bool

	Candidates    []models.CandidateSignal
	Confirmations map[string]models.ConfirmationResult
	Scores        map[string]float64 // keyed by symbol|strategy
	Ranked        []models.RankedSignal
	Regime        *models.RegimeModifiers
}

// NewScanContext creates a fresh context for one cycle
func NewScanContext(now time.Time, phase models.MarketPhase) *ScanContext {
	return &ScanContext{
		CycleID:          uuid.NewString(),
		Timestamp:        now,
		Phase:            phase,
		AcceptingSignals: true,
		Confirmations:    make(map[string]models.ConfirmationResult),
		Scores:           make(map[string]float64),
	}
}

// ScoreKey builds the Scores map key for a candidate
func ScoreKey(c models.CandidateSignal) string {
	return c.Symbol + "|" + c.Strategy
}
