package strategy

import (
	"market-scanner-bot/internal/models"
)

// MarketData is the per-symbol snapshot handed to strategies each cycle
type MarketData struct {
	Symbol    string
	LastPrice float64
	DayOpen   float64
	PrevClose float64
	VWAP      float64
	Candles   []models.Candle // intraday bars, oldest first
}

// Strategy evaluates one symbol's market data and produces zero or
// more candidate signals. Implementations must tolerate transient data
// gaps by returning an empty slice, never an error.
type Strategy interface {
	// Name returns the stable strategy identifier
	Name() string

	// ActivePhases returns the market phases this strategy runs in
	ActivePhases() []models.MarketPhase

	// Evaluate inspects the data and returns candidate signals
	Evaluate(data MarketData, phase models.MarketPhase) []models.CandidateSignal
}

// ActiveIn reports whether a phase is in the strategy's active set
func ActiveIn(s Strategy, phase models.MarketPhase) bool {
	for _, p := range s.ActivePhases() {
		if p == phase {
			return true
		}
	}
	return false
}

// starRating grades a setup 1-10 from its risk/reward ratio
func starRating(entry, stop, target float64) int {
	risk := entry - stop
	if risk < 0 {
		risk = -risk
	}
	reward := target - entry
	if reward < 0 {
		reward = -reward
	}
	if risk <= 0 {
		return 1
	}

	rr := reward / risk
	switch {
	case rr >= 3.0:
		return 9
	case rr >= 2.5:
		return 8
	case rr >= 2.0:
		return 7
	case rr >= 1.5:
		return 6
	case rr >= 1.0:
		return 5
	case rr >= 0.75:
		return 4
	default:
		return 3
	}
}
