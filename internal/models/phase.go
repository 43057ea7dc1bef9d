package models

import "time"

// MarketPhase represents the current segment of the trading day
type MarketPhase string

const (
	PhasePreOpen MarketPhase = "PRE_OPEN" // 09:00 - 09:15
	PhaseOpening MarketPhase = "OPENING"  // 09:15 - 09:45
	PhaseMorning MarketPhase = "MORNING"  // 09:45 - 12:00
	PhaseMidday  MarketPhase = "MIDDAY"   // 12:00 - 14:30
	PhaseClosing MarketPhase = "CLOSING"  // 14:30 - 15:30
	PhaseClosed  MarketPhase = "CLOSED"
)

// PhaseAt maps a clock time to a market phase. Weekends are always CLOSED.
func PhaseAt(t time.Time) MarketPhase {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return PhaseClosed
	}

	minutes := t.Hour()*60 + t.Minute()
	switch {
	case minutes < 9*60:
		return PhaseClosed
	case minutes < 9*60+15:
		return PhasePreOpen
	case minutes < 9*60+45:
		return PhaseOpening
	case minutes < 12*60:
		return PhaseMorning
	case minutes < 14*60+30:
		return PhaseMidday
	case minutes < 15*60+30:
		return PhaseClosing
	default:
		return PhaseClosed
	}
}

// IsTradable reports whether new signals may be generated in this phase
func (p MarketPhase) IsTradable() bool {
	switch p {
	case PhaseOpening, PhaseMorning, PhaseMidday, PhaseClosing:
		return true
	default:
		return false
	}
}
