package models

import "time"

// Direction indicates the trade side of a signal
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// CandidateSignal is produced by a strategy during a scan cycle.
// It is immutable once created within a cycle.
type CandidateSignal struct {
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Strategy   string    `json:"strategy"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	Target     float64   `json:"target"`
	StarRating int       `json:"star_rating"` // 1-10 base quality rating
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

// ConfirmationLevel classifies multi-strategy agreement for a symbol
type ConfirmationLevel string

const (
	ConfirmationSingle ConfirmationLevel = "single"
	ConfirmationDouble ConfirmationLevel = "double"
	ConfirmationTriple ConfirmationLevel = "triple"
)

// ConfirmationResult describes cross-strategy agreement for one symbol.
// Derived per cycle, never persisted by the core.
type ConfirmationResult struct {
	Level          ConfirmationLevel `json:"level"`
	Strategies     []string          `json:"strategies"`
	StarBoost      int               `json:"star_boost"`      // 0 / +1 / +2
	SizeMultiplier float64           `json:"size_multiplier"` // 1.0 / 1.5 / 2.0
}

// RankedSignal is a candidate with its final composite score and rank
type RankedSignal struct {
	CandidateSignal
	CompositeScore float64 `json:"composite_score"`
	Rank           int     `json:"rank"`
}

// RegimeModifiers are optional per-cycle adjustments derived from the
// current market regime. Zero values mean "no override".
type RegimeModifiers struct {
	Regime          string             `json:"regime"` // "trending", "choppy", "volatile"
	MinStarRating   int                `json:"min_star_rating"`
	SizeMultiplier  float64            `json:"size_multiplier"`
	MaxPositions    int                `json:"max_positions"`
	StrategyWeights map[string]float64 `json:"strategy_weights,omitempty"`
}

// Candle is a single OHLCV bar
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// OpenPosition is a live position watched by the exit-monitor stage
type OpenPosition struct {
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Strategy   string    `json:"strategy"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	Target     float64   `json:"target"`
	Quantity   int64     `json:"quantity"`
	OpenedAt   time.Time `json:"opened_at"`
}
