package risk

import (
	"errors"
	"math"
)

// ErrInvalidInput is returned for non-positive entry price or max positions
var ErrInvalidInput = errors.New("invalid position sizing input")

// Caps on the per-trade capital share when a confirmation multiplier
// scales the position up.
const (
	boostedCapShare = 0.20 // multiplier > 1.0
	maxCapShare     = 0.25 // multiplier >= 2.0
)

// PositionSize is the result of a sizing calculation
type PositionSize struct {
	Quantity        int64   `json:"quantity"`
	CapitalRequired float64 `json:"capital_required"`
	PerTradeCapital float64 `json:"per_trade_capital"`
}

// CalculatePositionSize computes tradable quantity from capital and
// constraints. Pure computation, no side effects.
//
// Base per-trade capital is totalCapital/maxPositions. A multiplier
// above 1.0 scales it up, capped at 20% of total capital (25% when the
// multiplier is 2.0 or more). Quantity is floored to whole shares.
func CalculatePositionSize(entryPrice, totalCapital float64, maxPositions int, multiplier float64) (PositionSize, error) {
	if maxPositions <= 0 || entryPrice <= 0 {
		return PositionSize{}, ErrInvalidInput
	}

	perTrade := totalCapital / float64(maxPositions)
	if multiplier > 1.0 {
		perTrade *= multiplier
		cap := totalCapital * boostedCapShare
		if multiplier >= 2.0 {
			cap = totalCapital * maxCapShare
		}
		if perTrade > cap {
			perTrade = cap
		}
	}

	quantity := int64(math.Floor(perTrade / entryPrice))
	return PositionSize{
		Quantity:        quantity,
		CapitalRequired: float64(quantity) * entryPrice,
		PerTradeCapital: perTrade,
	}, nil
}
