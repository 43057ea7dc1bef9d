package strategy

import (
	"fmt"
	"time"

	"market-scanner-bot/internal/models"
)

// ORBConfig configures the opening-range breakout strategy
type ORBConfig struct {
	RangeBars     int     `json:"range_bars"`      // bars forming the opening range
	StopPercent   float64 `json:"stop_percent"`    // stop distance below/above breakout
	TargetPercent float64 `json:"target_percent"`  // target distance
	MinRangeSpan  float64 `json:"min_range_span"`  // minimum range width as % of price
	VolumeFactor  float64 `json:"volume_factor"`   // breakout bar volume vs average
}

// DefaultORBConfig returns standard opening-range parameters
func DefaultORBConfig() ORBConfig {
	return ORBConfig{
		RangeBars:     3,
		StopPercent:   0.5,
		TargetPercent: 1.0,
		MinRangeSpan:  0.2,
		VolumeFactor:  1.5,
	}
}

// ORBStrategy signals when price breaks the opening range on volume.
// Active only while the opening range is still fresh.
type ORBStrategy struct {
	config ORBConfig
}

// NewORBStrategy creates an opening-range breakout strategy
func NewORBStrategy(config ORBConfig) *ORBStrategy {
	return &ORBStrategy{config: config}
}

func (s *ORBStrategy) Name() string { return "orb" }

func (s *ORBStrategy) ActivePhases() []models.MarketPhase {
	return []models.MarketPhase{models.PhaseOpening, models.PhaseMorning}
}

func (s *ORBStrategy) Evaluate(data MarketData, phase models.MarketPhase) []models.CandidateSignal {
	if len(data.Candles) < s.config.RangeBars+1 || data.LastPrice <= 0 {
		return nil
	}

	rangeHigh, rangeLow := 0.0, 0.0
	for i := 0; i < s.config.RangeBars; i++ {
		c := data.Candles[i]
		if i == 0 || c.High > rangeHigh {
			rangeHigh = c.High
		}
		if i == 0 || c.Low < rangeLow {
			rangeLow = c.Low
		}
	}

	// A too-narrow range produces noise breakouts
	if (rangeHigh-rangeLow)/data.LastPrice*100 < s.config.MinRangeSpan {
		return nil
	}

	last := data.Candles[len(data.Candles)-1]
	avgVol := AverageVolume(data.Candles, len(data.Candles))
	if avgVol > 0 && last.Volume < avgVol*s.config.VolumeFactor {
		return nil
	}

	if data.LastPrice > rangeHigh {
		entry := data.LastPrice
		stop := entry * (1 - s.config.StopPercent/100)
		target := entry * (1 + s.config.TargetPercent/100)
		return []models.CandidateSignal{{
			Symbol:     data.Symbol,
			Direction:  models.DirectionLong,
			Strategy:   s.Name(),
			EntryPrice: entry,
			StopLoss:   stop,
			Target:     target,
			StarRating: starRating(entry, stop, target),
			Reason:     fmt.Sprintf("Price %.2f broke above opening range high %.2f", entry, rangeHigh),
			Timestamp:  time.Now(),
		}}
	}

	if data.LastPrice < rangeLow {
		entry := data.LastPrice
		stop := entry * (1 + s.config.StopPercent/100)
		target := entry * (1 - s.config.TargetPercent/100)
		return []models.CandidateSignal{{
			Symbol:     data.Symbol,
			Direction:  models.DirectionShort,
			Strategy:   s.Name(),
			EntryPrice: entry,
			StopLoss:   stop,
			Target:     target,
			StarRating: starRating(entry, stop, target),
			Reason:     fmt.Sprintf("Price %.2f broke below opening range low %.2f", entry, rangeLow),
			Timestamp:  time.Now(),
		}}
	}

	return nil
}
