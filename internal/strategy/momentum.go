package strategy

import (
	"fmt"
	"time"

	"market-scanner-bot/internal/models"
)

// MomentumConfig configures the trend momentum strategy
type MomentumConfig struct {
	FastEMA       int     `json:"fast_ema"`
	SlowEMA       int     `json:"slow_ema"`
	RSIPeriod     int     `json:"rsi_period"`
	RSILongMin    float64 `json:"rsi_long_min"`  // minimum RSI for longs
	RSIShortMax   float64 `json:"rsi_short_max"` // maximum RSI for shorts
	StopPercent   float64 `json:"stop_percent"`
	TargetPercent float64 `json:"target_percent"`
}

// DefaultMomentumConfig returns standard momentum parameters
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		FastEMA:       9,
		SlowEMA:       21,
		RSIPeriod:     14,
		RSILongMin:    55,
		RSIShortMax:   45,
		StopPercent:   0.6,
		TargetPercent: 1.2,
	}
}

// MomentumStrategy signals in the direction of an established intraday
// trend, confirmed by an EMA crossover and RSI.
type MomentumStrategy struct {
	config MomentumConfig
}

// NewMomentumStrategy creates a momentum strategy
func NewMomentumStrategy(config MomentumConfig) *MomentumStrategy {
	return &MomentumStrategy{config: config}
}

func (s *MomentumStrategy) Name() string { return "momentum" }

func (s *MomentumStrategy) ActivePhases() []models.MarketPhase {
	return []models.MarketPhase{models.PhaseMorning, models.PhaseMidday}
}

func (s *MomentumStrategy) Evaluate(data MarketData, phase models.MarketPhase) []models.CandidateSignal {
	need := s.config.SlowEMA
	if s.config.RSIPeriod+1 > need {
		need = s.config.RSIPeriod + 1
	}
	if len(data.Candles) < need || data.LastPrice <= 0 {
		return nil
	}

	fast := CalculateEMA(data.Candles, s.config.FastEMA)
	slow := CalculateEMA(data.Candles, s.config.SlowEMA)
	rsi := CalculateRSI(data.Candles, s.config.RSIPeriod)
	if fast <= 0 || slow <= 0 {
		return nil
	}

	if fast > slow && rsi >= s.config.RSILongMin && data.LastPrice > fast {
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
			Reason:     fmt.Sprintf("Uptrend: EMA%d %.2f above EMA%d %.2f, RSI %.1f", s.config.FastEMA, fast, s.config.SlowEMA, slow, rsi),
			Timestamp:  time.Now(),
		}}
	}

	if fast < slow && rsi <= s.config.RSIShortMax && data.LastPrice < fast {
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
			Reason:     fmt.Sprintf("Downtrend: EMA%d %.2f below EMA%d %.2f, RSI %.1f", s.config.FastEMA, fast, s.config.SlowEMA, slow, rsi),
			Timestamp:  time.Now(),
		}}
	}

	return nil
}
