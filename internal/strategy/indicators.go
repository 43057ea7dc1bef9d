package strategy

import (
	"market-scanner-bot/internal/models"
)

// CalculateSMA calculates Simple Moving Average of closes
func CalculateSMA(candles []models.Candle, period int) float64 {
	if len(candles) < period || period <= 0 {
		return 0
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// CalculateEMA calculates Exponential Moving Average of closes
func CalculateEMA(candles []models.Candle, period int) float64 {
	if len(candles) < period || period <= 0 {
		return 0
	}

	ema := CalculateSMA(candles[:period], period)
	multiplier := 2.0 / float64(period+1)

	for i := period; i < len(candles); i++ {
		ema = (candles[i].Close * multiplier) + (ema * (1 - multiplier))
	}
	return ema
}

// CalculateRSI calculates the Relative Strength Index
func CalculateRSI(candles []models.Candle, period int) float64 {
	if len(candles) < period+1 || period <= 0 {
		return 50.0 // Neutral
	}

	gains := 0.0
	losses := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// CalculateVWAP calculates volume-weighted average price over the bars
func CalculateVWAP(candles []models.Candle) float64 {
	var pv, volume float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		pv += typical * c.Volume
		volume += c.Volume
	}
	if volume == 0 {
		return 0
	}
	return pv / volume
}

// AverageVolume returns the mean volume of the last period bars
func AverageVolume(candles []models.Candle, period int) float64 {
	if len(candles) < period || period <= 0 {
		return 0
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Volume
	}
	return sum / float64(period)
}
