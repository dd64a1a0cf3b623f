package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// CalculateEMA returns the current Exponential Moving Average of a price
// series, or nil on insufficient data.
//
// EMA Formula:
//
//	EMA_today = (Price_today x multiplier) + (EMA_yesterday x (1 - multiplier))
//	where multiplier = 2 / (period + 1)
func CalculateEMA(closes []float64, length int) *float64 {
	if len(closes) == 0 || length <= 0 {
		return nil
	}

	// Not enough data for a proper EMA, fall back to SMA
	if len(closes) < length {
		sma := Mean(closes)
		return &sma
	}

	ema := talib.Ema(closes, length)
	if last := ema[len(ema)-1]; !math.IsNaN(last) {
		return &last
	}

	sma := Mean(closes[len(closes)-length:])
	return &sma
}

// CalculateDistanceFromEMA returns the fractional distance of the latest
// close from its EMA: positive when price sits above trend. Used as the
// momentum tilt in expected-return estimation.
func CalculateDistanceFromEMA(closes []float64, length int) *float64 {
	if len(closes) == 0 {
		return nil
	}

	ema := CalculateEMA(closes, length)
	if ema == nil || *ema == 0 {
		return nil
	}

	current := closes[len(closes)-1]
	distance := (current - *ema) / *ema
	return &distance
}
