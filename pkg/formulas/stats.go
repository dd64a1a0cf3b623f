// Package formulas provides small statistical helpers shared across the
// engine. Anything matrix-shaped lives with its caller; these are the
// leaf-level series calculations.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Trading-calendar constants used for annualization.
const (
	TradingDaysPerYear  = 252
	TradingDaysPerMonth = 21
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// AnnualizedVolatility converts daily returns to annualized volatility:
// stddev of daily returns scaled by sqrt(252 trading days).
func AnnualizedVolatility(dailyReturns []float64) float64 {
	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// AnnualizeVariance scales a daily variance to an annual volatility.
func AnnualizeVariance(dailyVariance float64) float64 {
	if dailyVariance <= 0 {
		return 0
	}
	return math.Sqrt(dailyVariance * TradingDaysPerYear)
}

// MonthlyizeVariance scales a daily variance to a monthly volatility
// (21 trading days).
func MonthlyizeVariance(dailyVariance float64) float64 {
	if dailyVariance <= 0 {
		return 0
	}
	return math.Sqrt(dailyVariance * TradingDaysPerMonth)
}

// CalculateReturns converts prices to simple returns:
// Returns[i] = (Price[i+1] - Price[i]) / Price[i].
// Non-positive or NaN prices contribute a zero return rather than poisoning
// the series.
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if prev > 0 && !math.IsNaN(prev) && !math.IsNaN(cur) {
			returns[i-1] = (cur - prev) / prev
		}
	}

	return returns
}

// Correlation calculates the Pearson correlation coefficient between two datasets
func Correlation(x, y []float64) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// Covariance calculates the sample covariance between two datasets
func Covariance(x, y []float64) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}
