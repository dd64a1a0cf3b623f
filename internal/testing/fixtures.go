package testing

import (
	"time"

	"github.com/aristath/argus/internal/domain"
)

// DailyPrices builds consecutive daily price points from explicit closes,
// starting at the given date.
func DailyPrices(start time.Time, closes ...float64) []domain.PricePoint {
	points := make([]domain.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Close: c}
	}
	return points
}

// SeriesFromReturns compounds a daily price path from 100.0 that reproduces
// the given simple returns. The result has len(returns)+1 points.
func SeriesFromReturns(start time.Time, returns []float64) []domain.PricePoint {
	points := make([]domain.PricePoint, len(returns)+1)
	price := 100.0
	points[0] = domain.PricePoint{Date: start, Close: price}
	for i, r := range returns {
		price *= 1.0 + r
		points[i+1] = domain.PricePoint{Date: start.AddDate(0, 0, i+1), Close: price}
	}
	return points
}

// GrowthSeries compounds a constant daily rate for the given number of days.
// The result has days+1 points beginning at 100.0.
func GrowthSeries(start time.Time, days int, dailyRate float64) []domain.PricePoint {
	points := make([]domain.PricePoint, days+1)
	price := 100.0
	for i := range points {
		points[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Close: price}
		price *= 1.0 + dailyRate
	}
	return points
}
