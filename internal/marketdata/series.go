package marketdata

import (
	"math"
	"sort"
	"time"

	"github.com/aristath/argus/internal/domain"
)

// ReturnSeries holds simple daily returns with the date of each observation
// (the date of the later close in each pair).
type ReturnSeries struct {
	Dates  []time.Time
	Values []float64
}

// ReturnsFromPrices converts daily closes to simple returns. Non-positive or
// NaN closes are repaired by forward/back fill before differencing, so one
// bad row does not poison the series.
func ReturnsFromPrices(points []domain.PricePoint) ReturnSeries {
	if len(points) < 2 {
		return ReturnSeries{}
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		if p.Close > 0 && !math.IsNaN(p.Close) {
			closes[i] = p.Close
		} else {
			closes[i] = math.NaN()
		}
	}
	closes = FillMissing(closes)

	series := ReturnSeries{
		Dates:  make([]time.Time, 0, len(points)-1),
		Values: make([]float64, 0, len(points)-1),
	}
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev > 0 && !math.IsNaN(prev) && !math.IsNaN(cur) {
			series.Values = append(series.Values, (cur-prev)/prev)
		} else {
			series.Values = append(series.Values, 0.0)
		}
		series.Dates = append(series.Dates, points[i].Date)
	}

	return series
}

// FillMissing repairs NaN entries with forward-fill then back-fill.
// Entries with no valid neighbor on either side stay NaN.
func FillMissing(values []float64) []float64 {
	filled := make([]float64, len(values))
	copy(filled, values)

	// First pass: forward-fill (use previous valid value)
	var lastValid float64
	hasLastValid := false
	for i := 0; i < len(filled); i++ {
		if math.IsNaN(filled[i]) {
			if hasLastValid {
				filled[i] = lastValid
			}
		} else {
			lastValid = filled[i]
			hasLastValid = true
		}
	}

	// Second pass: back-fill (for leading NaNs)
	var nextValid float64
	hasNextValid := false
	for i := len(filled) - 1; i >= 0; i-- {
		if math.IsNaN(filled[i]) {
			if hasNextValid {
				filled[i] = nextValid
			}
		} else {
			nextValid = filled[i]
			hasNextValid = true
		}
	}

	return filled
}

// AlignSeries intersects the dates of multiple return series and returns the
// common dates in ascending order plus one aligned value slice per input.
// Regressions need strictly common observations; covariance estimation uses
// the same alignment so betas and factor covariance share a calendar.
func AlignSeries(series ...ReturnSeries) ([]time.Time, [][]float64) {
	if len(series) == 0 {
		return nil, nil
	}

	counts := make(map[int64]int)
	for _, s := range series {
		for _, d := range s.Dates {
			counts[dayUnix(d)]++
		}
	}

	var commonUnix []int64
	for day, n := range counts {
		if n == len(series) {
			commonUnix = append(commonUnix, day)
		}
	}
	sort.Slice(commonUnix, func(i, j int) bool { return commonUnix[i] < commonUnix[j] })

	common := make([]time.Time, len(commonUnix))
	index := make(map[int64]int, len(commonUnix))
	for i, day := range commonUnix {
		common[i] = time.Unix(day, 0).UTC()
		index[day] = i
	}

	aligned := make([][]float64, len(series))
	for si, s := range series {
		out := make([]float64, len(common))
		for i, d := range s.Dates {
			if j, ok := index[dayUnix(d)]; ok {
				out[j] = s.Values[i]
			}
		}
		aligned[si] = out
	}

	return common, aligned
}
