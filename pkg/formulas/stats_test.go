package formulas

import (
	"math"
	"testing"
)

func makeReturns(value float64, n int) []float64 {
	returns := make([]float64, n)
	for i := range returns {
		returns[i] = value
	}
	return returns
}

func TestAnnualizedVolatility(t *testing.T) {
	tests := []struct {
		name      string
		returns   []float64
		expected  float64
		tolerance float64
	}{
		{
			name:      "empty returns",
			returns:   []float64{},
			expected:  0.0,
			tolerance: 0.0,
		},
		{
			name:      "constant returns have zero volatility",
			returns:   makeReturns(0.001, 252),
			expected:  0.0,
			tolerance: 1e-12,
		},
		{
			name:      "alternating returns",
			returns:   []float64{0.01, -0.01, 0.01, -0.01, 0.01, -0.01},
			expected:  math.Sqrt(252) * 0.010954, // sample stddev of the pattern
			tolerance: 0.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AnnualizedVolatility(tt.returns)
			if math.Abs(result-tt.expected) > tt.tolerance {
				t.Errorf("AnnualizedVolatility() = %v, want %v (±%v)", result, tt.expected, tt.tolerance)
			}
		})
	}
}

func TestAnnualizeVariance(t *testing.T) {
	// Daily variance chosen so the annual figure lands on 18%.
	daily := 0.18 * 0.18 / 252
	if got := AnnualizeVariance(daily); math.Abs(got-0.18) > 1e-12 {
		t.Errorf("AnnualizeVariance() = %v, want 0.18", got)
	}
	if got := AnnualizeVariance(0); got != 0 {
		t.Errorf("AnnualizeVariance(0) = %v, want 0", got)
	}
	monthly := MonthlyizeVariance(daily)
	annual := AnnualizeVariance(daily)
	if monthly >= annual {
		t.Errorf("monthly volatility %v should be below annual %v", monthly, annual)
	}
}

func TestCalculateReturns(t *testing.T) {
	tests := []struct {
		name     string
		prices   []float64
		expected []float64
	}{
		{
			name:     "too short",
			prices:   []float64{100},
			expected: []float64{},
		},
		{
			name:     "simple growth",
			prices:   []float64{100, 110, 99},
			expected: []float64{0.10, -0.10},
		},
		{
			name:     "zero price contributes zero return",
			prices:   []float64{100, 0, 110},
			expected: []float64{-1.0, 0.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateReturns(tt.prices)
			if len(result) != len(tt.expected) {
				t.Fatalf("CalculateReturns() length = %d, want %d", len(result), len(tt.expected))
			}
			for i := range result {
				if math.Abs(result[i]-tt.expected[i]) > 1e-12 {
					t.Errorf("return[%d] = %v, want %v", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestCorrelationAndCovariance(t *testing.T) {
	x := []float64{0.01, 0.02, -0.01, 0.005, -0.02}
	y := []float64{0.02, 0.04, -0.02, 0.01, -0.04}

	if got := Correlation(x, y); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Correlation of perfectly scaled series = %v, want 1.0", got)
	}
	if got := Correlation(x, []float64{1, 2}); got != 0 {
		t.Errorf("Correlation with mismatched lengths = %v, want 0", got)
	}
	if got := Covariance(x, y); got <= 0 {
		t.Errorf("Covariance of co-moving series = %v, want > 0", got)
	}
}

func TestCalculateEMA(t *testing.T) {
	if got := CalculateEMA(nil, 10); got != nil {
		t.Errorf("CalculateEMA(nil) = %v, want nil", got)
	}

	// Shorter than the period falls back to the simple mean.
	short := []float64{100, 102, 104}
	if got := CalculateEMA(short, 10); got == nil || math.Abs(*got-102) > 1e-9 {
		t.Errorf("CalculateEMA(short) = %v, want 102", got)
	}

	// A flat series has EMA equal to the level.
	flat := makeReturns(50, 60)
	if got := CalculateEMA(flat, 20); got == nil || math.Abs(*got-50) > 1e-9 {
		t.Errorf("CalculateEMA(flat) = %v, want 50", got)
	}
}

func TestCalculateDistanceFromEMA(t *testing.T) {
	flat := makeReturns(50, 60)
	if got := CalculateDistanceFromEMA(flat, 20); got == nil || math.Abs(*got) > 1e-9 {
		t.Errorf("distance from EMA on flat series = %v, want 0", got)
	}

	rising := make([]float64, 60)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	got := CalculateDistanceFromEMA(rising, 20)
	if got == nil || *got <= 0 {
		t.Errorf("distance from EMA on rising series = %v, want > 0", got)
	}
}
