package optimization

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/argus/internal/domain"
	"github.com/aristath/argus/pkg/formulas"
)

// Expected-return blend and clamp bounds.
const (
	ExpectedReturnMin = -0.10 // -10% floor
	ExpectedReturnMax = 0.30  // 30% ceiling

	CAGRWeight     = 0.70 // weight on realized growth
	MomentumWeight = 0.30 // weight on EMA-distance tilt

	momentumEMALength = 50
)

// ReturnsEstimator derives per-ticker expected annual returns from price
// history: a blend of annualized realized growth and a momentum tilt from
// the distance to the 50-day EMA, clamped to a sane range. Caller-supplied
// overrides always win.
type ReturnsEstimator struct {
	provider domain.PriceProvider
	log      zerolog.Logger
}

// NewReturnsEstimator creates an estimator reading from the given provider.
func NewReturnsEstimator(provider domain.PriceProvider, log zerolog.Logger) *ReturnsEstimator {
	return &ReturnsEstimator{
		provider: provider,
		log:      log.With().Str("component", "returns").Logger(),
	}
}

// Estimate returns an expected annual return for every requested ticker.
// Tickers whose history cannot be estimated fall back to zero and are
// reported as warnings, so the result is always total over the request.
// Cash-like tickers are estimated from their configured cash proxy and
// default to zero without one.
func (e *ReturnsEstimator) Estimate(ctx context.Context, tickers []string, rng domain.DateRange, overrides map[string]float64, proxies *domain.FactorProxySet) (map[string]float64, []domain.DataWarning) {
	expected := make(map[string]float64, len(tickers))
	var warnings []domain.DataWarning

	for _, ticker := range tickers {
		if value, ok := overrides[ticker]; ok {
			expected[ticker] = clampReturn(value)
			continue
		}

		source := ticker
		if domain.IsCashLike(ticker) {
			proxy := ""
			if proxies != nil {
				proxy, _ = proxies.CashProxy(ticker)
			}
			if proxy == "" {
				expected[ticker] = 0
				continue
			}
			source = proxy
		}

		value, err := e.estimateSingle(ctx, source, rng)
		if err != nil {
			e.log.Warn().Str("ticker", ticker).Err(err).Msg("Failed to estimate expected return")
			warnings = append(warnings, domain.DataWarning{Ticker: ticker, Reason: err.Error()})
			expected[ticker] = 0
			continue
		}
		expected[ticker] = value
	}

	return expected, warnings
}

func (e *ReturnsEstimator) estimateSingle(ctx context.Context, ticker string, rng domain.DateRange) (float64, error) {
	points, err := e.provider.PriceSeries(ctx, ticker, rng.Start, rng.End)
	if err != nil {
		return 0, err
	}
	if len(points) < 2 {
		return 0, &domain.DataUnavailableError{Ticker: ticker, Reason: "not enough history to estimate returns"}
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}

	cagr, err := annualizedGrowth(closes)
	if err != nil {
		return 0, err
	}

	momentum := 0.0
	if distance := formulas.CalculateDistanceFromEMA(closes, momentumEMALength); distance != nil {
		momentum = *distance
	}

	return clampReturn(CAGRWeight*cagr + MomentumWeight*momentum), nil
}

// annualizedGrowth computes the compound annual growth rate over the series,
// treating its length in trading days as the elapsed time.
func annualizedGrowth(closes []float64) (float64, error) {
	first, last := closes[0], closes[len(closes)-1]
	if first <= 0 || last <= 0 {
		return 0, fmt.Errorf("non-positive close in series")
	}

	years := float64(len(closes)-1) / formulas.TradingDaysPerYear
	if years <= 0 {
		return 0, fmt.Errorf("series too short to annualize")
	}

	return math.Pow(last/first, 1.0/years) - 1.0, nil
}

func clampReturn(value float64) float64 {
	return math.Min(math.Max(value, ExpectedReturnMin), ExpectedReturnMax)
}
