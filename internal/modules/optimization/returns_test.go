package optimization

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/argus/internal/domain"
	testingpkg "github.com/aristath/argus/internal/testing"
	"github.com/aristath/argus/pkg/formulas"
)

// stubProvider serves deterministic price paths from memory.
type stubProvider struct {
	prices map[string][]domain.PricePoint
}

func newStubProvider() *stubProvider {
	return &stubProvider{prices: make(map[string][]domain.PricePoint)}
}

func (s *stubProvider) PriceSeries(ctx context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	points := s.prices[ticker]
	if len(points) == 0 {
		return nil, &domain.DataUnavailableError{Ticker: ticker, Reason: "no price history in range"}
	}
	return points, nil
}

func (s *stubProvider) LatestClose(ctx context.Context, ticker string, asOf time.Time) (float64, error) {
	points := s.prices[ticker]
	if len(points) == 0 {
		return 0, &domain.DataUnavailableError{Ticker: ticker, Reason: "no close available"}
	}
	return points[len(points)-1].Close, nil
}

// seedGrowth stores a price path compounding at a constant daily rate.
func (s *stubProvider) seedGrowth(ticker string, days int, dailyRate float64) {
	s.prices[ticker] = testingpkg.GrowthSeries(optTestStart, days, dailyRate)
}

func estimatorRange() domain.DateRange {
	return domain.DateRange{Start: optTestStart, End: optTestStart.AddDate(2, 0, 0)}
}

func TestEstimateFlatSeriesIsZero(t *testing.T) {
	provider := newStubProvider()
	provider.seedGrowth("AAPL", 120, 0)
	est := NewReturnsEstimator(provider, zerolog.Nop())

	expected, warnings := est.Estimate(context.Background(), []string{"AAPL"}, estimatorRange(), nil, nil)

	assert.Empty(t, warnings)
	assert.InDelta(t, 0.0, expected["AAPL"], 1e-9)
}

func TestEstimateStrongGrowthClampsAtCeiling(t *testing.T) {
	provider := newStubProvider()
	provider.seedGrowth("NVDA", 300, 0.002)
	est := NewReturnsEstimator(provider, zerolog.Nop())

	expected, warnings := est.Estimate(context.Background(), []string{"NVDA"}, estimatorRange(), nil, nil)

	assert.Empty(t, warnings)
	assert.InDelta(t, ExpectedReturnMax, expected["NVDA"], 1e-9)
}

func TestEstimateCollapseClampsAtFloor(t *testing.T) {
	provider := newStubProvider()
	provider.seedGrowth("WISH", 300, -0.002)
	est := NewReturnsEstimator(provider, zerolog.Nop())

	expected, warnings := est.Estimate(context.Background(), []string{"WISH"}, estimatorRange(), nil, nil)

	assert.Empty(t, warnings)
	assert.InDelta(t, ExpectedReturnMin, expected["WISH"], 1e-9)
}

func TestEstimateOverrideWins(t *testing.T) {
	provider := newStubProvider()
	provider.seedGrowth("AAPL", 300, 0.002)
	est := NewReturnsEstimator(provider, zerolog.Nop())

	expected, warnings := est.Estimate(context.Background(), []string{"AAPL"}, estimatorRange(),
		map[string]float64{"AAPL": 0.12}, nil)

	assert.Empty(t, warnings)
	assert.InDelta(t, 0.12, expected["AAPL"], 1e-12)
}

func TestEstimateOverrideIsClamped(t *testing.T) {
	est := NewReturnsEstimator(newStubProvider(), zerolog.Nop())

	expected, _ := est.Estimate(context.Background(), []string{"AAPL"}, estimatorRange(),
		map[string]float64{"AAPL": 9.0}, nil)

	assert.InDelta(t, ExpectedReturnMax, expected["AAPL"], 1e-12)
}

func TestEstimateUnavailableTickerFallsBackToZero(t *testing.T) {
	est := NewReturnsEstimator(newStubProvider(), zerolog.Nop())

	expected, warnings := est.Estimate(context.Background(), []string{"GHOST"}, estimatorRange(), nil, nil)

	assert.Zero(t, expected["GHOST"])
	require.Len(t, warnings, 1)
	assert.Equal(t, "GHOST", warnings[0].Ticker)
}

func TestEstimateCashUsesProxy(t *testing.T) {
	provider := newStubProvider()
	// Short-treasury proxy drifting up about 2% a year.
	provider.seedGrowth("BIL", 300, 0.00008)
	est := NewReturnsEstimator(provider, zerolog.Nop())

	expected, warnings := est.Estimate(context.Background(), []string{domain.CashTicker},
		estimatorRange(), nil, domain.DefaultProxySet())

	assert.Empty(t, warnings)
	want := math.Pow(1.00008, formulas.TradingDaysPerYear) - 1
	assert.InDelta(t, CAGRWeight*want, expected[domain.CashTicker], 5e-3)
}

func TestEstimateCashWithoutProxyIsZero(t *testing.T) {
	est := NewReturnsEstimator(newStubProvider(), zerolog.Nop())

	expected, warnings := est.Estimate(context.Background(), []string{domain.CashTicker},
		estimatorRange(), nil, nil)

	assert.Empty(t, warnings)
	assert.Zero(t, expected[domain.CashTicker])
}

func TestEstimateTooShortSeries(t *testing.T) {
	provider := newStubProvider()
	provider.prices["AAPL"] = []domain.PricePoint{{Date: optTestStart, Close: 100}}
	est := NewReturnsEstimator(provider, zerolog.Nop())

	expected, warnings := est.Estimate(context.Background(), []string{"AAPL"}, estimatorRange(), nil, nil)

	assert.Zero(t, expected["AAPL"])
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Reason, "not enough history")
}

func TestAnnualizedGrowthKnownRate(t *testing.T) {
	closes := make([]float64, 253)
	price := 100.0
	for i := range closes {
		closes[i] = price
		price *= 1.001
	}

	cagr, err := annualizedGrowth(closes)
	require.NoError(t, err)

	// 252 trading days compound to exactly one year.
	assert.InDelta(t, math.Pow(1.001, 252)-1, cagr, 1e-9)
}
