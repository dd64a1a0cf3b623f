package testing

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/argus/internal/domain"
)

// MockPriceProvider is a thread-safe in-memory implementation of
// domain.PriceProvider. Tests seed it with SetSeries and can inspect how
// often each ticker was fetched.
type MockPriceProvider struct {
	mu     sync.Mutex
	prices map[string][]domain.PricePoint
	calls  map[string]int
	err    error
}

// NewMockPriceProvider creates an empty mock price provider.
func NewMockPriceProvider() *MockPriceProvider {
	return &MockPriceProvider{
		prices: make(map[string][]domain.PricePoint),
		calls:  make(map[string]int),
	}
}

// SetSeries stores the daily price history for a ticker.
func (m *MockPriceProvider) SetSeries(ticker string, points []domain.PricePoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[ticker] = points
}

// SetError makes every subsequent call fail with err.
func (m *MockPriceProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// PriceSeries returns the seeded points within [start, end]. Every call is
// counted, including ones that fail.
func (m *MockPriceProvider) PriceSeries(ctx context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls[ticker]++
	err := m.err
	points := m.prices[ticker]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var out []domain.PricePoint
	for _, p := range points {
		if !p.Date.Before(start) && !p.Date.After(end) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, &domain.DataUnavailableError{Ticker: ticker, Reason: "no price history in range"}
	}
	return out, nil
}

// LatestClose returns the last seeded close on or before asOf.
func (m *MockPriceProvider) LatestClose(ctx context.Context, ticker string, asOf time.Time) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	err := m.err
	points := m.prices[ticker]
	m.mu.Unlock()
	if err != nil {
		return 0, err
	}

	var close float64
	found := false
	for _, p := range points {
		if !p.Date.After(asOf) {
			close = p.Close
			found = true
		}
	}
	if !found {
		return 0, &domain.DataUnavailableError{Ticker: ticker, Reason: "no close available"}
	}
	return close, nil
}

// Calls reports how many times PriceSeries was asked for a ticker.
func (m *MockPriceProvider) Calls(ticker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[ticker]
}

// LastClose returns the final seeded close for a ticker, or zero when the
// ticker has no history.
func (m *MockPriceProvider) LastClose(ticker string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	points := m.prices[ticker]
	if len(points) == 0 {
		return 0
	}
	return points[len(points)-1].Close
}

// Verify interface implementation
var _ domain.PriceProvider = (*MockPriceProvider)(nil)
