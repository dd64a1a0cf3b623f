package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/argus/internal/domain"
	testingpkg "github.com/aristath/argus/internal/testing"
)

func TestWeightsFromSpecAmounts(t *testing.T) {
	provider := testingpkg.NewMockPriceProvider()
	seedMarketData(provider)
	eng := newTestEngine(provider, nil, nil)

	weights, warnings, err := eng.weightsFromSpec(context.Background(), amountSpec(map[string]float64{
		"AAA": 6000,
		"BBB": 4000,
	}))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.InDelta(t, 0.6, weights["AAA"], 1e-12)
	assert.InDelta(t, 0.4, weights["BBB"], 1e-12)
	assert.Zero(t, provider.Calls("AAA"), "amount holdings need no price lookups")
}

func TestWeightsFromSpecPricesShares(t *testing.T) {
	provider := testingpkg.NewMockPriceProvider()
	seedMarketData(provider)
	eng := newTestEngine(provider, nil, nil)

	spec := &domain.PortfolioSpec{
		Range: testRange(),
		Holdings: map[string]domain.Holding{
			"AAA": {Shares: decimal.NewFromInt(10)},
			"BBB": {Amount: decimal.NewFromInt(1000)},
		},
		Proxies: testProxySet(),
	}

	weights, warnings, err := eng.weightsFromSpec(context.Background(), spec)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	value := 10 * provider.LastClose("AAA")
	assert.InDelta(t, value/(value+1000), weights["AAA"], 1e-9)
	assert.InDelta(t, 1000/(value+1000), weights["BBB"], 1e-9)
}

func TestWeightsFromSpecValuesCashAtPar(t *testing.T) {
	provider := testingpkg.NewMockPriceProvider()
	seedMarketData(provider)
	eng := newTestEngine(provider, nil, nil)

	spec := &domain.PortfolioSpec{
		Range: testRange(),
		Holdings: map[string]domain.Holding{
			"AAA":             {Amount: decimal.NewFromInt(7500)},
			domain.CashTicker: {Shares: decimal.NewFromInt(2500)},
		},
		Proxies: testProxySet(),
	}

	weights, _, err := eng.weightsFromSpec(context.Background(), spec)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, weights["AAA"], 1e-12)
	assert.InDelta(t, 0.25, weights[domain.CashTicker], 1e-12)
	assert.Zero(t, provider.Calls(domain.CashTicker))
}

func TestWeightsFromSpecSkipsUnpriceableHolding(t *testing.T) {
	provider := testingpkg.NewMockPriceProvider()
	seedMarketData(provider)
	eng := newTestEngine(provider, nil, nil)

	spec := &domain.PortfolioSpec{
		Range: testRange(),
		Holdings: map[string]domain.Holding{
			"AAA":     {Amount: decimal.NewFromInt(1000)},
			"MISSING": {Shares: decimal.NewFromInt(5)},
		},
		Proxies: testProxySet(),
	}

	weights, warnings, err := eng.weightsFromSpec(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "MISSING", warnings[0].Ticker)
	assert.InDelta(t, 1.0, weights["AAA"], 1e-12)
	assert.NotContains(t, weights, "MISSING")
}

func TestWeightsFromSpecEscalatesProviderFailure(t *testing.T) {
	provider := testingpkg.NewMockPriceProvider()
	seedMarketData(provider)
	provider.SetError(errors.New("quote feed down"))
	eng := newTestEngine(provider, nil, nil)

	spec := &domain.PortfolioSpec{
		Range: testRange(),
		Holdings: map[string]domain.Holding{
			"AAA": {Shares: decimal.NewFromInt(10)},
		},
		Proxies: testProxySet(),
	}

	// Unlike missing history, a failing provider is not a per-holding
	// warning: the whole valuation fails.
	_, _, err := eng.weightsFromSpec(context.Background(), spec)
	require.Error(t, err)
	assert.False(t, domain.IsDataUnavailable(err))
	assert.ErrorContains(t, err, "quote feed down")
}

func TestWeightsFromSpecFailsWhenNothingValued(t *testing.T) {
	provider := testingpkg.NewMockPriceProvider()
	eng := newTestEngine(provider, nil, nil)

	spec := &domain.PortfolioSpec{
		Range: testRange(),
		Holdings: map[string]domain.Holding{
			"MISSING": {Shares: decimal.NewFromInt(5)},
		},
		Proxies: testProxySet(),
	}

	_, _, err := eng.weightsFromSpec(context.Background(), spec)
	require.Error(t, err)
	assert.True(t, domain.IsDataUnavailable(err))
}
