package limits

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/argus/internal/domain"
	"github.com/aristath/argus/internal/modules/portfolioview"
)

func testView() *portfolioview.View {
	return &portfolioview.View{
		Tickers: []string{"AAPL", "MSFT"},
		Weights: []float64{0.5, 0.5},
		FactorBetas: map[string]float64{
			domain.FactorMarket:   1.05,
			domain.FactorMomentum: 0.40,
		},
		IndustryBetas:    map[string]float64{"XLK": 0.60},
		FactorVariance:   0.8e-4,
		IdioVariance:     0.2e-4,
		TotalVariance:    1.0e-4,
		AnnualVolatility: 0.18,
	}
}

func metrics(checks []domain.LimitCheck) []string {
	out := make([]string, len(checks))
	for i, c := range checks {
		out[i] = c.Metric
	}
	return out
}

func TestEvaluateVolatilityNearCeiling(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())

	checks := ev.Evaluate(testView(), domain.RiskLimitsSpec{MaxAnnualVolatility: 0.20})

	require.Len(t, checks, 1)
	c := checks[0]
	assert.Equal(t, "portfolio_volatility", c.Metric)
	assert.Equal(t, domain.CheckPass, c.Status)
	assert.InDelta(t, 0.18, c.Current, 1e-12)
	assert.InDelta(t, 0.20, c.Limit, 1e-12)
	assert.InDelta(t, 90.0, c.Utilization, 1e-9)
}

func TestEvaluateNoConfiguredRules(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())

	checks := ev.Evaluate(testView(), domain.RiskLimitsSpec{})

	assert.Empty(t, checks)
}

func TestEvaluateCanonicalOrder(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	view := testView()
	view.FactorBetas["quality"] = 0.10
	view.FactorBetas[domain.FactorValue] = -0.20
	view.IndustryBetas["XLE"] = 0.0

	spec := domain.RiskLimitsSpec{
		MaxAnnualVolatility:  0.25,
		MaxPositionWeight:    0.60,
		MaxFactorVariancePct: 90,
		MaxFactorBeta: map[string]float64{
			"quality":             0.50,
			domain.FactorValue:    0.50,
			domain.FactorMomentum: 0.80,
			domain.FactorMarket:   1.30,
		},
		MaxIndustryBeta: map[string]float64{"XLK": 1.0, "XLE": 0.5},
	}

	checks := ev.Evaluate(view, spec)

	assert.Equal(t, []string{
		"portfolio_volatility",
		"max_position_weight",
		"factor_variance_pct",
		"factor_beta.market",
		"factor_beta.momentum",
		"factor_beta.value",
		"factor_beta.quality",
		"industry_beta.XLE",
		"industry_beta.XLK",
	}, metrics(checks))

	for _, c := range checks {
		assert.Equal(t, domain.CheckPass, c.Status, c.Metric)
	}
}

func TestEvaluateUnmeasuredFactorSkipped(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	view := testView() // no "value" beta measured

	spec := domain.RiskLimitsSpec{
		MaxFactorBeta: map[string]float64{
			domain.FactorMarket: 1.30,
			domain.FactorValue:  0.50,
		},
	}

	checks := ev.Evaluate(view, spec)

	assert.Equal(t, []string{"factor_beta.market"}, metrics(checks))
}

func TestEvaluateWorstPositionNamed(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	view := testView()
	view.Tickers = []string{"AAPL", "MSFT", "NVDA"}
	view.Weights = []float64{0.25, 0.70, 0.05}

	checks := ev.Evaluate(view, domain.RiskLimitsSpec{MaxPositionWeight: 0.60})

	require.Len(t, checks, 1)
	c := checks[0]
	assert.Equal(t, "max_position_weight", c.Metric)
	assert.Equal(t, "MSFT", c.Detail)
	assert.Equal(t, domain.CheckFail, c.Status)
	assert.InDelta(t, 0.70, c.Current, 1e-12)
	assert.InDelta(t, 116.6667, c.Utilization, 1e-3)
}

func TestEvaluateBetaMagnitude(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	view := testView()
	view.FactorBetas[domain.FactorMarket] = -1.5

	spec := domain.RiskLimitsSpec{
		MaxFactorBeta: map[string]float64{domain.FactorMarket: 1.2},
	}

	checks := ev.Evaluate(view, spec)

	require.Len(t, checks, 1)
	assert.Equal(t, domain.CheckFail, checks[0].Status)
	assert.InDelta(t, -1.5, checks[0].Current, 1e-12)
	assert.InDelta(t, 125.0, checks[0].Utilization, 1e-9)
}

func TestEvaluateIndustryWithoutExposure(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())

	checks := ev.Evaluate(testView(), domain.RiskLimitsSpec{
		MaxIndustryBeta: map[string]float64{"XLE": 0.5},
	})

	require.Len(t, checks, 1)
	c := checks[0]
	assert.Equal(t, "industry_beta.XLE", c.Metric)
	assert.Equal(t, domain.CheckPass, c.Status)
	assert.Zero(t, c.Current)
	assert.Zero(t, c.Utilization)
}

func TestEvaluateFactorVarianceShare(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())

	checks := ev.Evaluate(testView(), domain.RiskLimitsSpec{MaxFactorVariancePct: 75})

	require.Len(t, checks, 1)
	c := checks[0]
	assert.Equal(t, "factor_variance_pct", c.Metric)
	assert.Equal(t, domain.CheckFail, c.Status)
	assert.InDelta(t, 80.0, c.Current, 1e-9)
}

func TestFailures(t *testing.T) {
	checks := []domain.LimitCheck{
		{Metric: "portfolio_volatility", Status: domain.CheckPass, Current: 0.18, Limit: 0.20},
		{Metric: "max_position_weight", Detail: "MSFT", Status: domain.CheckFail, Current: 0.70, Limit: 0.60},
		{Metric: "factor_beta.market", Status: domain.CheckFail, Current: -1.5, Limit: 1.2},
	}

	out := Failures(checks)

	require.Len(t, out, 2)
	assert.Equal(t, "max_position_weight (MSFT): 0.7000 exceeds limit 0.6000", out[0])
	assert.Equal(t, "factor_beta.market: -1.5000 exceeds limit 1.2000", out[1])
}
