package portfolioview

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/argus/internal/domain"
	"github.com/aristath/argus/internal/marketdata"
	"github.com/aristath/argus/internal/modules/factors"
	"github.com/aristath/argus/internal/modules/riskmodel"
	"github.com/aristath/argus/pkg/formulas"
)

var viewTestStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func viewTestSeries(n int, scale float64, period int) marketdata.ReturnSeries {
	s := marketdata.ReturnSeries{
		Dates:  make([]time.Time, n),
		Values: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		s.Dates[i] = viewTestStart.AddDate(0, 0, i)
		if (i/period)%2 == 0 {
			s.Values[i] = scale
		} else {
			s.Values[i] = -scale
		}
	}
	return s
}

// testModel builds a two-factor covariance model over AAPL, MSFT and CASH.
func testModel(t *testing.T) *riskmodel.CovarianceModel {
	t.Helper()

	resolved := &factors.ResolvedProxies{
		FactorOrder: []string{domain.FactorMarket, domain.FactorMomentum},
		Chosen: map[string]string{
			domain.FactorMarket:   "SPY",
			domain.FactorMomentum: "MTUM",
		},
		Returns: map[string]marketdata.ReturnSeries{
			"SPY":  viewTestSeries(80, 0.010, 1),
			"MTUM": viewTestSeries(80, 0.008, 2),
		},
	}
	results := []factors.BuildResult{
		{Ticker: "AAPL", Model: &factors.Model{
			Ticker:  "AAPL",
			Betas:   map[string]float64{domain.FactorMarket: 1.2, domain.FactorMomentum: 0.5},
			IdioVol: 0.010,
		}},
		{Ticker: "MSFT", Model: &factors.Model{
			Ticker:        "MSFT",
			Betas:         map[string]float64{domain.FactorMarket: 0.9},
			IdioVol:       0.008,
			IndustryProxy: "XLK",
			IndustryBeta:  1.1,
		}},
		{Ticker: "CASH", Model: &factors.Model{
			Ticker: "CASH",
			Betas:  map[string]float64{},
		}},
	}

	model, err := riskmodel.NewBuilder(riskmodel.Config{}, zerolog.Nop()).Build(resolved, results)
	require.NoError(t, err)
	return model
}

func TestBuilder_Build_KnownPortfolio(t *testing.T) {
	model := testModel(t)
	builder := NewBuilder(zerolog.Nop())

	weights := domain.Weights{"AAPL": 0.6, "MSFT": 0.4}
	view, err := builder.Build(weights, model)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, view.Tickers)
	assert.Equal(t, []float64{0.6, 0.4}, view.Weights)

	// Portfolio betas aggregate position betas.
	assert.InDelta(t, 0.6*1.2+0.4*0.9, view.FactorBetas[domain.FactorMarket], 1e-12)
	assert.InDelta(t, 0.6*0.5, view.FactorBetas[domain.FactorMomentum], 1e-12)
	assert.InDelta(t, 0.4*1.1, view.IndustryBetas["XLK"], 1e-12)

	// Recompute the quadratic forms directly from the model.
	f := model.FactorCov()
	beta := []float64{0.6*1.2 + 0.4*0.9, 0.6 * 0.5}
	factorVar := 0.0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			factorVar += beta[i] * f.At(i, j) * beta[j]
		}
	}
	idioVar := 0.36*model.IdioVar["AAPL"] + 0.16*model.IdioVar["MSFT"]

	assert.InDelta(t, factorVar, view.FactorVariance, 1e-15)
	assert.InDelta(t, idioVar, view.IdioVariance, 1e-15)
	assert.InDelta(t, factorVar+idioVar, view.TotalVariance, 1e-15)
	assert.InDelta(t, math.Sqrt(view.TotalVariance*formulas.TradingDaysPerYear), view.AnnualVolatility, 1e-15)
	assert.InDelta(t, math.Sqrt(view.TotalVariance*formulas.TradingDaysPerMonth), view.MonthlyVolatility, 1e-15)
	assert.InDelta(t, 0.6*0.6+0.4*0.4, view.Herfindahl, 1e-12)
}

func TestBuilder_Build_DecompositionSumsToHundred(t *testing.T) {
	model := testModel(t)
	builder := NewBuilder(zerolog.Nop())

	view, err := builder.Build(domain.Weights{"AAPL": 0.5, "MSFT": 0.3, "CASH": 0.2}, model)
	require.NoError(t, err)

	require.Len(t, view.Decomposition, 3)
	assert.Equal(t, domain.FactorMarket, view.Decomposition[0].Name)
	assert.Equal(t, domain.FactorMomentum, view.Decomposition[1].Name)
	assert.Equal(t, domain.IdiosyncraticComponent, view.Decomposition[2].Name)

	pctSum := 0.0
	varSum := 0.0
	for _, row := range view.Decomposition {
		pctSum += row.Pct
		varSum += row.Variance
	}
	assert.InDelta(t, 100.0, pctSum, 1e-6)
	assert.InDelta(t, view.TotalVariance, varSum, 1e-15)
}

func TestBuilder_Build_ContributionsSumToTotalVariance(t *testing.T) {
	model := testModel(t)
	builder := NewBuilder(zerolog.Nop())

	view, err := builder.Build(domain.Weights{"AAPL": 0.5, "MSFT": 0.3, "CASH": 0.2}, model)
	require.NoError(t, err)

	sum := 0.0
	pctSum := 0.0
	for _, c := range view.Contributions {
		sum += c.Contribution
		pctSum += c.Pct
	}
	assert.InDelta(t, view.TotalVariance, sum, 1e-6*view.TotalVariance)
	assert.InDelta(t, 100.0, pctSum, 1e-6)

	// Sorted by contribution, largest first.
	for i := 1; i < len(view.Contributions); i++ {
		assert.GreaterOrEqual(t, view.Contributions[i-1].Contribution, view.Contributions[i].Contribution)
	}
}

func TestBuilder_Build_SinglePosition(t *testing.T) {
	model := testModel(t)
	builder := NewBuilder(zerolog.Nop())

	view, err := builder.Build(domain.Weights{"AAPL": 1.0}, model)
	require.NoError(t, err)

	require.Len(t, view.Contributions, 1)
	assert.InDelta(t, 100.0, view.Contributions[0].Pct, 1e-9)
	assert.InDelta(t, 1.0, view.Herfindahl, 1e-12)
}

func TestBuilder_Build_AllCashPortfolio(t *testing.T) {
	model := testModel(t)
	builder := NewBuilder(zerolog.Nop())

	view, err := builder.Build(domain.Weights{"CASH": 1.0}, model)
	require.NoError(t, err)

	assert.Zero(t, view.TotalVariance)
	assert.Zero(t, view.AnnualVolatility)
	assert.Zero(t, view.MonthlyVolatility)
	for _, row := range view.Decomposition {
		assert.False(t, math.IsNaN(row.Pct), "pct must stay finite for zero variance")
		assert.Zero(t, row.Pct)
	}
	require.Len(t, view.Correlations.Values, 1)
	assert.Equal(t, 1.0, view.Correlations.Values[0][0])
}

func TestBuilder_Build_Matrices(t *testing.T) {
	model := testModel(t)
	builder := NewBuilder(zerolog.Nop())

	view, err := builder.Build(domain.Weights{"AAPL": 0.5, "MSFT": 0.3, "CASH": 0.2}, model)
	require.NoError(t, err)

	require.Equal(t, []string{"AAPL", "CASH", "MSFT"}, view.Covariances.Labels)
	n := len(view.Covariances.Labels)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			assert.InDelta(t, view.Covariances.Values[i][j], view.Covariances.Values[j][i], 1e-15)
			if i == j {
				assert.Equal(t, 1.0, view.Correlations.Values[i][i])
			} else {
				assert.LessOrEqual(t, math.Abs(view.Correlations.Values[i][j]), 1.0+1e-9)
			}
		}
	}
}

func TestBuilder_Build_UnknownTicker(t *testing.T) {
	model := testModel(t)
	builder := NewBuilder(zerolog.Nop())

	_, err := builder.Build(domain.Weights{"AAPL": 0.5, "GHOST": 0.5}, model)
	require.Error(t, err)
	assert.True(t, domain.IsNumerical(err))
}

func TestBuilder_Build_EmptyWeights(t *testing.T) {
	builder := NewBuilder(zerolog.Nop())
	_, err := builder.Build(domain.Weights{}, testModel(t))
	assert.Error(t, err)
}
