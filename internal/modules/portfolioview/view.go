// Package portfolioview aggregates weights and a covariance model into the
// portfolio risk picture: volatility, variance decomposition, per-position
// contributions, and correlation/covariance matrices.
package portfolioview

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/argus/internal/domain"
	"github.com/aristath/argus/internal/modules/riskmodel"
	"github.com/aristath/argus/pkg/formulas"
)

// Builder computes portfolio views. It holds no state beyond its logger, so
// one builder serves concurrent analyses.
type Builder struct {
	log zerolog.Logger
}

// NewBuilder creates a view builder.
func NewBuilder(log zerolog.Logger) *Builder {
	return &Builder{log: log.With().Str("component", "portfolioview").Logger()}
}

// View is the risk picture of one weight vector under one covariance model.
// Variances are per trading day; volatilities are annualized and monthly.
type View struct {
	Tickers []string  `json:"tickers"`
	Weights []float64 `json:"weights"`

	FactorBetas   map[string]float64 `json:"factor_betas"`
	IndustryBetas map[string]float64 `json:"industry_betas,omitempty"`

	FactorVariance    float64 `json:"factor_variance"`
	IdioVariance      float64 `json:"idio_variance"`
	TotalVariance     float64 `json:"total_variance"`
	AnnualVolatility  float64 `json:"annual_volatility"`
	MonthlyVolatility float64 `json:"monthly_volatility"`
	Herfindahl        float64 `json:"herfindahl"`

	Decomposition []domain.VarianceComponent    `json:"decomposition"`
	Contributions []domain.PositionContribution `json:"contributions"`
	Correlations  domain.Matrix                 `json:"correlations"`
	Covariances   domain.Matrix                 `json:"covariances"`
}

// Build computes the view. Weights are taken as given (the engine normalizes
// them); every ticker must be covered by the model. The decomposition is the
// Euler allocation: factor k contributes β_k·(Σ_F β)_k, each position
// contributes w_i·(Σ_pos w)_i, both summing exactly to their totals.
func (b *Builder) Build(weights domain.Weights, model *riskmodel.CovarianceModel) (*View, error) {
	if len(weights) == 0 {
		return nil, &domain.NumericalError{Op: "portfolio view", Reason: "no weights"}
	}
	if model == nil {
		return nil, &domain.NumericalError{Op: "portfolio view", Reason: "no covariance model"}
	}

	tickers := weights.Tickers()
	w := make([]float64, len(tickers))
	for i, ticker := range tickers {
		if !model.HasTicker(ticker) {
			return nil, &domain.NumericalError{
				Op:     "portfolio view",
				Reason: fmt.Sprintf("model does not cover %s", ticker),
			}
		}
		w[i] = weights[ticker]
	}

	view := &View{
		Tickers:     tickers,
		Weights:     w,
		FactorBetas: make(map[string]float64, len(model.Factors)),
	}

	// Portfolio factor betas: β_p = Σ_i w_i β_i.
	k := len(model.Factors)
	beta := make([]float64, k)
	for i, ticker := range tickers {
		for j, bij := range model.Betas[ticker] {
			beta[j] += w[i] * bij
		}
	}
	for j, name := range model.Factors {
		view.FactorBetas[name] = beta[j]
	}

	// Industry betas aggregate per proxy over the positions mapped to it.
	industry := make(map[string]float64)
	for i, ticker := range tickers {
		proxy, ok := model.IndustryProxy[ticker]
		if !ok {
			continue
		}
		industry[proxy] += w[i] * model.IndustryBeta[ticker]
	}
	if len(industry) > 0 {
		view.IndustryBetas = industry
	}

	// Factor variance βᵀ Σ_F β with the Euler split over factors.
	sigmaBeta := make([]float64, k)
	fcov := model.FactorCov()
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			sigmaBeta[i] += fcov.At(i, j) * beta[j]
		}
	}
	factorContrib := make([]float64, k)
	for i := 0; i < k; i++ {
		factorContrib[i] = beta[i] * sigmaBeta[i]
		view.FactorVariance += factorContrib[i]
	}

	for i, ticker := range tickers {
		view.IdioVariance += w[i] * w[i] * model.IdioVar[ticker]
		view.Herfindahl += w[i] * w[i]
	}
	view.TotalVariance = view.FactorVariance + view.IdioVariance
	view.AnnualVolatility = formulas.AnnualizeVariance(view.TotalVariance)
	view.MonthlyVolatility = formulas.MonthlyizeVariance(view.TotalVariance)

	pctOfTotal := func(v float64) float64 {
		if view.TotalVariance <= 0 {
			return 0
		}
		return v / view.TotalVariance * 100
	}

	view.Decomposition = make([]domain.VarianceComponent, 0, k+1)
	for i, name := range model.Factors {
		view.Decomposition = append(view.Decomposition, domain.VarianceComponent{
			Name:     name,
			Variance: factorContrib[i],
			Pct:      pctOfTotal(factorContrib[i]),
		})
	}
	view.Decomposition = append(view.Decomposition, domain.VarianceComponent{
		Name:     domain.IdiosyncraticComponent,
		Variance: view.IdioVariance,
		Pct:      pctOfTotal(view.IdioVariance),
	})

	// Position contributions from the position covariance Σ_pos = BΣ_FBᵀ + D.
	posCov, err := model.PositionCovariance(tickers)
	if err != nil {
		return nil, err
	}
	view.Contributions = make([]domain.PositionContribution, len(tickers))
	for i, ticker := range tickers {
		mc := 0.0
		for j := range tickers {
			mc += posCov.At(i, j) * w[j]
		}
		contrib := w[i] * mc
		view.Contributions[i] = domain.PositionContribution{
			Ticker:       ticker,
			Weight:       w[i],
			Contribution: contrib,
			Pct:          pctOfTotal(contrib),
		}
	}
	sort.SliceStable(view.Contributions, func(i, j int) bool {
		ci, cj := view.Contributions[i], view.Contributions[j]
		if ci.Contribution != cj.Contribution {
			return ci.Contribution > cj.Contribution
		}
		return ci.Ticker < cj.Ticker
	})

	view.Covariances = matrixFrom(tickers, posCov)
	view.Correlations = correlationsFrom(tickers, posCov)

	b.log.Debug().
		Int("positions", len(tickers)).
		Float64("annual_vol", view.AnnualVolatility).
		Float64("factor_pct", pctOfTotal(view.FactorVariance)).
		Msg("Built portfolio view")

	return view, nil
}

func matrixFrom(labels []string, sym *mat.SymDense) domain.Matrix {
	n := len(labels)
	values := make([][]float64, n)
	for i := 0; i < n; i++ {
		values[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			values[i][j] = sym.At(i, j)
		}
	}
	return domain.Matrix{Labels: append([]string(nil), labels...), Values: values}
}

// correlationsFrom normalizes a covariance matrix to correlations. Positions
// with zero variance (pure cash) get a unit diagonal and zero correlation to
// everything else.
func correlationsFrom(labels []string, sym *mat.SymDense) domain.Matrix {
	n := len(labels)
	values := make([][]float64, n)
	for i := 0; i < n; i++ {
		values[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				values[i][j] = 1.0
				continue
			}
			vi, vj := sym.At(i, i), sym.At(j, j)
			if vi <= 0 || vj <= 0 {
				continue
			}
			values[i][j] = sym.At(i, j) / math.Sqrt(vi*vj)
		}
	}
	return domain.Matrix{Labels: append([]string(nil), labels...), Values: values}
}
