package riskmodel

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/argus/internal/domain"
	"github.com/aristath/argus/internal/marketdata"
	"github.com/aristath/argus/internal/modules/factors"
)

// Config tunes covariance estimation.
type Config struct {
	// HalfLifeDays enables exponential observation weighting when > 0.
	// Zero keeps the plain equally-weighted sample estimator.
	HalfLifeDays float64
}

// Builder estimates the factor covariance matrix and assembles it with
// per-position factor models into a CovarianceModel.
type Builder struct {
	cfg Config
	log zerolog.Logger
}

// NewBuilder creates a covariance model builder.
func NewBuilder(cfg Config, log zerolog.Logger) *Builder {
	return &Builder{
		cfg: cfg,
		log: log.With().Str("component", "riskmodel").Logger(),
	}
}

// CovarianceModel is the assembled multi-factor risk model: factor covariance
// estimated from the chosen proxy series, per-ticker beta vectors aligned to
// Factors, and per-ticker idiosyncratic variance. Idiosyncratic risk is
// modeled as cross-position uncorrelated, so the position covariance is
// B Σ_F Bᵀ + diag(σ²). All variances are per trading day.
type CovarianceModel struct {
	Factors       []string             `json:"factors"`
	Tickers       []string             `json:"tickers"`
	Betas         map[string][]float64 `json:"betas"`
	IdioVar       map[string]float64   `json:"idio_var"`
	IndustryProxy map[string]string    `json:"industry_proxy,omitempty"`
	IndustryBeta  map[string]float64   `json:"industry_beta,omitempty"`
	Obs           int                  `json:"obs"`
	Ridge         float64              `json:"ridge,omitempty"`
	Correlations  []CorrelationPair    `json:"correlations,omitempty"`

	factorCov *mat.SymDense
}

// Build estimates the factor covariance from the resolved proxy series and
// attaches the per-position models. Results with a nil Model (positions whose
// data failed) are skipped; the caller owns the exclude-or-abort decision.
func (b *Builder) Build(resolved *factors.ResolvedProxies, results []factors.BuildResult) (*CovarianceModel, error) {
	names, series := resolved.FactorReturns()
	if len(names) == 0 {
		return nil, &domain.NumericalError{Op: "covariance estimation", Reason: "no usable factor series"}
	}

	_, aligned := marketdata.AlignSeries(series...)
	obs := 0
	if len(aligned) > 0 {
		obs = len(aligned[0])
	}
	if obs < 2 {
		return nil, &domain.NumericalError{
			Op:     "covariance estimation",
			Reason: fmt.Sprintf("factor proxies share only %d common observations", obs),
		}
	}

	weights := uniformWeights(obs)
	if b.cfg.HalfLifeDays > 0 {
		decayed, err := timeDecayWeights(obs, b.cfg.HalfLifeDays)
		if err != nil {
			return nil, &domain.NumericalError{Op: "covariance estimation", Reason: err.Error()}
		}
		weights = decayed
	}

	sample, err := sampleCovariance(aligned, weights)
	if err != nil {
		return nil, &domain.NumericalError{Op: "covariance estimation", Reason: err.Error()}
	}

	shrunk := applyLedoitWolfShrinkage(sample)

	repaired, ridge, err := ensurePositiveDefinite(shrunk)
	if err != nil {
		return nil, &domain.NumericalError{Op: "covariance regularization", Reason: err.Error()}
	}
	if ridge > 0 {
		b.log.Warn().
			Float64("ridge", ridge).
			Msg("Factor covariance required diagonal ridge")
	}

	model := &CovarianceModel{
		Factors:       names,
		Betas:         make(map[string][]float64),
		IdioVar:       make(map[string]float64),
		IndustryProxy: make(map[string]string),
		IndustryBeta:  make(map[string]float64),
		Obs:           obs,
		Ridge:         ridge,
		Correlations:  highCorrelations(repaired, names, HighCorrelationThreshold),
		factorCov:     repaired,
	}

	for _, r := range results {
		if r.Model == nil {
			continue
		}
		betas := make([]float64, len(names))
		for i, name := range names {
			betas[i] = r.Model.Betas[name] // absent factor contributes zero
		}
		model.Tickers = append(model.Tickers, r.Ticker)
		model.Betas[r.Ticker] = betas
		model.IdioVar[r.Ticker] = r.Model.IdioVariance()
		if r.Model.IndustryProxy != "" {
			model.IndustryProxy[r.Ticker] = r.Model.IndustryProxy
			model.IndustryBeta[r.Ticker] = r.Model.IndustryBeta
		}
	}
	sort.Strings(model.Tickers)

	if len(model.Tickers) == 0 {
		return nil, &domain.NumericalError{Op: "risk model assembly", Reason: "no position has a factor model"}
	}

	b.log.Info().
		Int("factors", len(names)).
		Int("tickers", len(model.Tickers)).
		Int("obs", obs).
		Int("high_correlations", len(model.Correlations)).
		Msg("Assembled covariance model")

	return model, nil
}

// FactorCov returns the factor covariance matrix (per-day units).
func (m *CovarianceModel) FactorCov() *mat.SymDense {
	return m.factorCov
}

// HasTicker reports whether the model covers a ticker.
func (m *CovarianceModel) HasTicker(ticker string) bool {
	_, ok := m.Betas[ticker]
	return ok
}

// BetaVector returns the ticker's betas aligned to Factors.
func (m *CovarianceModel) BetaVector(ticker string) ([]float64, error) {
	betas, ok := m.Betas[ticker]
	if !ok {
		return nil, &domain.NumericalError{Op: "risk model lookup", Reason: "no factor model for " + ticker}
	}
	return betas, nil
}

// PositionCovariance builds the position-level covariance B Σ_F Bᵀ + diag(σ²)
// over the given tickers, in their order. Every ticker must be covered by the
// model.
func (m *CovarianceModel) PositionCovariance(tickers []string) (*mat.SymDense, error) {
	n := len(tickers)
	if n == 0 {
		return nil, &domain.NumericalError{Op: "position covariance", Reason: "no tickers"}
	}
	k := len(m.Factors)

	beta := mat.NewDense(n, k, nil)
	for i, ticker := range tickers {
		v, err := m.BetaVector(ticker)
		if err != nil {
			return nil, err
		}
		beta.SetRow(i, v)
	}

	var bs mat.Dense
	bs.Mul(beta, m.factorCov)
	var systematic mat.Dense
	systematic.Mul(&bs, beta.T())

	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := systematic.At(i, j)
			if i == j {
				v += m.IdioVar[tickers[i]]
			}
			cov.SetSym(i, j, v)
		}
	}
	return cov, nil
}

// RebuildFor returns a model restricted to the given tickers, reusing the
// factor covariance. Used by the scenario engine when a delta introduces no
// new position data requirement.
func (m *CovarianceModel) RebuildFor(tickers []string) (*CovarianceModel, error) {
	out := &CovarianceModel{
		Factors:       m.Factors,
		Betas:         make(map[string][]float64, len(tickers)),
		IdioVar:       make(map[string]float64, len(tickers)),
		IndustryProxy: make(map[string]string),
		IndustryBeta:  make(map[string]float64),
		Obs:           m.Obs,
		Ridge:         m.Ridge,
		Correlations:  m.Correlations,
		factorCov:     m.factorCov,
	}
	for _, ticker := range tickers {
		betas, ok := m.Betas[ticker]
		if !ok {
			return nil, &domain.NumericalError{Op: "risk model restriction", Reason: "no factor model for " + ticker}
		}
		out.Tickers = append(out.Tickers, ticker)
		out.Betas[ticker] = betas
		out.IdioVar[ticker] = m.IdioVar[ticker]
		if proxy, ok := m.IndustryProxy[ticker]; ok {
			out.IndustryProxy[ticker] = proxy
			out.IndustryBeta[ticker] = m.IndustryBeta[ticker]
		}
	}
	sort.Strings(out.Tickers)
	return out, nil
}
