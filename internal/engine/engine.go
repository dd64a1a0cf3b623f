// Package engine wires the full pipeline behind one facade: holdings are
// valued into weights, factor models and the covariance matrix are built
// (and cached), and the resulting view is checked, scored, optimized or
// compared against what-if deltas.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/aristath/argus/internal/domain"
	"github.com/aristath/argus/internal/modules/calculations"
	"github.com/aristath/argus/internal/modules/factors"
	"github.com/aristath/argus/internal/modules/limits"
	"github.com/aristath/argus/internal/modules/optimization"
	"github.com/aristath/argus/internal/modules/portfolioview"
	"github.com/aristath/argus/internal/modules/riskmodel"
	"github.com/aristath/argus/internal/modules/scenario"
	"github.com/aristath/argus/internal/modules/scoring"
	"github.com/aristath/argus/internal/utils"
)

// Config tunes the pipeline.
type Config struct {
	// Workers bounds the parallel per-position regressions.
	Workers int
	// MinObservations is the smallest usable return overlap for a
	// regression.
	MinObservations int
	// HalfLifeDays enables exponential observation weighting in the
	// factor covariance when > 0.
	HalfLifeDays float64
	// Scoring tunes the risk score decay and component weights.
	Scoring scoring.Config
}

// Engine is the single entry point for analyses, optimizations and
// scenario comparisons. It is safe for concurrent use.
type Engine struct {
	provider  domain.PriceProvider
	factors   *factors.Builder
	risk      *riskmodel.Builder
	views     *portfolioview.Builder
	limits    *limits.Evaluator
	scorer    *scoring.Scorer
	optimizer *optimization.Optimizer
	returns   *optimization.ReturnsEstimator
	cache     *calculations.Cache
	scenarios map[string]scenario.Delta
	flight    singleflight.Group
	log       zerolog.Logger
}

// New assembles the engine. cache may be nil to disable result reuse;
// scenarios holds the named what-if deltas available to Scenario.
func New(provider domain.PriceProvider, cache *calculations.Cache, scenarios map[string]scenario.Delta, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		provider:  provider,
		factors:   factors.NewBuilder(provider, factors.Config{MinObservations: cfg.MinObservations, Workers: cfg.Workers}, log),
		risk:      riskmodel.NewBuilder(riskmodel.Config{HalfLifeDays: cfg.HalfLifeDays}, log),
		views:     portfolioview.NewBuilder(log),
		limits:    limits.NewEvaluator(log),
		scorer:    scoring.NewScorer(cfg.Scoring, log),
		optimizer: optimization.NewOptimizer(log),
		returns:   optimization.NewReturnsEstimator(provider, log),
		cache:     cache,
		scenarios: scenarios,
		log:       log.With().Str("component", "engine").Logger(),
	}
}

// Analyze values the holdings, builds the risk model and returns the full
// risk picture: exposures, variance decomposition, limit checks and score.
//
// Identical requests share work twice over: results are cached under a
// fingerprint of weights, window, proxies and limits, and concurrent
// requests for the same fingerprint collapse into one computation.
func (e *Engine) Analyze(ctx context.Context, spec *domain.PortfolioSpec, limitsSpec domain.RiskLimitsSpec) (*domain.AnalysisResult, error) {
	weights, warnings, proxies, err := e.intake(ctx, spec, limitsSpec)
	if err != nil {
		return nil, err
	}

	key := analysisKey(weights, spec.Range, proxies, limitsSpec)
	if res, ok := e.cachedAnalysis(key); ok {
		return res, nil
	}

	v, err, _ := e.flight.Do(key, func() (interface{}, error) {
		if res, ok := e.cachedAnalysis(key); ok {
			return res, nil
		}
		prep, err := e.prepare(ctx, weights, spec.Range, proxies)
		if err != nil {
			return nil, err
		}
		res, err := e.assemble(prep.weights, prep.model, spec.Range, limitsSpec, append(warnings, prep.warnings...))
		if err != nil {
			return nil, err
		}
		e.storeAnalysis(key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.AnalysisResult), nil
}

// Optimize solves for new weights under the limit table and, when the solve
// converges, re-analyzes the solution so the caller gets the same risk
// picture an Analyze of those weights would produce. Infeasible limit
// tables and solver failures are reported in the result status, not as
// errors.
func (e *Engine) Optimize(ctx context.Context, spec *domain.PortfolioSpec, limitsSpec domain.RiskLimitsSpec, objective domain.Objective) (*domain.OptimizationResult, error) {
	switch objective {
	case domain.ObjectiveMinVariance, domain.ObjectiveMaxReturn:
	default:
		return nil, &domain.ConfigurationError{Field: "objective", Reason: fmt.Sprintf("unknown objective %q", objective)}
	}

	weights, warnings, proxies, err := e.intake(ctx, spec, limitsSpec)
	if err != nil {
		return nil, err
	}

	prep, err := e.prepare(ctx, weights, spec.Range, proxies)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, prep.warnings...)

	expected := spec.ExpectedReturns
	if objective == domain.ObjectiveMaxReturn {
		estimated, estWarnings := e.returns.Estimate(ctx, prep.weights.Tickers(), spec.Range, spec.ExpectedReturns, proxies)
		expected = estimated
		warnings = append(warnings, estWarnings...)
	}

	result, err := e.optimizer.Solve(optimization.Request{
		Objective: objective,
		Weights:   prep.weights,
		Expected:  expected,
		Model:     prep.model,
		Limits:    limitsSpec,
	})
	if err != nil {
		return nil, err
	}

	if result.Status == domain.StatusConverged {
		analysis, err := e.assemble(result.Weights, prep.model, spec.Range, limitsSpec, warnings)
		if err != nil {
			return nil, err
		}
		result.Analysis = analysis
		e.storeAnalysis(analysisKey(result.Weights, spec.Range, proxies, limitsSpec), analysis)
	}
	return result, nil
}

// Scenario applies a what-if weight delta and compares the risk picture
// before and after. delta may be given inline; otherwise name selects one
// of the configured scenarios. Both sides are priced under one covariance
// model built over the union of tickers, so metric deltas reflect the
// reweighting alone. Unlike Analyze, a position without usable history is
// not dropped: it fails the run, because a comparison missing one side's
// position answers a different question than the one asked.
func (e *Engine) Scenario(ctx context.Context, spec *domain.PortfolioSpec, limitsSpec domain.RiskLimitsSpec, name string, delta scenario.Delta) (*domain.ScenarioResult, error) {
	if delta == nil {
		configured, ok := e.scenarios[name]
		if !ok {
			return nil, &domain.ConfigurationError{Field: "scenario", Reason: fmt.Sprintf("unknown scenario %q", name)}
		}
		delta = configured
	}
	if name == "" {
		name = "adhoc"
	}

	weights, warnings, proxies, err := e.intake(ctx, spec, limitsSpec)
	if err != nil {
		return nil, err
	}

	scenWeights, err := scenario.Apply(weights, delta)
	if err != nil {
		return nil, err
	}

	union := weights.Clone()
	for ticker := range scenWeights {
		if _, ok := union[ticker]; !ok {
			union[ticker] = 0
		}
	}

	prep, err := e.prepare(ctx, union, spec.Range, proxies)
	if err != nil {
		return nil, err
	}
	if len(prep.dropped) > 0 {
		return nil, &domain.DataUnavailableError{
			Ticker: prep.dropped[0],
			Reason: "scenario needs usable history for every position on both sides",
		}
	}
	warnings = append(warnings, prep.warnings...)

	base, err := e.assemble(weights, prep.model, spec.Range, limitsSpec, warnings)
	if err != nil {
		return nil, err
	}
	scen, err := e.assemble(scenWeights, prep.model, spec.Range, limitsSpec, warnings)
	if err != nil {
		return nil, err
	}
	e.storeAnalysis(analysisKey(weights, spec.Range, proxies, limitsSpec), base)

	return scenario.Compare(name, delta, base, scen), nil
}

// intake runs the shared input validation and valuation stage.
func (e *Engine) intake(ctx context.Context, spec *domain.PortfolioSpec, limitsSpec domain.RiskLimitsSpec) (domain.Weights, []domain.DataWarning, *domain.FactorProxySet, error) {
	if spec == nil {
		return nil, nil, nil, &domain.ConfigurationError{Field: "portfolio", Reason: "spec is required"}
	}
	if err := spec.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if err := limitsSpec.Validate(); err != nil {
		return nil, nil, nil, err
	}
	proxies := spec.Proxies
	if proxies == nil {
		proxies = domain.DefaultProxySet()
	}
	weights, warnings, err := e.weightsFromSpec(ctx, spec)
	if err != nil {
		return nil, nil, nil, err
	}
	return weights, warnings, proxies, nil
}

// prepared carries the outputs of the model-building stage.
type prepared struct {
	weights  domain.Weights
	model    *riskmodel.CovarianceModel
	warnings []domain.DataWarning
	dropped  []string
}

// prepare builds (or restores from cache) the covariance model covering the
// weight tickers. Positions whose factor model cannot be built are dropped
// with a warning and the survivors renormalized; the caller decides whether
// dropping is acceptable. The cached fast path carries no fetch warnings
// because nothing was fetched.
func (e *Engine) prepare(ctx context.Context, weights domain.Weights, rng domain.DateRange, proxies *domain.FactorProxySet) (*prepared, error) {
	tickers := weights.Tickers()

	if model, ok := e.cachedCovariance(tickers, rng, proxies); ok {
		e.log.Debug().Int("tickers", len(tickers)).Msg("Covariance cache hit")
		return &prepared{weights: weights, model: model}, nil
	}

	defer utils.OperationTimer("build_risk_model", e.log)()

	resolved, err := e.factors.ResolveProxies(ctx, proxies, rng)
	if err != nil {
		return nil, err
	}
	warnings := append([]domain.DataWarning(nil), resolved.Warnings...)

	results := e.buildPositionModels(ctx, tickers, resolved, rng, proxies)
	failures := make(map[string]string)
	for _, r := range results {
		if r.Err != nil {
			failures[r.Ticker] = r.Err.Error()
		}
	}

	kept := weights.Clone()
	dropped := make([]string, 0, len(failures))
	for _, ticker := range tickers {
		reason, ok := failures[ticker]
		if !ok {
			continue
		}
		warnings = append(warnings, domain.DataWarning{Ticker: ticker, Reason: reason})
		dropped = append(dropped, ticker)
		delete(kept, ticker)
	}
	if len(kept) == 0 {
		return nil, &domain.DataUnavailableError{
			Ticker: "portfolio",
			Reason: "no position has usable history",
		}
	}
	if len(dropped) > 0 {
		kept = kept.Normalized()
		e.log.Warn().Strs("tickers", dropped).Msg("Excluded positions without usable factor models")
	}

	model, err := e.risk.Build(resolved, results)
	if err != nil {
		return nil, err
	}
	e.storeCovariance(model, rng, proxies)

	return &prepared{weights: kept, model: model, warnings: warnings, dropped: dropped}, nil
}

// buildPositionModels restores per-ticker factor models from the cache and
// regresses only the misses. Only successes are cached; failures stay
// retryable.
func (e *Engine) buildPositionModels(ctx context.Context, tickers []string, resolved *factors.ResolvedProxies, rng domain.DateRange, proxies *domain.FactorProxySet) []factors.BuildResult {
	results := make([]factors.BuildResult, 0, len(tickers))
	misses := make([]string, 0, len(tickers))

	for _, ticker := range tickers {
		if e.cache != nil {
			model := new(factors.Model)
			hit, err := e.cache.Get(modelKey(ticker, rng, proxies), calculations.KindFactorModel, model)
			if err != nil {
				e.log.Warn().Err(err).Str("ticker", ticker).Msg("Factor model cache read failed")
			} else if hit {
				results = append(results, factors.BuildResult{Ticker: ticker, Model: model})
				continue
			}
		}
		misses = append(misses, ticker)
	}
	if len(misses) == 0 {
		return results
	}

	for _, r := range e.factors.BuildAll(ctx, misses, resolved, rng) {
		if r.Err == nil {
			e.storeModel(modelKey(r.Ticker, rng, proxies), r.Model)
		}
		results = append(results, r)
	}
	return results
}

// assemble turns a weight vector and a covariance model into the final
// analysis result.
func (e *Engine) assemble(weights domain.Weights, model *riskmodel.CovarianceModel, rng domain.DateRange, limitsSpec domain.RiskLimitsSpec, warnings []domain.DataWarning) (*domain.AnalysisResult, error) {
	view, err := e.views.Build(weights, model)
	if err != nil {
		return nil, err
	}

	checks := e.limits.Evaluate(view, limitsSpec)
	score := e.scorer.Score(checks)

	return &domain.AnalysisResult{
		GeneratedAt:       time.Now().UTC(),
		RunID:             uuid.NewString(),
		Range:             rng,
		Tickers:           view.Tickers,
		Weights:           weights,
		FactorBetas:       view.FactorBetas,
		IndustryBetas:     view.IndustryBetas,
		Decomposition:     view.Decomposition,
		Contributions:     view.Contributions,
		Checks:            checks,
		Warnings:          warnings,
		Correlations:      view.Correlations,
		Covariances:       view.Covariances,
		Score:             score,
		TotalVariance:     view.TotalVariance,
		FactorVariance:    view.FactorVariance,
		IdioVariance:      view.IdioVariance,
		AnnualVolatility:  view.AnnualVolatility,
		MonthlyVolatility: view.MonthlyVolatility,
		Herfindahl:        view.Herfindahl,
	}, nil
}

func (e *Engine) cachedAnalysis(key string) (*domain.AnalysisResult, bool) {
	if e.cache == nil {
		return nil, false
	}
	res := new(domain.AnalysisResult)
	hit, err := e.cache.Get(key, calculations.KindAnalysis, res)
	if err != nil {
		e.log.Warn().Err(err).Msg("Analysis cache read failed")
		return nil, false
	}
	if !hit {
		return nil, false
	}
	e.log.Debug().Str("run_id", res.RunID).Msg("Analysis cache hit")
	return res, true
}

func (e *Engine) storeAnalysis(key string, res *domain.AnalysisResult) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Put(key, calculations.KindAnalysis, res); err != nil {
		e.log.Warn().Err(err).Msg("Analysis cache write failed")
	}
}

func (e *Engine) storeModel(key string, model *factors.Model) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Put(key, calculations.KindFactorModel, model); err != nil {
		e.log.Warn().Err(err).Str("ticker", model.Ticker).Msg("Factor model cache write failed")
	}
}

func (e *Engine) cachedCovariance(tickers []string, rng domain.DateRange, proxies *domain.FactorProxySet) (*riskmodel.CovarianceModel, bool) {
	if e.cache == nil {
		return nil, false
	}
	model := new(riskmodel.CovarianceModel)
	hit, err := e.cache.Get(covarianceKey(tickers, rng, proxies), calculations.KindCovariance, model)
	if err != nil {
		e.log.Warn().Err(err).Msg("Covariance cache read failed")
		return nil, false
	}
	if !hit {
		return nil, false
	}
	return model, true
}

func (e *Engine) storeCovariance(model *riskmodel.CovarianceModel, rng domain.DateRange, proxies *domain.FactorProxySet) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Put(covarianceKey(model.Tickers, rng, proxies), calculations.KindCovariance, model); err != nil {
		e.log.Warn().Err(err).Msg("Covariance cache write failed")
	}
}
