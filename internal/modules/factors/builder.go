package factors

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/argus/internal/domain"
	"github.com/aristath/argus/internal/marketdata"
)

// Config tunes the builder.
type Config struct {
	// MinObservations is the smallest usable overlap between a ticker and
	// its factor proxies. Below it the regression is not attempted.
	MinObservations int
	// Workers bounds the parallel per-position regressions.
	Workers int
}

// DefaultMinObservations requires roughly three months of daily data.
const DefaultMinObservations = 60

const defaultWorkers = 8

// Builder constructs factor models from price history.
type Builder struct {
	provider domain.PriceProvider
	cfg      Config
	log      zerolog.Logger
}

// NewBuilder creates a factor model builder.
func NewBuilder(provider domain.PriceProvider, cfg Config, log zerolog.Logger) *Builder {
	if cfg.MinObservations <= 0 {
		cfg.MinObservations = DefaultMinObservations
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Builder{
		provider: provider,
		cfg:      cfg,
		log:      log.With().Str("component", "factors").Logger(),
	}
}

// ResolvedProxies is the outcome of proxy selection for one analysis window:
// the chosen proxy per factor, fetched return series for every proxy in
// play, and warnings for factors or industry proxies that had to be skipped.
type ResolvedProxies struct {
	Set         *domain.FactorProxySet
	FactorOrder []string
	Chosen      map[string]string
	Returns     map[string]marketdata.ReturnSeries
	Warnings    []domain.DataWarning
}

// FactorReturns returns the chosen proxy series for each usable factor, in
// factor declaration order.
func (r *ResolvedProxies) FactorReturns() ([]string, []marketdata.ReturnSeries) {
	names := make([]string, 0, len(r.FactorOrder))
	series := make([]marketdata.ReturnSeries, 0, len(r.FactorOrder))
	for _, name := range r.FactorOrder {
		proxy, ok := r.Chosen[name]
		if !ok {
			continue
		}
		names = append(names, name)
		series = append(series, r.Returns[proxy])
	}
	return names, series
}

// ResolveProxies selects one proxy series per factor: candidates are tried
// in priority order and the first with at least MinObservations returns in
// the window wins. Factors with no usable candidate are skipped with a
// warning. Industry proxies named by the set are fetched here too, so every
// downstream regression works from one snapshot. This is the data-fetch
// stage: it is the only place ctx cancellation is honored.
func (b *Builder) ResolveProxies(ctx context.Context, set *domain.FactorProxySet, rng domain.DateRange) (*ResolvedProxies, error) {
	resolved := &ResolvedProxies{
		Set:         set,
		FactorOrder: set.FactorNames(),
		Chosen:      make(map[string]string, len(set.Factors)),
		Returns:     make(map[string]marketdata.ReturnSeries),
	}

	for _, factor := range set.Factors {
		for _, proxy := range factor.Proxies {
			series, err := b.fetchReturns(ctx, proxy, rng)
			if err != nil {
				if domain.IsDataUnavailable(err) {
					continue
				}
				return nil, err
			}
			if len(series.Values) < b.cfg.MinObservations {
				continue
			}
			resolved.Chosen[factor.Name] = proxy
			resolved.Returns[proxy] = series
			break
		}
		if _, ok := resolved.Chosen[factor.Name]; !ok {
			resolved.Warnings = append(resolved.Warnings, domain.DataWarning{
				Ticker: factor.Name,
				Reason: fmt.Sprintf("factor skipped: no proxy with %d observations in range", b.cfg.MinObservations),
			})
			b.log.Warn().
				Str("factor", factor.Name).
				Strs("candidates", factor.Proxies).
				Msg("No usable proxy for factor")
		}
	}

	if len(resolved.Chosen) == 0 {
		return nil, &domain.NumericalError{
			Op:     "proxy resolution",
			Reason: "no factor has a usable proxy series in the analysis range",
		}
	}

	for _, proxy := range set.IndustryProxies() {
		if _, ok := resolved.Returns[proxy]; ok {
			continue
		}
		series, err := b.fetchReturns(ctx, proxy, rng)
		if err != nil {
			if domain.IsDataUnavailable(err) {
				resolved.Warnings = append(resolved.Warnings, domain.DataWarning{
					Ticker: proxy,
					Reason: "industry proxy has no usable history; industry betas for its tickers are skipped",
				})
				continue
			}
			return nil, err
		}
		resolved.Returns[proxy] = series
	}

	// Cash proxies are fetched lazily per cash position in Build.

	b.log.Info().
		Int("factors", len(resolved.Chosen)).
		Int("series", len(resolved.Returns)).
		Msg("Resolved factor proxies")

	return resolved, nil
}

// Build regresses one ticker's returns against the resolved factor proxies.
// Cash-like tickers substitute their currency proxy's return series, so
// their volatility comes from the proxy. The returned error is scoped to
// the ticker; batch callers collect it as a warning.
func (b *Builder) Build(ctx context.Context, ticker string, resolved *ResolvedProxies, rng domain.DateRange) (*Model, error) {
	series, err := b.positionReturns(ctx, ticker, resolved, rng)
	if err != nil {
		return nil, err
	}

	names, factorSeries := resolved.FactorReturns()
	all := append([]marketdata.ReturnSeries{series}, factorSeries...)
	dates, aligned := marketdata.AlignSeries(all...)
	if len(dates) < b.cfg.MinObservations {
		return nil, &domain.DataUnavailableError{
			Ticker: ticker,
			Reason: fmt.Sprintf("only %d overlapping observations with factor proxies (need at least %d)",
				len(dates), b.cfg.MinObservations),
		}
	}

	fit, err := regress(aligned[0], aligned[1:])
	if err != nil {
		return nil, fmt.Errorf("building factor model for %s: %w", ticker, err)
	}

	model := &Model{
		Ticker:  ticker,
		Betas:   make(map[string]float64, len(names)),
		Alpha:   fit.alpha,
		IdioVol: fit.idioVol,
		R2:      fit.r2,
		Obs:     fit.obs,
	}
	for i, name := range names {
		model.Betas[name] = fit.betas[i]
	}

	b.attachIndustryBeta(model, series, resolved)

	b.log.Debug().
		Str("ticker", ticker).
		Int("obs", model.Obs).
		Float64("idio_vol", model.IdioVol).
		Float64("r2", model.R2).
		Msg("Built factor model")

	return model, nil
}

// positionReturns fetches the ticker's own return series, substituting the
// currency proxy for cash-like tickers.
func (b *Builder) positionReturns(ctx context.Context, ticker string, resolved *ResolvedProxies, rng domain.DateRange) (marketdata.ReturnSeries, error) {
	lookup := ticker
	if domain.IsCashLike(ticker) {
		proxy, ok := resolved.Set.CashProxy(ticker)
		if !ok {
			return marketdata.ReturnSeries{}, &domain.DataUnavailableError{
				Ticker: ticker,
				Reason: "no cash proxy configured",
			}
		}
		lookup = proxy
	}

	if series, ok := resolved.Returns[lookup]; ok {
		return series, nil
	}
	series, err := b.fetchReturns(ctx, lookup, rng)
	if err != nil {
		return marketdata.ReturnSeries{}, err
	}
	return series, nil
}

// attachIndustryBeta runs the simple per-ticker industry regression when the
// proxy set maps this ticker to an industry proxy with usable history.
func (b *Builder) attachIndustryBeta(model *Model, series marketdata.ReturnSeries, resolved *ResolvedProxies) {
	proxy, ok := resolved.Set.IndustryByTicker[model.Ticker]
	if !ok {
		return
	}
	proxySeries, ok := resolved.Returns[proxy]
	if !ok {
		return
	}

	dates, aligned := marketdata.AlignSeries(series, proxySeries)
	if len(dates) < b.cfg.MinObservations {
		return
	}
	fit, err := regress(aligned[0], aligned[1:2])
	if err != nil {
		return
	}

	model.IndustryProxy = proxy
	model.IndustryBeta = fit.betas[0]
}

// fetchReturns loads prices and differences them into returns.
func (b *Builder) fetchReturns(ctx context.Context, ticker string, rng domain.DateRange) (marketdata.ReturnSeries, error) {
	points, err := b.provider.PriceSeries(ctx, ticker, rng.Start, rng.End)
	if err != nil {
		return marketdata.ReturnSeries{}, err
	}
	series := marketdata.ReturnsFromPrices(points)
	if len(series.Values) == 0 {
		return marketdata.ReturnSeries{}, &domain.DataUnavailableError{
			Ticker: ticker,
			Reason: "price history too short to compute returns",
		}
	}
	return series, nil
}

// BuildResult pairs a ticker with its model or its position-scoped error.
type BuildResult struct {
	Ticker string
	Model  *Model
	Err    error
}

// BuildAll runs per-position regressions across a bounded worker pool and
// returns results in input order. The collection loop is the join barrier:
// BuildAll does not return until every worker has finished. Per-position
// failures are reported in the result slice, never escalated from here.
func (b *Builder) BuildAll(ctx context.Context, tickers []string, resolved *ResolvedProxies, rng domain.DateRange) []BuildResult {
	numTickers := len(tickers)
	if numTickers == 0 {
		return []BuildResult{}
	}

	jobs := make(chan jobItem, numTickers)
	results := make(chan resultItem, numTickers)

	numWorkers := b.cfg.Workers
	if numTickers < numWorkers {
		numWorkers = numTickers
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.worker(ctx, jobs, results, resolved, rng)
		}()
	}

	for idx, ticker := range tickers {
		jobs <- jobItem{index: idx, ticker: ticker}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]BuildResult, numTickers)
	for result := range results {
		out[result.index] = result.build
	}

	return out
}

// jobItem represents a single regression job
type jobItem struct {
	index  int
	ticker string
}

// resultItem represents the result of a regression job
type resultItem struct {
	index int
	build BuildResult
}

// worker processes regression jobs until the channel drains.
func (b *Builder) worker(ctx context.Context, jobs <-chan jobItem, results chan<- resultItem, resolved *ResolvedProxies, rng domain.DateRange) {
	for job := range jobs {
		model, err := b.Build(ctx, job.ticker, resolved, rng)
		results <- resultItem{
			index: job.index,
			build: BuildResult{Ticker: job.ticker, Model: model, Err: err},
		}
	}
}
