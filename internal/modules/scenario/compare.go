package scenario

import (
	"sort"

	"github.com/aristath/argus/internal/domain"
)

// Compare assembles the before/after report from two analyses of the same
// window and risk model. The metric list is fixed and ordered, with one
// variance-contribution row per position across the union of both sides, so
// reports diff cleanly between runs.
func Compare(name string, delta Delta, base, scen *domain.AnalysisResult) *domain.ScenarioResult {
	deltas := []domain.MetricDelta{
		metricDelta("annual_volatility", base.AnnualVolatility, scen.AnnualVolatility),
		metricDelta("monthly_volatility", base.MonthlyVolatility, scen.MonthlyVolatility),
		metricDelta("total_variance", base.TotalVariance, scen.TotalVariance),
		metricDelta("factor_variance_pct", factorSharePct(base), factorSharePct(scen)),
		metricDelta("herfindahl", base.Herfindahl, scen.Herfindahl),
		metricDelta("score", base.Score.Overall, scen.Score.Overall),
	}

	baseContrib := contributionsByTicker(base)
	scenContrib := contributionsByTicker(scen)
	for _, ticker := range unionTickers(baseContrib, scenContrib) {
		deltas = append(deltas, metricDelta(
			"contribution."+ticker, baseContrib[ticker], scenContrib[ticker],
		))
	}

	return &domain.ScenarioResult{
		Name:     name,
		Delta:    delta,
		Base:     base,
		Scenario: scen,
		Deltas:   deltas,
	}
}

func metricDelta(name string, base, scen float64) domain.MetricDelta {
	return domain.MetricDelta{
		Name:     name,
		Base:     base,
		Scenario: scen,
		Delta:    scen - base,
	}
}

// factorSharePct is the systematic share of total variance, in percent.
func factorSharePct(res *domain.AnalysisResult) float64 {
	if res.TotalVariance <= 0 {
		return 0
	}
	return res.FactorVariance / res.TotalVariance * 100
}

func contributionsByTicker(res *domain.AnalysisResult) map[string]float64 {
	out := make(map[string]float64, len(res.Contributions))
	for _, c := range res.Contributions {
		out[c.Ticker] = c.Contribution
	}
	return out
}

func unionTickers(a, b map[string]float64) []string {
	set := make(map[string]bool, len(a)+len(b))
	for t := range a {
		set[t] = true
	}
	for t := range b {
		set[t] = true
	}
	tickers := make([]string, 0, len(set))
	for t := range set {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}
