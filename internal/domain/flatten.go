package domain

import (
	"fmt"
	"sort"
	"strconv"
)

// KV is one flattened report entry. Flat forms exist so a result can be
// rendered or shipped over a wire format without re-querying the engine.
type KV struct {
	Key   string
	Value string
}

func f6(v float64) string  { return strconv.FormatFloat(v, 'f', 6, 64) }
func f10(v float64) string { return strconv.FormatFloat(v, 'f', 10, 64) }

func sortedFloatKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flat renders the analysis as ordered key-value pairs. Keys are stable
// across runs for identical inputs (maps are walked in sorted order).
func (a *AnalysisResult) Flat() []KV {
	out := []KV{
		{"run_id", a.RunID},
		{"range", a.Range.Key()},
		{"volatility.annual", f6(a.AnnualVolatility)},
		{"volatility.monthly", f6(a.MonthlyVolatility)},
		{"variance.total", f10(a.TotalVariance)},
		{"variance.factor", f10(a.FactorVariance)},
		{"variance.idiosyncratic", f10(a.IdioVariance)},
		{"herfindahl", f6(a.Herfindahl)},
	}
	for _, t := range a.Weights.Tickers() {
		out = append(out, KV{"weight." + t, f6(a.Weights[t])})
	}
	for _, name := range sortedFloatKeys(a.FactorBetas) {
		out = append(out, KV{"beta." + name, f6(a.FactorBetas[name])})
	}
	for _, proxy := range sortedFloatKeys(a.IndustryBetas) {
		out = append(out, KV{"beta.industry." + proxy, f6(a.IndustryBetas[proxy])})
	}
	for _, c := range a.Decomposition {
		out = append(out,
			KV{"decomposition." + c.Name + ".variance", f10(c.Variance)},
			KV{"decomposition." + c.Name + ".pct", f6(c.Pct)},
		)
	}
	for _, c := range a.Contributions {
		out = append(out,
			KV{"contribution." + c.Ticker + ".variance", f10(c.Contribution)},
			KV{"contribution." + c.Ticker + ".pct", f6(c.Pct)},
		)
	}
	for _, c := range a.Checks {
		prefix := "limit." + c.Metric
		out = append(out,
			KV{prefix + ".status", string(c.Status)},
			KV{prefix + ".current", f6(c.Current)},
			KV{prefix + ".limit", f6(c.Limit)},
			KV{prefix + ".utilization", f6(c.Utilization)},
		)
		if c.Detail != "" {
			out = append(out, KV{prefix + ".detail", c.Detail})
		}
	}
	out = append(out,
		KV{"score.overall", f6(a.Score.Overall)},
		KV{"score.band", a.Score.Band},
	)
	for _, c := range a.Score.Components {
		out = append(out, KV{"score." + c.Name, f6(c.Score)})
	}
	for i, r := range a.Score.Recommendations {
		out = append(out, KV{fmt.Sprintf("recommendation.%d", i), r})
	}
	for i, w := range a.Warnings {
		out = append(out, KV{fmt.Sprintf("warning.%d", i), w.String()})
	}
	return out
}

// Flat renders the optimization outcome, including the nested fresh analysis
// when the solve converged.
func (r *OptimizationResult) Flat() []KV {
	out := []KV{
		{"objective", string(r.Objective)},
		{"status", string(r.Status)},
		{"iterations", strconv.Itoa(r.Iterations)},
	}
	if r.Status == StatusConverged {
		out = append(out,
			KV{"expected_return", f6(r.ExpectedReturn)},
			KV{"achieved_volatility", f6(r.AchievedVolatility)},
		)
		for _, t := range r.Weights.Tickers() {
			out = append(out, KV{"weight." + t, f6(r.Weights[t])})
		}
	}
	for i, c := range r.Conflicts {
		out = append(out, KV{fmt.Sprintf("conflict.%d", i), c})
	}
	if r.Analysis != nil {
		for _, kv := range r.Analysis.Flat() {
			out = append(out, KV{"analysis." + kv.Key, kv.Value})
		}
	}
	return out
}

// Flat renders the scenario comparison: the applied delta, the per-metric
// differences, then both full analyses under base. and scenario. prefixes.
func (s *ScenarioResult) Flat() []KV {
	out := []KV{}
	if s.Name != "" {
		out = append(out, KV{"scenario", s.Name})
	}
	for _, t := range sortedFloatKeys(s.Delta) {
		out = append(out, KV{"delta." + t, f6(s.Delta[t])})
	}
	for _, d := range s.Deltas {
		out = append(out,
			KV{"change." + d.Name + ".base", f6(d.Base)},
			KV{"change." + d.Name + ".scenario", f6(d.Scenario)},
			KV{"change." + d.Name + ".delta", f6(d.Delta)},
		)
	}
	if s.Base != nil {
		for _, kv := range s.Base.Flat() {
			out = append(out, KV{"base." + kv.Key, kv.Value})
		}
	}
	if s.Scenario != nil {
		for _, kv := range s.Scenario.Flat() {
			out = append(out, KV{"scenario." + kv.Key, kv.Value})
		}
	}
	return out
}
