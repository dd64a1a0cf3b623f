// Package limits evaluates a portfolio view against configured risk
// ceilings, producing the ordered pass/fail check table.
package limits

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/argus/internal/domain"
	"github.com/aristath/argus/internal/modules/portfolioview"
)

// Evaluator compares computed risk metrics against a RiskLimitsSpec.
type Evaluator struct {
	log zerolog.Logger
}

// NewEvaluator creates a limit evaluator.
func NewEvaluator(log zerolog.Logger) *Evaluator {
	return &Evaluator{log: log.With().Str("component", "limits").Logger()}
}

// Evaluate runs every configured rule against the view and returns the check
// table in canonical order: portfolio volatility, max position weight, factor
// variance share, factor betas (market, momentum, value, then others sorted),
// industry betas (sorted by proxy). Rules with a zero or absent limit are
// skipped entirely. Utilization is |current/limit| as a percentage.
func (e *Evaluator) Evaluate(view *portfolioview.View, spec domain.RiskLimitsSpec) []domain.LimitCheck {
	checks := make([]domain.LimitCheck, 0, 8)

	if spec.MaxAnnualVolatility > 0 {
		checks = append(checks, newCheck(
			"portfolio_volatility", "",
			view.AnnualVolatility, spec.MaxAnnualVolatility,
		))
	}

	if spec.MaxPositionWeight > 0 && len(view.Weights) > 0 {
		worst := 0
		for i := range view.Weights {
			if math.Abs(view.Weights[i]) > math.Abs(view.Weights[worst]) {
				worst = i
			}
		}
		checks = append(checks, newCheck(
			"max_position_weight", view.Tickers[worst],
			view.Weights[worst], spec.MaxPositionWeight,
		))
	}

	if spec.MaxFactorVariancePct > 0 {
		factorPct := 0.0
		if view.TotalVariance > 0 {
			factorPct = view.FactorVariance / view.TotalVariance * 100
		}
		checks = append(checks, newCheck(
			"factor_variance_pct", "",
			factorPct, spec.MaxFactorVariancePct,
		))
	}

	// Factor beta rules apply only to factors the model actually measured:
	// a missing beta is unknown, not zero.
	for _, name := range factorBetaOrder(spec.MaxFactorBeta) {
		beta, measured := view.FactorBetas[name]
		if !measured {
			continue
		}
		checks = append(checks, newCheck(
			"factor_beta."+name, "",
			beta, spec.MaxFactorBeta[name],
		))
	}

	// Industry exposure defaults to zero when the portfolio holds nothing in
	// the proxy, so configured industry rules always report.
	for _, proxy := range sortedKeys(spec.MaxIndustryBeta) {
		if spec.MaxIndustryBeta[proxy] <= 0 {
			continue
		}
		checks = append(checks, newCheck(
			"industry_beta."+proxy, "",
			view.IndustryBetas[proxy], spec.MaxIndustryBeta[proxy],
		))
	}

	failed := 0
	for _, c := range checks {
		if c.Status == domain.CheckFail {
			failed++
		}
	}
	e.log.Debug().
		Int("checks", len(checks)).
		Int("failed", failed).
		Str("limits_version", spec.Fingerprint()).
		Msg("Evaluated risk limits")

	return checks
}

// newCheck builds one table row. Magnitude decides pass/fail so symmetric
// (short) exposures are held to the same ceiling.
func newCheck(metric, detail string, current, limit float64) domain.LimitCheck {
	status := domain.CheckPass
	if math.Abs(current) > limit {
		status = domain.CheckFail
	}
	return domain.LimitCheck{
		Metric:      metric,
		Detail:      detail,
		Status:      status,
		Current:     current,
		Limit:       limit,
		Utilization: math.Abs(current) / limit * 100,
	}
}

// factorBetaOrder lists configured factor names with the canonical factors
// first, then any custom factors sorted by name.
func factorBetaOrder(configured map[string]float64) []string {
	canonical := []string{domain.FactorMarket, domain.FactorMomentum, domain.FactorValue}

	ordered := make([]string, 0, len(configured))
	seen := make(map[string]bool, len(configured))
	for _, name := range canonical {
		if configured[name] > 0 {
			ordered = append(ordered, name)
			seen[name] = true
		}
	}

	var rest []string
	for name, limit := range configured {
		if limit > 0 && !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Failures extracts the failing rows as human-readable conflict strings, in
// table order.
func Failures(checks []domain.LimitCheck) []string {
	var out []string
	for _, c := range checks {
		if c.Status != domain.CheckFail {
			continue
		}
		label := c.Metric
		if c.Detail != "" {
			label += " (" + c.Detail + ")"
		}
		out = append(out, fmt.Sprintf("%s: %.4f exceeds limit %.4f", label, c.Current, c.Limit))
	}
	return out
}
