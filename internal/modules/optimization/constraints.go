package optimization

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/argus/internal/domain"
	"github.com/aristath/argus/internal/modules/riskmodel"
)

// LinearConstraint caps the magnitude of a linear function of the weights:
// |coeffs·w| ≤ bound. Beta ceilings translate to this form because portfolio
// betas are weight-linear.
type LinearConstraint struct {
	Name   string
	Coeffs []float64
	Bound  float64
}

// Constraints is the solver-ready constraint set translated from a limits
// spec: per-position box bounds, the full-investment budget, beta ceilings
// as linear rows, and optionally an annualized variance ceiling for the
// max-return objective.
type Constraints struct {
	Tickers     []string
	Lower       []float64
	Upper       []float64
	Linear      []LinearConstraint
	MaxVariance float64
}

// Translate builds the constraint set for the given tickers under a limits
// spec. Factor beta ceilings for factors the model never measured are
// dropped, mirroring the limit evaluator. The volatility ceiling becomes a
// variance bound only for the max-return objective; minimizing variance
// already drives the portfolio toward it.
func Translate(tickers []string, model *riskmodel.CovarianceModel, spec domain.RiskLimitsSpec, objective domain.Objective) (*Constraints, error) {
	n := len(tickers)
	if n == 0 {
		return nil, &domain.ConfigurationError{Field: "tickers", Reason: "no positions to optimize"}
	}

	upperBound := 1.0
	if spec.MaxPositionWeight > 0 && spec.MaxPositionWeight < 1.0 {
		upperBound = spec.MaxPositionWeight
	}

	cons := &Constraints{
		Tickers: tickers,
		Lower:   make([]float64, n),
		Upper:   make([]float64, n),
	}
	betaIndex := make(map[string]int, len(model.Factors))
	for i, name := range model.Factors {
		betaIndex[name] = i
	}
	for i, ticker := range tickers {
		if !model.HasTicker(ticker) {
			return nil, &domain.NumericalError{
				Op:     "constraints",
				Reason: fmt.Sprintf("risk model does not cover %s", ticker),
			}
		}
		cons.Upper[i] = upperBound
	}

	for _, name := range orderedLimits(spec.MaxFactorBeta) {
		idx, measured := betaIndex[name]
		if !measured {
			continue
		}
		coeffs := make([]float64, n)
		for i, ticker := range tickers {
			coeffs[i] = model.Betas[ticker][idx]
		}
		cons.Linear = append(cons.Linear, LinearConstraint{
			Name:   "factor_beta." + name,
			Coeffs: coeffs,
			Bound:  spec.MaxFactorBeta[name],
		})
	}

	for _, proxy := range orderedLimits(spec.MaxIndustryBeta) {
		coeffs := make([]float64, n)
		for i, ticker := range tickers {
			if model.IndustryProxy[ticker] == proxy {
				coeffs[i] = model.IndustryBeta[ticker]
			}
		}
		cons.Linear = append(cons.Linear, LinearConstraint{
			Name:   "industry_beta." + proxy,
			Coeffs: coeffs,
			Bound:  spec.MaxIndustryBeta[proxy],
		})
	}

	if objective == domain.ObjectiveMaxReturn && spec.MaxAnnualVolatility > 0 {
		cons.MaxVariance = spec.MaxAnnualVolatility * spec.MaxAnnualVolatility
	}

	return cons, nil
}

// Conflicts checks the box, budget, and linear rows for joint feasibility
// and describes each constraint that cannot be satisfied. Linear rows are
// checked against their extreme values over the box-and-budget set, so a
// reported conflict is a proof of infeasibility, not a heuristic.
func (c *Constraints) Conflicts() []string {
	var conflicts []string

	var sumLower, sumUpper float64
	for i := range c.Lower {
		if c.Lower[i] > c.Upper[i] {
			conflicts = append(conflicts, fmt.Sprintf(
				"bounds for %s are inverted: lower %.4f above upper %.4f",
				c.Tickers[i], c.Lower[i], c.Upper[i]))
		}
		sumLower += c.Lower[i]
		sumUpper += c.Upper[i]
	}
	if sumUpper < 1.0-1e-9 {
		conflicts = append(conflicts, fmt.Sprintf(
			"position bounds too tight: upper bounds sum to %.4f, full investment unreachable", sumUpper))
	}
	if sumLower > 1.0+1e-9 {
		conflicts = append(conflicts, fmt.Sprintf(
			"lower bounds sum to %.4f, portfolio cannot stay within budget", sumLower))
	}
	if len(conflicts) > 0 {
		return conflicts
	}

	for _, lc := range c.Linear {
		low := c.extremeValue(lc.Coeffs, false)
		high := c.extremeValue(lc.Coeffs, true)
		if low > lc.Bound+1e-9 {
			conflicts = append(conflicts, fmt.Sprintf(
				"%s: minimum reachable exposure %.4f already exceeds limit %.4f", lc.Name, low, lc.Bound))
		}
		if high < -lc.Bound-1e-9 {
			conflicts = append(conflicts, fmt.Sprintf(
				"%s: maximum reachable exposure %.4f is below -%.4f", lc.Name, high, lc.Bound))
		}
	}

	return conflicts
}

// extremeValue computes the max (or min) of coeffs·w over the box-and-budget
// set by greedy allocation: every weight starts at its lower bound and the
// remaining budget goes to the best coefficients first.
func (c *Constraints) extremeValue(coeffs []float64, maximize bool) float64 {
	n := len(coeffs)
	w := make([]float64, n)
	budget := 1.0
	value := 0.0
	for i := range w {
		w[i] = c.Lower[i]
		budget -= w[i]
		value += coeffs[i] * w[i]
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if maximize {
			return coeffs[order[a]] > coeffs[order[b]]
		}
		return coeffs[order[a]] < coeffs[order[b]]
	})

	for _, i := range order {
		if budget <= 0 {
			break
		}
		step := math.Min(c.Upper[i]-w[i], budget)
		value += coeffs[i] * step
		budget -= step
	}

	return value
}

// orderedLimits lists names carrying a positive limit, canonical factors
// first, then the rest sorted. A fixed order keeps constraint rows and
// conflict reports deterministic.
func orderedLimits(configured map[string]float64) []string {
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
