// Package optimization solves constrained portfolio weight problems against
// a multi-factor risk model: minimum variance, or maximum expected return
// under a volatility ceiling. Constraints come from the same limits spec the
// evaluator checks, so a converged solution passes its own limit table.
package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/argus/internal/domain"
	"github.com/aristath/argus/internal/modules/riskmodel"
	"github.com/aristath/argus/pkg/formulas"
)

// Penalty weight for soft constraints in the penalized objective.
const penaltyWeight = 1000.0

// penaltyMargin tightens soft ceilings fed to the penalty terms so the
// solver's overshoot (on the order of gradient/penaltyWeight) still lands
// inside the configured limits.
const penaltyMargin = 1e-3

// verification tolerances for the polished solution.
const (
	sumTolerance    = 1e-6
	linearTolerance = 1e-6
	boundTolerance  = 1e-9
)

// Request describes one optimization problem. Weights are the current
// portfolio and seed the solver; Expected carries per-ticker annual returns
// and is required for the max-return objective (missing tickers count as
// zero).
type Request struct {
	Objective domain.Objective
	Weights   domain.Weights
	Expected  map[string]float64
	Model     *riskmodel.CovarianceModel
	Limits    domain.RiskLimitsSpec
}

// Optimizer solves weight problems with a penalized smooth objective:
// Nelder-Mead first, BFGS as the fallback, then an exact projection back
// onto the box-and-budget set. Infeasibility and solver failure are reported
// as result statuses, never silently relaxed.
type Optimizer struct {
	log zerolog.Logger
}

// NewOptimizer creates an optimizer.
func NewOptimizer(log zerolog.Logger) *Optimizer {
	return &Optimizer{log: log.With().Str("component", "optimization").Logger()}
}

// Solve runs the requested objective. Errors are reserved for malformed
// requests; constraint conflicts and solver breakdowns come back in the
// result status so the caller can report them alongside the attempted
// problem.
func (o *Optimizer) Solve(req Request) (*domain.OptimizationResult, error) {
	if req.Model == nil {
		return nil, &domain.ConfigurationError{Field: "model", Reason: "no risk model supplied"}
	}
	switch req.Objective {
	case domain.ObjectiveMinVariance, domain.ObjectiveMaxReturn:
	default:
		return nil, &domain.ConfigurationError{
			Field:  "objective",
			Reason: fmt.Sprintf("unknown objective %q", req.Objective),
		}
	}

	tickers := req.Weights.Tickers()
	cons, err := Translate(tickers, req.Model, req.Limits, req.Objective)
	if err != nil {
		return nil, err
	}

	result := &domain.OptimizationResult{Objective: req.Objective, Status: domain.StatusFormulated}

	if conflicts := cons.Conflicts(); len(conflicts) > 0 {
		result.Status = domain.StatusInfeasible
		result.Conflicts = conflicts
		o.log.Warn().Strs("conflicts", conflicts).Msg("Constraint set infeasible before solving")
		return result, nil
	}

	sigma, err := annualCovariance(req.Model, tickers)
	if err != nil {
		return nil, err
	}

	start := polish(startingPoint(req.Weights, tickers), cons)

	var mu []float64
	if req.Objective == domain.ObjectiveMaxReturn {
		mu = make([]float64, len(tickers))
		for i, ticker := range tickers {
			mu[i] = req.Expected[ticker]
		}

		// A volatility ceiling is only reachable if the least risky
		// portfolio under the same bounds sits inside it.
		if cons.MaxVariance > 0 {
			minPoint, _, solveErr := o.solvePenalized(cons, sigma, nil, 0, start)
			if solveErr == nil {
				minVol := math.Sqrt(quadForm(sigma, polish(minPoint, cons)))
				if minVol > req.Limits.MaxAnnualVolatility+1e-9 {
					result.Status = domain.StatusInfeasible
					result.Conflicts = []string{fmt.Sprintf(
						"max_annual_volatility %.4f unreachable: minimum achievable volatility is %.4f",
						req.Limits.MaxAnnualVolatility, minVol)}
					return result, nil
				}
			}
		}
	}

	result.Status = domain.StatusSolving
	x, iterations, err := o.solvePenalized(cons, sigma, mu, cons.MaxVariance, start)
	result.Iterations = iterations
	if err != nil {
		result.Status = domain.StatusNumericalError
		result.Conflicts = []string{err.Error()}
		o.log.Error().Err(err).Str("objective", string(req.Objective)).Msg("Solver failed")
		return result, nil
	}

	weights := polish(x, cons)
	if residuals := verify(weights, cons); len(residuals) > 0 {
		result.Status = domain.StatusInfeasible
		result.Conflicts = residuals
		o.log.Warn().Strs("residuals", residuals).Msg("Polished solution violates constraints")
		return result, nil
	}

	achieved := math.Sqrt(quadForm(sigma, weights))
	if ceiling := req.Limits.MaxAnnualVolatility; ceiling > 0 && achieved > ceiling+1e-9 {
		if req.Objective == domain.ObjectiveMinVariance {
			// The minimum-variance portfolio is the volatility floor, so a
			// ceiling below it has no solution.
			result.Status = domain.StatusInfeasible
			result.Conflicts = []string{fmt.Sprintf(
				"max_annual_volatility %.4f unreachable: minimum achievable volatility is %.4f",
				ceiling, achieved)}
		} else {
			result.Status = domain.StatusNumericalError
			result.Conflicts = []string{fmt.Sprintf(
				"converged point has volatility %.4f above the %.4f ceiling", achieved, ceiling)}
		}
		return result, nil
	}

	result.Status = domain.StatusConverged
	result.Weights = weightsMap(tickers, weights)
	result.AchievedVolatility = achieved
	for i, ticker := range tickers {
		result.ExpectedReturn += req.Expected[ticker] * weights[i]
	}

	o.log.Info().
		Str("objective", string(req.Objective)).
		Int("positions", len(result.Weights)).
		Int("iterations", iterations).
		Float64("volatility", result.AchievedVolatility).
		Msg("Optimization converged")

	return result, nil
}

// solvePenalized minimizes the penalized objective: wᵀΣw (or -μ·w when mu is
// set) plus quadratic penalties for the budget, the linear rows, and the
// variance ceiling. Points are projected onto the box inside the objective,
// and the box is enforced exactly during polishing.
func (o *Optimizer) solvePenalized(cons *Constraints, sigma *mat.SymDense, mu []float64, maxVariance float64, start []float64) ([]float64, int, error) {
	n := len(cons.Tickers)

	// Tightened copies of the soft ceilings; the box and the budget are
	// enforced exactly by projection and polishing.
	bounds := make([]float64, len(cons.Linear))
	for i, lc := range cons.Linear {
		bounds[i] = lc.Bound * (1 - penaltyMargin)
	}
	varCeiling := maxVariance * (1 - penaltyMargin)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToBounds(x, cons.Lower, cons.Upper)

			variance := quadForm(sigma, w)
			obj := variance
			if mu != nil {
				obj = -dot(mu, w)
			}

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += w[i]
			}
			obj += penaltyWeight * (sum - 1.0) * (sum - 1.0)

			if maxVariance > 0 {
				if excess := variance - varCeiling; excess > 0 {
					obj += penaltyWeight * excess * excess
				}
			}

			for k, lc := range cons.Linear {
				if excess := math.Abs(dot(lc.Coeffs, w)) - bounds[k]; excess > 0 {
					obj += penaltyWeight * excess * excess
				}
			}

			return obj
		},
		Grad: func(grad, x []float64) {
			w := projectToBounds(x, cons.Lower, cons.Upper)

			sigmaW := make([]float64, n)
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					sigmaW[i] += sigma.At(i, j) * w[j]
				}
			}

			for i := 0; i < n; i++ {
				if mu != nil {
					grad[i] = -mu[i]
				} else {
					grad[i] = 2 * sigmaW[i]
				}
			}

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += w[i]
			}
			for i := 0; i < n; i++ {
				grad[i] += 2 * penaltyWeight * (sum - 1.0)
			}

			if maxVariance > 0 {
				if excess := quadForm(sigma, w) - varCeiling; excess > 0 {
					for i := 0; i < n; i++ {
						grad[i] += 4 * penaltyWeight * excess * sigmaW[i]
					}
				}
			}

			for k, lc := range cons.Linear {
				exposure := dot(lc.Coeffs, w)
				if excess := math.Abs(exposure) - bounds[k]; excess > 0 {
					sign := 1.0
					if exposure < 0 {
						sign = -1.0
					}
					for i := 0; i < n; i++ {
						grad[i] += 2 * penaltyWeight * excess * sign * lc.Coeffs[i]
					}
				}
			}
		},
	}

	initial := make([]float64, n)
	copy(initial, start)

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
	if err != nil {
		return nil, 0, fmt.Errorf("optimization failed: %w", err)
	}

	successStatuses := map[optimize.Status]bool{
		optimize.Success:             true,
		optimize.GradientThreshold:   true,
		optimize.FunctionConvergence: true,
	}
	iterations := result.Stats.MajorIterations
	if !successStatuses[result.Status] {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
		if err != nil {
			return nil, iterations, fmt.Errorf("optimization failed: %w", err)
		}
		iterations += result.Stats.MajorIterations
		if !successStatuses[result.Status] {
			return nil, iterations, fmt.Errorf("optimization did not converge: status=%v", result.Status)
		}
	}

	return result.X, iterations, nil
}

// polish projects a solver point onto the box and then redistributes the
// budget deficit evenly across unsaturated positions, so bounds that the
// optimum pins stay exactly pinned.
func polish(x []float64, cons *Constraints) []float64 {
	w := projectToBounds(x, cons.Lower, cons.Upper)

	for iter := 0; iter < 64; iter++ {
		deficit := 1.0
		for i := range w {
			deficit -= w[i]
		}
		if math.Abs(deficit) < 1e-12 {
			break
		}

		var free []int
		for i := range w {
			if deficit > 0 && w[i] < cons.Upper[i]-1e-15 {
				free = append(free, i)
			}
			if deficit < 0 && w[i] > cons.Lower[i]+1e-15 {
				free = append(free, i)
			}
		}
		if len(free) == 0 {
			break
		}

		share := deficit / float64(len(free))
		for _, i := range free {
			w[i] = math.Min(math.Max(w[i]+share, cons.Lower[i]), cons.Upper[i])
		}
	}

	return w
}

// verify checks the polished weights against every constraint and returns
// residual descriptions for anything outside tolerance.
func verify(w []float64, cons *Constraints) []string {
	var residuals []string

	sum := 0.0
	for i := range w {
		sum += w[i]
		if w[i] < cons.Lower[i]-boundTolerance || w[i] > cons.Upper[i]+boundTolerance {
			residuals = append(residuals, fmt.Sprintf(
				"%s: weight %.6f outside bounds [%.4f, %.4f]",
				cons.Tickers[i], w[i], cons.Lower[i], cons.Upper[i]))
		}
	}
	if math.Abs(sum-1.0) > sumTolerance {
		residuals = append(residuals, fmt.Sprintf("weights sum to %.8f, not 1", sum))
	}

	for _, lc := range cons.Linear {
		if exposure := dot(lc.Coeffs, w); math.Abs(exposure) > lc.Bound+linearTolerance {
			residuals = append(residuals, fmt.Sprintf(
				"%s: exposure %.6f exceeds limit %.4f", lc.Name, exposure, lc.Bound))
		}
	}

	return residuals
}

func projectToBounds(x, lower, upper []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = math.Min(math.Max(x[i], lower[i]), upper[i])
	}
	return out
}

// startingPoint seeds the solver with the current weights, or equal weights
// when the portfolio carries none of the tickers.
func startingPoint(weights domain.Weights, tickers []string) []float64 {
	w := make([]float64, len(tickers))
	nonzero := false
	for i, ticker := range tickers {
		w[i] = weights[ticker]
		if w[i] != 0 {
			nonzero = true
		}
	}
	if !nonzero {
		for i := range w {
			w[i] = 1.0 / float64(len(w))
		}
	}
	return w
}

func weightsMap(tickers []string, w []float64) domain.Weights {
	out := make(domain.Weights, len(tickers))
	for i, ticker := range tickers {
		if w[i] > 1e-12 {
			out[ticker] = w[i]
		}
	}
	return out
}

// annualCovariance scales the per-day position covariance to annual units so
// penalties, expected returns, and the volatility ceiling share a scale.
func annualCovariance(model *riskmodel.CovarianceModel, tickers []string) (*mat.SymDense, error) {
	daily, err := model.PositionCovariance(tickers)
	if err != nil {
		return nil, err
	}
	n := daily.SymmetricDim()
	annual := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			annual.SetSym(i, j, daily.At(i, j)*formulas.TradingDaysPerYear)
		}
	}
	return annual, nil
}

func quadForm(sigma *mat.SymDense, w []float64) float64 {
	n := len(w)
	total := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			total += w[i] * w[j] * sigma.At(i, j)
		}
	}
	return total
}

func dot(a, b []float64) float64 {
	total := 0.0
	for i := range a {
		total += a[i] * b[i]
	}
	return total
}
