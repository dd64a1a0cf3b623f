package domain

import "time"

// CheckStatus is the outcome of a single limit check.
type CheckStatus string

const (
	CheckPass CheckStatus = "PASS"
	CheckFail CheckStatus = "FAIL"
)

// LimitCheck is one row of the risk-limit table. Utilization is
// |current/limit| expressed as a percentage; 90 means 90% of the ceiling is
// used.
type LimitCheck struct {
	Metric      string      `json:"metric"`
	Detail      string      `json:"detail,omitempty"`
	Status      CheckStatus `json:"status"`
	Current     float64     `json:"current"`
	Limit       float64     `json:"limit"`
	Utilization float64     `json:"utilization"`
}

// IdiosyncraticComponent names the residual row of the variance
// decomposition.
const IdiosyncraticComponent = "idiosyncratic"

// VarianceComponent is one row of the variance decomposition: a factor's
// share of total portfolio variance, or the idiosyncratic residual. Pct
// values across all rows sum to 100.
type VarianceComponent struct {
	Name     string  `json:"name"`
	Variance float64 `json:"variance"`
	Pct      float64 `json:"pct"`
}

// PositionContribution is one position's Euler share of total portfolio
// variance. Contributions across all positions sum to the total variance.
type PositionContribution struct {
	Ticker       string  `json:"ticker"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Pct          float64 `json:"pct"`
}

// Matrix is a labeled square matrix (correlations or covariances) with rows
// and columns in Labels order.
type Matrix struct {
	Labels []string    `json:"labels"`
	Values [][]float64 `json:"values"`
}

// ScoreComponent is one scored dimension of portfolio risk health.
type ScoreComponent struct {
	Name        string  `json:"name"`
	Utilization float64 `json:"utilization"`
	Score       float64 `json:"score"`
	Weight      float64 `json:"weight"`
}

// Score bands, from best to worst.
const (
	BandExcellent = "Excellent"
	BandGood      = "Good"
	BandFair      = "Fair"
	BandPoor      = "Poor"
)

// RiskScore is the composite 0-100 risk health score with its component
// breakdown and deterministic improvement recommendations.
type RiskScore struct {
	Overall         float64          `json:"overall"`
	Band            string           `json:"band"`
	Components      []ScoreComponent `json:"components"`
	Recommendations []string         `json:"recommendations,omitempty"`
}

// AnalysisResult is the immutable outcome of one analysis run. Variances are
// per trading day; volatilities are annualized/monthly. Decomposition
// percentages sum to 100 and position contributions sum to TotalVariance.
type AnalysisResult struct {
	GeneratedAt       time.Time              `json:"generated_at"`
	RunID             string                 `json:"run_id"`
	Range             DateRange              `json:"range"`
	Tickers           []string               `json:"tickers"`
	Weights           Weights                `json:"weights"`
	FactorBetas       map[string]float64     `json:"factor_betas"`
	IndustryBetas     map[string]float64     `json:"industry_betas,omitempty"`
	Decomposition     []VarianceComponent    `json:"decomposition"`
	Contributions     []PositionContribution `json:"contributions"`
	Checks            []LimitCheck           `json:"checks"`
	Warnings          []DataWarning          `json:"warnings,omitempty"`
	Correlations      Matrix                 `json:"correlations"`
	Covariances       Matrix                 `json:"covariances"`
	Score             RiskScore              `json:"score"`
	TotalVariance     float64                `json:"total_variance"`
	FactorVariance    float64                `json:"factor_variance"`
	IdioVariance      float64                `json:"idio_variance"`
	AnnualVolatility  float64                `json:"annual_volatility"`
	MonthlyVolatility float64                `json:"monthly_volatility"`
	Herfindahl        float64                `json:"herfindahl"`
}

// Objective selects the optimizer's goal.
type Objective string

const (
	ObjectiveMinVariance Objective = "min_variance"
	ObjectiveMaxReturn   Objective = "max_return"
)

// SolveStatus tracks the optimizer state machine: a request is formulated,
// then solving, and ends converged, infeasible, or failed numerically.
type SolveStatus string

const (
	StatusFormulated     SolveStatus = "formulated"
	StatusSolving        SolveStatus = "solving"
	StatusConverged      SolveStatus = "converged"
	StatusInfeasible     SolveStatus = "infeasible"
	StatusNumericalError SolveStatus = "numerical_error"
)

// OptimizationResult reports the optimizer outcome. On convergence, Analysis
// holds a fresh full analysis of the optimized weights, so reported risk
// tables match what a separate Analyze call on those weights would return.
type OptimizationResult struct {
	Objective          Objective       `json:"objective"`
	Status             SolveStatus     `json:"status"`
	Weights            Weights         `json:"weights,omitempty"`
	ExpectedReturn     float64         `json:"expected_return"`
	AchievedVolatility float64         `json:"achieved_volatility"`
	Iterations         int             `json:"iterations"`
	Conflicts          []string        `json:"conflicts,omitempty"`
	Analysis           *AnalysisResult `json:"analysis,omitempty"`
}

// MetricDelta is one metric compared across base and scenario.
type MetricDelta struct {
	Name     string  `json:"name"`
	Base     float64 `json:"base"`
	Scenario float64 `json:"scenario"`
	Delta    float64 `json:"delta"`
}

// ScenarioResult compares a base analysis against the same portfolio with a
// weight delta applied.
type ScenarioResult struct {
	Name     string             `json:"name,omitempty"`
	Delta    map[string]float64 `json:"delta"`
	Base     *AnalysisResult    `json:"base"`
	Scenario *AnalysisResult    `json:"scenario"`
	Deltas   []MetricDelta      `json:"deltas"`
}
