// Package factors builds per-position factor models: OLS betas against
// factor-proxy return series plus the residual idiosyncratic volatility.
package factors

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/argus/internal/domain"
)

// Model holds the regression outputs for one position. Betas are keyed by
// factor name; factors skipped for this ticker are simply absent. IdioVol is
// the per-day residual standard deviation.
type Model struct {
	Ticker        string             `json:"ticker"`
	Betas         map[string]float64 `json:"betas"`
	Alpha         float64            `json:"alpha"`
	IdioVol       float64            `json:"idio_vol"`
	R2            float64            `json:"r2"`
	Obs           int                `json:"obs"`
	IndustryProxy string             `json:"industry_proxy,omitempty"`
	IndustryBeta  float64            `json:"industry_beta,omitempty"`
}

// IdioVariance returns the per-day idiosyncratic variance.
func (m *Model) IdioVariance() float64 {
	return m.IdioVol * m.IdioVol
}

// olsFit is the result of one least-squares regression.
type olsFit struct {
	alpha   float64
	betas   []float64
	idioVol float64
	r2      float64
	obs     int
}

// regress solves y = alpha + X*beta by QR least squares. Columns of x are
// the factor return series, already aligned to y. The residual volatility
// uses the degrees-of-freedom corrected estimator sqrt(SSR / (n - p)).
func regress(y []float64, x [][]float64) (*olsFit, error) {
	n := len(y)
	k := len(x)
	p := k + 1 // intercept + factors

	if n < p+1 {
		return nil, &domain.NumericalError{
			Op:     "ols regression",
			Reason: fmt.Sprintf("%d observations cannot identify %d coefficients", n, p),
		}
	}
	for _, col := range x {
		if len(col) != n {
			return nil, &domain.NumericalError{
				Op:     "ols regression",
				Reason: fmt.Sprintf("misaligned design: column length %d != %d", len(col), n),
			}
		}
	}

	design := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1.0)
		for j, col := range x {
			design.Set(i, j+1, col[i])
		}
	}

	var qr mat.QR
	qr.Factorize(design)

	rhs := mat.NewVecDense(n, append([]float64(nil), y...))
	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, rhs); err != nil {
		return nil, &domain.NumericalError{Op: "ols regression", Reason: "design matrix is rank deficient"}
	}
	for i := 0; i < p; i++ {
		if v := coef.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &domain.NumericalError{Op: "ols regression", Reason: "non-finite coefficient"}
		}
	}

	// Residuals and fit quality.
	meanY := 0.0
	for _, v := range y {
		meanY += v
	}
	meanY /= float64(n)

	ssr, sst := 0.0, 0.0
	for i := 0; i < n; i++ {
		fitted := coef.AtVec(0)
		for j := 0; j < k; j++ {
			fitted += coef.AtVec(j+1) * x[j][i]
		}
		resid := y[i] - fitted
		ssr += resid * resid
		dev := y[i] - meanY
		sst += dev * dev
	}

	fit := &olsFit{
		alpha: coef.AtVec(0),
		betas: make([]float64, k),
		obs:   n,
	}
	for j := 0; j < k; j++ {
		fit.betas[j] = coef.AtVec(j + 1)
	}
	if n > p {
		fit.idioVol = math.Sqrt(ssr / float64(n-p))
	}
	if sst > 0 {
		fit.r2 = 1.0 - ssr/sst
		if fit.r2 < 0 {
			fit.r2 = 0
		}
	}

	return fit, nil
}
