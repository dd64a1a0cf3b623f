// Package riskmodel assembles the multi-factor covariance model: the factor
// covariance matrix estimated from proxy return series plus the per-position
// betas and idiosyncratic variances produced by the factors package.
package riskmodel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// HighCorrelationThreshold flags proxy pairs whose correlation suggests
	// the factors are close to redundant.
	HighCorrelationThreshold = 0.80

	// ridgeBase seeds the escalating diagonal ridge, scaled by the mean
	// diagonal of the matrix being repaired.
	ridgeBase = 1e-10

	// maxRidgeSteps bounds the doubling ridge escalation before the matrix
	// is declared numerically unusable.
	maxRidgeSteps = 8
)

// CorrelationPair reports two factor proxies whose return series are highly
// correlated. High pairs make the factor decomposition unstable, so they are
// surfaced as diagnostics rather than silently tolerated.
type CorrelationPair struct {
	A           string  `json:"a"`
	B           string  `json:"b"`
	Correlation float64 `json:"correlation"`
}

// sampleCovariance computes the observation-weighted sample covariance of the
// aligned series. Weights must be normalized to sum to 1; the denominator uses
// the effective-sample correction 1 - Σw². Uniform weights reproduce the usual
// N-1 estimator.
func sampleCovariance(aligned [][]float64, weights []float64) (*mat.SymDense, error) {
	k := len(aligned)
	if k == 0 {
		return nil, fmt.Errorf("no series")
	}
	t := len(aligned[0])
	if t < 2 {
		return nil, fmt.Errorf("need at least 2 observations, got %d", t)
	}
	if len(weights) != t {
		return nil, fmt.Errorf("weights length %d != observations %d", len(weights), t)
	}
	for _, s := range aligned {
		if len(s) != t {
			return nil, fmt.Errorf("misaligned series: length %d != %d", len(s), t)
		}
	}

	mu := make([]float64, k)
	for i, s := range aligned {
		sum := 0.0
		for obs := 0; obs < t; obs++ {
			sum += weights[obs] * s[obs]
		}
		mu[i] = sum
	}

	sumW2 := 0.0
	for _, w := range weights {
		sumW2 += w * w
	}
	denom := 1.0 - sumW2
	if denom <= 0 {
		return nil, fmt.Errorf("degenerate effective sample: 1 - sum(w^2) = %v", denom)
	}

	cov := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			s := 0.0
			for obs := 0; obs < t; obs++ {
				s += weights[obs] * (aligned[i][obs] - mu[i]) * (aligned[j][obs] - mu[j])
			}
			cov.SetSym(i, j, s/denom)
		}
	}
	return cov, nil
}

// uniformWeights returns equal observation weights summing to 1.
func uniformWeights(t int) []float64 {
	w := make([]float64, t)
	for i := range w {
		w[i] = 1.0 / float64(t)
	}
	return w
}

// timeDecayWeights returns normalized observation weights (oldest to newest)
// with exponential decay at the given half-life in trading days.
func timeDecayWeights(t int, halfLifeDays float64) ([]float64, error) {
	if t == 0 {
		return nil, fmt.Errorf("no observations")
	}
	if halfLifeDays <= 0 {
		return nil, fmt.Errorf("invalid half-life: %v", halfLifeDays)
	}

	lambda := math.Ln2 / halfLifeDays
	weights := make([]float64, t)
	sum := 0.0
	for i := 0; i < t; i++ {
		age := float64((t - 1) - i) // 0 for newest
		w := math.Exp(-lambda * age)
		weights[i] = w
		sum += w
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("invalid weight sum: %v", sum)
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights, nil
}

// applyLedoitWolfShrinkage shrinks a sample covariance matrix toward the
// constant-correlation target. The shrinkage intensity is estimated from the
// dispersion of the sample around the target, clipped to [0, 0.5], with a
// 0.2 default when the estimate degenerates.
//
// Reference: Ledoit, O., & Wolf, M. (2004). "A well-conditioned estimator for
// large-dimensional covariance matrices"
func applyLedoitWolfShrinkage(sample *mat.SymDense) *mat.SymDense {
	n := sample.SymmetricDim()
	if n == 0 {
		return sample
	}

	// Shrinkage target: average variance on the diagonal, average covariance
	// off it (the constant-correlation model).
	var avgVar, avgCov float64
	for i := 0; i < n; i++ {
		avgVar += sample.At(i, i)
		for j := 0; j < n; j++ {
			if i != j {
				avgCov += sample.At(i, j)
			}
		}
	}
	avgVar /= float64(n)
	if n > 1 {
		avgCov /= float64(n * (n - 1))
	}

	target := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		target.SetSym(i, i, avgVar)
		for j := i + 1; j < n; j++ {
			if avgVar > 0 {
				target.SetSym(i, j, avgCov)
			}
		}
	}

	shrinkage := 0.2
	if n > 2 && avgVar > 0 {
		var sumSqDiff, sumSqSample, meanSample float64
		count := 0
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				diff := sample.At(i, j) - target.At(i, j)
				sumSqDiff += diff * diff

				v := sample.At(i, j)
				meanSample += v
				sumSqSample += v * v
				count++
			}
		}
		meanSqDiff := sumSqDiff / float64(count)
		meanSample /= float64(count)
		varSample := sumSqSample/float64(count) - meanSample*meanSample

		if varSample > 0 && meanSqDiff > 0 {
			shrinkage = math.Min(0.5, math.Max(0.0, varSample/(varSample+meanSqDiff)))
		}
	}

	shrunk := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			shrunk.SetSym(i, j, (1-shrinkage)*sample.At(i, j)+shrinkage*target.At(i, j))
		}
	}
	return shrunk
}

// ensurePositiveDefinite validates the matrix with a Cholesky factorization,
// adding an escalating diagonal ridge when it fails. The ridge starts at
// ridgeBase times the mean diagonal and doubles each step. Returns the
// repaired matrix, the ridge applied (0 when none was needed), and an error
// when maxRidgeSteps escalations were not enough.
func ensurePositiveDefinite(sym *mat.SymDense) (*mat.SymDense, float64, error) {
	n := sym.SymmetricDim()
	if n == 0 {
		return nil, 0, fmt.Errorf("empty matrix")
	}

	var chol mat.Cholesky
	if chol.Factorize(sym) {
		return sym, 0, nil
	}

	meanDiag := 0.0
	for i := 0; i < n; i++ {
		meanDiag += sym.At(i, i)
	}
	meanDiag /= float64(n)
	if meanDiag <= 0 {
		meanDiag = 1.0
	}

	ridge := ridgeBase * meanDiag
	for step := 0; step < maxRidgeSteps; step++ {
		repaired := mat.NewSymDense(n, nil)
		repaired.CopySym(sym)
		for i := 0; i < n; i++ {
			repaired.SetSym(i, i, repaired.At(i, i)+ridge)
		}
		if chol.Factorize(repaired) {
			return repaired, ridge, nil
		}
		ridge *= 2
	}

	return nil, ridge, fmt.Errorf("matrix not positive definite after %d ridge steps (last ridge %g)", maxRidgeSteps, ridge)
}

// highCorrelations extracts pairs whose correlation magnitude meets the
// threshold. Labels index the matrix rows.
func highCorrelations(cov *mat.SymDense, labels []string, threshold float64) []CorrelationPair {
	n := cov.SymmetricDim()
	pairs := make([]CorrelationPair, 0)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			vi, vj := cov.At(i, i), cov.At(j, j)
			if vi <= 0 || vj <= 0 {
				continue
			}
			corr := cov.At(i, j) / math.Sqrt(vi*vj)
			if math.Abs(corr) >= threshold {
				pairs = append(pairs, CorrelationPair{A: labels[i], B: labels[j], Correlation: corr})
			}
		}
	}
	return pairs
}
