package riskmodel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// wavePattern builds a deterministic zero-mean return series that flips sign
// every period observations. Different periods give orthogonal series over
// complete cycles.
func wavePattern(n int, scale float64, period int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if (i/period)%2 == 0 {
			out[i] = scale
		} else {
			out[i] = -scale
		}
	}
	return out
}

func TestSampleCovariance_UniformMatchesClassicEstimator(t *testing.T) {
	n := 80
	a := wavePattern(n, 0.010, 1)
	b := wavePattern(n, 0.008, 2)

	cov, err := sampleCovariance([][]float64{a, b}, uniformWeights(n))
	require.NoError(t, err)

	// Classic N-1 estimator, computed directly.
	classic := func(x, y []float64) float64 {
		var mx, my float64
		for i := range x {
			mx += x[i]
			my += y[i]
		}
		mx /= float64(len(x))
		my /= float64(len(y))
		s := 0.0
		for i := range x {
			s += (x[i] - mx) * (y[i] - my)
		}
		return s / float64(len(x)-1)
	}

	assert.InDelta(t, classic(a, a), cov.At(0, 0), 1e-15)
	assert.InDelta(t, classic(b, b), cov.At(1, 1), 1e-15)
	assert.InDelta(t, classic(a, b), cov.At(0, 1), 1e-15)
	// The two patterns are orthogonal over complete cycles.
	assert.InDelta(t, 0.0, cov.At(0, 1), 1e-15)
}

func TestSampleCovariance_RejectsDegenerateInput(t *testing.T) {
	_, err := sampleCovariance(nil, nil)
	assert.Error(t, err)

	_, err = sampleCovariance([][]float64{{0.01}}, []float64{1.0})
	assert.Error(t, err)

	_, err = sampleCovariance([][]float64{{0.01, 0.02}, {0.01}}, uniformWeights(2))
	assert.Error(t, err)

	// All weight on one observation leaves no effective sample.
	_, err = sampleCovariance([][]float64{{0.01, 0.02}}, []float64{1.0, 0.0})
	assert.Error(t, err)
}

func TestTimeDecayWeights_Properties(t *testing.T) {
	weights, err := timeDecayWeights(100, 30)
	require.NoError(t, err)
	require.Len(t, weights, 100)

	sum := 0.0
	for i, w := range weights {
		sum += w
		if i > 0 {
			assert.Greater(t, w, weights[i-1], "weights must increase toward the newest observation")
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-12)

	// Half-life means an observation 30 days older carries half the weight.
	assert.InDelta(t, weights[99]/2, weights[69], 1e-12)

	_, err = timeDecayWeights(0, 30)
	assert.Error(t, err)
	_, err = timeDecayWeights(100, 0)
	assert.Error(t, err)
}

func TestLedoitWolfShrinkage_TwoFactorDefaultIntensity(t *testing.T) {
	v1, v2 := 1.0e-4, 0.5e-4
	sample := mat.NewSymDense(2, []float64{v1, 0, 0, v2})

	shrunk := applyLedoitWolfShrinkage(sample)

	// With only two factors the intensity stays at the 0.2 default and the
	// target is the constant-correlation matrix: mean variance on the
	// diagonal, mean covariance (zero here) off it.
	avgVar := (v1 + v2) / 2
	assert.InDelta(t, 0.8*v1+0.2*avgVar, shrunk.At(0, 0), 1e-18)
	assert.InDelta(t, 0.8*v2+0.2*avgVar, shrunk.At(1, 1), 1e-18)
	assert.InDelta(t, 0.0, shrunk.At(0, 1), 1e-18)
}

func TestLedoitWolfShrinkage_PullsTowardTarget(t *testing.T) {
	sample := mat.NewSymDense(3, []float64{
		1.0e-4, 2.0e-5, 1.0e-5,
		2.0e-5, 2.0e-4, 4.0e-5,
		1.0e-5, 4.0e-5, 3.0e-4,
	})
	shrunk := applyLedoitWolfShrinkage(sample)

	avgVar := (1.0e-4 + 2.0e-4 + 3.0e-4) / 3
	for i := 0; i < 3; i++ {
		lo := math.Min(sample.At(i, i), avgVar)
		hi := math.Max(sample.At(i, i), avgVar)
		assert.GreaterOrEqual(t, shrunk.At(i, i), lo)
		assert.LessOrEqual(t, shrunk.At(i, i), hi)
	}
}

func TestEnsurePositiveDefinite_LeavesGoodMatrixAlone(t *testing.T) {
	sym := mat.NewSymDense(2, []float64{1.0e-4, 1.0e-5, 1.0e-5, 2.0e-4})
	repaired, ridge, err := ensurePositiveDefinite(sym)
	require.NoError(t, err)
	assert.Zero(t, ridge)
	assert.InDelta(t, sym.At(0, 1), repaired.At(0, 1), 1e-18)
}

func TestEnsurePositiveDefinite_RepairsNearSingularMatrix(t *testing.T) {
	// Correlation a hair above 1: indefinite, but the deficit is small
	// enough for the ridge escalation to absorb.
	v := 1.0e-4
	c := v * (1 + 5e-9)
	sym := mat.NewSymDense(2, []float64{v, c, c, v})
	repaired, ridge, err := ensurePositiveDefinite(sym)
	require.NoError(t, err)
	assert.Greater(t, ridge, 0.0)

	var chol mat.Cholesky
	assert.True(t, chol.Factorize(repaired))
}

func TestEnsurePositiveDefinite_GivesUpOnIndefiniteMatrix(t *testing.T) {
	// Eigenvalues 3 and -1: no tiny ridge can fix this.
	sym := mat.NewSymDense(2, []float64{1, 2, 2, 1})
	_, _, err := ensurePositiveDefinite(sym)
	assert.Error(t, err)
}

func TestHighCorrelations_FlagsPairsAboveThreshold(t *testing.T) {
	labels := []string{"market", "momentum", "value"}
	cov := mat.NewSymDense(3, []float64{
		1.0, 0.9, 0.1,
		0.9, 1.0, -0.85,
		0.1, -0.85, 1.0,
	})

	pairs := highCorrelations(cov, labels, 0.80)
	require.Len(t, pairs, 2)
	assert.Equal(t, "market", pairs[0].A)
	assert.Equal(t, "momentum", pairs[0].B)
	assert.InDelta(t, 0.9, pairs[0].Correlation, 1e-12)
	assert.Equal(t, "momentum", pairs[1].A)
	assert.Equal(t, "value", pairs[1].B)
	assert.InDelta(t, -0.85, pairs[1].Correlation, 1e-12)

	assert.Empty(t, highCorrelations(cov, labels, 0.95))
}
