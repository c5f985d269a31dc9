// Package stats provides the significance tests used by the pipelines:
// Pearson correlation with a two-sided p-value and Welch's unequal-variance t-test.
//
// Distribution functions come from gonum's Student t implementation, so p-values
// match the usual reference implementations to floating-point precision.
package stats

import (
	"fmt"
	"math"

	"github.com/rewired-gh/macrocorr/internal/models"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// SignificanceLevel re-exports the reporting threshold so callers of this package
// do not need to reach into models.
const SignificanceLevel = models.SignificanceLevel

// unitTolerance snaps coefficients this close to ±1 onto ±1.
const unitTolerance = 1e-12

// IsSignificant reports whether p is below SignificanceLevel.
func IsSignificant(p float64) bool {
	return p < SignificanceLevel
}

// Pearson returns the correlation coefficient of x and y. ok is false when the
// coefficient is undefined: fewer than two pairs, mismatched lengths or a
// constant sample.
func Pearson(x, y []float64) (r float64, ok bool) {
	if len(x) != len(y) || len(x) < 2 || isConstant(x) || isConstant(y) {
		return math.NaN(), false
	}
	r = stat.Correlation(x, y, nil)
	if !models.IsFinite(r) {
		return math.NaN(), false
	}
	return clampUnit(r), true
}

// Covariance returns the unbiased (n-1) covariance of x and y.
func Covariance(x, y []float64) (float64, bool) {
	if len(x) != len(y) || len(x) < 2 {
		return math.NaN(), false
	}
	return stat.Covariance(x, y, nil), true
}

// Mean returns the arithmetic mean, or NaN for an empty sample.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// PearsonTest computes Pearson's r and its two-sided p-value under the null
// hypothesis of zero correlation (Student t with n-2 degrees of freedom).
func PearsonTest(x, y []float64) (models.CorrelationResult, error) {
	if len(x) != len(y) {
		return models.CorrelationResult{}, fmt.Errorf("pearson test with %d and %d values: %w", len(x), len(y), models.ErrLengthMismatch)
	}
	n := len(x)
	if n < 3 {
		return models.CorrelationResult{}, fmt.Errorf("pearson test needs at least 3 pairs, got %d: %w", n, models.ErrInsufficientSamples)
	}
	if isConstant(x) || isConstant(y) {
		return models.CorrelationResult{}, fmt.Errorf("pearson test: %w", models.ErrZeroVariance)
	}

	r, ok := Pearson(x, y)
	if !ok {
		return models.CorrelationResult{}, fmt.Errorf("pearson test: %w", models.ErrZeroVariance)
	}

	return models.CorrelationResult{
		Coefficient: r,
		PValue:      pearsonPValue(r, n),
		N:           n,
	}, nil
}

// WelchTTest compares the means of a and b without assuming equal variances.
// T is positive when mean(a) > mean(b). When both samples are constant, equal means
// give T=0 and p=1 while differing means give T=±models.DegenerateT and p=0.
func WelchTTest(a, b []float64) (models.TTestResult, error) {
	if len(a) < 2 || len(b) < 2 {
		return models.TTestResult{}, fmt.Errorf("welch t-test needs at least 2 observations per sample, got %d and %d: %w",
			len(a), len(b), models.ErrInsufficientSamples)
	}

	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)
	na, nb := float64(len(a)), float64(len(b))

	result := models.TTestResult{
		Policy: models.WelchPolicy,
		NA:     len(a),
		NB:     len(b),
		MeanA:  meanA,
		MeanB:  meanB,
	}

	seA, seB := varA/na, varB/nb
	se2 := seA + seB
	if se2 == 0 {
		result.DF = na + nb - 2
		if meanA == meanB {
			result.T, result.PValue = 0, 1
		} else {
			result.T, result.PValue = math.Copysign(models.DegenerateT, meanA-meanB), 0
		}
		return result, nil
	}

	result.T = (meanA - meanB) / math.Sqrt(se2)
	result.DF = se2 * se2 / (seA*seA/(na-1) + seB*seB/(nb-1))
	result.PValue = twoSidedP(result.T, result.DF)
	return result, nil
}

func pearsonPValue(r float64, n int) float64 {
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	return twoSidedP(t, df)
}

func twoSidedP(t, df float64) float64 {
	if math.IsInf(t, 0) {
		return 0
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.Survival(math.Abs(t))
	return math.Max(0, math.Min(1, p))
}

func clampUnit(r float64) float64 {
	switch {
	case r >= 1-unitTolerance:
		return 1
	case r <= -1+unitTolerance:
		return -1
	}
	return r
}

func isConstant(xs []float64) bool {
	if len(xs) == 0 {
		return true
	}
	for _, v := range xs[1:] {
		if v != xs[0] {
			return false
		}
	}
	return true
}
