package models

import (
	"errors"
	"math"
)

// SignificanceLevel is the fixed p-value threshold below which a result is reported
// as statistically significant.
const SignificanceLevel = 0.05

// DegenerateT is the magnitude of T when both samples are constant and their means
// differ. It stays finite so results remain encodable.
const DegenerateT = math.MaxFloat64

// WelchPolicy names the unequal-variance degrees-of-freedom policy.
const WelchPolicy = "welch"

// CorrelationResult describes the linear association between two aligned samples.
type CorrelationResult struct {
	Coefficient float64 `json:"coefficient"`
	PValue      float64 `json:"p_value"`
	N           int     `json:"n"`
}

// Significant reports whether PValue is below SignificanceLevel.
func (r CorrelationResult) Significant() bool {
	return r.PValue < SignificanceLevel
}

// Validate checks that the result is within its mathematical bounds.
func (r CorrelationResult) Validate() error {
	if math.IsNaN(r.Coefficient) || r.Coefficient < -1 || r.Coefficient > 1 {
		return errors.New("coefficient must be between -1 and 1")
	}
	if math.IsNaN(r.PValue) || r.PValue < 0 || r.PValue > 1 {
		return errors.New("p-value must be between 0 and 1")
	}
	if r.N < 3 {
		return errors.New("sample size must be at least 3")
	}
	return nil
}

// TTestResult describes a two-sample difference-in-means test between sample A
// (the early period) and sample B (the late period).
type TTestResult struct {
	T      float64 `json:"t"`
	PValue float64 `json:"p_value"`
	DF     float64 `json:"df"`
	Policy string  `json:"policy"`
	NA     int     `json:"n_a"`
	NB     int     `json:"n_b"`
	MeanA  float64 `json:"mean_a"`
	MeanB  float64 `json:"mean_b"`
}

// Significant reports whether PValue is below SignificanceLevel.
func (r TTestResult) Significant() bool {
	return r.PValue < SignificanceLevel
}

// Degenerate reports whether T was saturated because both samples are constant.
func (r TTestResult) Degenerate() bool {
	return math.Abs(r.T) == DegenerateT
}

// Validate checks sample sizes, finiteness and p-value bounds.
func (r TTestResult) Validate() error {
	if r.NA < 2 || r.NB < 2 {
		return errors.New("both samples must have at least 2 observations")
	}
	if math.IsNaN(r.T) || math.IsInf(r.T, 0) || math.IsNaN(r.DF) || math.IsInf(r.DF, 0) {
		return errors.New("t statistic and degrees of freedom must be finite")
	}
	if math.IsNaN(r.PValue) || r.PValue < 0 || r.PValue > 1 {
		return errors.New("p-value must be between 0 and 1")
	}
	if r.Policy != WelchPolicy {
		return errors.New("policy must be 'welch'")
	}
	return nil
}
