package models

import (
	"errors"
	"fmt"
	"time"
)

// Asset is a tradable instrument as known to the price provider.
type Asset struct {
	Ticker string `json:"ticker" mapstructure:"ticker" validate:"required"`
	Label  string `json:"label" mapstructure:"label" validate:"required"`
	Short  string `json:"short" mapstructure:"short"`
}

// ShortName returns Short, falling back to the ticker.
func (a Asset) ShortName() string {
	if a.Short != "" {
		return a.Short
	}
	return a.Ticker
}

// Pair is an asset measured against a benchmark.
type Pair struct {
	Asset     Asset `json:"asset"`
	Benchmark Asset `json:"benchmark"`
}

// Label renders the pair as e.g. "BTC–S&P500".
func (p Pair) Label() string {
	return p.Asset.ShortName() + "–" + p.Benchmark.ShortName()
}

// AssetCorrelation is the correlation of one asset's returns with inflation.
type AssetCorrelation struct {
	Asset  Asset             `json:"asset"`
	Result CorrelationResult `json:"result"`
}

// InflationReport holds every result of the inflation pipeline.
type InflationReport struct {
	ID            string    `json:"id"`
	GeneratedAt   time.Time `json:"generated_at"`
	Range         DateRange `json:"range"`
	IndexSeriesID string    `json:"index_series_id"`

	// Inflation is the year-over-year percent change of the index, restricted to Range.
	Inflation TimeSeries `json:"-"`

	// Merged holds monthly returns (one column per ticker) plus the inflation column.
	Merged          *TimeTable `json:"-"`
	InflationColumn string     `json:"inflation_column"`

	Correlations []AssetCorrelation `json:"correlations"`

	RollingPair          Pair              `json:"rolling_pair"`
	RollingWindow        int               `json:"rolling_window"`
	Rolling              TimeSeries        `json:"-"`
	RollingVsInflation   *TimeTable        `json:"-"`
	RollingInflationTest CorrelationResult `json:"rolling_inflation_test"`
}

// Validate checks that all report fields are consistent.
func (r *InflationReport) Validate() error {
	if r.ID == "" {
		return errors.New("report ID must not be empty")
	}
	if r.GeneratedAt.IsZero() {
		return errors.New("generated at must be set")
	}
	if r.Inflation.IsEmpty() {
		return errors.New("inflation series must not be empty")
	}
	if r.Merged == nil || r.Merged.Len() == 0 {
		return errors.New("merged table must not be empty")
	}
	if !r.Merged.HasColumn(r.InflationColumn) {
		return fmt.Errorf("merged table is missing inflation column %q", r.InflationColumn)
	}
	if len(r.Correlations) == 0 {
		return errors.New("report must contain at least one correlation")
	}
	for _, c := range r.Correlations {
		if err := c.Result.Validate(); err != nil {
			return fmt.Errorf("correlation for %s: %w", c.Asset.Ticker, err)
		}
	}
	if r.RollingWindow < 2 {
		return errors.New("rolling window must be at least 2")
	}
	return nil
}

// PairDecoupling is the early-vs-late comparison of one pair's rolling correlation.
type PairDecoupling struct {
	Pair       Pair        `json:"pair"`
	Rolling    TimeSeries  `json:"-"`
	Covariance TimeSeries  `json:"-"`
	Early      TimeSeries  `json:"-"`
	Late       TimeSeries  `json:"-"`
	EarlyMean  float64     `json:"early_mean"`
	LateMean   float64     `json:"late_mean"`
	Test       TTestResult `json:"test"`
}

// Direction describes how the mean rolling correlation moved from early to late.
func (p PairDecoupling) Direction() string {
	switch {
	case p.LateMean > p.EarlyMean:
		return "increased"
	case p.LateMean < p.EarlyMean:
		return "decreased"
	default:
		return "unchanged"
	}
}

// DecouplingReport holds every result of the decoupling pipeline.
type DecouplingReport struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Range       DateRange `json:"range"`
	Window      int       `json:"window"`
	EarlyYears  YearRange `json:"early_years"`
	LateYears   YearRange `json:"late_years"`

	Prices     *TimeTable `json:"-"`
	Normalized *TimeTable `json:"-"`

	Pairs []PairDecoupling `json:"pairs"`
}

// AnySignificant reports whether at least one pair changed significantly.
func (r *DecouplingReport) AnySignificant() bool {
	for _, p := range r.Pairs {
		if p.Test.Significant() {
			return true
		}
	}
	return false
}

// Validate checks that all report fields are consistent.
func (r *DecouplingReport) Validate() error {
	if r.ID == "" {
		return errors.New("report ID must not be empty")
	}
	if r.GeneratedAt.IsZero() {
		return errors.New("generated at must be set")
	}
	if r.Window < 2 {
		return errors.New("window must be at least 2")
	}
	if !r.EarlyYears.Valid() || !r.LateYears.Valid() {
		return errors.New("year ranges must be valid")
	}
	if r.EarlyYears.Overlaps(r.LateYears) {
		return errors.New("early and late years must not overlap")
	}
	if r.Prices == nil || r.Prices.Len() == 0 {
		return errors.New("price table must not be empty")
	}
	if len(r.Pairs) == 0 {
		return errors.New("report must contain at least one pair")
	}
	for _, p := range r.Pairs {
		if err := p.Test.Validate(); err != nil {
			return fmt.Errorf("test for %s: %w", p.Pair.Label(), err)
		}
	}
	return nil
}
