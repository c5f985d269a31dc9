// Package models defines the core domain entities for macrocorr.
// These models represent date-indexed series, aligned tables, statistical test results,
// and the reports produced by a pipeline run.
//
// Every entity is created fresh per run and is never mutated after construction:
// constructors copy their input and accessors hand out copies.
package models

import (
	"fmt"
	"math"
	"time"
)

// Observation is a single (date, value) pair. Dates are calendar days at 00:00 UTC.
type Observation struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// TimeSeries is an ordered sequence of observations with strictly increasing dates.
type TimeSeries struct {
	name   string
	points []Observation
}

// NewTimeSeries validates ordering and returns a series owning a copy of points.
func NewTimeSeries(name string, points []Observation) (TimeSeries, error) {
	for i := 1; i < len(points); i++ {
		if !points[i].Date.After(points[i-1].Date) {
			return TimeSeries{}, fmt.Errorf("%s at %s: %w", name, points[i].Date.Format(time.DateOnly), ErrUnsortedSeries)
		}
	}
	cp := make([]Observation, len(points))
	copy(cp, points)
	return TimeSeries{name: name, points: cp}, nil
}

// MustTimeSeries is NewTimeSeries for callers that build points in order themselves.
func MustTimeSeries(name string, points []Observation) TimeSeries {
	s, err := NewTimeSeries(name, points)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the series name.
func (s TimeSeries) Name() string { return s.name }

// Len returns the number of observations.
func (s TimeSeries) Len() int { return len(s.points) }

// IsEmpty reports whether the series has no observations.
func (s TimeSeries) IsEmpty() bool { return len(s.points) == 0 }

// At returns the i-th observation.
func (s TimeSeries) At(i int) Observation { return s.points[i] }

// Points returns a copy of the observations.
func (s TimeSeries) Points() []Observation {
	cp := make([]Observation, len(s.points))
	copy(cp, s.points)
	return cp
}

// Dates returns the date index.
func (s TimeSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.points))
	for i, p := range s.points {
		dates[i] = p.Date
	}
	return dates
}

// Values returns the values in date order.
func (s TimeSeries) Values() []float64 {
	values := make([]float64, len(s.points))
	for i, p := range s.points {
		values[i] = p.Value
	}
	return values
}

// Renamed returns the same observations under a different name.
func (s TimeSeries) Renamed(name string) TimeSeries {
	return TimeSeries{name: name, points: s.points}
}

// First returns the earliest observation; ok is false for an empty series.
func (s TimeSeries) First() (Observation, bool) {
	if len(s.points) == 0 {
		return Observation{}, false
	}
	return s.points[0], true
}

// Last returns the latest observation; ok is false for an empty series.
func (s TimeSeries) Last() (Observation, bool) {
	if len(s.points) == 0 {
		return Observation{}, false
	}
	return s.points[len(s.points)-1], true
}

// SameIndex reports whether both series have identical date indexes.
func (s TimeSeries) SameIndex(other TimeSeries) bool {
	if len(s.points) != len(other.points) {
		return false
	}
	for i := range s.points {
		if !s.points[i].Date.Equal(other.points[i].Date) {
			return false
		}
	}
	return true
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateRange is an inclusive date range. A zero bound is unbounded on that side.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Widen moves the lower bound back by the given number of months.
func (r DateRange) Widen(months int) DateRange {
	if r.From.IsZero() {
		return r
	}
	return DateRange{From: r.From.AddDate(0, -months, 0), To: r.To}
}

func (r DateRange) String() string {
	from, to := "-inf", "+inf"
	if !r.From.IsZero() {
		from = r.From.Format(time.DateOnly)
	}
	if !r.To.IsZero() {
		to = r.To.Format(time.DateOnly)
	}
	return from + ".." + to
}

// YearRange is an inclusive range of calendar years.
type YearRange struct {
	From int `json:"from" mapstructure:"from"`
	To   int `json:"to" mapstructure:"to"`
}

// Contains reports whether t falls in one of the years.
func (y YearRange) Contains(t time.Time) bool {
	return t.Year() >= y.From && t.Year() <= y.To
}

// Overlaps reports whether the two ranges share a year.
func (y YearRange) Overlaps(other YearRange) bool {
	return y.From <= other.To && other.From <= y.To
}

// Valid reports whether the range is non-inverted.
func (y YearRange) Valid() bool {
	return y.From > 0 && y.From <= y.To
}

func (y YearRange) String() string {
	if y.From == y.To {
		return fmt.Sprintf("%d", y.From)
	}
	return fmt.Sprintf("%d–%d", y.From, y.To)
}
