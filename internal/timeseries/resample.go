// Package timeseries implements the normalization and transformation stages:
// period-end resampling, percent changes, date alignment into tables, rolling
// window statistics and calendar-year splitting.
//
// Every function is pure: inputs are never modified and a new series or table is
// returned.
package timeseries

import (
	"fmt"
	"strings"
	"time"

	"github.com/rewired-gh/macrocorr/internal/models"
)

// Frequency is a fixed sampling period.
type Frequency int

const (
	// Daily keeps one observation per calendar day.
	Daily Frequency = iota
	// Monthly keeps one observation per calendar month, labelled with the month's last day.
	Monthly
)

// ParseFrequency maps "daily" / "monthly" to a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(s) {
	case "daily", "d":
		return Daily, nil
	case "monthly", "m":
		return Monthly, nil
	default:
		return 0, fmt.Errorf("unknown frequency %q", s)
	}
}

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "daily"
	case Monthly:
		return "monthly"
	default:
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
}

// PeriodEnd returns the label of the period containing t.
func (f Frequency) PeriodEnd(t time.Time) time.Time {
	d := models.Day(t)
	if f == Monthly {
		return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC)
	}
	return d
}

// Resample converts s to frequency f, keeping the last finite observation of each
// period. Observations outside r are ignored. Returns ErrEmptySeries when nothing
// falls within r.
func Resample(s models.TimeSeries, f Frequency, r models.DateRange) (models.TimeSeries, error) {
	var out []models.Observation
	for i := 0; i < s.Len(); i++ {
		p := s.At(i)
		if !r.Contains(p.Date) || !models.IsFinite(p.Value) {
			continue
		}
		end := f.PeriodEnd(p.Date)
		if n := len(out); n > 0 && out[n-1].Date.Equal(end) {
			out[n-1].Value = p.Value
			continue
		}
		out = append(out, models.Observation{Date: end, Value: p.Value})
	}

	if len(out) == 0 {
		return models.TimeSeries{}, fmt.Errorf("resample %s %s over %s: %w", s.Name(), f, r, models.ErrEmptySeries)
	}
	return models.NewTimeSeries(s.Name(), out)
}

// Slice restricts s to the observations inside r. The result may be empty.
func Slice(s models.TimeSeries, r models.DateRange) models.TimeSeries {
	var out []models.Observation
	for i := 0; i < s.Len(); i++ {
		if p := s.At(i); r.Contains(p.Date) {
			out = append(out, p)
		}
	}
	return models.MustTimeSeries(s.Name(), out)
}
