package timeseries

import (
	"fmt"

	"github.com/rewired-gh/macrocorr/internal/models"
)

// SplitByYears slices s into an early and a late window by calendar year.
// The ranges must be valid and disjoint; they need not be contiguous.
func SplitByYears(s models.TimeSeries, early, late models.YearRange) (models.TimeSeries, models.TimeSeries, error) {
	if !early.Valid() || !late.Valid() {
		return models.TimeSeries{}, models.TimeSeries{}, fmt.Errorf("split %s into %s and %s: %w", s.Name(), early, late, models.ErrInvalidYearRange)
	}
	if early.Overlaps(late) {
		return models.TimeSeries{}, models.TimeSeries{}, fmt.Errorf("split %s: %s overlaps %s: %w", s.Name(), early, late, models.ErrInvalidYearRange)
	}

	e, err := yearWindow(s, early)
	if err != nil {
		return models.TimeSeries{}, models.TimeSeries{}, err
	}
	l, err := yearWindow(s, late)
	if err != nil {
		return models.TimeSeries{}, models.TimeSeries{}, err
	}
	return e, l, nil
}

func yearWindow(s models.TimeSeries, y models.YearRange) (models.TimeSeries, error) {
	var out []models.Observation
	for i := 0; i < s.Len(); i++ {
		if p := s.At(i); y.Contains(p.Date) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return models.TimeSeries{}, fmt.Errorf("%s in %s: %w", s.Name(), y, models.ErrEmptyWindow)
	}
	return models.NewTimeSeries(s.Name(), out)
}
