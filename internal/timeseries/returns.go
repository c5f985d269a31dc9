package timeseries

import (
	"fmt"

	"github.com/rewired-gh/macrocorr/internal/models"
)

// PctChange returns R[t] = (S[t]/S[t-lag] - 1) * 100 for every t with a usable
// lagged value. The lag is positional. The first lag points are dropped, as is any
// point whose denominator is zero or non-finite.
func PctChange(s models.TimeSeries, lag int) (models.TimeSeries, error) {
	if lag < 1 {
		return models.TimeSeries{}, fmt.Errorf("pct change of %s with lag %d: %w", s.Name(), lag, models.ErrInvalidLag)
	}

	var out []models.Observation
	for t := lag; t < s.Len(); t++ {
		cur, prev := s.At(t), s.At(t-lag)
		if prev.Value == 0 || !models.IsFinite(prev.Value) || !models.IsFinite(cur.Value) {
			continue
		}
		out = append(out, models.Observation{
			Date:  cur.Date,
			Value: (cur.Value/prev.Value - 1) * 100,
		})
	}
	return models.NewTimeSeries(s.Name(), out)
}

// PctChangeTable applies PctChange to every column and re-aligns the results, so a
// point dropped in one column drops the whole row.
func PctChangeTable(t *models.TimeTable, lag int) (*models.TimeTable, error) {
	cols := t.Series()
	changed := make([]models.TimeSeries, 0, len(cols))
	for _, c := range cols {
		r, err := PctChange(c, lag)
		if err != nil {
			return nil, err
		}
		changed = append(changed, r)
	}
	return Align(models.DateRange{}, changed...)
}

// Normalize divides every column by its first value, so each column starts at 1.
func Normalize(t *models.TimeTable) (*models.TimeTable, error) {
	if t.Len() == 0 {
		return nil, fmt.Errorf("normalize: %w", models.ErrEmptyIntersection)
	}

	columns := t.Columns()
	values := make([][]float64, len(columns))
	for i, name := range columns {
		col, err := t.Values(name)
		if err != nil {
			return nil, err
		}
		base := col[0]
		if base == 0 {
			return nil, fmt.Errorf("normalize %s: first value is zero", name)
		}
		for j := range col {
			col[j] /= base
		}
		values[i] = col
	}
	return models.NewTimeTable(t.Dates(), columns, values)
}
