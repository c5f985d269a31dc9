package timeseries

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rewired-gh/macrocorr/internal/models"
)

// Align intersects the date indexes of all series, restricted to r, and builds a
// table with one column per series. Rows where any series lacks a finite value are
// dropped. The row set does not depend on the order of series; columns keep the
// input order.
func Align(r models.DateRange, series ...models.TimeSeries) (*models.TimeTable, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("align: no series given: %w", models.ErrEmptyIntersection)
	}

	names := make([]string, len(series))
	seen := make(map[string]bool, len(series))
	for i, s := range series {
		if seen[s.Name()] {
			return nil, fmt.Errorf("align column %q: %w", s.Name(), models.ErrDuplicateColumn)
		}
		seen[s.Name()] = true
		names[i] = s.Name()
	}

	lookup := make([]map[int64]float64, len(series))
	counts := make(map[int64]int)
	for i, s := range series {
		lookup[i] = make(map[int64]float64, s.Len())
		for j := 0; j < s.Len(); j++ {
			p := s.At(j)
			if !r.Contains(p.Date) || !models.IsFinite(p.Value) {
				continue
			}
			key := p.Date.Unix()
			if _, dup := lookup[i][key]; dup {
				continue
			}
			lookup[i][key] = p.Value
			counts[key]++
		}
	}

	keys := make([]int64, 0, len(counts))
	for key, c := range counts {
		if c == len(series) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("align [%s] over %s: %w", strings.Join(names, ", "), r, models.ErrEmptyIntersection)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	dates := make([]time.Time, len(keys))
	for i, key := range keys {
		dates[i] = time.Unix(key, 0).UTC()
	}
	values := make([][]float64, len(series))
	for i := range series {
		col := make([]float64, len(keys))
		for j, key := range keys {
			col[j] = lookup[i][key]
		}
		values[i] = col
	}

	return models.NewTimeTable(dates, names, values)
}
