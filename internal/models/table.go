package models

import (
	"fmt"
	"time"
)

// TimeTable maps an ordered date index to rows of named values.
// All columns share the same gap-free index and hold only finite values;
// NewTimeTable rejects anything else.
type TimeTable struct {
	dates   []time.Time
	columns []string
	values  map[string][]float64
}

// NewTimeTable builds a table from a date index and one value slice per column.
func NewTimeTable(dates []time.Time, columns []string, values [][]float64) (*TimeTable, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("table has %d columns but %d value slices", len(columns), len(values))
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("table index at %s: %w", dates[i].Format(time.DateOnly), ErrUnsortedSeries)
		}
	}

	t := &TimeTable{
		dates:   append([]time.Time(nil), dates...),
		columns: append([]string(nil), columns...),
		values:  make(map[string][]float64, len(columns)),
	}
	for i, name := range columns {
		if _, exists := t.values[name]; exists {
			return nil, fmt.Errorf("column %q: %w", name, ErrDuplicateColumn)
		}
		col := values[i]
		if len(col) != len(dates) {
			return nil, fmt.Errorf("column %q has %d values for %d dates", name, len(col), len(dates))
		}
		for j, v := range col {
			if !IsFinite(v) {
				return nil, fmt.Errorf("column %q has non-finite value at %s", name, dates[j].Format(time.DateOnly))
			}
		}
		t.values[name] = append([]float64(nil), col...)
	}
	return t, nil
}

// Len returns the number of rows.
func (t *TimeTable) Len() int { return len(t.dates) }

// Dates returns a copy of the date index.
func (t *TimeTable) Dates() []time.Time {
	return append([]time.Time(nil), t.dates...)
}

// Columns returns the column names in construction order.
func (t *TimeTable) Columns() []string {
	return append([]string(nil), t.columns...)
}

// HasColumn reports whether the table has a column with the given name.
func (t *TimeTable) HasColumn(name string) bool {
	_, ok := t.values[name]
	return ok
}

// Values returns a copy of one column's values.
func (t *TimeTable) Values(name string) ([]float64, error) {
	col, ok := t.values[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	return append([]float64(nil), col...), nil
}

// Value returns the value of a column at row i.
func (t *TimeTable) Value(name string, i int) float64 {
	return t.values[name][i]
}

// Column returns one column as a TimeSeries.
func (t *TimeTable) Column(name string) (TimeSeries, error) {
	col, ok := t.values[name]
	if !ok {
		return TimeSeries{}, fmt.Errorf("column %q not found", name)
	}
	points := make([]Observation, len(t.dates))
	for i, d := range t.dates {
		points[i] = Observation{Date: d, Value: col[i]}
	}
	return TimeSeries{name: name, points: points}, nil
}

// Series decomposes the table into one TimeSeries per column.
func (t *TimeTable) Series() []TimeSeries {
	out := make([]TimeSeries, 0, len(t.columns))
	for _, name := range t.columns {
		s, _ := t.Column(name)
		out = append(out, s)
	}
	return out
}
