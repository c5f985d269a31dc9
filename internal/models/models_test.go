package models

import (
	"errors"
	"math"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewTimeSeries(t *testing.T) {
	points := []Observation{
		{Date: day(2024, 1, 31), Value: 1},
		{Date: day(2024, 2, 29), Value: 2},
	}
	s, err := NewTimeSeries("BTC-USD", points)
	if err != nil {
		t.Fatalf("NewTimeSeries failed: %v", err)
	}

	points[0].Value = 99
	if s.At(0).Value != 1 {
		t.Error("series must not alias its input")
	}
	if s.Name() != "BTC-USD" || s.Len() != 2 {
		t.Errorf("unexpected series %s with %d points", s.Name(), s.Len())
	}
	if last, ok := s.Last(); !ok || !last.Date.Equal(day(2024, 2, 29)) {
		t.Errorf("unexpected last observation %+v", last)
	}

	_, err = NewTimeSeries("bad", []Observation{
		{Date: day(2024, 2, 1), Value: 1},
		{Date: day(2024, 2, 1), Value: 2},
	})
	if !errors.Is(err, ErrUnsortedSeries) {
		t.Errorf("expected ErrUnsortedSeries, got %v", err)
	}

	empty := MustTimeSeries("empty", nil)
	if !empty.IsEmpty() {
		t.Error("expected empty series")
	}
	if _, ok := empty.First(); ok {
		t.Error("First on empty series should report false")
	}
}

func TestSameIndex(t *testing.T) {
	a := MustTimeSeries("a", []Observation{{Date: day(2024, 1, 1)}, {Date: day(2024, 1, 2)}})
	b := MustTimeSeries("b", []Observation{{Date: day(2024, 1, 1), Value: 5}, {Date: day(2024, 1, 2), Value: 6}})
	c := MustTimeSeries("c", []Observation{{Date: day(2024, 1, 1)}, {Date: day(2024, 1, 3)}})

	if !a.SameIndex(b) {
		t.Error("a and b share an index")
	}
	if a.SameIndex(c) {
		t.Error("a and c have different indexes")
	}
	if a.SameIndex(MustTimeSeries("d", nil)) {
		t.Error("different lengths cannot share an index")
	}
}

func TestNewTimeTable(t *testing.T) {
	dates := []time.Time{day(2024, 1, 31), day(2024, 2, 29)}

	tests := []struct {
		name    string
		dates   []time.Time
		columns []string
		values  [][]float64
		wantErr error
		anyErr  bool
	}{
		{
			name:    "valid",
			dates:   dates,
			columns: []string{"a", "b"},
			values:  [][]float64{{1, 2}, {3, 4}},
		},
		{
			name:    "duplicate column",
			dates:   dates,
			columns: []string{"a", "a"},
			values:  [][]float64{{1, 2}, {3, 4}},
			wantErr: ErrDuplicateColumn,
		},
		{
			name:    "unsorted index",
			dates:   []time.Time{dates[1], dates[0]},
			columns: []string{"a"},
			values:  [][]float64{{1, 2}},
			wantErr: ErrUnsortedSeries,
		},
		{
			name:    "ragged column",
			dates:   dates,
			columns: []string{"a"},
			values:  [][]float64{{1}},
			anyErr:  true,
		},
		{
			name:    "non-finite value",
			dates:   dates,
			columns: []string{"a"},
			values:  [][]float64{{1, math.NaN()}},
			anyErr:  true,
		},
		{
			name:    "column count mismatch",
			dates:   dates,
			columns: []string{"a", "b"},
			values:  [][]float64{{1, 2}},
			anyErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewTimeTable(tt.dates, tt.columns, tt.values)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			case tt.anyErr:
				if err == nil {
					t.Error("expected an error")
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if table.Len() != 2 || !table.HasColumn("b") {
					t.Errorf("unexpected table shape")
				}
				col, err := table.Column("b")
				if err != nil || col.At(1).Value != 4 {
					t.Errorf("unexpected column b: %v %v", col.Values(), err)
				}
				if _, err := table.Values("missing"); err == nil {
					t.Error("expected an error for a missing column")
				}
			}
		})
	}
}

func TestDateRange(t *testing.T) {
	r := DateRange{From: day(2018, 1, 1), To: day(2025, 11, 1)}

	if !r.Contains(day(2018, 1, 1)) || !r.Contains(day(2025, 11, 1)) {
		t.Error("bounds are inclusive")
	}
	if r.Contains(day(2017, 12, 31)) || r.Contains(day(2025, 11, 2)) {
		t.Error("dates outside the range must not be contained")
	}
	if !(DateRange{}).Contains(day(1970, 1, 1)) {
		t.Error("zero range is unbounded")
	}

	wide := r.Widen(12)
	if !wide.From.Equal(day(2017, 1, 1)) || !wide.To.Equal(r.To) {
		t.Errorf("unexpected widened range %s", wide)
	}
	if got := r.String(); got != "2018-01-01..2025-11-01" {
		t.Errorf("unexpected string %q", got)
	}
}

func TestYearRange(t *testing.T) {
	early := YearRange{From: 2020, To: 2021}
	late := YearRange{From: 2022, To: 2025}

	if !early.Valid() || !late.Valid() {
		t.Error("both ranges are valid")
	}
	if (YearRange{From: 2022, To: 2021}).Valid() {
		t.Error("inverted range is invalid")
	}
	if early.Overlaps(late) {
		t.Error("early and late do not overlap")
	}
	if !early.Overlaps(YearRange{From: 2021, To: 2022}) {
		t.Error("ranges sharing 2021 overlap")
	}
	if !early.Contains(day(2021, 12, 31)) || early.Contains(day(2022, 1, 1)) {
		t.Error("unexpected Contains result")
	}
	if got := (YearRange{From: 2020, To: 2020}).String(); got != "2020" {
		t.Errorf("unexpected string %q", got)
	}
}

func TestCorrelationResultValidate(t *testing.T) {
	tests := []struct {
		name    string
		result  CorrelationResult
		wantErr bool
	}{
		{"valid", CorrelationResult{Coefficient: 0.3, PValue: 0.01, N: 20}, false},
		{"perfect", CorrelationResult{Coefficient: -1, PValue: 0, N: 3}, false},
		{"coefficient too large", CorrelationResult{Coefficient: 1.1, PValue: 0.5, N: 20}, true},
		{"nan coefficient", CorrelationResult{Coefficient: math.NaN(), PValue: 0.5, N: 20}, true},
		{"negative p", CorrelationResult{Coefficient: 0.1, PValue: -0.1, N: 20}, true},
		{"too few samples", CorrelationResult{Coefficient: 0.1, PValue: 0.5, N: 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if !(CorrelationResult{PValue: 0.049}).Significant() {
		t.Error("0.049 is significant")
	}
	if (CorrelationResult{PValue: 0.05}).Significant() {
		t.Error("0.05 is not significant")
	}
}

func TestTTestResultValidate(t *testing.T) {
	tests := []struct {
		name    string
		result  TTestResult
		wantErr bool
	}{
		{"valid", TTestResult{T: 2, PValue: 0.04, DF: 10, Policy: WelchPolicy, NA: 5, NB: 6}, false},
		{"small sample", TTestResult{PValue: 0.5, Policy: WelchPolicy, NA: 1, NB: 6}, true},
		{"p above one", TTestResult{PValue: 1.5, Policy: WelchPolicy, NA: 5, NB: 6}, true},
		{"infinite t", TTestResult{T: math.Inf(-1), PValue: 0, Policy: WelchPolicy, NA: 5, NB: 6}, true},
		{"saturated t", TTestResult{T: DegenerateT, PValue: 0, DF: 3, Policy: WelchPolicy, NA: 3, NB: 2}, false},
		{"wrong policy", TTestResult{PValue: 0.5, Policy: "pooled", NA: 5, NB: 6}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPairDecouplingDirection(t *testing.T) {
	pair := Pair{
		Asset:     Asset{Ticker: "BTC-USD", Label: "Bitcoin", Short: "BTC"},
		Benchmark: Asset{Ticker: "^GSPC", Label: "S&P 500", Short: "S&P500"},
	}
	if got := pair.Label(); got != "BTC–S&P500" {
		t.Errorf("unexpected label %q", got)
	}
	if got := (Asset{Ticker: "ETH-USD"}).ShortName(); got != "ETH-USD" {
		t.Errorf("ShortName should fall back to the ticker, got %q", got)
	}

	tests := []struct {
		early, late float64
		want        string
	}{
		{0.2, 0.6, "increased"},
		{0.6, 0.2, "decreased"},
		{0.4, 0.4, "unchanged"},
	}
	for _, tt := range tests {
		d := PairDecoupling{Pair: pair, EarlyMean: tt.early, LateMean: tt.late}
		if got := d.Direction(); got != tt.want {
			t.Errorf("Direction(%v -> %v) = %s, want %s", tt.early, tt.late, got, tt.want)
		}
	}
}

func TestDecouplingReportValidate(t *testing.T) {
	prices, err := NewTimeTable([]time.Time{day(2024, 1, 1)}, []string{"BTC-USD"}, [][]float64{{1}})
	if err != nil {
		t.Fatal(err)
	}
	valid := func() *DecouplingReport {
		return &DecouplingReport{
			ID:          "run-1",
			GeneratedAt: day(2025, 11, 2),
			Window:      90,
			EarlyYears:  YearRange{From: 2020, To: 2021},
			LateYears:   YearRange{From: 2022, To: 2025},
			Prices:      prices,
			Pairs: []PairDecoupling{{
				Test: TTestResult{PValue: 0.01, Policy: WelchPolicy, NA: 10, NB: 10},
			}},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid report failed: %v", err)
	}
	if !valid().AnySignificant() {
		t.Error("report with p=0.01 has a significant pair")
	}

	tests := []struct {
		name   string
		mutate func(r *DecouplingReport)
	}{
		{"missing id", func(r *DecouplingReport) { r.ID = "" }},
		{"small window", func(r *DecouplingReport) { r.Window = 1 }},
		{"overlapping years", func(r *DecouplingReport) { r.LateYears = YearRange{From: 2021, To: 2025} }},
		{"no prices", func(r *DecouplingReport) { r.Prices = nil }},
		{"no pairs", func(r *DecouplingReport) { r.Pairs = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			if err := r.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestProviderError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ProviderError{Provider: "fred", Op: "observations", StatusCode: 500, Err: cause}

	if !errors.Is(err, cause) {
		t.Error("ProviderError must unwrap to its cause")
	}
	var pe *ProviderError
	if !errors.As(error(err), &pe) || pe.Provider != "fred" {
		t.Error("errors.As should find the ProviderError")
	}
	if err.Error() == "" {
		t.Error("empty error message")
	}
}
