package storage

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rewired-gh/macrocorr/internal/models"
	"github.com/rewired-gh/macrocorr/internal/stats"
)

var (
	btc = models.Asset{Ticker: "BTC-USD", Label: "Bitcoin", Short: "BTC"}
	eth = models.Asset{Ticker: "ETH-USD", Label: "Ethereum", Short: "ETH"}
	spx = models.Asset{Ticker: "^GSPC", Label: "S&P 500", Short: "S&P500"}
)

func newMemory(t *testing.T) *Storage {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func inflationReport(id string, at time.Time) *models.InflationReport {
	return &models.InflationReport{
		ID:          id,
		GeneratedAt: at,
		Range: models.DateRange{
			From: time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		},
		IndexSeriesID:   "CPIAUCSL",
		InflationColumn: "Inflation (%)",
		Correlations: []models.AssetCorrelation{
			{Asset: btc, Result: models.CorrelationResult{Coefficient: -0.08, PValue: 0.45, N: 94}},
			{Asset: spx, Result: models.CorrelationResult{Coefficient: -0.21, PValue: 0.04, N: 94}},
		},
		RollingPair:          models.Pair{Asset: btc, Benchmark: spx},
		RollingWindow:        12,
		RollingInflationTest: models.CorrelationResult{Coefficient: 0.52, PValue: 0.0001, N: 83},
	}
}

func decouplingReport(id string, at time.Time) *models.DecouplingReport {
	return &models.DecouplingReport{
		ID:          id,
		GeneratedAt: at,
		Window:      90,
		EarlyYears:  models.YearRange{From: 2020, To: 2021},
		LateYears:   models.YearRange{From: 2022, To: 2025},
		Pairs: []models.PairDecoupling{
			{Pair: models.Pair{Asset: btc, Benchmark: spx}, EarlyMean: 0.2, LateMean: 0.4, Test: models.TTestResult{T: -12.5, PValue: 1e-20, DF: 900}},
			{Pair: models.Pair{Asset: eth, Benchmark: spx}, EarlyMean: 0.3, LateMean: 0.3, Test: models.TTestResult{T: 0.4, PValue: 0.69, DF: 880}},
		},
	}
}

func TestStorage_SaveAndListInflation(t *testing.T) {
	s := newMemory(t)
	ctx := context.Background()
	at := time.Date(2025, 11, 2, 8, 30, 0, 0, time.UTC)

	if err := s.SaveInflationReport(ctx, inflationReport("run-1", at)); err != nil {
		t.Fatalf("SaveInflationReport failed: %v", err)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.ID != "run-1" || run.Kind != KindInflation {
		t.Errorf("Unexpected run %s/%s", run.ID, run.Kind)
	}
	if !run.GeneratedAt.Equal(at) {
		t.Errorf("Expected generated at %v, got %v", at, run.GeneratedAt)
	}
	if run.From != "2018-01-01" || run.To != "2025-11-01" {
		t.Errorf("Unexpected range %s..%s", run.From, run.To)
	}

	if len(run.Results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(run.Results))
	}
	if run.Results[0].Label != "Bitcoin" || run.Results[0].Significant {
		t.Errorf("Unexpected first result %+v", run.Results[0])
	}
	if run.Results[1].Label != "S&P 500" || !run.Results[1].Significant {
		t.Errorf("Unexpected second result %+v", run.Results[1])
	}
	if run.Results[2].Label != "12-month rolling BTC–S&P500 vs inflation" {
		t.Errorf("Unexpected rolling label %q", run.Results[2].Label)
	}
	if math.Abs(run.Results[2].Statistic-0.52) > 1e-12 {
		t.Errorf("Expected statistic 0.52, got %v", run.Results[2].Statistic)
	}

	var payload struct {
		IndexSeriesID string `json:"index_series_id"`
		RollingWindow int    `json:"rolling_window"`
	}
	if err := json.Unmarshal(run.Payload, &payload); err != nil {
		t.Fatalf("Payload is not JSON: %v", err)
	}
	if payload.IndexSeriesID != "CPIAUCSL" || payload.RollingWindow != 12 {
		t.Errorf("Unexpected payload %+v", payload)
	}
}

func TestStorage_ListRunsOrderAndLimit(t *testing.T) {
	s := newMemory(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := s.SaveInflationReport(ctx, inflationReport("old", base)); err != nil {
		t.Fatalf("save old: %v", err)
	}
	if err := s.SaveDecouplingReport(ctx, decouplingReport("newest", base.Add(2*time.Hour))); err != nil {
		t.Fatalf("save newest: %v", err)
	}
	if err := s.SaveInflationReport(ctx, inflationReport("middle", base.Add(time.Hour))); err != nil {
		t.Fatalf("save middle: %v", err)
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	want := []string{"newest", "middle", "old"}
	if len(runs) != len(want) {
		t.Fatalf("Expected %d runs, got %d", len(want), len(runs))
	}
	for i, id := range want {
		if runs[i].ID != id {
			t.Errorf("runs[%d] = %s, expected %s", i, runs[i].ID, id)
		}
	}
	if runs[0].Kind != KindDecoupling || len(runs[0].Results) != 2 {
		t.Errorf("Unexpected decoupling run %+v", runs[0])
	}
	if runs[0].Results[0].Label != "BTC–S&P500" || !runs[0].Results[0].Significant {
		t.Errorf("Unexpected decoupling result %+v", runs[0].Results[0])
	}
	if runs[0].From != "" {
		t.Errorf("Unbounded range should be stored empty, got %q", runs[0].From)
	}

	limited, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(limited) != 2 || limited[1].ID != "middle" {
		t.Errorf("Unexpected limited runs %+v", limited)
	}
}

func TestStorage_DuplicateRunID(t *testing.T) {
	s := newMemory(t)
	ctx := context.Background()
	rep := inflationReport("dup", time.Now())

	if err := s.SaveInflationReport(ctx, rep); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveInflationReport(ctx, rep); err == nil {
		t.Fatal("Expected error saving the same run twice")
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 || len(runs[0].Results) != 3 {
		t.Errorf("Failed save must not leave partial rows, got %+v", runs)
	}
}

func TestStorage_EmptyRunID(t *testing.T) {
	s := newMemory(t)
	if err := s.SaveDecouplingReport(context.Background(), decouplingReport("", time.Now())); err == nil {
		t.Fatal("Expected error for empty run ID")
	}
}

func TestStorage_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "macrocorr.db")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.SaveDecouplingReport(ctx, decouplingReport("persisted", time.Now())); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	runs, err := reopened.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "persisted" {
		t.Errorf("Expected the persisted run, got %+v", runs)
	}
}

func TestStorage_EmptyPath(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("Expected error for empty path")
	}
}

func TestStorage_LatestRun(t *testing.T) {
	s := newMemory(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	run, err := s.LatestRun(ctx, KindInflation, "")
	if err != nil || run != nil {
		t.Fatalf("Expected no run on an empty archive, got %+v, %v", run, err)
	}

	for i, id := range []string{"a", "b"} {
		if err := s.SaveInflationReport(ctx, inflationReport(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	if err := s.SaveDecouplingReport(ctx, decouplingReport("c", base.Add(5*time.Hour))); err != nil {
		t.Fatalf("save c: %v", err)
	}

	run, err = s.LatestRun(ctx, KindInflation, "b")
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if run == nil || run.ID != "a" || len(run.Results) != 3 {
		t.Errorf("Expected run a with results, got %+v", run)
	}

	run, err = s.LatestRun(ctx, KindInflation, "")
	if err != nil || run == nil || run.ID != "b" {
		t.Errorf("Expected run b, got %+v, %v", run, err)
	}
}

func TestDecouplingResults(t *testing.T) {
	results := DecouplingResults(decouplingReport("x", time.Now()))
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[1].Label != "ETH–S&P500" || results[1].Significant || results[1].Statistic != 0.4 {
		t.Errorf("Unexpected result %+v", results[1])
	}
}

func TestStorage_SaveConstantPeriods(t *testing.T) {
	s := newMemory(t)
	ctx := context.Background()

	// Both periods are flat at different levels, so the test saturates.
	test, err := stats.WelchTTest([]float64{0.9, 0.9, 0.9}, []float64{0.5, 0.5})
	if err != nil {
		t.Fatalf("WelchTTest failed: %v", err)
	}
	if err := test.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	rep := decouplingReport("flat", time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC))
	rep.Pairs[0].Test = test
	if err := s.SaveDecouplingReport(ctx, rep); err != nil {
		t.Fatalf("SaveDecouplingReport failed: %v", err)
	}

	run, err := s.LatestRun(ctx, KindDecoupling, "")
	if err != nil || run == nil {
		t.Fatalf("LatestRun = %v, %v", run, err)
	}
	got := run.Results[0]
	if got.Statistic != models.DegenerateT || got.PValue != 0 || !got.Significant {
		t.Errorf("Unexpected archived result %+v", got)
	}

	var payload models.DecouplingReport
	if err := json.Unmarshal(run.Payload, &payload); err != nil {
		t.Fatalf("Payload is not JSON: %v", err)
	}
	if !payload.Pairs[0].Test.Degenerate() {
		t.Errorf("Expected saturated t in payload, got %v", payload.Pairs[0].Test.T)
	}
}
