package monitor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rewired-gh/macrocorr/internal/models"
	"github.com/rewired-gh/macrocorr/internal/storage"
)

func mustStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var (
	btc = models.Asset{Ticker: "BTC-USD", Label: "Bitcoin", Short: "BTC"}
	eth = models.Asset{Ticker: "ETH-USD", Label: "Ethereum", Short: "ETH"}
	spx = models.Asset{Ticker: "^GSPC", Label: "S&P 500", Short: "S&P500"}
)

func decoupling(id string, at time.Time, btcT, btcP, ethT, ethP float64) *models.DecouplingReport {
	return &models.DecouplingReport{
		ID:          id,
		GeneratedAt: at,
		Window:      90,
		EarlyYears:  models.YearRange{From: 2020, To: 2021},
		LateYears:   models.YearRange{From: 2022, To: 2025},
		Pairs: []models.PairDecoupling{
			{Pair: models.Pair{Asset: btc, Benchmark: spx}, Test: models.TTestResult{T: btcT, PValue: btcP}},
			{Pair: models.Pair{Asset: eth, Benchmark: spx}, Test: models.TTestResult{T: ethT, PValue: ethP}},
		},
	}
}

func TestDetectShifts(t *testing.T) {
	s := mustStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	if err := s.SaveDecouplingReport(ctx, decoupling("prev", base, -1.0, 0.3, -5.0, 0.001)); err != nil {
		t.Fatalf("save prev: %v", err)
	}
	current := decoupling("curr", base.Add(24*time.Hour), -3.0, 0.004, -5.5, 0.0005)
	if err := s.SaveDecouplingReport(ctx, current); err != nil {
		t.Fatalf("save curr: %v", err)
	}

	m := New(s, 0.1)
	shifts, err := m.DetectShifts(ctx, storage.KindDecoupling, current.ID, storage.DecouplingResults(current))
	if err != nil {
		t.Fatalf("DetectShifts failed: %v", err)
	}
	if len(shifts) != 2 {
		t.Fatalf("expected 2 shifts, got %d: %+v", len(shifts), shifts)
	}

	// The flip sorts first even though its delta is larger anyway.
	first := shifts[0]
	if first.Label != "BTC–S&P500" || !first.Flipped() || first.PreviousRun != "prev" {
		t.Errorf("unexpected first shift %+v", first)
	}
	if math.Abs(first.Delta()-(-2.0)) > 1e-12 || first.Direction() != "decrease" {
		t.Errorf("delta = %v direction = %s", first.Delta(), first.Direction())
	}
	if got := first.String(); got != "BTC–S&P500: -1.000 → -3.000 (-2.000, now significant)" {
		t.Errorf("String() = %q", got)
	}

	if shifts[1].Label != "ETH–S&P500" || shifts[1].Flipped() {
		t.Errorf("unexpected second shift %+v", shifts[1])
	}
}

func TestDetectShiftsThreshold(t *testing.T) {
	s := mustStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	if err := s.SaveDecouplingReport(ctx, decoupling("prev", base, -1.0, 0.3, -5.0, 0.001)); err != nil {
		t.Fatalf("save prev: %v", err)
	}
	current := decoupling("curr", base.Add(time.Hour), -1.05, 0.28, -5.0, 0.001)

	tests := []struct {
		name     string
		minDelta float64
		want     int
	}{
		{"small moves filtered", 0.1, 0},
		{"zero threshold keeps moves", 0, 1},
		{"negative threshold is absolute", -0.01, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shifts, err := New(s, tt.minDelta).DetectShifts(ctx, storage.KindDecoupling, current.ID, storage.DecouplingResults(current))
			if err != nil {
				t.Fatalf("DetectShifts failed: %v", err)
			}
			if len(shifts) != tt.want {
				t.Errorf("got %d shifts, want %d: %+v", len(shifts), tt.want, shifts)
			}
		})
	}
}

func TestDetectShiftsNoPredecessor(t *testing.T) {
	s := mustStorage(t)
	ctx := context.Background()
	current := decoupling("only", time.Now(), -1, 0.01, -2, 0.02)
	if err := s.SaveDecouplingReport(ctx, current); err != nil {
		t.Fatalf("save: %v", err)
	}

	shifts, err := New(s, 0).DetectShifts(ctx, storage.KindDecoupling, current.ID, storage.DecouplingResults(current))
	if err != nil {
		t.Fatalf("DetectShifts failed: %v", err)
	}
	if len(shifts) != 0 {
		t.Errorf("expected no shifts, got %+v", shifts)
	}
}

func TestDetectShiftsIgnoresOtherKindsAndNewLabels(t *testing.T) {
	s := mustStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	if err := s.SaveDecouplingReport(ctx, decoupling("dec", base, -1, 0.3, -5, 0.001)); err != nil {
		t.Fatalf("save: %v", err)
	}

	current := []storage.Result{{Label: "Bitcoin", Statistic: 0.5, PValue: 0.01, Significant: true}}
	shifts, err := New(s, 0).DetectShifts(ctx, storage.KindInflation, "new", current)
	if err != nil {
		t.Fatalf("DetectShifts failed: %v", err)
	}
	if len(shifts) != 0 {
		t.Errorf("decoupling runs must not be compared with inflation results: %+v", shifts)
	}
}

type failingArchive struct{}

func (failingArchive) LatestRun(context.Context, string, string) (*storage.Run, error) {
	return nil, errors.New("database is locked")
}

func TestDetectShiftsArchiveError(t *testing.T) {
	_, err := New(failingArchive{}, 0).DetectShifts(context.Background(), storage.KindInflation, "x", nil)
	if err == nil {
		t.Fatal("expected archive error")
	}
}

func TestShiftDirection(t *testing.T) {
	tests := []struct {
		prev, curr float64
		want       string
	}{
		{0.1, 0.3, "increase"},
		{0.3, 0.1, "decrease"},
		{0.2, 0.2, "unchanged"},
	}
	for _, tt := range tests {
		s := Shift{Previous: storage.Result{Statistic: tt.prev}, Current: storage.Result{Statistic: tt.curr}}
		if got := s.Direction(); got != tt.want {
			t.Errorf("Direction(%v→%v) = %s, want %s", tt.prev, tt.curr, got, tt.want)
		}
	}
}
