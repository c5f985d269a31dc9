package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rewired-gh/macrocorr/internal/logger"
	"github.com/rewired-gh/macrocorr/internal/models"
	"github.com/rewired-gh/macrocorr/internal/stats"
	"github.com/rewired-gh/macrocorr/internal/timeseries"
)

// DecouplingParams configures RunDecoupling.
type DecouplingParams struct {
	Range         models.DateRange
	Assets        []models.Asset
	Benchmark     models.Asset
	RollingWindow int
	Early         models.YearRange
	Late          models.YearRange
}

// DefaultDecouplingParams returns the 90-day, 2020–2021 vs 2022–2025 setup.
func DefaultDecouplingParams(r models.DateRange, assets []models.Asset, benchmark models.Asset) DecouplingParams {
	return DecouplingParams{
		Range:         r,
		Assets:        assets,
		Benchmark:     benchmark,
		RollingWindow: 90,
		Early:         models.YearRange{From: 2020, To: 2021},
		Late:          models.YearRange{From: 2022, To: 2025},
	}
}

func (p DecouplingParams) validate() error {
	if len(p.Assets) == 0 {
		return errors.New("at least one asset is required")
	}
	if p.Benchmark.Ticker == "" {
		return errors.New("benchmark is required")
	}
	if p.RollingWindow < 2 {
		return fmt.Errorf("rolling window %d: %w", p.RollingWindow, models.ErrInvalidWindow)
	}
	if !p.Early.Valid() || !p.Late.Valid() || p.Early.Overlaps(p.Late) {
		return fmt.Errorf("periods %s and %s: %w", p.Early, p.Late, models.ErrInvalidYearRange)
	}
	return nil
}

// RunDecoupling measures each asset's rolling correlation with the benchmark and tests
// whether its mean differs between the early and the late period.
func RunDecoupling(ctx context.Context, prices PriceSource, p DecouplingParams) (*models.DecouplingReport, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid decoupling parameters: %w", err)
	}

	instruments := append(append([]models.Asset(nil), p.Assets...), p.Benchmark)
	closes, err := fetchCloses(ctx, prices, instruments, p.Range)
	if err != nil {
		return nil, err
	}

	// Only days on which every instrument traded are kept.
	table, err := timeseries.Align(p.Range, closes...)
	if err != nil {
		return nil, fmt.Errorf("failed to align prices: %w", err)
	}
	logger.Info("Aligned %d common trading days across %d instruments", table.Len(), len(instruments))

	normalized, err := timeseries.Normalize(table)
	if err != nil {
		return nil, err
	}
	returns, err := timeseries.PctChangeTable(table, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily returns: %w", err)
	}
	benchmark, err := returns.Column(p.Benchmark.Ticker)
	if err != nil {
		return nil, err
	}

	pairs := make([]models.PairDecoupling, 0, len(p.Assets))
	rolls := make([]models.TimeSeries, 0, len(p.Assets))
	for _, a := range p.Assets {
		pair := models.Pair{Asset: a, Benchmark: p.Benchmark}
		x, err := returns.Column(a.Ticker)
		if err != nil {
			return nil, err
		}
		corr, err := timeseries.RollingCorrelation(x, benchmark, p.RollingWindow)
		if err != nil {
			return nil, err
		}
		cov, err := timeseries.RollingCovariance(x, benchmark, p.RollingWindow)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, models.PairDecoupling{Pair: pair, Covariance: cov.Renamed(pair.Label())})
		rolls = append(rolls, corr.Renamed(pair.Label()))
	}

	// Every pair is compared on the same set of days.
	combined, err := timeseries.Align(models.DateRange{}, rolls...)
	if err != nil {
		return nil, fmt.Errorf("failed to align rolling correlations: %w", err)
	}

	for i := range pairs {
		label := pairs[i].Pair.Label()
		rolling, err := combined.Column(label)
		if err != nil {
			return nil, err
		}
		early, late, err := timeseries.SplitByYears(rolling, p.Early, p.Late)
		if err != nil {
			return nil, fmt.Errorf("failed to split %s: %w", label, err)
		}
		test, err := stats.WelchTTest(early.Values(), late.Values())
		if err != nil {
			return nil, fmt.Errorf("%s %s vs %s: %w", label, p.Early, p.Late, err)
		}

		pairs[i].Rolling = rolling
		pairs[i].Early = early
		pairs[i].Late = late
		pairs[i].EarlyMean = test.MeanA
		pairs[i].LateMean = test.MeanB
		pairs[i].Test = test
		logger.Debug("%s: early mean %.3f, late mean %.3f, t=%.3f p=%.4f", label, test.MeanA, test.MeanB, test.T, test.PValue)
	}

	report := &models.DecouplingReport{
		ID:          newRunID(),
		GeneratedAt: now(),
		Range:       p.Range,
		Window:      p.RollingWindow,
		EarlyYears:  p.Early,
		LateYears:   p.Late,
		Prices:      table,
		Normalized:  normalized,
		Pairs:       pairs,
	}
	if err := report.Validate(); err != nil {
		return nil, fmt.Errorf("decoupling report is inconsistent: %w", err)
	}
	return report, nil
}
