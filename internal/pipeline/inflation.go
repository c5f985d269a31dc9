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

// InflationColumn names the inflation column of the merged table.
const InflationColumn = "Inflation (%)"

// InflationParams configures RunInflation.
type InflationParams struct {
	Range         models.DateRange
	Assets        []models.Asset
	IndexSeriesID string
	YoYLag        int
	ReturnLag     int
	RollingWindow int
	RollingPair   models.Pair
}

// DefaultInflationParams returns the standard CPI / BTC / ETH / S&P 500 setup.
func DefaultInflationParams(r models.DateRange, assets []models.Asset, pair models.Pair) InflationParams {
	return InflationParams{
		Range:         r,
		Assets:        assets,
		IndexSeriesID: "CPIAUCSL",
		YoYLag:        12,
		ReturnLag:     1,
		RollingWindow: 12,
		RollingPair:   pair,
	}
}

func (p InflationParams) validate() error {
	if len(p.Assets) == 0 {
		return errors.New("at least one asset is required")
	}
	if p.IndexSeriesID == "" {
		return errors.New("index series id is required")
	}
	if p.YoYLag < 1 {
		return fmt.Errorf("year-over-year lag %d: %w", p.YoYLag, models.ErrInvalidLag)
	}
	if p.ReturnLag < 1 {
		return fmt.Errorf("return lag %d: %w", p.ReturnLag, models.ErrInvalidLag)
	}
	if p.RollingWindow < 2 {
		return fmt.Errorf("rolling window %d: %w", p.RollingWindow, models.ErrInvalidWindow)
	}
	found := 0
	for _, a := range p.Assets {
		if a.Ticker == p.RollingPair.Asset.Ticker || a.Ticker == p.RollingPair.Benchmark.Ticker {
			found++
		}
	}
	if found != 2 || p.RollingPair.Asset.Ticker == p.RollingPair.Benchmark.Ticker {
		return fmt.Errorf("rolling pair %s must name two distinct assets", p.RollingPair.Label())
	}
	return nil
}

// RunInflation correlates monthly asset returns with year-over-year inflation and
// tracks how a rolling asset/benchmark correlation moves with it.
func RunInflation(ctx context.Context, prices PriceSource, index IndexSource, p InflationParams) (*models.InflationReport, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid inflation parameters: %w", err)
	}

	inflation, err := yearOverYear(ctx, index, p)
	if err != nil {
		return nil, err
	}
	logger.Info("Computed %d months of inflation from %s", inflation.Len(), p.IndexSeriesID)

	closes, err := fetchCloses(ctx, prices, p.Assets, p.Range)
	if err != nil {
		return nil, err
	}
	returns := make([]models.TimeSeries, 0, len(closes))
	for _, c := range closes {
		monthly, err := timeseries.Resample(c, timeseries.Monthly, p.Range)
		if err != nil {
			return nil, err
		}
		r, err := timeseries.PctChange(monthly, p.ReturnLag)
		if err != nil {
			return nil, err
		}
		returns = append(returns, r)
	}

	merged, err := timeseries.Align(p.Range, append(returns, inflation)...)
	if err != nil {
		return nil, fmt.Errorf("failed to merge returns with inflation: %w", err)
	}

	inflationValues, err := merged.Values(InflationColumn)
	if err != nil {
		return nil, err
	}
	correlations := make([]models.AssetCorrelation, 0, len(p.Assets))
	for _, a := range p.Assets {
		values, err := merged.Values(a.Ticker)
		if err != nil {
			return nil, err
		}
		res, err := stats.PearsonTest(values, inflationValues)
		if err != nil {
			return nil, fmt.Errorf("correlation of %s with inflation: %w", a.Ticker, err)
		}
		logger.Debug("%s vs inflation: r=%.3f p=%.4f n=%d", a.Ticker, res.Coefficient, res.PValue, res.N)
		correlations = append(correlations, models.AssetCorrelation{Asset: a, Result: res})
	}

	rolling, err := rollingPair(returns, p)
	if err != nil {
		return nil, err
	}

	overlay, err := timeseries.Align(p.Range, rolling, inflation)
	if err != nil {
		return nil, fmt.Errorf("failed to align rolling correlation with inflation: %w", err)
	}
	rv, _ := overlay.Values(rolling.Name())
	iv, _ := overlay.Values(InflationColumn)
	rollingTest, err := stats.PearsonTest(rv, iv)
	if err != nil {
		return nil, fmt.Errorf("correlation of %s with inflation: %w", rolling.Name(), err)
	}

	report := &models.InflationReport{
		ID:                   newRunID(),
		GeneratedAt:          now(),
		Range:                p.Range,
		IndexSeriesID:        p.IndexSeriesID,
		Inflation:            inflation,
		Merged:               merged,
		InflationColumn:      InflationColumn,
		Correlations:         correlations,
		RollingPair:          p.RollingPair,
		RollingWindow:        p.RollingWindow,
		Rolling:              rolling,
		RollingVsInflation:   overlay,
		RollingInflationTest: rollingTest,
	}
	if err := report.Validate(); err != nil {
		return nil, fmt.Errorf("inflation report is inconsistent: %w", err)
	}
	return report, nil
}

// yearOverYear turns raw index levels into percent change over YoYLag months,
// restricted to the analysis range. Levels are fetched from YoYLag months earlier so
// the first month of the range has a value.
func yearOverYear(ctx context.Context, index IndexSource, p InflationParams) (models.TimeSeries, error) {
	fetchRange := p.Range.Widen(p.YoYLag)
	raw, err := index.FetchSeries(ctx, p.IndexSeriesID, fetchRange)
	if err != nil {
		return models.TimeSeries{}, fmt.Errorf("failed to fetch %s: %w", p.IndexSeriesID, err)
	}
	monthly, err := timeseries.Resample(raw, timeseries.Monthly, fetchRange)
	if err != nil {
		return models.TimeSeries{}, err
	}
	yoy, err := timeseries.PctChange(monthly, p.YoYLag)
	if err != nil {
		return models.TimeSeries{}, err
	}
	inflation := timeseries.Slice(yoy, p.Range).Renamed(InflationColumn)
	if inflation.IsEmpty() {
		return models.TimeSeries{}, fmt.Errorf("inflation from %s over %s: %w", p.IndexSeriesID, p.Range, models.ErrEmptySeries)
	}
	return inflation, nil
}

// rollingPair computes the rolling correlation of the configured pair over the rows
// where every asset has a return.
func rollingPair(returns []models.TimeSeries, p InflationParams) (models.TimeSeries, error) {
	table, err := timeseries.Align(p.Range, returns...)
	if err != nil {
		return models.TimeSeries{}, fmt.Errorf("failed to align asset returns: %w", err)
	}
	x, err := table.Column(p.RollingPair.Asset.Ticker)
	if err != nil {
		return models.TimeSeries{}, err
	}
	y, err := table.Column(p.RollingPair.Benchmark.Ticker)
	if err != nil {
		return models.TimeSeries{}, err
	}
	rolling, err := timeseries.RollingCorrelation(x, y, p.RollingWindow)
	if err != nil {
		return models.TimeSeries{}, err
	}
	if rolling.IsEmpty() {
		return models.TimeSeries{}, fmt.Errorf("%d-month rolling correlation of %s over %d months: %w",
			p.RollingWindow, p.RollingPair.Label(), table.Len(), models.ErrEmptySeries)
	}
	return rolling.Renamed(p.RollingPair.Label()), nil
}
