// Package pipeline wires the acquisition, normalization, transformation and inference
// stages into the two end-to-end analyses. Each Run function is pure with respect to its
// sources: it fetches, computes, and returns a typed report without printing or plotting.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/macrocorr/internal/logger"
	"github.com/rewired-gh/macrocorr/internal/models"
)

// PriceSource supplies daily closing prices for a ticker.
type PriceSource interface {
	FetchDailyCloses(ctx context.Context, ticker string, r models.DateRange) (models.TimeSeries, error)
}

// IndexSource supplies raw levels of a macroeconomic index.
type IndexSource interface {
	FetchSeries(ctx context.Context, seriesID string, r models.DateRange) (models.TimeSeries, error)
}

// now is the report clock.
var now = func() time.Time { return time.Now().UTC() }

func newRunID() string {
	return uuid.NewString()
}

// fetchCloses pulls one series per asset. An instrument the provider returned nothing
// for cannot be aligned with anything, so it is reported as an empty intersection.
func fetchCloses(ctx context.Context, src PriceSource, assets []models.Asset, r models.DateRange) ([]models.TimeSeries, error) {
	out := make([]models.TimeSeries, 0, len(assets))
	for _, a := range assets {
		s, err := src.FetchDailyCloses(ctx, a.Ticker, r)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch prices for %s: %w", a.Ticker, err)
		}
		if s.IsEmpty() {
			return nil, fmt.Errorf("no prices for %s over %s: %w", a.Ticker, r, models.ErrEmptyIntersection)
		}
		logger.Info("Fetched %d daily closes for %s", s.Len(), a.Ticker)
		out = append(out, s.Renamed(a.Ticker))
	}
	return out, nil
}
