package timeseries

import (
	"fmt"

	"github.com/rewired-gh/macrocorr/internal/models"
	"github.com/rewired-gh/macrocorr/internal/stats"
)

// windowFunc computes a statistic over two equal-length windows; ok is false when
// the statistic is undefined for that window.
type windowFunc func(x, y []float64) (float64, bool)

// RollingCorrelation returns, for every t with at least w observations up to and
// including t, the Pearson correlation of x and y over that trailing window.
// Windows where either side is constant are dropped.
func RollingCorrelation(x, y models.TimeSeries, w int) (models.TimeSeries, error) {
	return rolling("rolling correlation", x, y, w, stats.Pearson)
}

// RollingCovariance is RollingCorrelation with the unbiased covariance.
func RollingCovariance(x, y models.TimeSeries, w int) (models.TimeSeries, error) {
	return rolling("rolling covariance", x, y, w, stats.Covariance)
}

func rolling(op string, x, y models.TimeSeries, w int, fn windowFunc) (models.TimeSeries, error) {
	if w < 2 {
		return models.TimeSeries{}, fmt.Errorf("%s with window %d: %w", op, w, models.ErrInvalidWindow)
	}
	if !x.SameIndex(y) {
		return models.TimeSeries{}, fmt.Errorf("%s of %s and %s: %w", op, x.Name(), y.Name(), models.ErrIndexMismatch)
	}

	xs, ys := x.Values(), y.Values()
	var out []models.Observation
	for end := w; end <= len(xs); end++ {
		v, ok := fn(xs[end-w:end], ys[end-w:end])
		if !ok || !models.IsFinite(v) {
			continue
		}
		out = append(out, models.Observation{Date: x.At(end - 1).Date, Value: v})
	}
	return models.NewTimeSeries(x.Name()+"/"+y.Name(), out)
}
