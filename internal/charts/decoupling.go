package charts

import (
	"fmt"
	"image/color"
	"math"

	"github.com/rewired-gh/macrocorr/internal/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// assetLabels maps tickers to display labels for every instrument in the report.
func assetLabels(rep *models.DecouplingReport) map[string]string {
	labels := make(map[string]string, len(rep.Pairs)+1)
	for _, p := range rep.Pairs {
		labels[p.Pair.Asset.Ticker] = p.Pair.Asset.Label
		labels[p.Pair.Benchmark.Ticker] = p.Pair.Benchmark.Label
	}
	return labels
}

func normalizedPrices(rep *models.DecouplingReport) (*plot.Plot, error) {
	columns := rep.Normalized.Series()
	if len(columns) == 0 {
		return nil, fmt.Errorf("no normalized prices")
	}
	p := timePlot(fmt.Sprintf("Normalized Price Trends (%s)", yearSpan(columns[0])), "Normalized Price (Start = 1)")

	labels := assetLabels(rep)
	for i, s := range columns {
		label := labels[s.Name()]
		if label == "" {
			label = s.Name()
		}
		if err := addLine(p, s, label, paletteColor(i), false); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func rollingCorrelations(rep *models.DecouplingReport) (*plot.Plot, error) {
	if len(rep.Pairs) == 0 {
		return nil, fmt.Errorf("no pairs")
	}
	benchmark := rep.Pairs[0].Pair.Benchmark.ShortName()
	p := timePlot(fmt.Sprintf("%d-Day Rolling Correlation with %s", rep.Window, benchmark), "Correlation")

	for i, pair := range rep.Pairs {
		if err := addLine(p, pair.Rolling, pair.Pair.Label(), paletteColor(i), false); err != nil {
			return nil, err
		}
	}

	first, ok := rep.Pairs[0].Rolling.First()
	if ok {
		last, _ := rep.Pairs[0].Rolling.Last()
		if err := zeroLine(p, first.Date, last.Date); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// periodBoxPlots draws an early and a late box for every pair, annotated with the
// Welch p-value above each pair.
func periodBoxPlots(rep *models.DecouplingReport) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Correlation %s vs %s", rep.EarlyYears, rep.LateYears)
	p.Y.Label.Text = "Correlation"
	p.Add(plotter.NewGrid())

	var ticks []plot.Tick
	var notes plotter.XYLabels
	top := math.Inf(-1)
	width := vg.Points(30)

	for i, pair := range rep.Pairs {
		base := float64(3 * i)
		c := paletteColor(i)

		for j, period := range []struct {
			values models.TimeSeries
			years  models.YearRange
			alpha  uint8
		}{
			{pair.Early, rep.EarlyYears, 0x55},
			{pair.Late, rep.LateYears, 0xaa},
		} {
			values := plotter.Values(period.values.Values())
			box, err := plotter.NewBoxPlot(width, base+float64(j), values)
			if err != nil {
				return nil, fmt.Errorf("box %s %s: %w", pair.Pair.Label(), period.years, err)
			}
			box.FillColor = color.RGBA{R: c.R, G: c.G, B: c.B, A: period.alpha}
			p.Add(box)

			ticks = append(ticks, plot.Tick{Value: base + float64(j), Label: period.years.String()})
			for _, v := range values {
				top = math.Max(top, v)
			}
		}

		notes.XYs = append(notes.XYs, plotter.XY{X: base + 0.5})
		notes.Labels = append(notes.Labels, fmt.Sprintf("%s  p=%.3f", pair.Pair.Label(), pair.Test.PValue))
	}

	if math.IsInf(top, -1) {
		top = 1
	}
	for i := range notes.XYs {
		notes.XYs[i].Y = top + 0.1
	}
	labels, err := plotter.NewLabels(notes)
	if err != nil {
		return nil, err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = -0.5
	}
	p.Add(labels)

	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Min = -0.75
	p.X.Max = float64(3*len(rep.Pairs)) - 1.25
	p.Y.Max = top + 0.25
	return p, nil
}
