package charts

import (
	"fmt"

	"github.com/rewired-gh/macrocorr/internal/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

func inflationTrend(rep *models.InflationReport) (*plot.Plot, error) {
	p := timePlot(fmt.Sprintf("U.S. Inflation Rate (YoY %%) %s", yearSpan(rep.Inflation)), "Inflation (%)")
	if err := addLine(p, rep.Inflation, "", red, false); err != nil {
		return nil, err
	}
	return p, nil
}

// returnScatter builds one panel per asset: inflation on X, monthly return on Y.
func returnScatter(rep *models.InflationReport) ([]*plot.Plot, error) {
	inflation, err := rep.Merged.Values(rep.InflationColumn)
	if err != nil {
		return nil, err
	}

	panels := make([]*plot.Plot, 0, len(rep.Correlations))
	for i, c := range rep.Correlations {
		returns, err := rep.Merged.Values(c.Asset.Ticker)
		if err != nil {
			return nil, err
		}
		xys := make(plotter.XYs, len(returns))
		for j := range returns {
			xys[j].X = inflation[j]
			xys[j].Y = returns[j]
		}

		s, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("scatter %s: %w", c.Asset.Ticker, err)
		}
		s.GlyphStyle.Color = paletteColor(i)
		s.GlyphStyle.Radius = vg.Points(2.5)
		s.GlyphStyle.Shape = draw.CircleGlyph{}

		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s vs Inflation (r=%.2f)", c.Asset.ShortName(), c.Result.Coefficient)
		p.X.Label.Text = "Inflation (%)"
		p.Y.Label.Text = "Monthly Return (%)"
		p.Add(plotter.NewGrid(), s)
		panels = append(panels, p)
	}
	return panels, nil
}

// rollingOverlay shows the rolling correlation above inflation on a shared time axis.
func rollingOverlay(rep *models.InflationReport) (*plot.Plot, *plot.Plot, error) {
	corr, err := rep.RollingVsInflation.Column(rep.Rolling.Name())
	if err != nil {
		return nil, nil, err
	}
	inflation, err := rep.RollingVsInflation.Column(rep.InflationColumn)
	if err != nil {
		return nil, nil, err
	}

	label := rep.RollingPair.Label() + " Correlation"
	top := timePlot(fmt.Sprintf("Inflation vs %s Correlation (%d-Month Rolling)", rep.RollingPair.Label(), rep.RollingWindow), label)
	top.X.Label.Text = ""
	if err := addLine(top, corr, label, orange, false); err != nil {
		return nil, nil, err
	}
	top.Title.Text += fmt.Sprintf("  r=%.2f p=%.3f", rep.RollingInflationTest.Coefficient, rep.RollingInflationTest.PValue)

	bottom := timePlot("", "Inflation (%)")
	if err := addLine(bottom, inflation, "Inflation (%)", red, true); err != nil {
		return nil, nil, err
	}

	// Both panels cover the same dates.
	first, _ := corr.First()
	last, _ := corr.Last()
	for _, p := range []*plot.Plot{top, bottom} {
		p.X.Min = unixX(first.Date)
		p.X.Max = unixX(last.Date)
	}
	return top, bottom, nil
}
