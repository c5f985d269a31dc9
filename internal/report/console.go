// Package report presents pipeline results: aligned console tables with significance
// highlighting, and an optional spreadsheet export.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/rewired-gh/macrocorr/internal/models"
)

// sampleRows is how many inflation rows are echoed before the results.
const sampleRows = 5

// Printer writes human-readable reports.
type Printer struct {
	w           io.Writer
	heading     *color.Color
	significant *color.Color
	plain       *color.Color
}

// NewPrinter returns a Printer writing to w. With colorize false no escape codes are
// written; with true, colour still follows terminal detection.
func NewPrinter(w io.Writer, colorize bool) *Printer {
	p := &Printer{
		w:           w,
		heading:     color.New(color.Bold),
		significant: color.New(color.FgGreen, color.Bold),
		plain:       color.New(color.FgYellow),
	}
	if !colorize {
		for _, c := range []*color.Color{p.heading, p.significant, p.plain} {
			c.DisableColor()
		}
	}
	return p
}

func (p *Printer) verdict(significant bool) string {
	if significant {
		return p.significant.Sprint("significant")
	}
	return p.plain.Sprint("not significant")
}

func (p *Printer) title(text string) {
	fmt.Fprintf(p.w, "\n%s\n", p.heading.Sprintf("=== %s ===", text))
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// PrintInflation writes the inflation sample, per-asset correlations and the rolling
// correlation test.
func (p *Printer) PrintInflation(rep *models.InflationReport) error {
	p.title(fmt.Sprintf("Inflation from %s (%s)", rep.IndexSeriesID, rep.Range))
	tw := newTable(p.w)
	fmt.Fprintf(tw, "Date\t%s\n", rep.InflationColumn)
	for i := 0; i < rep.Inflation.Len() && i < sampleRows; i++ {
		o := rep.Inflation.At(i)
		fmt.Fprintf(tw, "%s\t%.3f\n", o.Date.Format(time.DateOnly), o.Value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	p.title("Correlation with Inflation")
	tw = newTable(p.w)
	fmt.Fprintln(tw, "Asset\tCorrelation\tp-value\tn\t")
	for _, c := range rep.Correlations {
		// The verdict sits in the last column so escape codes never skew alignment.
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%d\t%s\n",
			c.Asset.Label, c.Result.Coefficient, c.Result.PValue, c.Result.N, p.verdict(c.Result.Significant()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	p.title(fmt.Sprintf("%d-Month Rolling %s Correlation vs Inflation", rep.RollingWindow, rep.RollingPair.Label()))
	t := rep.RollingInflationTest
	fmt.Fprintf(p.w, "r=%.3f p=%.3f n=%d  %s\n", t.Coefficient, t.PValue, t.N, p.verdict(t.Significant()))
	if last, ok := rep.Rolling.Last(); ok {
		fmt.Fprintf(p.w, "Latest rolling correlation: %.3f (%s)\n", last.Value, last.Date.Format(time.DateOnly))
	}
	return nil
}

// PrintDecoupling writes the Welch test per pair, the overall verdict and the average
// rolling correlation per period.
func (p *Printer) PrintDecoupling(rep *models.DecouplingReport) error {
	p.title("Statistical Test Results")
	tw := newTable(p.w)
	fmt.Fprintln(tw, "Pair\tt\tdf\tp-value\t")
	for _, d := range rep.Pairs {
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.4f\t%s\n",
			d.Pair.Label(), formatT(d.Test), d.Test.DF, d.Test.PValue, p.verdict(d.Test.Significant()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(p.w, Verdict(rep))

	p.title("Average Rolling Correlations")
	tw = newTable(p.w)
	fmt.Fprintf(tw, "Pair\t%s\t%s\tChange\n", rep.EarlyYears, rep.LateYears)
	for _, d := range rep.Pairs {
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%s\n", d.Pair.Label(), d.EarlyMean, d.LateMean, d.Direction())
	}
	return tw.Flush()
}

// Verdict summarizes a decoupling report in one sentence.
func Verdict(rep *models.DecouplingReport) string {
	if !rep.AnySignificant() {
		return fmt.Sprintf("No statistically significant change in correlation between %s and %s.", rep.EarlyYears, rep.LateYears)
	}
	var up, down bool
	for _, d := range rep.Pairs {
		if !d.Test.Significant() {
			continue
		}
		switch d.Direction() {
		case "increased":
			up = true
		case "decreased":
			down = true
		}
	}
	change := "changed"
	switch {
	case up && !down:
		change = "increased"
	case down && !up:
		change = "decreased"
	}
	return fmt.Sprintf("Correlation has %s significantly since %d (p < %.2f).", change, rep.EarlyYears.From, models.SignificanceLevel)
}

// formatT prints a saturated t statistic as a signed infinity.
func formatT(r models.TTestResult) string {
	switch {
	case !r.Degenerate():
		return fmt.Sprintf("%.3f", r.T)
	case r.T > 0:
		return "+inf"
	default:
		return "-inf"
	}
}
