// Package charts renders pipeline reports to PNG files with gonum/plot.
package charts

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"github.com/rewired-gh/macrocorr/internal/logger"
	"github.com/rewired-gh/macrocorr/internal/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const dateTickFormat = "2006-01"

var (
	orange = color.RGBA{R: 255, G: 140, A: 255}
	blue   = color.RGBA{B: 220, A: 255}
	gray   = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	green  = color.RGBA{G: 150, B: 70, A: 255}
	purple = color.RGBA{R: 130, G: 40, B: 170, A: 255}
	red    = color.RGBA{R: 220, A: 255}
	black  = color.RGBA{A: 255}
)

var palette = []color.RGBA{orange, blue, gray, green, purple}

func paletteColor(i int) color.RGBA {
	return palette[i%len(palette)]
}

// Renderer writes charts into a directory.
type Renderer struct {
	dir    string
	width  vg.Length
	height vg.Length
	dpi    int
}

// NewRenderer creates dir if needed. Width and height are in inches.
func NewRenderer(dir string, width, height float64, dpi int) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("chart size must be positive, got %vx%v", width, height)
	}
	if dpi <= 0 {
		dpi = vgimg.DefaultDPI
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chart directory: %w", err)
	}
	return &Renderer{
		dir:    dir,
		width:  vg.Length(width) * vg.Inch,
		height: vg.Length(height) * vg.Inch,
		dpi:    dpi,
	}, nil
}

// RenderInflation draws the inflation trend, the return/inflation scatter panels and the
// rolling correlation overlay. It returns the written file paths.
func (r *Renderer) RenderInflation(rep *models.InflationReport) ([]string, error) {
	var files []string

	trend, err := inflationTrend(rep)
	if err != nil {
		return nil, err
	}
	path, err := r.save("inflation_trend.png", [][]*plot.Plot{{trend}}, r.width, r.height)
	if err != nil {
		return nil, err
	}
	files = append(files, path)

	scatter, err := returnScatter(rep)
	if err != nil {
		return nil, err
	}
	// One panel per asset, each as wide as half a standard chart.
	width := vg.Length(len(scatter)) * r.width / 2
	path, err = r.save("inflation_scatter.png", [][]*plot.Plot{scatter}, width, r.height)
	if err != nil {
		return nil, err
	}
	files = append(files, path)

	top, bottom, err := rollingOverlay(rep)
	if err != nil {
		return nil, err
	}
	path, err = r.save("inflation_rolling.png", [][]*plot.Plot{{top}, {bottom}}, r.width, r.height*3/2)
	if err != nil {
		return nil, err
	}
	files = append(files, path)

	logger.Info("Wrote %d inflation charts to %s", len(files), r.dir)
	return files, nil
}

// RenderDecoupling draws normalized prices, rolling correlations and the early/late
// box plots. It returns the written file paths.
func (r *Renderer) RenderDecoupling(rep *models.DecouplingReport) ([]string, error) {
	builders := []struct {
		name  string
		build func(*models.DecouplingReport) (*plot.Plot, error)
	}{
		{"decoupling_prices.png", normalizedPrices},
		{"decoupling_rolling.png", rollingCorrelations},
		{"decoupling_periods.png", periodBoxPlots},
	}

	files := make([]string, 0, len(builders))
	for _, b := range builders {
		p, err := b.build(rep)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s: %w", b.name, err)
		}
		path, err := r.save(b.name, [][]*plot.Plot{{p}}, r.width, r.height)
		if err != nil {
			return nil, err
		}
		files = append(files, path)
	}

	logger.Info("Wrote %d decoupling charts to %s", len(files), r.dir)
	return files, nil
}

func (r *Renderer) save(name string, grid [][]*plot.Plot, w, h vg.Length) (string, error) {
	img := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(r.dpi))
	dc := draw.New(img)

	if len(grid) == 1 && len(grid[0]) == 1 {
		grid[0][0].Draw(dc)
	} else {
		tiles := draw.Tiles{
			Rows:      len(grid),
			Cols:      len(grid[0]),
			PadX:      vg.Millimeter * 4,
			PadY:      vg.Millimeter * 4,
			PadTop:    vg.Millimeter * 2,
			PadBottom: vg.Millimeter * 2,
			PadLeft:   vg.Millimeter * 2,
			PadRight:  vg.Millimeter * 2,
		}
		canvases := plot.Align(grid, tiles, dc)
		for i := range grid {
			for j := range grid[i] {
				grid[i][j].Draw(canvases[i][j])
			}
		}
	}

	path := filepath.Join(r.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, f.Close()
}

func unixX(t time.Time) float64 {
	return float64(t.Unix())
}

func seriesXYs(s models.TimeSeries) plotter.XYs {
	xys := make(plotter.XYs, s.Len())
	for i := 0; i < s.Len(); i++ {
		p := s.At(i)
		xys[i].X = unixX(p.Date)
		xys[i].Y = p.Value
	}
	return xys
}

func timePlot(title, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = ylabel
	p.X.Tick.Marker = plot.TimeTicks{Format: dateTickFormat}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = true
	return p
}

func addLine(p *plot.Plot, s models.TimeSeries, label string, c color.Color, dashed bool) error {
	l, err := plotter.NewLine(seriesXYs(s))
	if err != nil {
		return fmt.Errorf("line %s: %w", label, err)
	}
	l.Color = c
	l.Width = vg.Points(1.5)
	if dashed {
		l.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}
	}
	p.Add(l)
	if label != "" {
		p.Legend.Add(label, l)
	}
	return nil
}

// zeroLine draws a dashed horizontal line at y=0 across [from, to].
func zeroLine(p *plot.Plot, from, to time.Time) error {
	l, err := plotter.NewLine(plotter.XYs{{X: unixX(from)}, {X: unixX(to)}})
	if err != nil {
		return err
	}
	l.Color = black
	l.Width = vg.Points(0.8)
	l.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(l)
	return nil
}

func yearSpan(s models.TimeSeries) string {
	first, ok := s.First()
	if !ok {
		return ""
	}
	last, _ := s.Last()
	return models.YearRange{From: first.Date.Year(), To: last.Date.Year()}.String()
}
