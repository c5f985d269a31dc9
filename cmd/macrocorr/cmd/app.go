package cmd

import (
	"context"
	"os"

	"github.com/rewired-gh/macrocorr/internal/charts"
	"github.com/rewired-gh/macrocorr/internal/config"
	"github.com/rewired-gh/macrocorr/internal/fred"
	"github.com/rewired-gh/macrocorr/internal/logger"
	"github.com/rewired-gh/macrocorr/internal/models"
	"github.com/rewired-gh/macrocorr/internal/monitor"
	"github.com/rewired-gh/macrocorr/internal/pipeline"
	"github.com/rewired-gh/macrocorr/internal/report"
	"github.com/rewired-gh/macrocorr/internal/storage"
	"github.com/rewired-gh/macrocorr/internal/telegram"
	"github.com/rewired-gh/macrocorr/internal/yahoo"
)

// app carries the providers and the optional sinks of one invocation. Sinks that are
// disabled in the config stay nil.
type app struct {
	cfg     *config.Config
	prices  *yahoo.Client
	index   *fred.Client
	printer *report.Printer

	renderer *charts.Renderer
	notifier *telegram.Client
	store    *storage.Storage
	monitor  *monitor.Monitor
}

func newApp(c *config.Config) *app {
	a := &app{
		cfg:     c,
		prices:  yahoo.NewClient(c.Yahoo.APIBaseURL, c.Yahoo.Timeout, c.Yahoo.UserAgent),
		index:   fred.NewClient(c.FRED.APIBaseURL, c.FRED.APIKey, c.FRED.Timeout),
		printer: report.NewPrinter(os.Stdout, c.Report.Color),
	}

	if c.Charts.Enabled {
		r, err := charts.NewRenderer(c.Charts.OutputDir, c.Charts.Width, c.Charts.Height, c.Charts.DPI)
		if err != nil {
			logger.Error("Charts disabled: %v", err)
		} else {
			a.renderer = r
		}
	}

	if c.Telegram.Enabled {
		n, err := telegram.NewClient(c.Telegram.BotToken, c.Telegram.ChatID, 0, 0)
		if err != nil {
			logger.Error("Telegram disabled: %v", err)
		} else {
			a.notifier = n
			logger.Info("Telegram client initialized successfully")
		}
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	if c.Storage.Enabled {
		s, err := storage.New(c.Storage.DBPath)
		if err != nil {
			logger.Error("Run archive disabled: %v", err)
		} else {
			a.store = s
			a.monitor = monitor.New(s, c.Storage.ShiftThreshold)
		}
	}
	return a
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}
}

func (a *app) inflationParams() (pipeline.InflationParams, error) {
	r, err := a.cfg.Range()
	if err != nil {
		return pipeline.InflationParams{}, err
	}
	ic := a.cfg.Inflation
	pair := a.cfg.MustAssets(ic.RollingAsset, ic.RollingBenchmark)

	p := pipeline.DefaultInflationParams(r, a.cfg.Assets, models.Pair{Asset: pair[0], Benchmark: pair[1]})
	p.IndexSeriesID = ic.SeriesID
	p.YoYLag = ic.YoYLag
	p.ReturnLag = ic.ReturnLag
	p.RollingWindow = ic.RollingWindow
	return p, nil
}

func (a *app) decouplingParams() (pipeline.DecouplingParams, error) {
	r, err := a.cfg.Range()
	if err != nil {
		return pipeline.DecouplingParams{}, err
	}
	dc := a.cfg.Decoupling
	benchmark := a.cfg.MustAssets(dc.Benchmark)[0]

	p := pipeline.DefaultDecouplingParams(r, a.cfg.MustAssets(dc.Assets...), benchmark)
	p.RollingWindow = dc.RollingWindow
	p.Early = dc.Early
	p.Late = dc.Late
	return p, nil
}

func (a *app) runInflation(ctx context.Context) (*models.InflationReport, error) {
	p, err := a.inflationParams()
	if err != nil {
		return nil, err
	}
	logger.Info("Running inflation analysis over %s", p.Range)
	return pipeline.RunInflation(ctx, a.prices, a.index, p)
}

func (a *app) runDecoupling(ctx context.Context) (*models.DecouplingReport, error) {
	p, err := a.decouplingParams()
	if err != nil {
		return nil, err
	}
	logger.Info("Running decoupling analysis over %s (%s vs %s)", p.Range, p.Early, p.Late)
	return pipeline.RunDecoupling(ctx, a.prices, p)
}

// publishInflation prints the report and hands it to every enabled sink. Sink failures
// are logged and never fail the command.
func (a *app) publishInflation(ctx context.Context, rep *models.InflationReport) error {
	if err := a.printer.PrintInflation(rep); err != nil {
		return err
	}

	var files []string
	if a.renderer != nil {
		f, err := a.renderer.RenderInflation(rep)
		if err != nil {
			logger.Error("Failed to render inflation charts: %v", err)
		}
		files = f
	}
	if a.notifier != nil {
		if err := a.notifier.SendInflation(rep, a.chartsToSend(files)); err != nil {
			logger.Warn("Failed to send inflation summary to Telegram: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.SaveInflationReport(ctx, rep); err != nil {
			logger.Error("Failed to archive inflation run: %v", err)
		} else {
			logger.Info("Archived inflation run %s", rep.ID)
			a.reportShifts(ctx, storage.KindInflation, rep.ID, storage.InflationResults(rep))
		}
	}
	return nil
}

func (a *app) publishDecoupling(ctx context.Context, rep *models.DecouplingReport) error {
	if err := a.printer.PrintDecoupling(rep); err != nil {
		return err
	}

	var files []string
	if a.renderer != nil {
		f, err := a.renderer.RenderDecoupling(rep)
		if err != nil {
			logger.Error("Failed to render decoupling charts: %v", err)
		}
		files = f
	}
	if a.notifier != nil {
		if err := a.notifier.SendDecoupling(rep, a.chartsToSend(files)); err != nil {
			logger.Warn("Failed to send decoupling summary to Telegram: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.SaveDecouplingReport(ctx, rep); err != nil {
			logger.Error("Failed to archive decoupling run: %v", err)
		} else {
			logger.Info("Archived decoupling run %s", rep.ID)
			a.reportShifts(ctx, storage.KindDecoupling, rep.ID, storage.DecouplingResults(rep))
		}
	}
	return nil
}

// reportShifts logs results that moved since the previous archived run and forwards
// them to Telegram.
func (a *app) reportShifts(ctx context.Context, kind, runID string, results []storage.Result) {
	shifts, err := a.monitor.DetectShifts(ctx, kind, runID, results)
	if err != nil {
		logger.Warn("Failed to compare with previous run: %v", err)
		return
	}
	for _, s := range shifts {
		logger.Info("Since run %s: %s", s.PreviousRun, s)
	}
	if a.notifier != nil {
		if err := a.notifier.SendShifts(kind, shifts); err != nil {
			logger.Warn("Failed to send shift notification to Telegram: %v", err)
		}
	}
}

func (a *app) chartsToSend(files []string) []string {
	if !a.cfg.Telegram.SendCharts {
		return nil
	}
	return files
}

func (a *app) export(inflation *models.InflationReport, decoupling *models.DecouplingReport) {
	path := a.cfg.Report.XLSXPath
	if path == "" {
		return
	}
	if err := report.ExportXLSX(path, inflation, decoupling); err != nil {
		logger.Error("Failed to export workbook: %v", err)
	}
}
