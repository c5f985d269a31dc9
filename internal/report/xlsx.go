package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewired-gh/macrocorr/internal/logger"
	"github.com/rewired-gh/macrocorr/internal/models"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the exported workbook.
const (
	SheetSummary          = "Summary"
	SheetInflation        = "Inflation"
	SheetInflationRolling = "Inflation Rolling"
	SheetDecoupling       = "Decoupling"
	SheetPrices           = "Normalized Prices"
	SheetPairRolling      = "Rolling Correlations"
)

// ExportXLSX writes a workbook with a summary sheet plus the aligned tables of every
// report given. Either report may be nil, but not both.
func ExportXLSX(path string, inflation *models.InflationReport, decoupling *models.DecouplingReport) error {
	if inflation == nil && decoupling == nil {
		return errors.New("nothing to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		return err
	}
	summary := &sheetWriter{f: f, sheet: SheetSummary}

	if inflation != nil {
		if err := exportInflation(f, summary, inflation); err != nil {
			return err
		}
	}
	if decoupling != nil {
		if err := exportDecoupling(f, summary, decoupling); err != nil {
			return err
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	logger.Info("Exported workbook to %s", path)
	return nil
}

// sheetWriter appends rows to a sheet.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
}

func (w *sheetWriter) append(values ...interface{}) error {
	w.row++
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	return w.f.SetSheetRow(w.sheet, cell, &values)
}

func (w *sheetWriter) blank() {
	w.row++
}

func newSheet(f *excelize.File, name string) (*sheetWriter, error) {
	if _, err := f.NewSheet(name); err != nil {
		return nil, fmt.Errorf("failed to add sheet %s: %w", name, err)
	}
	return &sheetWriter{f: f, sheet: name}, nil
}

// writeTable writes a date column followed by every table column.
func writeTable(f *excelize.File, name string, t *models.TimeTable) error {
	w, err := newSheet(f, name)
	if err != nil {
		return err
	}
	header := []interface{}{"Date"}
	for _, c := range t.Columns() {
		header = append(header, c)
	}
	if err := w.append(header...); err != nil {
		return err
	}

	columns := t.Columns()
	for i, d := range t.Dates() {
		row := make([]interface{}, 0, len(columns)+1)
		row = append(row, d.Format(time.DateOnly))
		for _, c := range columns {
			row = append(row, t.Value(c, i))
		}
		if err := w.append(row...); err != nil {
			return err
		}
	}
	return nil
}

func exportInflation(f *excelize.File, summary *sheetWriter, rep *models.InflationReport) error {
	rows := [][]interface{}{
		{"Correlation with Inflation", rep.IndexSeriesID, rep.Range.String()},
		{"Asset", "Correlation", "p-value", "n", "Significant"},
	}
	for _, c := range rep.Correlations {
		rows = append(rows, []interface{}{c.Asset.Label, c.Result.Coefficient, c.Result.PValue, c.Result.N, c.Result.Significant()})
	}
	t := rep.RollingInflationTest
	rows = append(rows, []interface{}{
		fmt.Sprintf("%d-month rolling %s vs inflation", rep.RollingWindow, rep.RollingPair.Label()),
		t.Coefficient, t.PValue, t.N, t.Significant(),
	})
	for _, r := range rows {
		if err := summary.append(r...); err != nil {
			return err
		}
	}
	summary.blank()

	if err := writeTable(f, SheetInflation, rep.Merged); err != nil {
		return err
	}
	return writeTable(f, SheetInflationRolling, rep.RollingVsInflation)
}

func exportDecoupling(f *excelize.File, summary *sheetWriter, rep *models.DecouplingReport) error {
	rows := [][]interface{}{
		{"Decoupling", fmt.Sprintf("%d-day window", rep.Window), rep.Range.String()},
		{"Pair", rep.EarlyYears.String() + " mean", rep.LateYears.String() + " mean", "t", "df", "p-value", "Significant"},
	}
	for _, d := range rep.Pairs {
		var t interface{} = d.Test.T
		if d.Test.Degenerate() {
			t = formatT(d.Test)
		}
		rows = append(rows, []interface{}{d.Pair.Label(), d.EarlyMean, d.LateMean, t, d.Test.DF, d.Test.PValue, d.Test.Significant()})
	}
	rows = append(rows, []interface{}{Verdict(rep)})
	for _, r := range rows {
		if err := summary.append(r...); err != nil {
			return err
		}
	}
	summary.blank()

	w, err := newSheet(f, SheetDecoupling)
	if err != nil {
		return err
	}
	if err := w.append("Pair", "Period", "Observations", "Mean"); err != nil {
		return err
	}
	for _, d := range rep.Pairs {
		if err := w.append(d.Pair.Label(), rep.EarlyYears.String(), d.Early.Len(), d.EarlyMean); err != nil {
			return err
		}
		if err := w.append(d.Pair.Label(), rep.LateYears.String(), d.Late.Len(), d.LateMean); err != nil {
			return err
		}
	}

	if rep.Normalized != nil {
		if err := writeTable(f, SheetPrices, rep.Normalized); err != nil {
			return err
		}
	}

	rolling := make([]models.TimeSeries, 0, len(rep.Pairs))
	for _, d := range rep.Pairs {
		rolling = append(rolling, d.Rolling)
	}
	table, err := rollingTable(rolling)
	if err != nil {
		return err
	}
	return writeTable(f, SheetPairRolling, table)
}

// rollingTable joins the per-pair rolling series, which already share one index.
func rollingTable(series []models.TimeSeries) (*models.TimeTable, error) {
	if len(series) == 0 {
		return models.NewTimeTable(nil, nil, nil)
	}
	names := make([]string, len(series))
	values := make([][]float64, len(series))
	for i, s := range series {
		if !s.SameIndex(series[0]) {
			return nil, fmt.Errorf("rolling series %s: %w", s.Name(), models.ErrIndexMismatch)
		}
		names[i] = s.Name()
		values[i] = s.Values()
	}
	return models.NewTimeTable(series[0].Dates(), names, values)
}
