// Package storage archives run summaries in a SQLite database so results can be
// compared across runs.
//
// Only summaries are kept: one row per run plus one row per tested asset or pair.
// Raw price and index series are cheap to fetch again and are never stored.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewired-gh/macrocorr/internal/models"
	_ "modernc.org/sqlite"
)

// Run kinds.
const (
	KindInflation  = "inflation"
	KindDecoupling = "decoupling"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	generated_at INTEGER NOT NULL,
	date_from    TEXT NOT NULL,
	date_to      TEXT NOT NULL,
	payload      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_generated_at ON runs (generated_at DESC);
CREATE TABLE IF NOT EXISTS results (
	run_id      TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	label       TEXT NOT NULL,
	statistic   REAL NOT NULL,
	p_value     REAL NOT NULL,
	significant INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// Result is one archived test outcome.
type Result struct {
	Label string
	// Statistic is the correlation coefficient for inflation runs and the t statistic
	// for decoupling runs.
	Statistic   float64
	PValue      float64
	Significant bool
}

// Run is one archived pipeline execution.
type Run struct {
	ID          string
	Kind        string
	GeneratedAt time.Time
	From        string
	To          string
	// Payload is the JSON-encoded report summary.
	Payload json.RawMessage
	Results []Result
}

// Storage is a SQLite-backed run archive.
type Storage struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and applies the schema.
// ":memory:" gives a private in-memory archive.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		return nil, errors.New("database path must not be empty")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database exists per connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA foreign_keys = ON", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}
	return &Storage{db: db}, nil
}

// Close releases the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// InflationResults flattens an inflation report into one result per asset plus the
// rolling correlation test.
func InflationResults(rep *models.InflationReport) []Result {
	results := make([]Result, 0, len(rep.Correlations)+1)
	for _, c := range rep.Correlations {
		results = append(results, Result{
			Label:       c.Asset.Label,
			Statistic:   c.Result.Coefficient,
			PValue:      c.Result.PValue,
			Significant: c.Result.Significant(),
		})
	}
	t := rep.RollingInflationTest
	results = append(results, Result{
		Label:       fmt.Sprintf("%d-month rolling %s vs inflation", rep.RollingWindow, rep.RollingPair.Label()),
		Statistic:   t.Coefficient,
		PValue:      t.PValue,
		Significant: t.Significant(),
	})
	return results
}

// DecouplingResults flattens a decoupling report into one result per pair.
func DecouplingResults(rep *models.DecouplingReport) []Result {
	results := make([]Result, 0, len(rep.Pairs))
	for _, p := range rep.Pairs {
		results = append(results, Result{
			Label:       p.Pair.Label(),
			Statistic:   p.Test.T,
			PValue:      p.Test.PValue,
			Significant: p.Test.Significant(),
		})
	}
	return results
}

// SaveInflationReport archives the correlation results of an inflation run.
func (s *Storage) SaveInflationReport(ctx context.Context, rep *models.InflationReport) error {
	return s.save(ctx, rep.ID, KindInflation, rep.GeneratedAt, rep.Range, rep, InflationResults(rep))
}

// SaveDecouplingReport archives the per-pair Welch tests of a decoupling run.
func (s *Storage) SaveDecouplingReport(ctx context.Context, rep *models.DecouplingReport) error {
	return s.save(ctx, rep.ID, KindDecoupling, rep.GeneratedAt, rep.Range, rep, DecouplingResults(rep))
}

func (s *Storage) save(ctx context.Context, id, kind string, at time.Time, r models.DateRange, summary any, results []Result) error {
	if id == "" {
		return errors.New("run ID must not be empty")
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode %s report: %w", kind, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (id, kind, generated_at, date_from, date_to, payload) VALUES (?, ?, ?, ?, ?, ?)",
		id, kind, at.UnixNano(), formatDate(r.From), formatDate(r.To), string(payload),
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", id, err)
	}

	for i, res := range results {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO results (run_id, position, label, statistic, p_value, significant) VALUES (?, ?, ?, ?, ?, ?)",
			id, i, res.Label, res.Statistic, res.PValue, res.Significant,
		); err != nil {
			return fmt.Errorf("failed to insert result %s: %w", res.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", id, err)
	}
	return nil
}

// ListRuns returns the most recent runs first, with their results. A non-positive
// limit returns every run.
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryRuns(ctx,
		"SELECT id, kind, generated_at, date_from, date_to, payload FROM runs ORDER BY generated_at DESC, id LIMIT ?",
		limit)
}

// LatestRun returns the most recent run of the given kind other than excludeID, or
// nil if there is none.
func (s *Storage) LatestRun(ctx context.Context, kind, excludeID string) (*Run, error) {
	runs, err := s.queryRuns(ctx,
		"SELECT id, kind, generated_at, date_from, date_to, payload FROM runs WHERE kind = ? AND id <> ? ORDER BY generated_at DESC, id LIMIT 1",
		kind, excludeID)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

func (s *Storage) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	var runs []Run
	for rows.Next() {
		var (
			run     Run
			at      int64
			payload string
		)
		if err := rows.Scan(&run.ID, &run.Kind, &at, &run.From, &run.To, &payload); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.GeneratedAt = time.Unix(0, at).UTC()
		run.Payload = json.RawMessage(payload)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// The single connection must be released before results are queried.
	rows.Close()

	for i := range runs {
		results, err := s.results(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Results = results
	}
	return runs, nil
}

func (s *Storage) results(ctx context.Context, runID string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT label, statistic, p_value, significant FROM results WHERE run_id = ? ORDER BY position",
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results for %s: %w", runID, err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Label, &r.Statistic, &r.PValue, &r.Significant); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
