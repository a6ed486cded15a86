package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS metric_runs (
	id         TEXT PRIMARY KEY,
	scheme     TEXT NOT NULL,
	family     TEXT NOT NULL,
	units      INTEGER NOT NULL,
	columns    TEXT NOT NULL,
	warnings   TEXT NOT NULL,
	inputs     TEXT NOT NULL,
	output     TEXT NOT NULL DEFAULT '',
	started_at DATETIME NOT NULL,
	elapsed_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_metric_runs_started_at ON metric_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_metric_runs_family ON metric_runs(family);
`

// Migrate creates the run table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordRun inserts a run.
func (s *SQLiteStore) RecordRun(ctx context.Context, run Run) error {
	if err := validate(run); err != nil {
		return err
	}
	enc, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode run")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO metric_runs (id, scheme, family, units, columns, warnings, inputs, output, started_at, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Scheme, run.Family, run.Units, enc.columns, enc.warnings, enc.inputs,
		run.Output, run.StartedAt.UTC(), run.ElapsedMS,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

const sqliteSelect = `SELECT id, scheme, family, units, columns, warnings, inputs, output, started_at, elapsed_ms FROM metric_runs`

// GetRun loads one run.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelect+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := sqliteSelect + ` WHERE (? = '' OR family = ?) AND (? = '' OR scheme = ?) ORDER BY started_at DESC, id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query,
		filter.Family, filter.Family, filter.Scheme, filter.Scheme, filter.limit())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run       Run
		enc       encodedRun
		startedAt time.Time
	)
	if err := row.Scan(&run.ID, &run.Scheme, &run.Family, &run.Units,
		&enc.columns, &enc.warnings, &enc.inputs, &run.Output, &startedAt, &run.ElapsedMS); err != nil {
		return nil, err
	}
	run.StartedAt = startedAt.UTC()
	if err := enc.decode(&run); err != nil {
		return nil, err
	}
	return &run, nil
}

// encodedRun holds the JSON text of a run's list and map columns.
type encodedRun struct {
	columns  string
	warnings string
	inputs   string
}

func encodeRun(run Run) (encodedRun, error) {
	var enc encodedRun
	for _, f := range []struct {
		dst *string
		v   any
	}{
		{&enc.columns, nonNilStrings(run.Columns)},
		{&enc.warnings, nonNilCounts(run.Warnings)},
		{&enc.inputs, nonNilStrings(run.Inputs)},
	} {
		b, err := json.Marshal(f.v)
		if err != nil {
			return enc, err
		}
		*f.dst = string(b)
	}
	return enc, nil
}

func (e encodedRun) decode(run *Run) error {
	if err := json.Unmarshal([]byte(e.columns), &run.Columns); err != nil {
		return eris.Wrap(err, "decode columns")
	}
	if err := json.Unmarshal([]byte(e.warnings), &run.Warnings); err != nil {
		return eris.Wrap(err, "decode warnings")
	}
	if err := json.Unmarshal([]byte(e.inputs), &run.Inputs); err != nil {
		return eris.Wrap(err, "decode inputs")
	}
	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilCounts(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
