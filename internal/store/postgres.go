package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// Pool is the subset of *pgxpool.Pool the store needs. pgxmock pools satisfy
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on a pgx pool owned by the caller.
type PostgresStore struct {
	pool Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS metric_runs (
	id         TEXT PRIMARY KEY,
	scheme     TEXT NOT NULL,
	family     TEXT NOT NULL,
	units      INTEGER NOT NULL,
	columns    JSONB NOT NULL,
	warnings   JSONB NOT NULL,
	inputs     JSONB NOT NULL,
	output     TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	elapsed_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metric_runs_started_at ON metric_runs(started_at);
`

// Migrate creates the run table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close is a no-op; the pool belongs to the caller.
func (s *PostgresStore) Close() error {
	return nil
}

// RecordRun inserts a run.
func (s *PostgresStore) RecordRun(ctx context.Context, run Run) error {
	if err := validate(run); err != nil {
		return err
	}
	enc, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "postgres: encode run")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO metric_runs (id, scheme, family, units, columns, warnings, inputs, output, started_at, elapsed_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.Scheme, run.Family, run.Units, enc.columns, enc.warnings, enc.inputs,
		run.Output, run.StartedAt.UTC(), run.ElapsedMS,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

const postgresSelect = `SELECT id, scheme, family, units, columns::text, warnings::text, inputs::text, output, started_at, elapsed_ms FROM metric_runs`

// GetRun loads one run.
func (s *PostgresStore) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.pool.QueryRow(ctx, postgresSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	rows, err := s.pool.Query(ctx,
		postgresSelect+` WHERE ($1 = '' OR family = $1) AND ($2 = '' OR scheme = $2) ORDER BY started_at DESC, id LIMIT $3`,
		filter.Family, filter.Scheme, filter.limit())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}
