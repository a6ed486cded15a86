package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/USEPA/ATtILA2-sub000/internal/db"
	"github.com/USEPA/ATtILA2-sub000/internal/metric"
	"github.com/USEPA/ATtILA2-sub000/internal/store"
)

// openHistory opens and migrates the configured run history store. A nil
// store with a nil error means history is disabled.
func openHistory(ctx context.Context) (store.Store, func(), error) {
	noop := func() {}

	var (
		st      store.Store
		release = noop
	)
	switch cfg.History.Driver {
	case "":
		return nil, noop, nil
	case "sqlite":
		s, err := store.NewSQLite(cfg.History.Path)
		if err != nil {
			return nil, noop, err
		}
		st = s
		release = func() { _ = s.Close() }
	case "postgres":
		pool, err := db.Connect(ctx, cfg.Postgres.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
		})
		if err != nil {
			return nil, noop, err
		}
		st = store.NewPostgres(pool)
		release = pool.Close
	default:
		return nil, noop, eris.Errorf("unsupported history driver: %s", cfg.History.Driver)
	}

	if err := st.Migrate(ctx); err != nil {
		release()
		return nil, noop, err
	}
	return st, release, nil
}

// historyRun converts a run summary into a history record.
func historyRun(s *metric.Summary, inputs []string, out string) store.Run {
	cols := s.Layout.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	warnings := make(map[string]int, len(s.Warnings))
	for kind, n := range s.Warnings {
		warnings[string(kind)] = n
	}
	return store.Run{
		ID:        s.RunID,
		Scheme:    s.Scheme,
		Family:    s.Family,
		Units:     s.Units,
		Columns:   names,
		Warnings:  warnings,
		Inputs:    inputs,
		Output:    out,
		StartedAt: s.StartedAt,
		ElapsedMS: s.Elapsed.Milliseconds(),
	}
}

// recordHistory stores the run when history is enabled. The output is
// already written, so failures are logged rather than returned.
func recordHistory(ctx context.Context, run store.Run) {
	st, release, err := openHistory(ctx)
	if err != nil {
		zap.L().Warn("run history unavailable", zap.Error(err))
		return
	}
	if st == nil {
		return
	}
	defer release()

	if err := st.RecordRun(ctx, run); err != nil {
		zap.L().Warn("record run history", zap.String("run_id", run.ID), zap.Error(err))
	}
}
