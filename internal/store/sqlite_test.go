package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleRun(id, family string, started time.Time) Run {
	return Run{
		ID:        id,
		Scheme:    "NLCD 2001",
		Family:    family,
		Units:     12,
		Columns:   []string{"HUC12", "pfor", "LC_Overlap"},
		Warnings:  map[string]int{"undefined_value": 2},
		Inputs:    []string{"tab.csv"},
		Output:    "out.csv",
		StartedAt: started,
		ElapsedMS: 1500,
	}
}

func TestSQLite_RecordAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.RecordRun(ctx, sampleRun("r1", "lcp", started)))

	got, err := st.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "NLCD 2001", got.Scheme)
	assert.Equal(t, "lcp", got.Family)
	assert.Equal(t, 12, got.Units)
	assert.Equal(t, []string{"HUC12", "pfor", "LC_Overlap"}, got.Columns)
	assert.Equal(t, map[string]int{"undefined_value": 2}, got.Warnings)
	assert.Equal(t, []string{"tab.csv"}, got.Inputs)
	assert.Equal(t, "out.csv", got.Output)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, int64(1500), got.ElapsedMS)
}

func TestSQLite_NilCollections(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.RecordRun(ctx, Run{ID: "bare", Scheme: "s", Family: "lcp", StartedAt: time.Now()}))
	got, err := st.GetRun(ctx, "bare")
	require.NoError(t, err)
	assert.Empty(t, got.Columns)
	assert.Empty(t, got.Warnings)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_RecordRun_DuplicateID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := sampleRun("dup", "lcp", time.Now())
	require.NoError(t, st.RecordRun(ctx, run))
	assert.Error(t, st.RecordRun(ctx, run))
}

func TestSQLite_RecordRun_RequiresID(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.Error(t, st.RecordRun(context.Background(), Run{}))
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.RecordRun(ctx, sampleRun("old", "lcp", base)))
	require.NoError(t, st.RecordRun(ctx, sampleRun("mid", "lccc", base.Add(time.Hour))))
	require.NoError(t, st.RecordRun(ctx, sampleRun("new", "lcp", base.Add(2*time.Hour))))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "old", all[2].ID)

	lcp, err := st.ListRuns(ctx, RunFilter{Family: "lcp"})
	require.NoError(t, err)
	require.Len(t, lcp, 2)
	assert.Equal(t, "new", lcp[0].ID)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	none, err := st.ListRuns(ctx, RunFilter{Scheme: "other"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
