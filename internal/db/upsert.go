package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// MergeSpec describes a keyed merge of per-unit metric rows into an existing
// table.
type MergeSpec struct {
	// Table may be schema-qualified.
	Table string
	// Columns lists every column of a row, in row order.
	Columns []string
	// Key is the unit id column. Empty means Columns[0]. The table must have a
	// unique constraint on it.
	Key string
}

// MergeResult counts the units a merge added and the units it replaced.
type MergeResult struct {
	Inserted int64
	Updated  int64
}

// MergeUnits replaces the rows of the units present in rows and leaves every
// other unit of the table alone. Rows repeating a unit id collapse to the last
// one. The rows are staged in a temp table and merged in one transaction.
func MergeUnits(ctx context.Context, pool Pool, spec MergeSpec, rows [][]any) (MergeResult, error) {
	var res MergeResult
	if len(rows) == 0 {
		return res, nil
	}
	if len(spec.Columns) == 0 {
		return res, eris.Errorf("db: merge %s: no columns", spec.Table)
	}
	key := spec.Key
	if key == "" {
		key = spec.Columns[0]
	}
	keyIdx := -1
	for i, c := range spec.Columns {
		if c == key {
			keyIdx = i
			break
		}
	}
	if keyIdx < 0 {
		return res, eris.Errorf("db: merge %s: key column %q not among the columns", spec.Table, key)
	}

	rows = lastPerKey(rows, keyIdx)
	stage := pgx.Identifier{stagingTable(spec.Table)}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return res, eris.Wrapf(err, "db: merge %s: begin", spec.Table)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ddl := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		stage.Sanitize(), sanitizeTable(spec.Table))
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return res, eris.Wrapf(err, "db: merge %s: create staging table", spec.Table)
	}
	if _, err := tx.CopyFrom(ctx, stage, spec.Columns, pgx.CopyFromRows(rows)); err != nil {
		return res, eris.Wrapf(err, "db: merge %s: stage rows", spec.Table)
	}

	out, err := tx.Query(ctx, mergeStatement(spec.Table, stage, spec.Columns, key))
	if err != nil {
		return res, eris.Wrapf(err, "db: merge %s", spec.Table)
	}
	for out.Next() {
		var inserted bool
		if err := out.Scan(&inserted); err != nil {
			out.Close()
			return res, eris.Wrapf(err, "db: merge %s: scan", spec.Table)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	out.Close()
	if err := out.Err(); err != nil {
		return res, eris.Wrapf(err, "db: merge %s", spec.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return res, eris.Wrapf(err, "db: merge %s: commit", spec.Table)
	}
	zap.L().Debug("db: merged units",
		zap.String("table", spec.Table),
		zap.Int64("inserted", res.Inserted),
		zap.Int64("updated", res.Updated),
	)
	return res, nil
}

// mergeStatement inserts the staged rows, overwriting the non-key columns of
// units that already exist. Each returned row tells whether the unit was new.
func mergeStatement(table string, stage pgx.Identifier, columns []string, key string) string {
	cols := quoteAndJoin(columns)
	sets := make([]string, 0, len(columns))
	for _, c := range columns {
		if c == key {
			continue
		}
		q := pgx.Identifier{c}.Sanitize()
		sets = append(sets, q+" = EXCLUDED."+q)
	}
	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s RETURNING (xmax = 0)",
		sanitizeTable(table), cols, cols, stage.Sanitize(), pgx.Identifier{key}.Sanitize(), action)
}

// stagingTable names the temp table for table.
func stagingTable(table string) string {
	return "attila_stage_" + strings.ReplaceAll(table, ".", "_")
}

// lastPerKey drops earlier rows of a repeated key, keeping first-seen order.
func lastPerKey(rows [][]any, keyIdx int) [][]any {
	pos := make(map[string]int, len(rows))
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		k := fmt.Sprint(r[keyIdx])
		if i, ok := pos[k]; ok {
			out[i] = r
			continue
		}
		pos[k] = len(out)
		out = append(out, r)
	}
	return out
}
