package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ColumnDef is one column of a table created by CreateTable.
type ColumnDef struct {
	Name string
	Type string
}

// CreateTable creates table (optionally schema-qualified) with the given
// columns. When replace is set an existing table is dropped first. A non-empty
// primaryKey names the key column.
func CreateTable(ctx context.Context, pool Pool, table string, columns []ColumnDef, primaryKey string, replace bool) error {
	if len(columns) == 0 {
		return eris.Errorf("db: create %s: no columns", table)
	}

	if replace {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+sanitizeTable(table)); err != nil {
			return eris.Wrapf(err, "db: drop %s", table)
		}
	}

	defs := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		defs = append(defs, pgx.Identifier{c.Name}.Sanitize()+" "+c.Type)
	}
	if primaryKey != "" {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", pgx.Identifier{primaryKey}.Sanitize()))
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", sanitizeTable(table), strings.Join(defs, ", "))
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return eris.Wrapf(err, "db: create %s", table)
	}
	return nil
}

// CopyFrom bulk-inserts rows into a table, optionally schema-qualified, using
// the PostgreSQL COPY protocol.
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}

func identifier(table string) pgx.Identifier {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{table}
}

// sanitizeTable quotes a table name, handling "schema.table".
func sanitizeTable(table string) string {
	return identifier(table).Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
