package output

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteWriter writes rows into a table of a SQLite database. The table is
// replaced when the header is written and rows are committed on Close.
type SQLiteWriter struct {
	ctx   context.Context
	db    *sql.DB
	table string
	tx    *sql.Tx
	stmt  *sql.Stmt
	cols  []Column
}

// OpenSQLite opens (or creates) the database at dsn.
func OpenSQLite(ctx context.Context, dsn, table string) (*SQLiteWriter, error) {
	if table == "" {
		return nil, eris.New("sqlite: table name required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteWriter{ctx: ctx, db: db, table: table}, nil
}

// WriteHeader drops and recreates the table and prepares the insert.
func (s *SQLiteWriter) WriteHeader(cols []Column) error {
	if s.cols != nil {
		return eris.New("sqlite: header already written")
	}

	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, col := range cols {
		typ := "REAL"
		if col.Kind == Text {
			typ = "TEXT"
		}
		names[i] = quoteSQLite(col.Name)
		defs[i] = names[i] + " " + typ
		marks[i] = "?"
	}
	defs[0] += " PRIMARY KEY"

	tx, err := s.db.BeginTx(s.ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	ddl := []string{
		"DROP TABLE IF EXISTS " + quoteSQLite(s.table),
		fmt.Sprintf("CREATE TABLE %s (%s)", quoteSQLite(s.table), strings.Join(defs, ", ")),
	}
	for _, q := range ddl {
		if _, err := tx.ExecContext(s.ctx, q); err != nil {
			_ = tx.Rollback()
			return eris.Wrapf(err, "sqlite: %s", q)
		}
	}

	stmt, err := tx.PrepareContext(s.ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteSQLite(s.table), strings.Join(names, ", "), strings.Join(marks, ", ")))
	if err != nil {
		_ = tx.Rollback()
		return eris.Wrap(err, "sqlite: prepare insert")
	}

	s.tx = tx
	s.stmt = stmt
	s.cols = cols
	return nil
}

// WriteRow inserts one row.
func (s *SQLiteWriter) WriteRow(row Row) error {
	if err := checkRow(s.cols, row); err != nil {
		return err
	}
	args := make([]any, 0, len(row.Values)+1)
	args = append(args, row.UnitID)
	for _, v := range row.Values {
		args = append(args, v)
	}
	if _, err := s.stmt.ExecContext(s.ctx, args...); err != nil {
		return eris.Wrapf(err, "sqlite: insert unit %s", row.UnitID)
	}
	return nil
}

// Close commits the rows and closes the database.
func (s *SQLiteWriter) Close() error {
	defer s.db.Close()
	if s.tx == nil {
		return nil
	}
	_ = s.stmt.Close()
	if err := s.tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit")
	}
	return nil
}

func quoteSQLite(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
