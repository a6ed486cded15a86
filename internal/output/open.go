package output

import (
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/USEPA/ATtILA2-sub000/internal/db"
)

// Target describes where a run writes its table.
type Target struct {
	Format Format
	// Path is the output file, or the SQLite DSN. "-" writes CSV to stdout.
	Path string
	// Table names the SQLite or PostgreSQL table and the Excel sheet.
	Table    string
	Upsert   bool
	Pool     db.Pool
	Geometry GeometrySource
	SRID     int
}

// Open returns a writer for t.
func Open(ctx context.Context, t Target) (Writer, error) {
	var (
		w   Writer
		err error
	)
	switch t.Format {
	case FormatCSV:
		if t.Path == "" || t.Path == "-" {
			return NewCSVWriter(os.Stdout), nil
		}
		w, err = asWriter(CreateCSV(t.Path))
	case FormatXLSX:
		w, err = asWriter(CreateXLSX(t.Path, t.Table))
	case FormatShapefile:
		w, err = asWriter(CreateShapefile(t.Path, t.Geometry))
	case FormatSQLite:
		w, err = asWriter(OpenSQLite(ctx, t.Path, t.Table))
	case FormatPostgres:
		w, err = asWriter(NewPostgresWriter(ctx, t.Pool, PostgresOptions{
			Table:    t.Table,
			Upsert:   t.Upsert,
			Geometry: t.Geometry,
			SRID:     t.SRID,
		}))
	default:
		return nil, eris.Errorf("output: unknown format %q", t.Format)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func asWriter[W Writer](w W, err error) (Writer, error) {
	if err != nil {
		return nil, err
	}
	return w, nil
}
