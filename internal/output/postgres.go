package output

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/USEPA/ATtILA2-sub000/internal/db"
)

// GeometryColumn holds the EWKB polygon when a PostgresWriter has a geometry
// source.
const GeometryColumn = "geom"

// PostgresOptions configures a PostgresWriter.
type PostgresOptions struct {
	// Table may be schema-qualified.
	Table string
	// Upsert merges rows into an existing table keyed by unit id instead of
	// replacing the table.
	Upsert bool
	// Geometry, when set, adds a geometry column. PostGIS must be installed.
	Geometry GeometrySource
	// SRID tags the geometry column.
	SRID int
}

// PostgresWriter buffers rows and loads them with COPY on Close.
type PostgresWriter struct {
	ctx  context.Context
	pool db.Pool
	opts PostgresOptions
	cols []Column
	rows [][]any
}

// NewPostgresWriter writes to pool. The caller keeps ownership of pool.
func NewPostgresWriter(ctx context.Context, pool db.Pool, opts PostgresOptions) (*PostgresWriter, error) {
	if pool == nil {
		return nil, eris.New("postgres: pool required")
	}
	if opts.Table == "" {
		return nil, eris.New("postgres: table name required")
	}
	return &PostgresWriter{ctx: ctx, pool: pool, opts: opts}, nil
}

// WriteHeader creates the table. Without Upsert an existing table is dropped.
func (p *PostgresWriter) WriteHeader(cols []Column) error {
	if p.cols != nil {
		return eris.New("postgres: header already written")
	}
	for _, col := range cols {
		if len(col.Name) > FormatPostgres.MaxFieldLength() {
			return eris.Errorf("postgres: column name %q longer than %d characters", col.Name, FormatPostgres.MaxFieldLength())
		}
	}

	defs := make([]db.ColumnDef, 0, len(cols)+1)
	for _, col := range cols {
		typ := "double precision"
		if col.Kind == Text {
			typ = "text"
		}
		defs = append(defs, db.ColumnDef{Name: col.Name, Type: typ})
	}
	if p.opts.Geometry != nil {
		defs = append(defs, db.ColumnDef{Name: GeometryColumn, Type: geometryType(p.opts.SRID)})
	}

	if err := db.CreateTable(p.ctx, p.pool, p.opts.Table, defs, cols[0].Name, !p.opts.Upsert); err != nil {
		return err
	}
	p.cols = cols
	return nil
}

func geometryType(srid int) string {
	if srid > 0 {
		return "geometry(MultiPolygon," + strconv.Itoa(srid) + ")"
	}
	return "geometry(MultiPolygon)"
}

// WriteRow buffers one row.
func (p *PostgresWriter) WriteRow(row Row) error {
	if err := checkRow(p.cols, row); err != nil {
		return err
	}
	rec := make([]any, 0, len(row.Values)+2)
	rec = append(rec, row.UnitID)
	for _, v := range row.Values {
		rec = append(rec, v)
	}

	if p.opts.Geometry != nil {
		mp, ok := p.opts.Geometry.Geometry(row.UnitID)
		if !ok || mp == nil {
			rec = append(rec, nil)
		} else {
			if p.opts.SRID > 0 {
				mp = mp.Clone().SetSRID(p.opts.SRID)
			}
			data, err := ewkb.Marshal(mp, ewkb.NDR)
			if err != nil {
				return eris.Wrapf(err, "postgres: encode geometry for unit %s", row.UnitID)
			}
			rec = append(rec, data)
		}
	}

	p.rows = append(p.rows, rec)
	return nil
}

// Close loads the buffered rows.
func (p *PostgresWriter) Close() error {
	if p.cols == nil {
		return nil
	}
	columns := make([]string, 0, len(p.cols)+1)
	for _, col := range p.cols {
		columns = append(columns, col.Name)
	}
	if p.opts.Geometry != nil {
		columns = append(columns, GeometryColumn)
	}

	if p.opts.Upsert {
		res, err := db.MergeUnits(p.ctx, p.pool, db.MergeSpec{Table: p.opts.Table, Columns: columns}, p.rows)
		if err != nil {
			return err
		}
		zap.L().Info("postgres: merged metric rows",
			zap.String("table", p.opts.Table),
			zap.Int64("new_units", res.Inserted),
			zap.Int64("replaced_units", res.Updated),
		)
		return nil
	}
	_, err := db.CopyFrom(p.ctx, p.pool, p.opts.Table, columns, p.rows)
	return err
}
