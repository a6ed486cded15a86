// Package output writes metric rows to CSV, Excel, shapefile, SQLite and
// PostgreSQL destinations.
package output

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Kind is the storage type of a column.
type Kind int

// Column kinds.
const (
	Text Kind = iota
	Float
)

// Column describes one output column. Width and Decimals size fixed-width
// formats such as dBase and are ignored elsewhere.
type Column struct {
	Name     string
	Kind     Kind
	Width    int
	Decimals int
}

// Row is one reporting unit. Values line up with the Float columns that follow
// the leading unit id column.
type Row struct {
	UnitID string
	Values []float64
}

// Writer receives the header once, then rows in reporting-unit order.
type Writer interface {
	WriteHeader(cols []Column) error
	WriteRow(row Row) error
	Close() error
}

// Format names an output destination type.
type Format string

// Supported formats.
const (
	FormatCSV       Format = "csv"
	FormatXLSX      Format = "xlsx"
	FormatShapefile Format = "shp"
	FormatSQLite    Format = "sqlite"
	FormatPostgres  Format = "postgres"
)

// ParseFormat accepts a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatShapefile, FormatSQLite, FormatPostgres:
		return f, nil
	case "shapefile", "dbf":
		return FormatShapefile, nil
	case "excel":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("output: unknown format %q", s)
	}
}

// MaxFieldLength returns the longest column name the format stores, or 0 when
// the format imposes no practical limit.
func (f Format) MaxFieldLength() int {
	switch f {
	case FormatShapefile:
		return 10
	case FormatPostgres:
		return 63
	default:
		return 0
	}
}

func checkRow(cols []Column, row Row) error {
	if cols == nil {
		return eris.New("output: row written before header")
	}
	if len(row.Values) != len(cols)-1 {
		return eris.Errorf("output: row %s has %d values, header has %d value columns", row.UnitID, len(row.Values), len(cols)-1)
	}
	return nil
}
