package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

var testCols = []Column{
	{Name: "HUC12", Kind: Text, Width: 12},
	{Name: "pfor", Kind: Float, Width: 8, Decimals: 2},
	{Name: "LC_Overlap", Kind: Float, Width: 8, Decimals: 2},
}

var testRows = []Row{
	{UnitID: "010100020101", Values: []float64{75, 100}},
	{UnitID: "010100020102", Values: []float64{-1, 98.5}},
}

type geoms map[string]*geom.MultiPolygon

func (g geoms) Geometry(id string) (*geom.MultiPolygon, bool) {
	mp, ok := g[id]
	return mp, ok
}

// square returns a clockwise 10x10 square at (x, y) with a counter-clockwise
// 2x2 hole in its middle, oriented as shapefiles store them.
func square(x, y float64) *geom.MultiPolygon {
	shell := geom.NewLinearRingFlat(geom.XY, []float64{x, y, x, y + 10, x + 10, y + 10, x + 10, y, x, y})
	hole := geom.NewLinearRingFlat(geom.XY, []float64{x + 4, y + 4, x + 6, y + 4, x + 6, y + 6, x + 4, y + 6, x + 4, y + 4})
	p := geom.NewPolygon(geom.XY)
	if err := p.Push(shell); err != nil {
		panic(err)
	}
	if err := p.Push(hole); err != nil {
		panic(err)
	}
	mp := geom.NewMultiPolygon(geom.XY)
	if err := mp.Push(p); err != nil {
		panic(err)
	}
	return mp
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"csv", FormatCSV},
		{" XLSX ", FormatXLSX},
		{"excel", FormatXLSX},
		{"shp", FormatShapefile},
		{"shapefile", FormatShapefile},
		{"dbf", FormatShapefile},
		{"sqlite", FormatSQLite},
		{"Postgres", FormatPostgres},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFormat("parquet")
	assert.Error(t, err)
}

func TestMaxFieldLength(t *testing.T) {
	assert.Equal(t, 10, FormatShapefile.MaxFieldLength())
	assert.Equal(t, 63, FormatPostgres.MaxFieldLength())
	assert.Equal(t, 0, FormatCSV.MaxFieldLength())
	assert.Equal(t, 0, FormatSQLite.MaxFieldLength())
}

func TestCheckRow(t *testing.T) {
	assert.Error(t, checkRow(nil, testRows[0]))
	assert.Error(t, checkRow(testCols, Row{UnitID: "x", Values: []float64{1}}))
	assert.NoError(t, checkRow(testCols, testRows[0]))
}
