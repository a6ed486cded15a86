// Package tabulate loads zonal tabulation tables: the area each grid value
// covers inside each reporting unit, as produced by a GIS "tabulate area" step.
package tabulate

import (
	"context"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/USEPA/ATtILA2-sub000/internal/fetcher"
	"github.com/USEPA/ATtILA2-sub000/internal/lcc"
	"github.com/USEPA/ATtILA2-sub000/internal/zonal"
)

// DefaultValuePrefix prefixes grid value columns in wide tables.
const DefaultValuePrefix = "VALUE_"

// ErrFormat marks a table that cannot be interpreted.
var ErrFormat = eris.New("tabulate: malformed table")

// Options describes the table layout.
//
// Wide tables have one row per unit and one <ValuePrefix><code> column per
// grid value. Long tables have one row per unit and value and are selected by
// setting both ValueField and AreaField.
type Options struct {
	UnitField   string
	ValuePrefix string
	ValueField  string
	AreaField   string
	// Scale multiplies every area, e.g. to convert square meters to hectares.
	// Zero means 1.
	Scale float64
	Table fetcher.TableOptions
}

func (o Options) long() bool {
	return o.ValueField != "" && o.AreaField != ""
}

// Table holds per-unit histograms. It is read-only after loading and safe for
// concurrent use.
type Table struct {
	order []string
	hists map[string]zonal.Histogram
	codes []lcc.ValueCode
}

// ReadFile loads a .csv, .txt or .xlsx table from a local path.
func ReadFile(ctx context.Context, path string, opts Options) (*Table, error) {
	rows, err := fetcher.ReadTable(ctx, path, opts.Table)
	if err != nil {
		return nil, eris.Wrapf(err, "tabulate: read %s", path)
	}
	t, err := FromRows(rows, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "tabulate: %s", path)
	}
	zap.L().Debug("tabulate: loaded table",
		zap.String("path", path),
		zap.Int("units", len(t.order)),
		zap.Int("values", len(t.codes)),
	)
	return t, nil
}

// FromRows builds a table from rows whose first row is the header. Repeated
// units are merged by summing their areas.
func FromRows(rows [][]string, opts Options) (*Table, error) {
	if opts.UnitField == "" {
		return nil, eris.Wrap(ErrFormat, "unit field not set")
	}
	if len(rows) == 0 {
		return nil, eris.Wrap(ErrFormat, "empty table")
	}
	if opts.Scale == 0 {
		opts.Scale = 1
	}

	header := rows[0]
	unitCol := findColumn(header, opts.UnitField)
	if unitCol < 0 {
		return nil, eris.Wrapf(ErrFormat, "unit field %q not in header", opts.UnitField)
	}

	t := &Table{hists: make(map[string]zonal.Histogram)}
	var err error
	if opts.long() {
		err = t.readLong(header, rows[1:], unitCol, opts)
	} else {
		err = t.readWide(header, rows[1:], unitCol, opts)
	}
	if err != nil {
		return nil, err
	}

	codes := make(map[lcc.ValueCode]struct{})
	for _, h := range t.hists {
		for code := range h {
			codes[code] = struct{}{}
		}
	}
	t.codes = slices.Sorted(maps.Keys(codes))
	return t, nil
}

func (t *Table) readWide(header []string, rows [][]string, unitCol int, opts Options) error {
	prefix := opts.ValuePrefix
	if prefix == "" {
		prefix = DefaultValuePrefix
	}

	type valueCol struct {
		idx  int
		code lcc.ValueCode
	}
	var cols []valueCol
	for i, name := range header {
		if i == unitCol || len(name) < len(prefix) || !strings.EqualFold(name[:len(prefix)], prefix) {
			continue
		}
		n, err := strconv.Atoi(name[len(prefix):])
		if err != nil {
			return eris.Wrapf(ErrFormat, "column %q: value code is not an integer", name)
		}
		cols = append(cols, valueCol{idx: i, code: lcc.ValueCode(n)})
	}
	if len(cols) == 0 {
		return eris.Wrapf(ErrFormat, "no %s<code> columns", prefix)
	}

	for line, row := range rows {
		id, ok := cell(row, unitCol)
		if !ok {
			continue
		}
		h := t.histogram(id)
		for _, c := range cols {
			raw, _ := cell(row, c.idx)
			area, err := parseArea(raw)
			if err != nil {
				return eris.Wrapf(ErrFormat, "row %d column %s: %v", line+2, header[c.idx], err)
			}
			h[c.code] += area * opts.Scale
		}
	}
	return nil
}

func (t *Table) readLong(header []string, rows [][]string, unitCol int, opts Options) error {
	valueCol := findColumn(header, opts.ValueField)
	areaCol := findColumn(header, opts.AreaField)
	if valueCol < 0 || areaCol < 0 {
		return eris.Wrapf(ErrFormat, "fields %q and %q must both be in the header", opts.ValueField, opts.AreaField)
	}

	for line, row := range rows {
		id, ok := cell(row, unitCol)
		if !ok {
			continue
		}
		rawCode, _ := cell(row, valueCol)
		n, err := strconv.Atoi(rawCode)
		if err != nil {
			return eris.Wrapf(ErrFormat, "row %d: value %q is not an integer", line+2, rawCode)
		}
		rawArea, _ := cell(row, areaCol)
		area, err := parseArea(rawArea)
		if err != nil {
			return eris.Wrapf(ErrFormat, "row %d: %v", line+2, err)
		}
		t.histogram(id)[lcc.ValueCode(n)] += area * opts.Scale
	}
	return nil
}

func (t *Table) histogram(id string) zonal.Histogram {
	h, ok := t.hists[id]
	if !ok {
		h = zonal.Histogram{}
		t.hists[id] = h
		t.order = append(t.order, id)
	}
	return h
}

func findColumn(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

// cell returns the value at i, reporting false when it is missing or blank.
func cell(row []string, i int) (string, bool) {
	if i >= len(row) || row[i] == "" {
		return "", false
	}
	return row[i], true
}

// parseArea reads an area cell. Blank cells are zero.
func parseArea(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, eris.Errorf("area %q is not a number", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("area %q is not finite", raw)
	}
	return f, nil
}

// UnitIDs lists the units in first-appearance order.
func (t *Table) UnitIDs() []string {
	return slices.Clone(t.order)
}

// Codes lists every grid value that appears in the table.
func (t *Table) Codes() []lcc.ValueCode {
	return slices.Clone(t.codes)
}

// Histogram returns a copy of the unit histogram, or nil when the unit is not
// in the table.
func (t *Table) Histogram(_ context.Context, unitID string) (zonal.Histogram, error) {
	h, ok := t.hists[unitID]
	if !ok {
		return nil, nil
	}
	return maps.Clone(h), nil
}

// NominalArea returns the tabulated area of a unit. It stands in for the
// polygon area when no reporting unit polygons are available.
func (t *Table) NominalArea(_ context.Context, unitID string) (float64, error) {
	var total float64
	for _, a := range t.hists[unitID] {
		total += a
	}
	return total, nil
}
