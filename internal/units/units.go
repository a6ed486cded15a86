// Package units loads reporting units: their ids, nominal polygon areas and,
// when read from a shapefile, their geometry.
package units

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/USEPA/ATtILA2-sub000/internal/diag"
	"github.com/USEPA/ATtILA2-sub000/internal/fetcher"
)

// ErrUnknownUnit is returned for an id that was never loaded.
var ErrUnknownUnit = eris.New("units: unknown reporting unit")

// Units is an ordered set of reporting units. It is read-only after loading
// and safe for concurrent use.
type Units struct {
	order []string
	area  map[string]float64
	geoms map[string]*geom.MultiPolygon
}

func newUnits() *Units {
	return &Units{
		area:  make(map[string]float64),
		geoms: make(map[string]*geom.MultiPolygon),
	}
}

// add registers a unit, merging repeated ids.
func (u *Units) add(id string, area float64, g *geom.MultiPolygon) error {
	if _, ok := u.area[id]; !ok {
		u.order = append(u.order, id)
	}
	u.area[id] += area
	if g == nil {
		return nil
	}
	prev, ok := u.geoms[id]
	if !ok {
		u.geoms[id] = g
		return nil
	}
	return merge(prev, g)
}

// Len returns the number of distinct units.
func (u *Units) Len() int { return len(u.order) }

// UnitIDs returns ids in first-seen order.
func (u *Units) UnitIDs() []string {
	return append([]string(nil), u.order...)
}

// NominalArea returns the polygon area of a unit.
func (u *Units) NominalArea(_ context.Context, unitID string) (float64, error) {
	a, ok := u.area[unitID]
	if !ok {
		return 0, eris.Wrapf(ErrUnknownUnit, "id %q", unitID)
	}
	return a, nil
}

// Geometry returns the unit's polygons, if the units came from a shapefile.
func (u *Units) Geometry(unitID string) (*geom.MultiPolygon, bool) {
	g, ok := u.geoms[unitID]
	return g, ok
}

// ShapefileOptions controls ReadShapefile.
type ShapefileOptions struct {
	IDField string
	// AreaScale multiplies polygon areas, which are in squared map units.
	// Zero means 1.
	AreaScale float64
	// SRID is stamped on every geometry. Zero leaves it unset.
	SRID int
	// Sink receives a warning for every record that is dropped.
	Sink diag.Sink
}

type shapeReader interface {
	Next() bool
	Shape() (int, shp.Shape)
	Attribute(n int) string
	Fields() []shp.Field
	Err() error
	Close() error
}

// openShapes opens a plain or zipped shapefile.
func openShapes(path string) (shapeReader, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return shp.OpenZip(path)
	}
	return shp.Open(path)
}

// ReadShapefile loads polygon reporting units from a .shp or a zipped
// shapefile. Records sharing an id are merged into one multipolygon.
func ReadShapefile(path string, opts ShapefileOptions) (*Units, error) {
	if opts.IDField == "" {
		return nil, eris.New("units: id field not set")
	}
	scale := opts.AreaScale
	if scale == 0 {
		scale = 1
	}

	r, err := openShapes(path)
	if err != nil {
		return nil, eris.Wrapf(err, "units: open %s", path)
	}
	defer r.Close() //nolint:errcheck

	idCol := -1
	for i, f := range r.Fields() {
		if strings.EqualFold(f.String(), opts.IDField) {
			idCol = i
			break
		}
	}
	if idCol < 0 {
		return nil, eris.Errorf("units: field %q not found in %s", opts.IDField, path)
	}

	sink := diag.OrDiscard(opts.Sink)
	u := newUnits()
	skipped := 0
	skip := func(n int, id, reason string) {
		skipped++
		sink.Report(diag.Warning{
			Kind:    diag.SkippedUnit,
			Unit:    id,
			Subject: strconv.Itoa(n),
			Message: fmt.Sprintf("shapefile record %d skipped: %s", n, reason),
		})
	}
	for r.Next() {
		n, s := r.Shape()
		id := strings.Trim(r.Attribute(idCol), " \x00")
		if id == "" {
			skip(n, id, "empty "+opts.IDField)
			continue
		}
		parts, points, ok := polygonParts(s)
		if !ok {
			if _, isNull := s.(*shp.Null); isNull {
				skip(n, id, "null shape")
				continue
			}
			return nil, eris.Errorf("units: record %d of %s is not a polygon", n, path)
		}

		mp, area, err := assemble(rings(parts, points))
		if err != nil {
			skip(n, id, err.Error())
			continue
		}
		if opts.SRID != 0 {
			mp.SetSRID(opts.SRID)
		}
		if err := u.add(id, area*scale, mp); err != nil {
			return nil, eris.Wrapf(err, "units: unit %s", id)
		}
	}
	if err := r.Err(); err != nil {
		return nil, eris.Wrapf(err, "units: read %s", path)
	}

	zap.L().Info("units: loaded shapefile",
		zap.String("path", path),
		zap.Int("units", u.Len()),
		zap.Int("skipped", skipped),
	)
	return u, nil
}

// ReadTable loads ids and areas from a .csv or .xlsx table. Repeated ids are
// summed.
func ReadTable(ctx context.Context, path, idField, areaField string, scale float64, opts fetcher.TableOptions) (*Units, error) {
	rows, err := fetcher.ReadTable(ctx, path, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "units: read %s", path)
	}
	u, err := FromRows(rows, idField, areaField, scale)
	if err != nil {
		return nil, eris.Wrapf(err, "units: %s", path)
	}
	return u, nil
}

// FromRows builds units from a header row followed by data rows.
func FromRows(rows [][]string, idField, areaField string, scale float64) (*Units, error) {
	if len(rows) == 0 {
		return nil, eris.New("units: empty table")
	}
	if scale == 0 {
		scale = 1
	}
	idCol, areaCol := -1, -1
	for i, h := range rows[0] {
		switch {
		case strings.EqualFold(h, idField):
			idCol = i
		case strings.EqualFold(h, areaField):
			areaCol = i
		}
	}
	if idCol < 0 || areaCol < 0 {
		return nil, eris.Errorf("units: columns %q and %q are required", idField, areaField)
	}

	u := newUnits()
	for i, row := range rows[1:] {
		if idCol >= len(row) || row[idCol] == "" {
			continue
		}
		var raw string
		if areaCol < len(row) {
			raw = row[areaCol]
		}
		a, err := strconv.ParseFloat(raw, 64)
		if err != nil || a < 0 || math.IsNaN(a) || math.IsInf(a, 0) {
			return nil, eris.Errorf("units: row %d: invalid area %q", i+2, raw)
		}
		if err := u.add(row[idCol], a*scale, nil); err != nil {
			return nil, err
		}
	}
	return u, nil
}
