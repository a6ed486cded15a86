package output

import (
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// maxDBFWidth is the widest dBase field.
const maxDBFWidth = 254

// GeometrySource supplies reporting unit polygons for spatial outputs.
type GeometrySource interface {
	Geometry(unitID string) (*geom.MultiPolygon, bool)
}

// ShapefileWriter writes one record per reporting unit with the metric columns
// in the dBase table. Records carry the unit polygon when a geometry source is
// set and a null shape otherwise. Column names must already fit dBase limits.
type ShapefileWriter struct {
	path     string
	geometry GeometrySource
	w        *shp.Writer
	cols     []Column
}

// CreateShapefile prepares a shapefile at path. With a nil src the file holds
// null shapes and only the attribute table is meaningful; otherwise every unit
// written must have a geometry in src.
func CreateShapefile(path string, src GeometrySource) (*ShapefileWriter, error) {
	var shapeType shp.ShapeType = shp.POLYGON
	if src == nil {
		shapeType = shp.NULL
	}
	w, err := shp.Create(path, shapeType)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: create %s", path)
	}
	return &ShapefileWriter{path: path, geometry: src, w: w}, nil
}

// WriteHeader defines the dBase fields.
func (s *ShapefileWriter) WriteHeader(cols []Column) error {
	if s.cols != nil {
		return eris.New("shapefile: header already written")
	}
	fields := make([]shp.Field, 0, len(cols))
	for _, col := range cols {
		if len(col.Name) > FormatShapefile.MaxFieldLength() {
			return eris.Errorf("shapefile: field name %q longer than %d characters", col.Name, FormatShapefile.MaxFieldLength())
		}
		width := uint8(min(max(col.Width, 1), maxDBFWidth))
		switch col.Kind {
		case Text:
			fields = append(fields, shp.StringField(col.Name, width))
		default:
			fields = append(fields, shp.FloatField(col.Name, width, uint8(col.Decimals)))
		}
	}
	if err := s.w.SetFields(fields); err != nil {
		return eris.Wrap(err, "shapefile: set fields")
	}
	s.cols = cols
	return nil
}

// WriteRow writes the unit polygon and its attributes.
func (s *ShapefileWriter) WriteRow(row Row) error {
	if err := checkRow(s.cols, row); err != nil {
		return err
	}
	var shape shp.Shape = &shp.Null{}
	if s.geometry != nil {
		mp, ok := s.geometry.Geometry(row.UnitID)
		if !ok || mp == nil || mp.NumPolygons() == 0 {
			return eris.Errorf("shapefile: no geometry for unit %s", row.UnitID)
		}
		poly := toShpPolygon(mp)
		shape = &poly
	}
	idx := int(s.w.Write(shape))

	if err := s.w.WriteAttribute(idx, 0, row.UnitID); err != nil {
		return eris.Wrapf(err, "shapefile: unit %s", row.UnitID)
	}
	for i, v := range row.Values {
		if err := s.w.WriteAttribute(idx, i+1, v); err != nil {
			return eris.Wrapf(err, "shapefile: unit %s field %s", row.UnitID, s.cols[i+1].Name)
		}
	}
	return nil
}

// Close writes the file headers and moves the dBase table to its
// conventional name.
func (s *ShapefileWriter) Close() error {
	s.w.Close()
	return renameDBF(s.path)
}

// renameDBF fixes the table name go-shp gives the dBase file: it appends "dbf"
// to the basename without a dot, where readers expect base+".dbf".
func renameDBF(path string) error {
	base := path
	if strings.HasSuffix(strings.ToLower(base), ".shp") {
		base = base[:len(base)-len(".shp")]
	}
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return eris.Wrapf(err, "shapefile: rename dbase table for %s", path)
	}
	return nil
}

// toShpPolygon flattens every ring of every polygon into shapefile parts,
// keeping the ring orientation of mp.
func toShpPolygon(mp *geom.MultiPolygon) shp.Polygon {
	var parts [][]shp.Point
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		for j := 0; j < p.NumLinearRings(); j++ {
			flat := p.LinearRing(j).FlatCoords()
			stride := mp.Stride()
			pts := make([]shp.Point, 0, len(flat)/stride)
			for k := 0; k+1 < len(flat); k += stride {
				pts = append(pts, shp.Point{X: flat[k], Y: flat[k+1]})
			}
			parts = append(parts, pts)
		}
	}
	return shp.Polygon(*shp.NewPolyLine(parts))
}
