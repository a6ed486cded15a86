package units

import (
	"math"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// rings splits a polygon record into closed flat XY rings.
func rings(parts []int32, points []shp.Point) [][]float64 {
	out := make([][]float64, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || start >= end {
			continue
		}

		flat := make([]float64, 0, (end-start+1)*2)
		for _, p := range points[start:end] {
			flat = append(flat, p.X, p.Y)
		}
		n := len(flat)
		if flat[0] != flat[n-2] || flat[1] != flat[n-1] {
			flat = append(flat, flat[0], flat[1])
		}
		if len(flat) < 8 {
			continue
		}
		out = append(out, flat)
	}
	return out
}

// polygonParts extracts the parts of any polygon shape type.
func polygonParts(s shp.Shape) ([]int32, []shp.Point, bool) {
	switch p := s.(type) {
	case *shp.Polygon:
		return p.Parts, p.Points, true
	case *shp.PolygonZ:
		return p.Parts, p.Points, true
	case *shp.PolygonM:
		return p.Parts, p.Points, true
	default:
		return nil, nil, false
	}
}

// assemble groups shapefile rings into polygons. Clockwise rings are shells
// and counter-clockwise rings are holes, each hole belonging to the shell that
// contains its first vertex. The returned area is shells minus holes.
func assemble(flatRings [][]float64) (*geom.MultiPolygon, float64, error) {
	var shells, holes [][]float64
	for _, r := range flatRings {
		switch a := xy.SignedArea(geom.XY, r); {
		case a > 0:
			shells = append(shells, r)
		case a < 0:
			holes = append(holes, r)
		}
	}
	// Every ring counter-clockwise: the writer ignored the convention.
	if len(shells) == 0 {
		shells, holes = holes, nil
	}
	if len(shells) == 0 {
		return nil, 0, eris.New("units: polygon has no area")
	}

	byShell := make([][][]float64, len(shells))
	for _, h := range holes {
		owner := 0
		for i, s := range shells {
			if xy.IsPointInRing(geom.XY, geom.Coord{h[0], h[1]}, s) {
				owner = i
				break
			}
		}
		byShell[owner] = append(byShell[owner], h)
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var area float64
	for i, s := range shells {
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, s)); err != nil {
			return nil, 0, eris.Wrap(err, "units: shell ring")
		}
		area += math.Abs(xy.SignedArea(geom.XY, s))
		for _, h := range byShell[i] {
			if err := poly.Push(geom.NewLinearRingFlat(geom.XY, h)); err != nil {
				return nil, 0, eris.Wrap(err, "units: hole ring")
			}
			area -= math.Abs(xy.SignedArea(geom.XY, h))
		}
		if err := mp.Push(poly); err != nil {
			return nil, 0, eris.Wrap(err, "units: polygon")
		}
	}
	return mp, area, nil
}

// merge appends the polygons of src to dst.
func merge(dst, src *geom.MultiPolygon) error {
	for i := 0; i < src.NumPolygons(); i++ {
		if err := dst.Push(src.Polygon(i)); err != nil {
			return eris.Wrap(err, "units: merge polygons")
		}
	}
	return nil
}
