package metric

import (
	"slices"

	"github.com/rotisserie/eris"

	"github.com/USEPA/ATtILA2-sub000/internal/diag"
	"github.com/USEPA/ATtILA2-sub000/internal/output"
	"github.com/USEPA/ATtILA2-sub000/internal/schema"
	"github.com/USEPA/ATtILA2-sub000/internal/zonal"
)

// Quality-check columns written after the metric columns.
const (
	FieldEffective = "LC_Effect"
	FieldExcluded  = "LC_Excl"
	FieldOverlap   = "LC_Overlap"
)

const areaSuffix = "_A"

// unboundedFieldLength stands in for formats without a practical name limit.
const unboundedFieldLength = 128

// Layout fixes the output columns of a run. Percent and Area line up with the
// engine classes, Coefficients with the engine coefficients.
type Layout struct {
	UnitField    string         `json:"unit_field"`
	Percent      []schema.Field `json:"percent"`
	Area         []schema.Field `json:"area,omitempty"`
	Coefficients []schema.Field `json:"coefficients,omitempty"`
}

// LayoutOptions controls column naming. A MaxFieldLength of zero means the
// destination does not limit names.
type LayoutOptions struct {
	Family         Family
	UnitField      string
	MaxFieldLength int
	AddAreaFields  bool
	Sink           diag.Sink
}

// NewLayout names the columns for the classes and coefficients an engine was
// built with. Names never collide with each other, with the unit id column or
// with the quality-check columns.
func NewLayout(e *zonal.Engine, opts LayoutOptions) (Layout, error) {
	l := Layout{UnitField: opts.UnitField}
	maxLen := opts.MaxFieldLength
	if maxLen <= 0 {
		maxLen = unboundedFieldLength
	}

	reserved := []string{FieldEffective, FieldExcluded, FieldOverlap}
	if opts.UnitField != "" {
		reserved = append(reserved, opts.UnitField)
	}
	for _, name := range reserved {
		if len(name) > maxLen {
			return Layout{}, eris.Wrapf(schema.ErrFieldLength, "max length %d cannot hold column %s", maxLen, name)
		}
	}

	classes := e.Classes()
	reqs := make([]schema.Request, 0, len(classes))
	for _, c := range classes {
		r := schema.Request{Key: string(c.ID)}
		if opts.Family.Override != nil {
			r.Override = opts.Family.Override(c.Overrides)
		}
		reqs = append(reqs, r)
	}

	var err error
	l.Percent, err = schema.Resolver{
		MaxLen:   maxLen,
		Prefix:   opts.Family.Prefix,
		Suffix:   opts.Family.Suffix,
		Reserved: reserved,
		Sink:     opts.Sink,
	}.Resolve(reqs)
	if err != nil {
		return Layout{}, eris.Wrap(err, "metric: percent fields")
	}
	reserved = appendNames(reserved, l.Percent)

	if opts.AddAreaFields {
		areaReqs := make([]schema.Request, 0, len(classes))
		for _, c := range classes {
			areaReqs = append(areaReqs, schema.Request{Key: string(c.ID)})
		}
		l.Area, err = schema.Resolver{
			MaxLen:   maxLen,
			Suffix:   areaSuffix,
			Reserved: reserved,
			Sink:     opts.Sink,
		}.Resolve(areaReqs)
		if err != nil {
			return Layout{}, eris.Wrap(err, "metric: area fields")
		}
		reserved = appendNames(reserved, l.Area)
	}

	coefficients := e.Coefficients()
	if len(coefficients) > 0 {
		coefReqs := make([]schema.Request, 0, len(coefficients))
		for _, c := range coefficients {
			coefReqs = append(coefReqs, schema.Request{Key: c.ID, Override: c.FieldName})
		}
		l.Coefficients, err = schema.Resolver{
			MaxLen:   maxLen,
			Reserved: reserved,
			Sink:     opts.Sink,
		}.Resolve(coefReqs)
		if err != nil {
			return Layout{}, eris.Wrap(err, "metric: coefficient fields")
		}
	}

	return l, nil
}

func appendNames(names []string, fields []schema.Field) []string {
	out := slices.Clone(names)
	for _, f := range fields {
		out = append(out, f.Name)
	}
	return out
}

// Columns returns the output header: unit id first, then percent, area and
// coefficient columns, then the quality-check columns.
func (l Layout) Columns() []output.Column {
	cols := []output.Column{{Name: l.UnitField, Kind: output.Text, Width: 50}}
	for _, f := range l.Percent {
		cols = append(cols, output.Column{Name: f.Name, Kind: output.Float, Width: 8, Decimals: 2})
	}
	for _, f := range l.Area {
		cols = append(cols, output.Column{Name: f.Name, Kind: output.Float, Width: 18, Decimals: 2})
	}
	for _, f := range l.Coefficients {
		cols = append(cols, output.Column{Name: f.Name, Kind: output.Float, Width: 14, Decimals: 4})
	}
	return append(cols,
		output.Column{Name: FieldEffective, Kind: output.Float, Width: 18, Decimals: 2},
		output.Column{Name: FieldExcluded, Kind: output.Float, Width: 18, Decimals: 2},
		output.Column{Name: FieldOverlap, Kind: output.Float, Width: 8, Decimals: 2},
	)
}

// Row converts an engine result into an output row matching Columns.
func (l Layout) Row(res zonal.Result) output.Row {
	values := make([]float64, 0, len(l.Percent)+len(l.Area)+len(l.Coefficients)+3)
	for _, c := range res.Classes {
		values = append(values, c.Percent)
	}
	if l.Area != nil {
		for _, c := range res.Classes {
			values = append(values, c.Area)
		}
	}
	for _, c := range res.Coefficients {
		values = append(values, c.Value)
	}
	values = append(values, res.EffectiveArea, res.ExcludedArea, res.Overlap)
	return output.Row{UnitID: res.UnitID, Values: values}
}
