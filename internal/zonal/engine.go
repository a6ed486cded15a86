// Package zonal turns the area histogram of one reporting unit into land cover
// proportions, excluded and effective area sums and the overlap quality ratio.
package zonal

import (
	"fmt"
	"math"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/USEPA/ATtILA2-sub000/internal/diag"
	"github.com/USEPA/ATtILA2-sub000/internal/lcc"
)

// Undefined is reported as the percentage of a class with no included values,
// and as the overlap of a unit whose nominal area is zero.
const Undefined = -1.0

// ErrInputContract marks structurally invalid input from a collaborator.
var ErrInputContract = eris.New("zonal: invalid input")

// Histogram maps a raster code to the area it covers inside one reporting unit.
type Histogram map[lcc.ValueCode]float64

// Unit is the engine input for one reporting unit.
type Unit struct {
	ID          string
	NominalArea float64
	Histogram   Histogram
}

// ClassResult is the outcome for one selected class.
type ClassResult struct {
	ClassID lcc.ClassID `json:"class_id"`
	Percent float64     `json:"percent"`
	Area    float64     `json:"area"`
}

// Defined reports whether Percent holds a computed value.
func (r ClassResult) Defined() bool {
	return r.Percent != Undefined
}

// CoefficientResult is the outcome for one selected coefficient.
type CoefficientResult struct {
	ID     string                `json:"id"`
	Method lcc.CoefficientMethod `json:"method"`
	Value  float64               `json:"value"`
}

// Result is the engine output for one reporting unit.
type Result struct {
	UnitID         string              `json:"unit_id"`
	Classes        []ClassResult       `json:"classes"`
	Coefficients   []CoefficientResult `json:"coefficients,omitempty"`
	EffectiveArea  float64             `json:"effective_area"`
	ExcludedArea   float64             `json:"excluded_area"`
	NominalArea    float64             `json:"nominal_area"`
	Overlap        float64             `json:"overlap"`
	UndefinedCodes []lcc.ValueCode     `json:"undefined_codes,omitempty"`
}

// TotalArea is the tabulated area of the unit, excluded codes included.
func (r Result) TotalArea() float64 {
	return r.EffectiveArea + r.ExcludedArea
}

// Options tunes an Engine.
type Options struct {
	// OverlapTolerance is the distance from 100 beyond which an overlap is
	// reported. Zero or less disables the check.
	OverlapTolerance float64
	// Coefficients lists coefficient ids to evaluate for every unit.
	Coefficients []string
	// Sink receives data-quality warnings. Nil discards them.
	Sink diag.Sink
}

// Engine computes per-unit results for a fixed set of classes. It holds no
// per-unit state and is safe for concurrent use.
type Engine struct {
	scheme       *lcc.Scheme
	classes      []lcc.Class
	coefficients []lcc.Coefficient
	tolerance    float64
	sink         diag.Sink
}

// NewEngine selects classes by id, in the order given. An id missing from the
// scheme fails with lcc.ErrUnknownClass, an unknown coefficient with
// lcc.ErrUnknownCoefficient. Every selected class that covers no included value
// is reported once as diag.EmptyClass.
func NewEngine(scheme *lcc.Scheme, classIDs []lcc.ClassID, opts Options) (*Engine, error) {
	if scheme == nil {
		return nil, lcc.ErrNotLoaded
	}
	classes, err := scheme.Lookup(classIDs...)
	if err != nil {
		return nil, eris.Wrap(err, "zonal: select classes")
	}
	coefficients, err := scheme.LookupCoefficients(opts.Coefficients...)
	if err != nil {
		return nil, eris.Wrap(err, "zonal: select coefficients")
	}

	e := &Engine{
		scheme:       scheme,
		classes:      classes,
		coefficients: coefficients,
		tolerance:    opts.OverlapTolerance,
		sink:         diag.OrDiscard(opts.Sink),
	}
	for _, c := range classes {
		if c.IsEmpty() {
			e.sink.Report(diag.Warning{
				Kind:    diag.EmptyClass,
				Subject: string(c.ID),
				Message: fmt.Sprintf("class %q has no included values; its percentage is reported as %v", c.ID, Undefined),
			})
		}
	}
	return e, nil
}

// Classes returns the selected classes in selection order.
func (e *Engine) Classes() []lcc.Class {
	return slices.Clone(e.classes)
}

// Coefficients returns the selected coefficients in selection order.
func (e *Engine) Coefficients() []lcc.Coefficient {
	return slices.Clone(e.coefficients)
}

// Compute evaluates one reporting unit. Data-quality problems are reported to
// the sink and never returned as errors; only input that breaks the contract
// (empty id, negative or non-finite areas) yields ErrInputContract.
func (e *Engine) Compute(u Unit) (Result, error) {
	if err := u.validate(); err != nil {
		return Result{}, err
	}

	res := Result{
		UnitID:      u.ID,
		NominalArea: u.NominalArea,
	}

	values := e.scheme.Values()
	codes := make([]lcc.ValueCode, 0, len(u.Histogram))
	for code := range u.Histogram {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	for _, code := range codes {
		area := u.Histogram[code]
		entry, ok := values.Lookup(code)
		switch {
		case !ok:
			res.EffectiveArea += area
			if area > 0 {
				res.UndefinedCodes = append(res.UndefinedCodes, code)
				e.sink.Report(diag.Warning{
					Kind:    diag.UndefinedValue,
					Unit:    u.ID,
					Subject: code.String(),
					Value:   area,
					Message: fmt.Sprintf("grid value %d is not defined in the classification scheme; counted as effective area", code),
				})
			}
		case entry.Excluded:
			res.ExcludedArea += area
		default:
			res.EffectiveArea += area
		}
	}

	res.Classes = make([]ClassResult, 0, len(e.classes))
	for _, c := range e.classes {
		res.Classes = append(res.Classes, classResult(c, u.Histogram, res.EffectiveArea))
	}

	if len(e.coefficients) > 0 {
		res.Coefficients = make([]CoefficientResult, 0, len(e.coefficients))
		for _, c := range e.coefficients {
			res.Coefficients = append(res.Coefficients, coefficientResult(c, values, codes, u.Histogram, res.EffectiveArea))
		}
	}

	res.Overlap = e.overlap(u, res.TotalArea())
	return res, nil
}

func classResult(c lcc.Class, h Histogram, effective float64) ClassResult {
	r := ClassResult{ClassID: c.ID}
	for _, code := range c.AggregateValues {
		r.Area += h[code]
	}
	switch {
	case c.IsEmpty():
		r.Percent = Undefined
	case effective == 0:
		r.Percent = 0
	default:
		r.Percent = 100 * r.Area / effective
	}
	return r
}

func coefficientResult(c lcc.Coefficient, values lcc.ValueTable, codes []lcc.ValueCode, h Histogram, effective float64) CoefficientResult {
	r := CoefficientResult{ID: c.ID, Method: c.Method}
	if effective == 0 {
		return r
	}

	var weighted float64
	for _, code := range codes {
		entry, ok := values.Lookup(code)
		if !ok || entry.Excluded {
			continue
		}
		if coef, ok := entry.Coefficient(c.ID); ok {
			weighted += h[code] * coef
		}
	}

	switch c.Method {
	case lcc.MethodPercent:
		r.Value = 100 * weighted / effective
	default:
		r.Value = weighted / effective
	}
	return r
}

func (e *Engine) overlap(u Unit, total float64) float64 {
	if u.NominalArea == 0 {
		e.sink.Report(diag.Warning{
			Kind:    diag.UndefinedNominalArea,
			Unit:    u.ID,
			Message: "reporting unit has zero nominal area; overlap is undefined",
		})
		return Undefined
	}

	ratio := 100 * total / u.NominalArea
	switch {
	case total == 0:
		e.sink.Report(diag.Warning{
			Kind:    diag.ZeroOverlap,
			Unit:    u.ID,
			Message: "no tabulated grid area falls inside the reporting unit",
		})
	case e.tolerance > 0 && math.Abs(ratio-100) > e.tolerance:
		e.sink.Report(diag.Warning{
			Kind:    diag.OverlapOutOfRange,
			Unit:    u.ID,
			Value:   ratio,
			Message: fmt.Sprintf("tabulated area is %.2f%% of the reporting unit area", ratio),
		})
	}
	return ratio
}

func (u Unit) validate() error {
	if u.ID == "" {
		return eris.Wrap(ErrInputContract, "reporting unit id is empty")
	}
	if !validArea(u.NominalArea) {
		return eris.Wrapf(ErrInputContract, "unit %s: nominal area %v", u.ID, u.NominalArea)
	}
	for code, area := range u.Histogram {
		if !validArea(area) {
			return eris.Wrapf(ErrInputContract, "unit %s: area %v for value %d", u.ID, area, code)
		}
	}
	return nil
}

func validArea(a float64) bool {
	return a >= 0 && !math.IsInf(a, 0) && !math.IsNaN(a)
}
