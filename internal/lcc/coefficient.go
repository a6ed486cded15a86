package lcc

import (
	"strings"

	"github.com/rotisserie/eris"
)

// CoefficientMethod selects how a coefficient is aggregated over a reporting unit.
type CoefficientMethod string

const (
	// MethodPercent reports 100 * sum(area * coefficient) / effective area.
	MethodPercent CoefficientMethod = "P"
	// MethodPerArea reports sum(area * coefficient) / effective area.
	MethodPerArea CoefficientMethod = "A"
)

// ParseCoefficientMethod accepts "P" or "A" in any case.
func ParseCoefficientMethod(s string) (CoefficientMethod, error) {
	switch CoefficientMethod(strings.ToUpper(strings.TrimSpace(s))) {
	case MethodPercent:
		return MethodPercent, nil
	case MethodPerArea:
		return MethodPerArea, nil
	default:
		return "", eris.Errorf("unknown coefficient method %q", s)
	}
}

// Coefficient is one entry of the document coefficient table. The numeric
// value per raster code is held on the ValueEntry.
type Coefficient struct {
	ID        string            `json:"id" yaml:"id"`
	Name      string            `json:"name" yaml:"name"`
	FieldName string            `json:"field_name" yaml:"field_name"`
	Method    CoefficientMethod `json:"method" yaml:"method"`
}
