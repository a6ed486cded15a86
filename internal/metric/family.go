// Package metric runs land cover metric tools: it resolves the output layout
// once, evaluates every reporting unit with the zonal engine and hands the rows
// to an output writer in reporting-unit order.
package metric

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/USEPA/ATtILA2-sub000/internal/lcc"
)

// Family is a metric tool flavour. All proportion families share the engine and
// differ in column naming and in which class override they honour.
type Family struct {
	Name     string
	Title    string
	Prefix   string
	Suffix   string
	Override func(lcc.FieldOverrides) string
}

// Proportion families.
var (
	LCP = Family{
		Name:     "lcp",
		Title:    "Land Cover Proportions",
		Prefix:   "p",
		Override: func(o lcc.FieldOverrides) string { return o.LCP },
	}
	RLCP = Family{
		Name:     "rlcp",
		Title:    "Riparian Land Cover Proportions",
		Prefix:   "r",
		Override: func(o lcc.FieldOverrides) string { return o.RLCP },
	}
	SPLCP = Family{
		Name:     "splcp",
		Title:    "Sample Point Land Cover Proportions",
		Prefix:   "s",
		Override: func(o lcc.FieldOverrides) string { return o.SPLCP },
	}
	LCOSP = Family{
		Name:     "lcosp",
		Title:    "Land Cover on Slopes Proportions",
		Prefix:   "p",
		Suffix:   "_s",
		Override: func(o lcc.FieldOverrides) string { return o.LCOSP },
	}
)

// LCCC is the coefficient calculator. It selects coefficients rather than
// classes and names its columns after the coefficient field names.
var LCCC = Family{
	Name:  "lccc",
	Title: "Land Cover Coefficient Calculator",
}

// Families lists the proportion families by name.
var Families = map[string]Family{
	LCP.Name:   LCP,
	RLCP.Name:  RLCP,
	SPLCP.Name: SPLCP,
	LCOSP.Name: LCOSP,
}

// FamilyByName looks up a proportion family.
func FamilyByName(name string) (Family, error) {
	f, ok := Families[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Family{}, eris.Errorf("metric: unknown family %q", name)
	}
	return f, nil
}

// DefaultClasses returns every class of the scheme, at every depth and in
// document order, except those whose filter names the family.
func DefaultClasses(scheme *lcc.Scheme, family Family) []lcc.ClassID {
	var ids []lcc.ClassID
	for _, c := range scheme.Classes() {
		if c.FilteredFor(family.Name) {
			continue
		}
		ids = append(ids, c.ID)
	}
	return ids
}
