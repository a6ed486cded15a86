package lcc

import (
	"slices"
	"strings"
)

// ClassID identifies a class within one classification document.
type ClassID string

// Attribute names recognised as output field overrides, one per metric family.
const (
	AttrLCPField   = "lcpField"
	AttrRLCPField  = "rlcpField"
	AttrSPLCPField = "splcpField"
	AttrLCOSPField = "lcospField"
)

// FieldOverrides holds the explicit output field names a class requests for
// each metric family. Empty means the generated name is used.
type FieldOverrides struct {
	LCP   string `json:"lcp,omitempty" yaml:"lcp,omitempty"`
	RLCP  string `json:"rlcp,omitempty" yaml:"rlcp,omitempty"`
	SPLCP string `json:"splcp,omitempty" yaml:"splcp,omitempty"`
	LCOSP string `json:"lcosp,omitempty" yaml:"lcosp,omitempty"`
}

func overridesFrom(attrs map[string]string) FieldOverrides {
	return FieldOverrides{
		LCP:   attrs[AttrLCPField],
		RLCP:  attrs[AttrRLCPField],
		SPLCP: attrs[AttrSPLCPField],
		LCOSP: attrs[AttrLCOSPField],
	}
}

// Class is one node of the classification tree. Values holds the codes assigned
// directly to the class; AggregateValues and AggregateClassIDs cover the class
// and every retained descendant. Value slices are sorted ascending, class id
// slices keep document order. Treat all of them as read-only.
type Class struct {
	ID         ClassID           `json:"id" yaml:"id"`
	Name       string            `json:"name" yaml:"name"`
	Filter     string            `json:"filter,omitempty" yaml:"filter,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Overrides  FieldOverrides    `json:"overrides" yaml:"overrides"`

	Values            []ValueCode `json:"values" yaml:"values"`
	ChildIDs          []ClassID   `json:"child_ids,omitempty" yaml:"child_ids,omitempty"`
	AggregateValues   []ValueCode `json:"aggregate_values" yaml:"aggregate_values"`
	AggregateClassIDs []ClassID   `json:"aggregate_class_ids,omitempty" yaml:"aggregate_class_ids,omitempty"`

	depth   int
	dropped bool
}

// Depth returns the nesting level of the class; top-level classes are 0.
func (c Class) Depth() int {
	return c.depth
}

// IsEmpty reports whether no included value is reachable from the class.
func (c Class) IsEmpty() bool {
	return len(c.AggregateValues) == 0
}

// Covers reports whether code is in the aggregated value set.
func (c Class) Covers(code ValueCode) bool {
	_, ok := slices.BinarySearch(c.AggregateValues, code)
	return ok
}

// FilteredFor reports whether the class filter names the given metric family.
// Filter entries are separated by commas, semicolons or spaces.
func (c Class) FilteredFor(family string) bool {
	if c.Filter == "" || family == "" {
		return false
	}
	fields := strings.FieldsFunc(c.Filter, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	for _, f := range fields {
		if strings.EqualFold(f, family) {
			return true
		}
	}
	return false
}
