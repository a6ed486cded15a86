package lcc

import (
	"slices"
	"sync"

	"github.com/rotisserie/eris"
)

// Metadata describes a classification scheme.
type Metadata struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Scheme is one parsed classification document. It is immutable once built and
// safe for concurrent readers; the derived value sets are computed on first use.
type Scheme struct {
	metadata     Metadata
	values       ValueTable
	coefficients []Coefficient
	classes      []Class
	byID         map[ClassID]int
	roots        []int

	included lazyCodes
	all      lazyCodes
}

type lazyCodes struct {
	once  sync.Once
	codes []ValueCode
}

func (l *lazyCodes) get(compute func() []ValueCode) []ValueCode {
	l.once.Do(func() { l.codes = compute() })
	return l.codes
}

// Metadata returns the scheme name and description.
func (s *Scheme) Metadata() Metadata {
	return s.metadata
}

// Values returns the value table.
func (s *Scheme) Values() ValueTable {
	return s.values
}

// Coefficients returns the coefficient table in document order.
func (s *Scheme) Coefficients() []Coefficient {
	return slices.Clone(s.coefficients)
}

// Coefficient returns the coefficient with the given id.
func (s *Scheme) Coefficient(id string) (Coefficient, bool) {
	for _, c := range s.coefficients {
		if c.ID == id {
			return c, true
		}
	}
	return Coefficient{}, false
}

// LookupCoefficients resolves coefficient ids in order. An unknown id yields
// ErrUnknownCoefficient.
func (s *Scheme) LookupCoefficients(ids ...string) ([]Coefficient, error) {
	out := make([]Coefficient, 0, len(ids))
	for _, id := range ids {
		c, ok := s.Coefficient(id)
		if !ok {
			return nil, eris.Wrapf(ErrUnknownCoefficient, "coefficient %q", id)
		}
		out = append(out, c)
	}
	return out, nil
}

// Class returns the class with the given id at any depth.
func (s *Scheme) Class(id ClassID) (Class, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Class{}, false
	}
	return s.classes[i], true
}

// Lookup resolves ids in order. An id that is not defined yields ErrUnknownClass.
func (s *Scheme) Lookup(ids ...ClassID) ([]Class, error) {
	out := make([]Class, 0, len(ids))
	for _, id := range ids {
		c, ok := s.Class(id)
		if !ok {
			return nil, eris.Wrapf(ErrUnknownClass, "class %q", id)
		}
		out = append(out, c)
	}
	return out, nil
}

// TopLevel returns the classes without a parent, in document order.
func (s *Scheme) TopLevel() []Class {
	out := make([]Class, 0, len(s.roots))
	for _, i := range s.roots {
		out = append(out, s.classes[i])
	}
	return out
}

// Classes returns every class at every depth in document (pre-)order.
func (s *Scheme) Classes() []Class {
	return slices.Clone(s.classes)
}

// Children returns the retained direct children of a class.
func (s *Scheme) Children(id ClassID) []Class {
	c, ok := s.Class(id)
	if !ok {
		return nil
	}
	out := make([]Class, 0, len(c.ChildIDs))
	for _, cid := range c.ChildIDs {
		out = append(out, s.classes[s.byID[cid]])
	}
	return out
}

// IncludedValueIDs returns every non-excluded value code of the value table
// together with every code reachable from a class, sorted and deduplicated.
func (s *Scheme) IncludedValueIDs() []ValueCode {
	return slices.Clone(s.included.get(s.computeIncluded))
}

// AllValueIDs returns IncludedValueIDs plus every excluded code.
func (s *Scheme) AllValueIDs() []ValueCode {
	return slices.Clone(s.all.get(s.computeAll))
}

func (s *Scheme) computeIncluded() []ValueCode {
	set := make(map[ValueCode]struct{}, s.values.Len())
	for _, code := range s.values.Codes(false) {
		set[code] = struct{}{}
	}
	for _, i := range s.roots {
		for _, code := range s.classes[i].AggregateValues {
			set[code] = struct{}{}
		}
	}
	return sortedCodes(set)
}

func (s *Scheme) computeAll() []ValueCode {
	included := s.included.get(s.computeIncluded)
	set := make(map[ValueCode]struct{}, len(included)+s.values.Len())
	for _, code := range included {
		set[code] = struct{}{}
	}
	for _, code := range s.values.Codes(true) {
		set[code] = struct{}{}
	}
	return sortedCodes(set)
}

func sortedCodes(set map[ValueCode]struct{}) []ValueCode {
	out := make([]ValueCode, 0, len(set))
	for code := range set {
		out = append(out, code)
	}
	slices.Sort(out)
	return out
}
