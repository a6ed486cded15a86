package lcc

import (
	"encoding/xml"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

type xmlDocument struct {
	Metadata     *xmlMetadata     `xml:"metadata"`
	Coefficients *xmlCoefficients `xml:"coefficients"`
	Values       *xmlValues       `xml:"values"`
	Classes      *xmlClasses      `xml:"classes"`
}

type xmlMetadata struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
}

type xmlCoefficients struct {
	Items []xmlCoefficient `xml:"coefficient"`
}

type xmlCoefficient struct {
	ID        string `xml:"id,attr"`
	Name      string `xml:"name,attr"`
	FieldName string `xml:"fieldName,attr"`
	Method    string `xml:"method,attr"`
}

type xmlValues struct {
	Items []xmlValue `xml:"value"`
}

type xmlValue struct {
	ID           string                `xml:"id,attr"`
	Name         string                `xml:"name,attr"`
	Excluded     string                `xml:"excluded,attr"`
	Coefficients []xmlValueCoefficient `xml:"coefficient"`
}

type xmlValueCoefficient struct {
	ID    string `xml:"id,attr"`
	Value string `xml:"value,attr"`
}

type xmlClasses struct {
	Items []xmlClass `xml:"class"`
}

type xmlClass struct {
	Attrs   []xml.Attr    `xml:",any,attr"`
	Classes []xmlClass    `xml:"class"`
	Values  []xmlValueRef `xml:"value"`
}

type xmlValueRef struct {
	ID string `xml:"id,attr"`
}

func parseErr(format string, args ...any) error {
	return eris.Wrapf(ErrParse, format, args...)
}

// decodeScheme reads a classification document and builds an immutable scheme.
func decodeScheme(r io.Reader, policy EmptyClassPolicy) (*Scheme, error) {
	if !policy.Valid() {
		return nil, eris.Wrapf(ErrInvalidPolicy, "got %d", int(policy))
	}

	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "lcc: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var doc xmlDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, parseErr("decode: %v", err)
	}

	switch {
	case doc.Metadata == nil:
		return nil, parseErr("missing <metadata> section")
	case doc.Values == nil:
		return nil, parseErr("missing <values> section")
	case doc.Classes == nil:
		return nil, parseErr("missing <classes> section")
	}

	coefficients, err := buildCoefficients(doc.Coefficients)
	if err != nil {
		return nil, err
	}

	values, err := buildValues(doc.Values.Items)
	if err != nil {
		return nil, err
	}

	b := &treeBuilder{
		values: values,
		byID:   make(map[ClassID]int),
	}
	for _, xc := range doc.Classes.Items {
		if err := b.flatten(xc, -1, 0); err != nil {
			return nil, err
		}
	}
	b.aggregate(policy)

	s := b.scheme()
	s.metadata = Metadata{
		Name:        strings.TrimSpace(doc.Metadata.Name),
		Description: strings.TrimSpace(doc.Metadata.Description),
	}
	s.coefficients = coefficients
	return s, nil
}

func buildCoefficients(xc *xmlCoefficients) ([]Coefficient, error) {
	if xc == nil {
		return nil, nil
	}
	seen := make(map[string]bool, len(xc.Items))
	out := make([]Coefficient, 0, len(xc.Items))
	for _, c := range xc.Items {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return nil, parseErr("coefficient without id")
		}
		if seen[id] {
			return nil, parseErr("duplicate coefficient id %q", id)
		}
		seen[id] = true

		method, err := ParseCoefficientMethod(c.Method)
		if err != nil {
			return nil, parseErr("coefficient %q: %v", id, err)
		}
		out = append(out, Coefficient{
			ID:        id,
			Name:      c.Name,
			FieldName: strings.TrimSpace(c.FieldName),
			Method:    method,
		})
	}
	return out, nil
}

func buildValues(items []xmlValue) (ValueTable, error) {
	entries := make([]ValueEntry, 0, len(items))
	seen := make(map[ValueCode]bool, len(items))
	for _, v := range items {
		code, err := parseCode(v.ID)
		if err != nil {
			return ValueTable{}, parseErr("value %q: %v", v.ID, err)
		}
		if seen[code] {
			return ValueTable{}, parseErr("duplicate value id %d", code)
		}
		seen[code] = true

		var coefs map[string]float64
		for _, c := range v.Coefficients {
			f, err := strconv.ParseFloat(strings.TrimSpace(c.Value), 64)
			if err != nil {
				return ValueTable{}, parseErr("value %d coefficient %q: %v", code, c.ID, err)
			}
			if coefs == nil {
				coefs = make(map[string]float64, len(v.Coefficients))
			}
			coefs[strings.TrimSpace(c.ID)] = f
		}

		entries = append(entries, ValueEntry{
			Code:         code,
			Name:         v.Name,
			Excluded:     parseExcluded(v.Excluded),
			Coefficients: coefs,
		})
	}
	return newValueTable(entries), nil
}

func parseCode(raw string) (ValueCode, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, eris.Errorf("id %q is not an integer", raw)
	}
	return ValueCode(n), nil
}

// treeBuilder flattens the nested class elements into an arena in pre-order.
// Every child therefore sits after its parent, and a reverse walk over the
// arena visits children before parents.
type treeBuilder struct {
	values   ValueTable
	classes  []Class
	children [][]int
	byID     map[ClassID]int
}

func (b *treeBuilder) flatten(xc xmlClass, parent, depth int) error {
	c := Class{
		depth:      depth,
		Attributes: map[string]string{},
	}
	for _, a := range xc.Attrs {
		switch a.Name.Local {
		case "id":
			c.ID = ClassID(strings.TrimSpace(a.Value))
		case "name":
			c.Name = a.Value
		case "filter":
			c.Filter = strings.TrimSpace(a.Value)
		default:
			c.Attributes[a.Name.Local] = a.Value
		}
	}
	if c.ID == "" {
		return parseErr("class without id at depth %d", depth)
	}
	if _, dup := b.byID[c.ID]; dup {
		return parseErr("duplicate class id %q", c.ID)
	}
	if len(c.Attributes) == 0 {
		c.Attributes = nil
	}
	c.Overrides = overridesFrom(c.Attributes)

	for _, ref := range xc.Values {
		code, err := parseCode(ref.ID)
		if err != nil {
			return parseErr("class %q value: %v", c.ID, err)
		}
		if _, ok := b.values.Lookup(code); !ok {
			return parseErr("class %q references undefined value %d", c.ID, code)
		}
		c.Values = append(c.Values, code)
	}
	slices.Sort(c.Values)
	c.Values = slices.Compact(c.Values)

	idx := len(b.classes)
	b.classes = append(b.classes, c)
	b.children = append(b.children, nil)
	b.byID[c.ID] = idx
	if parent >= 0 {
		b.children[parent] = append(b.children[parent], idx)
	}

	for _, child := range xc.Classes {
		if err := b.flatten(child, idx, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// aggregate computes every class aggregate from its own values and the
// already-computed aggregates of its children.
func (b *treeBuilder) aggregate(policy EmptyClassPolicy) {
	for i := len(b.classes) - 1; i >= 0; i-- {
		c := &b.classes[i]

		set := make(map[ValueCode]struct{}, len(c.Values))
		for _, v := range c.Values {
			if !b.values.IsExcluded(v) {
				set[v] = struct{}{}
			}
		}

		c.ChildIDs = nil
		c.AggregateClassIDs = nil
		for _, ci := range b.children[i] {
			child := &b.classes[ci]
			if child.dropped {
				continue
			}
			for _, v := range child.AggregateValues {
				set[v] = struct{}{}
			}
			c.ChildIDs = append(c.ChildIDs, child.ID)
			c.AggregateClassIDs = append(c.AggregateClassIDs, child.ID)
			c.AggregateClassIDs = append(c.AggregateClassIDs, child.AggregateClassIDs...)
		}

		c.AggregateValues = make([]ValueCode, 0, len(set))
		for v := range set {
			c.AggregateValues = append(c.AggregateValues, v)
		}
		slices.Sort(c.AggregateValues)

		if policy == DropEmptyClasses && len(c.AggregateValues) == 0 {
			c.dropped = true
		}
	}
}

// scheme compacts the arena, leaving out dropped classes.
func (b *treeBuilder) scheme() *Scheme {
	s := &Scheme{
		values: b.values,
		byID:   make(map[ClassID]int, len(b.classes)),
	}
	for _, c := range b.classes {
		if c.dropped {
			continue
		}
		s.byID[c.ID] = len(s.classes)
		if c.depth == 0 {
			s.roots = append(s.roots, len(s.classes))
		}
		s.classes = append(s.classes, c)
	}
	return s
}
