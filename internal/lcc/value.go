package lcc

import (
	"slices"
	"strconv"
	"strings"
)

// ValueCode is an integer land-cover raster code.
type ValueCode int

// String returns the decimal form of the code.
func (c ValueCode) String() string {
	return strconv.Itoa(int(c))
}

// ValueEntry describes one raster code of a classification scheme.
type ValueEntry struct {
	Code         ValueCode          `json:"code" yaml:"code"`
	Name         string             `json:"name" yaml:"name"`
	Excluded     bool               `json:"excluded" yaml:"excluded"`
	Coefficients map[string]float64 `json:"coefficients,omitempty" yaml:"coefficients,omitempty"`
}

// Coefficient returns the value of the named coefficient for this entry.
func (e ValueEntry) Coefficient(id string) (float64, bool) {
	v, ok := e.Coefficients[id]
	return v, ok
}

// ValueTable is an indexed, read-only collection of value entries.
type ValueTable struct {
	entries []ValueEntry
	byCode  map[ValueCode]int
}

func newValueTable(entries []ValueEntry) ValueTable {
	t := ValueTable{
		entries: entries,
		byCode:  make(map[ValueCode]int, len(entries)),
	}
	for i, e := range entries {
		t.byCode[e.Code] = i
	}
	return t
}

// Len returns the number of entries in the table.
func (t ValueTable) Len() int {
	return len(t.entries)
}

// Lookup returns the entry for code, or false if the code is not defined.
func (t ValueTable) Lookup(code ValueCode) (ValueEntry, bool) {
	i, ok := t.byCode[code]
	if !ok {
		return ValueEntry{}, false
	}
	return t.entries[i], true
}

// IsExcluded reports whether code is defined and flagged excluded.
// Codes missing from the table are not excluded.
func (t ValueTable) IsExcluded(code ValueCode) bool {
	e, ok := t.Lookup(code)
	return ok && e.Excluded
}

// Entries returns the entries in document order.
func (t ValueTable) Entries() []ValueEntry {
	out := make([]ValueEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Codes returns codes matching the excluded flag, sorted ascending.
func (t ValueTable) Codes(excluded bool) []ValueCode {
	var codes []ValueCode
	for _, e := range t.entries {
		if e.Excluded == excluded {
			codes = append(codes, e.Code)
		}
	}
	slices.Sort(codes)
	return codes
}

// parseExcluded interprets the boolean-like values accepted by the excluded
// attribute. Anything unrecognised means not excluded.
func parseExcluded(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "t", "1", "yes", "y":
		return true
	default:
		return false
	}
}
