package lcc

import (
	"strings"

	"github.com/rotisserie/eris"
)

// EmptyClassPolicy decides whether classes without any included value survive
// parsing. The zero value is invalid so callers always choose one.
type EmptyClassPolicy int

const (
	_ EmptyClassPolicy = iota
	// KeepEmptyClasses retains empty classes; their percentages come out undefined.
	KeepEmptyClasses
	// DropEmptyClasses removes empty classes from the tree and the class lookup.
	DropEmptyClasses
)

func (p EmptyClassPolicy) String() string {
	switch p {
	case KeepEmptyClasses:
		return "keep"
	case DropEmptyClasses:
		return "drop"
	default:
		return "unset"
	}
}

// Valid reports whether p is one of the declared policies.
func (p EmptyClassPolicy) Valid() bool {
	return p == KeepEmptyClasses || p == DropEmptyClasses
}

// ParseEmptyClassPolicy converts "keep" or "drop" into a policy.
func ParseEmptyClassPolicy(s string) (EmptyClassPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keep":
		return KeepEmptyClasses, nil
	case "drop":
		return DropEmptyClasses, nil
	default:
		return 0, eris.Wrapf(ErrInvalidPolicy, "unknown policy %q (want keep or drop)", s)
	}
}
