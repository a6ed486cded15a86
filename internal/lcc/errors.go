package lcc

import "github.com/rotisserie/eris"

// Sentinel errors returned by document loading and lookup.
var (
	// ErrParse marks a classification document that is missing a required
	// section or holds malformed content. Nothing is installed when it occurs.
	ErrParse = eris.New("lcc: malformed classification document")

	// ErrNotLoaded is returned by queries against a document with no scheme installed.
	ErrNotLoaded = eris.New("lcc: no classification document loaded")

	// ErrUnknownClass is returned when a requested class id is not defined in the loaded scheme.
	ErrUnknownClass = eris.New("lcc: class not defined in scheme")

	// ErrUnknownCoefficient is returned when a requested coefficient id is not in the coefficient table.
	ErrUnknownCoefficient = eris.New("lcc: coefficient not defined in scheme")

	// ErrInvalidPolicy is returned when Load is called without an explicit empty class policy.
	ErrInvalidPolicy = eris.New("lcc: empty class policy must be set explicitly")
)
