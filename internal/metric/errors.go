package metric

import (
	"errors"

	"github.com/USEPA/ATtILA2-sub000/internal/lcc"
	"github.com/USEPA/ATtILA2-sub000/internal/schema"
)

// IsSchemaError reports whether err stops a run because the requested output
// cannot be produced: an unknown class or coefficient, or a field length limit
// too small to name the columns.
func IsSchemaError(err error) bool {
	return errors.Is(err, lcc.ErrUnknownClass) ||
		errors.Is(err, lcc.ErrUnknownCoefficient) ||
		errors.Is(err, schema.ErrFieldLength)
}
