// Package schema derives unique, length-bounded output column names for the
// classes and coefficients selected in a metric run.
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/USEPA/ATtILA2-sub000/internal/diag"
)

// ErrFieldLength is returned when the length limit cannot hold even the
// shortest name the resolver is able to produce.
var ErrFieldLength = eris.New("schema: field length limit too small")

// Request asks for one output column. Key is the class or coefficient id;
// Override, when set, is used instead of the generated name.
type Request struct {
	Key      string
	Override string
}

// Field is a resolved column. Proposed is the name before truncation and
// collision handling.
type Field struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Proposed string `json:"proposed"`
}

// Resolver assigns names. Generated names are Prefix + Key + Suffix with only the
// key portion truncated. Names compare case-insensitively, as dBase and most GIS
// tables do, and Reserved names are never handed out.
type Resolver struct {
	MaxLen   int
	Prefix   string
	Suffix   string
	Reserved []string
	Sink     diag.Sink
}

// Resolve names every request in order. The output depends only on the request
// order, the requests and the resolver settings.
func (r Resolver) Resolve(reqs []Request) ([]Field, error) {
	if r.MaxLen < 1 {
		return nil, eris.Wrapf(ErrFieldLength, "max length %d", r.MaxLen)
	}
	sink := diag.OrDiscard(r.Sink)

	taken := make(map[string]bool, len(reqs)+len(r.Reserved))
	for _, name := range r.Reserved {
		taken[strings.ToUpper(name)] = true
	}

	out := make([]Field, 0, len(reqs))
	for _, req := range reqs {
		f, err := r.resolve(req, taken)
		if err != nil {
			return nil, err
		}
		taken[strings.ToUpper(f.Name)] = true
		out = append(out, f.Field)

		if f.Name == f.Proposed {
			continue
		}
		kind := diag.FieldTruncated
		if f.renamed {
			kind = diag.FieldRenamed
		}
		sink.Report(diag.Warning{
			Kind:    kind,
			Subject: req.Key,
			From:    f.Proposed,
			To:      f.Name,
			Message: fmt.Sprintf("output field for %q written as %q instead of %q", req.Key, f.Name, f.Proposed),
		})
	}
	return out, nil
}

type resolved struct {
	Field
	renamed bool
}

func (r Resolver) resolve(req Request, taken map[string]bool) (resolved, error) {
	var f resolved
	f.Key = req.Key

	if req.Override != "" {
		f.Proposed = req.Override
		clean := sanitize(req.Override)
		f.renamed = clean != req.Override
		f.Name = truncate(clean, r.MaxLen)
	} else {
		room := r.MaxLen - len(r.Prefix) - len(r.Suffix)
		if room < 1 {
			return f, eris.Wrapf(ErrFieldLength, "max length %d cannot hold prefix %q and suffix %q", r.MaxLen, r.Prefix, r.Suffix)
		}
		f.Proposed = r.Prefix + req.Key + r.Suffix
		clean := sanitize(req.Key)
		f.renamed = clean != req.Key
		f.Name = r.Prefix + truncate(clean, room) + r.Suffix
	}

	if !taken[strings.ToUpper(f.Name)] {
		return f, nil
	}

	name, err := r.number(f.Name, taken)
	if err != nil {
		return f, err
	}
	f.Name = name
	f.renamed = true
	return f, nil
}

// number shortens base as needed and appends 1, 2, ... until the result is
// free. The number itself is never cut.
func (r Resolver) number(base string, taken map[string]bool) (string, error) {
	for n := 1; ; n++ {
		digits := strconv.Itoa(n)
		if len(digits) >= r.MaxLen {
			return "", eris.Wrapf(ErrFieldLength, "no unique name left for %q within %d characters", base, r.MaxLen)
		}
		candidate := truncate(base, r.MaxLen-len(digits)) + digits
		if !taken[strings.ToUpper(candidate)] {
			return candidate, nil
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// sanitize replaces every character that is not an ASCII letter, digit or
// underscore with an underscore.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
