// Package lcc models land cover classification schemes: raster value codes,
// the nested class hierarchy built on them and the coefficient table.
package lcc

import (
	"io"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FileExt is the conventional extension of classification documents.
const FileExt = ".lcc"

// Document holds the currently loaded Scheme. Loading replaces the scheme as a
// whole: the previous scheme and its cached aggregates are discarded before the
// new document is parsed, and the new scheme is published only once complete.
type Document struct {
	mu     sync.RWMutex
	scheme *Scheme
	source string
}

// Parse reads a classification document from r.
func Parse(r io.Reader, policy EmptyClassPolicy) (*Document, error) {
	d := &Document{}
	if err := d.Load(r, policy); err != nil {
		return nil, err
	}
	return d, nil
}

// ParseFile reads the classification document at path.
func ParseFile(path string, policy EmptyClassPolicy) (*Document, error) {
	d := &Document{}
	if err := d.LoadFile(path, policy); err != nil {
		return nil, err
	}
	return d, nil
}

// Load replaces the installed scheme with the document read from r. On error
// the document is left empty.
func (d *Document) Load(r io.Reader, policy EmptyClassPolicy) error {
	return d.load(r, "", policy)
}

// LoadFile replaces the installed scheme with the document at path.
func (d *Document) LoadFile(path string, policy EmptyClassPolicy) error {
	d.Reset()

	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "lcc: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return d.load(f, path, policy)
}

func (d *Document) load(r io.Reader, source string, policy EmptyClassPolicy) error {
	d.Reset()

	s, err := decodeScheme(r, policy)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.scheme = s
	d.source = source
	d.mu.Unlock()

	zap.L().Debug("lcc: scheme loaded",
		zap.String("name", s.metadata.Name),
		zap.String("source", source),
		zap.Stringer("empty_classes", policy),
		zap.Int("values", s.values.Len()),
		zap.Int("classes", len(s.classes)),
		zap.Int("coefficients", len(s.coefficients)),
	)
	return nil
}

// Reset uninstalls the current scheme.
func (d *Document) Reset() {
	d.mu.Lock()
	d.scheme = nil
	d.source = ""
	d.mu.Unlock()
}

// Loaded reports whether a scheme is installed.
func (d *Document) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.scheme != nil
}

// Source returns the path the scheme was loaded from, if any.
func (d *Document) Source() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.source
}

// Scheme returns the installed scheme. The returned value stays valid and
// unchanged even if the document is reloaded afterwards.
func (d *Document) Scheme() (*Scheme, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.scheme == nil {
		return nil, ErrNotLoaded
	}
	return d.scheme, nil
}

// IncludedValueIDs returns the included value codes of the installed scheme.
func (d *Document) IncludedValueIDs() ([]ValueCode, error) {
	s, err := d.Scheme()
	if err != nil {
		return nil, err
	}
	return s.IncludedValueIDs(), nil
}

// AllValueIDs returns the included and excluded value codes of the installed scheme.
func (d *Document) AllValueIDs() ([]ValueCode, error) {
	s, err := d.Scheme()
	if err != nil {
		return nil, err
	}
	return s.AllValueIDs(), nil
}
