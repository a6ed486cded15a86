package metric

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/USEPA/ATtILA2-sub000/internal/lcc"
	"github.com/USEPA/ATtILA2-sub000/internal/output"
	"github.com/USEPA/ATtILA2-sub000/internal/zonal"
)

var errBoom = errors.New("boom")

func nlcd(t *testing.T) *lcc.Scheme {
	t.Helper()
	doc, err := lcc.ParseFile("../lcc/testdata/nlcd.lcc", lcc.KeepEmptyClasses)
	require.NoError(t, err)
	s, err := doc.Scheme()
	require.NoError(t, err)
	return s
}

type memSource struct {
	ids   []string
	areas map[string]float64
	hists map[string]zonal.Histogram
	fail  string
}

func (m memSource) UnitIDs() []string { return m.ids }

func (m memSource) NominalArea(_ context.Context, id string) (float64, error) {
	return m.areas[id], nil
}

func (m memSource) Histogram(_ context.Context, id string) (zonal.Histogram, error) {
	if id == m.fail {
		return nil, errBoom
	}
	return m.hists[id], nil
}

func (m memSource) sources() Sources {
	return Sources{Units: m, Areas: m, Histograms: m}
}

type recordWriter struct {
	mu     sync.Mutex
	header []output.Column
	rows   []output.Row
	closed bool
}

func (w *recordWriter) WriteHeader(cols []output.Column) error {
	w.header = cols
	return nil
}

func (w *recordWriter) WriteRow(row output.Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, row)
	return nil
}

func (w *recordWriter) Close() error {
	w.closed = true
	return nil
}

func columnNames(cols []output.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}
