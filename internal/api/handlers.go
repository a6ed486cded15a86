package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/USEPA/ATtILA2-sub000/internal/diag"
	"github.com/USEPA/ATtILA2-sub000/internal/lcc"
	"github.com/USEPA/ATtILA2-sub000/internal/metric"
	"github.com/USEPA/ATtILA2-sub000/internal/output"
	"github.com/USEPA/ATtILA2-sub000/internal/zonal"
)

var (
	errBadRequest    = eris.New("api: bad request")
	errUnknownFamily = eris.New("api: unknown metric family")
)

// runRequest selects what to compute. Family is lcp, rlcp, splcp, lcosp or
// lccc; nil pointers take the server defaults.
type runRequest struct {
	Family           string        `json:"family"`
	Classes          []lcc.ClassID `json:"classes"`
	Coefficients     []string      `json:"coefficients"`
	AddAreaFields    bool          `json:"add_area_fields"`
	MaxFieldLength   *int          `json:"max_field_length"`
	OverlapTolerance *float64      `json:"overlap_tolerance"`
	UnitField        string        `json:"unit_field"`
}

func (s *Server) options(req runRequest, sink diag.Sink) (metric.Options, error) {
	opts := metric.Options{
		ClassIDs:         req.Classes,
		Coefficients:     req.Coefficients,
		AddAreaFields:    req.AddAreaFields,
		MaxFieldLength:   s.opts.Defaults.MaxFieldLength,
		OverlapTolerance: s.opts.Defaults.OverlapTolerance,
		Concurrency:      s.opts.Defaults.Concurrency,
		UnitField:        req.UnitField,
		Sink:             sink,
	}
	if req.MaxFieldLength != nil {
		opts.MaxFieldLength = *req.MaxFieldLength
	}
	if req.OverlapTolerance != nil {
		opts.OverlapTolerance = *req.OverlapTolerance
	}
	if opts.UnitField == "" {
		opts.UnitField = s.opts.Defaults.UnitField
	}
	if opts.UnitField == "" {
		opts.UnitField = "ID"
	}

	name := strings.ToLower(strings.TrimSpace(req.Family))
	switch name {
	case "", metric.LCP.Name:
		opts.Family = metric.LCP
	case metric.LCCC.Name:
		opts.Family = metric.LCCC
	default:
		f, err := metric.FamilyByName(name)
		if err != nil {
			return opts, eris.Wrap(errUnknownFamily, err.Error())
		}
		opts.Family = f
	}
	return opts, nil
}

type fieldsResponse struct {
	Layout   metric.Layout  `json:"layout"`
	Columns  []string       `json:"columns"`
	Warnings []diag.Warning `json:"warnings"`
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	scheme, err := s.doc.Scheme()
	if err != nil {
		s.writeError(w, err)
		return
	}

	var sink diag.Collector
	opts, err := s.options(req, &sink)
	if err != nil {
		s.writeError(w, err)
		return
	}
	layout, err := metric.Plan(scheme, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	cols := layout.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	writeJSON(w, http.StatusOK, fieldsResponse{
		Layout:   layout,
		Columns:  names,
		Warnings: nonNil(sink.Warnings()),
	})
}

// unitInput is one reporting unit with its tabulated histogram. Histogram keys
// are grid value codes.
type unitInput struct {
	ID          string          `json:"id"`
	NominalArea float64         `json:"nominal_area"`
	Histogram   zonal.Histogram `json:"histogram"`
}

type proportionsRequest struct {
	runRequest
	Units []unitInput `json:"units"`
}

type proportionsResponse struct {
	Summary  *metric.Summary `json:"summary"`
	Columns  []string        `json:"columns"`
	Rows     []jsonRow       `json:"rows"`
	Warnings []diag.Warning  `json:"warnings"`
}

type jsonRow struct {
	UnitID string    `json:"unit_id"`
	Values []float64 `json:"values"`
}

func (s *Server) handleProportions(w http.ResponseWriter, r *http.Request) {
	var req proportionsRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if len(req.Units) == 0 {
		s.writeError(w, eris.Wrap(errBadRequest, "no units"))
		return
	}
	scheme, err := s.doc.Scheme()
	if err != nil {
		s.writeError(w, err)
		return
	}

	var sink diag.Collector
	opts, err := s.options(req.runRequest, &sink)
	if err != nil {
		s.writeError(w, err)
		return
	}

	src, err := newRequestSource(req.Units)
	if err != nil {
		s.writeError(w, err)
		return
	}
	table := &tableWriter{}
	summary, err := metric.Run(r.Context(), scheme, opts, metric.Sources{
		Units:      src,
		Areas:      src,
		Histograms: src,
	}, table)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, proportionsResponse{
		Summary:  summary,
		Columns:  table.columns,
		Rows:     table.rows,
		Warnings: nonNil(sink.Warnings()),
	})
}

// requestSource serves units posted in a request body.
type requestSource struct {
	ids   []string
	units map[string]unitInput
}

func newRequestSource(in []unitInput) (*requestSource, error) {
	src := &requestSource{units: make(map[string]unitInput, len(in))}
	for _, u := range in {
		if u.ID == "" {
			return nil, eris.Wrap(errBadRequest, "unit id is required")
		}
		if _, dup := src.units[u.ID]; dup {
			return nil, eris.Wrapf(errBadRequest, "duplicate unit %q", u.ID)
		}
		src.ids = append(src.ids, u.ID)
		src.units[u.ID] = u
	}
	return src, nil
}

func (s *requestSource) UnitIDs() []string { return s.ids }

func (s *requestSource) NominalArea(_ context.Context, id string) (float64, error) {
	return s.units[id].NominalArea, nil
}

func (s *requestSource) Histogram(_ context.Context, id string) (zonal.Histogram, error) {
	return s.units[id].Histogram, nil
}

// tableWriter keeps the output table in memory for the response.
type tableWriter struct {
	columns []string
	rows    []jsonRow
}

func (t *tableWriter) WriteHeader(cols []output.Column) error {
	for _, c := range cols {
		t.columns = append(t.columns, c.Name)
	}
	return nil
}

func (t *tableWriter) WriteRow(row output.Row) error {
	t.rows = append(t.rows, jsonRow{UnitID: row.UnitID, Values: row.Values})
	return nil
}

func (t *tableWriter) Close() error { return nil }

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return eris.Wrapf(errBadRequest, "invalid request body: %v", err)
	}
	return nil
}

func nonNil(ws []diag.Warning) []diag.Warning {
	if ws == nil {
		return []diag.Warning{}
	}
	return ws
}
