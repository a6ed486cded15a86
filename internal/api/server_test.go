package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/USEPA/ATtILA2-sub000/internal/diag"
	"github.com/USEPA/ATtILA2-sub000/internal/lcc"
)

func newTestServer(t *testing.T, loaded bool) *httptest.Server {
	t.Helper()
	doc := &lcc.Document{}
	if loaded {
		require.NoError(t, doc.LoadFile("../lcc/testdata/nlcd.lcc", lcc.KeepEmptyClasses))
	}
	srv := httptest.NewServer(New(doc, Options{
		Defaults: Defaults{MaxFieldLength: 10, OverlapTolerance: 5, Concurrency: 2, UnitField: "HUC12"},
	}).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, false)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["scheme"])
}

func TestScheme(t *testing.T) {
	srv := newTestServer(t, true)
	resp, err := http.Get(srv.URL + "/v1/scheme")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body schemeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "NLCD 2001", body.Metadata.Name)
	assert.Len(t, body.Coefficients, 2)
	assert.NotEmpty(t, body.Classes)
	assert.Contains(t, body.Included, lcc.ValueCode(41))
	assert.NotContains(t, body.Included, lcc.ValueCode(11))
}

func TestScheme_NotLoaded(t *testing.T) {
	srv := newTestServer(t, false)
	resp, err := http.Get(srv.URL + "/v1/scheme")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestFields(t *testing.T) {
	srv := newTestServer(t, true)

	resp, body := post(t, srv, "/v1/fields", `{"family":"rlcp","classes":["for","wetl"],"add_area_fields":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"HUC12", "rfor", "rwetl", "for_A", "wetl_A", "LC_Effect", "LC_Excl", "LC_Overlap"}, body["columns"])

	resp, body = post(t, srv, "/v1/fields", `{"family":"lccc"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"HUC12", "PCTIA", "N_Load", "LC_Effect", "LC_Excl", "LC_Overlap"}, body["columns"])
}

func TestFields_Errors(t *testing.T) {
	srv := newTestServer(t, true)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"unknown class", `{"classes":["nope"]}`, http.StatusUnprocessableEntity},
		{"unknown family", `{"family":"xyz"}`, http.StatusUnprocessableEntity},
		{"limit too small", `{"classes":["for"],"max_field_length":2}`, http.StatusUnprocessableEntity},
		{"bad json", `{`, http.StatusBadRequest},
		{"unknown field", `{"colour":"red"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, srv, "/v1/fields", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestProportions(t *testing.T) {
	srv := newTestServer(t, true)

	resp, err := http.Post(srv.URL+"/v1/proportions", "application/json", bytes.NewBufferString(`{
		"family": "lcp",
		"units": [
			{"id": "u1", "nominal_area": 100, "histogram": {"41": 30, "21": 10, "11": 60}},
			{"id": "u2", "nominal_area": 100, "histogram": {"41": 50, "999": 50}}
		]
	}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body proportionsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "HUC12", body.Columns[0])
	require.Len(t, body.Rows, 2)
	assert.Equal(t, "u1", body.Rows[0].UnitID)
	assert.InDeltaSlice(t, []float64{75, 75, 0, 25, 25, 0, -1, 40, 60, 100}, body.Rows[0].Values, 1e-9)
	assert.Equal(t, 2, body.Summary.Units)

	var undefined int
	for _, w := range body.Warnings {
		if w.Kind == diag.UndefinedValue {
			undefined++
			assert.Equal(t, "u2", w.Unit)
		}
	}
	assert.Equal(t, 1, undefined)
}

func TestProportions_Errors(t *testing.T) {
	srv := newTestServer(t, true)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"no units", `{"units":[]}`, http.StatusBadRequest},
		{"blank id", `{"units":[{"id":"","nominal_area":1}]}`, http.StatusBadRequest},
		{"duplicate id", `{"units":[{"id":"a","nominal_area":1},{"id":"a","nominal_area":1}]}`, http.StatusBadRequest},
		{"negative area", `{"units":[{"id":"a","nominal_area":1,"histogram":{"41":-1}}]}`, http.StatusBadRequest},
		{"bad code", `{"units":[{"id":"a","nominal_area":1,"histogram":{"x":1}}]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, srv, "/v1/proportions", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, true)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/v1/fields", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
