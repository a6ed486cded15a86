package schema

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/USEPA/ATtILA2-sub000/internal/diag"
)

func names(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

func TestResolve_TruncationCollision(t *testing.T) {
	var sink diag.Collector
	r := Resolver{MaxLen: 10, Prefix: "p", Sink: &sink}

	fields, err := r.Resolve([]Request{
		{Key: "agricultural_cropland_area"},
		{Key: "agricultural_cropland_alt"},
	})
	require.NoError(t, err)
	require.Len(t, fields, 2)

	assert.Equal(t, "pagricultu", fields[0].Name)
	assert.Equal(t, "pagricult1", fields[1].Name)
	assert.NotEqual(t, fields[0].Name, fields[1].Name)
	for _, f := range fields {
		assert.LessOrEqual(t, len(f.Name), 10)
	}

	warnings := sink.Warnings()
	require.Len(t, warnings, 2)
	assert.Equal(t, diag.FieldTruncated, warnings[0].Kind)
	assert.Equal(t, "pagricultural_cropland_area", warnings[0].From)
	assert.Equal(t, "pagricultu", warnings[0].To)
	assert.Equal(t, diag.FieldRenamed, warnings[1].Kind)
	assert.Equal(t, "pagricultural_cropland_alt", warnings[1].From)
	assert.Equal(t, "pagricult1", warnings[1].To)
}

func TestResolve_PrefixSuffixPreserved(t *testing.T) {
	r := Resolver{MaxLen: 8, Prefix: "p", Suffix: "_A"}

	fields, err := r.Resolve([]Request{{Key: "forest"}, {Key: "for"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"pfores_A", "pfor_A"}, names(fields))
	assert.Equal(t, "pforest_A", fields[0].Proposed)
}

func TestResolve_Overrides(t *testing.T) {
	var sink diag.Collector
	r := Resolver{MaxLen: 10, Prefix: "p", Sink: &sink}

	fields, err := r.Resolve([]Request{
		{Key: "NI", Override: "NINDEX"},
		{Key: "UI", Override: "HUMAN_INDEX_TOTAL"},
		{Key: "for"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"NINDEX", "HUMAN_INDE", "pfor"}, names(fields))

	require.Len(t, sink.Warnings(), 1)
	assert.Equal(t, diag.FieldTruncated, sink.Warnings()[0].Kind)
	assert.Equal(t, "UI", sink.Warnings()[0].Subject)
}

func TestResolve_OverrideCollidesWithGenerated(t *testing.T) {
	r := Resolver{MaxLen: 10, Prefix: "p"}

	fields, err := r.Resolve([]Request{
		{Key: "for"},
		{Key: "forest", Override: "PFOR"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"pfor", "PFOR1"}, names(fields))
}

func TestResolve_ReservedNames(t *testing.T) {
	r := Resolver{MaxLen: 10, Reserved: []string{"LC_Overlap", "HUC12"}}

	fields, err := r.Resolve([]Request{{Key: "lc_overlap"}, {Key: "huc12"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"lc_overla1", "huc121"}, names(fields))
}

func TestResolve_Sanitizes(t *testing.T) {
	var sink diag.Collector
	r := Resolver{MaxLen: 12, Prefix: "p", Sink: &sink}

	fields, err := r.Resolve([]Request{{Key: "dev-high"}, {Key: "crop land"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"pdev_high", "pcrop_land"}, names(fields))
	assert.Len(t, sink.Of(diag.FieldRenamed), 2)
}

func TestResolve_UniqueAndBounded(t *testing.T) {
	var reqs []Request
	for i := 0; i < 150; i++ {
		reqs = append(reqs, Request{Key: fmt.Sprintf("wetland_emergent_%03d", i%7)})
	}
	r := Resolver{MaxLen: 6, Prefix: "p"}

	fields, err := r.Resolve(reqs)
	require.NoError(t, err)
	require.Len(t, fields, len(reqs))

	seen := map[string]bool{}
	for _, f := range fields {
		assert.LessOrEqual(t, len(f.Name), 6)
		key := strings.ToUpper(f.Name)
		assert.False(t, seen[key], "duplicate %s", f.Name)
		seen[key] = true
	}
}

func TestResolve_Deterministic(t *testing.T) {
	reqs := []Request{
		{Key: "agricultural_cropland_area"},
		{Key: "agricultural_cropland_alt"},
		{Key: "NI", Override: "NINDEX"},
		{Key: "agricultural_pasture"},
	}
	r := Resolver{MaxLen: 10, Prefix: "p", Reserved: []string{"LC_Excl"}}

	first, err := r.Resolve(reqs)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Resolve(reqs)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolve_LengthErrors(t *testing.T) {
	tests := []struct {
		name string
		r    Resolver
		reqs []Request
	}{
		{"zero limit", Resolver{MaxLen: 0}, []Request{{Key: "a"}}},
		{"prefix and suffix fill limit", Resolver{MaxLen: 3, Prefix: "p", Suffix: "_A"}, []Request{{Key: "a"}}},
		{"no room for number", Resolver{MaxLen: 1}, []Request{{Key: "a"}, {Key: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.r.Resolve(tt.reqs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFieldLength))
		})
	}
}
