package diag

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCollector_ConcurrentReports(t *testing.T) {
	var c Collector
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Report(Warning{Kind: UndefinedValue, Message: "undefined"})
		}()
	}
	wg.Wait()

	assert.Len(t, c.Warnings(), 50)
	assert.Equal(t, 50, c.Counts()[UndefinedValue])
	assert.Empty(t, c.Of(FieldRenamed))
}

func TestTee(t *testing.T) {
	var a, b Collector
	s := Tee(&a, nil, &b)
	s.Report(Warning{Kind: ZeroOverlap, Unit: "u1"})

	require.Len(t, a.Warnings(), 1)
	require.Len(t, b.Warnings(), 1)
	assert.Equal(t, "u1", b.Warnings()[0].Unit)
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))
	OrDiscard(nil).Report(Warning{Kind: EmptyClass})

	var c Collector
	assert.Same(t, &c, OrDiscard(&c))
}

func TestZapSink(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewZapSink(zap.New(core))

	s.Report(Warning{
		Kind:    FieldRenamed,
		Subject: "agricultural_cropland_alt",
		From:    "pagricultu",
		To:      "pagricult1",
		Message: "field renamed to keep names unique",
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "field renamed to keep names unique", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "field_renamed", ctx["kind"])
	assert.Equal(t, "pagricultu", ctx["from"])
	assert.Equal(t, "pagricult1", ctx["to"])
	assert.Equal(t, "diag", ctx["component"])
}
