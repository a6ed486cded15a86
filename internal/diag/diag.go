// Package diag carries data-quality warnings from the metric core to operators.
// Warnings never influence control flow.
package diag

import (
	"sync"

	"go.uber.org/zap"
)

// Kind classifies a warning.
type Kind string

// Warning kinds.
const (
	UndefinedValue       Kind = "undefined_value"
	EmptyClass           Kind = "empty_class"
	OverlapOutOfRange    Kind = "overlap_out_of_range"
	ZeroOverlap          Kind = "zero_overlap"
	UndefinedNominalArea Kind = "undefined_nominal_area"
	MissingTabulation    Kind = "missing_tabulation"
	FieldTruncated       Kind = "field_truncated"
	FieldRenamed         Kind = "field_renamed"
	SkippedUnit          Kind = "skipped_unit"
)

// Warning is one data-quality observation.
type Warning struct {
	Kind    Kind    `json:"kind"`
	Unit    string  `json:"unit,omitempty"`
	Subject string  `json:"subject,omitempty"`
	From    string  `json:"from,omitempty"`
	To      string  `json:"to,omitempty"`
	Value   float64 `json:"value,omitempty"`
	Message string  `json:"message"`
}

// Sink receives warnings. Implementations must be safe for concurrent use.
type Sink interface {
	Report(w Warning)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Warning)

// Report calls f(w).
func (f SinkFunc) Report(w Warning) { f(w) }

// Discard drops every warning.
var Discard Sink = SinkFunc(func(Warning) {})

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// ZapSink logs warnings at warn level.
type ZapSink struct {
	log *zap.Logger
}

// NewZapSink returns a sink writing to log, or to the global logger when log is nil.
func NewZapSink(log *zap.Logger) *ZapSink {
	if log == nil {
		log = zap.L()
	}
	return &ZapSink{log: log.With(zap.String("component", "diag"))}
}

// Report logs w.
func (z *ZapSink) Report(w Warning) {
	fields := []zap.Field{zap.String("kind", string(w.Kind))}
	if w.Unit != "" {
		fields = append(fields, zap.String("unit", w.Unit))
	}
	if w.Subject != "" {
		fields = append(fields, zap.String("subject", w.Subject))
	}
	if w.From != "" || w.To != "" {
		fields = append(fields, zap.String("from", w.From), zap.String("to", w.To))
	}
	if w.Value != 0 {
		fields = append(fields, zap.Float64("value", w.Value))
	}
	z.log.Warn(w.Message, fields...)
}

// Collector keeps every warning in arrival order.
type Collector struct {
	mu       sync.Mutex
	warnings []Warning
}

// Report records w.
func (c *Collector) Report(w Warning) {
	c.mu.Lock()
	c.warnings = append(c.warnings, w)
	c.mu.Unlock()
}

// Warnings returns a copy of the recorded warnings.
func (c *Collector) Warnings() []Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Warning, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// Of returns the recorded warnings of one kind.
func (c *Collector) Of(kind Kind) []Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Warning
	for _, w := range c.warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

// Counts returns the number of warnings per kind.
func (c *Collector) Counts() map[Kind]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[Kind]int)
	for _, w := range c.warnings {
		out[w.Kind]++
	}
	return out
}

// Tee fans every warning out to all sinks.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(w Warning) {
		for _, s := range sinks {
			if s != nil {
				s.Report(w)
			}
		}
	})
}
