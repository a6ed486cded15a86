package metric

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/USEPA/ATtILA2-sub000/internal/diag"
	"github.com/USEPA/ATtILA2-sub000/internal/lcc"
	"github.com/USEPA/ATtILA2-sub000/internal/output"
	"github.com/USEPA/ATtILA2-sub000/internal/zonal"
)

const defaultConcurrency = 4

// UnitSource enumerates reporting unit ids in output order.
type UnitSource interface {
	UnitIDs() []string
}

// AreaProvider returns the nominal (polygon) area of a reporting unit.
type AreaProvider interface {
	NominalArea(ctx context.Context, unitID string) (float64, error)
}

// HistogramProvider returns the tabulated grid area per value code of a
// reporting unit. A nil histogram with a nil error means the unit was not
// tabulated at all.
type HistogramProvider interface {
	Histogram(ctx context.Context, unitID string) (zonal.Histogram, error)
}

// Sources bundles the collaborators a run reads from.
type Sources struct {
	Units      UnitSource
	Areas      AreaProvider
	Histograms HistogramProvider
}

// Options configures a run.
type Options struct {
	Family           Family
	ClassIDs         []lcc.ClassID
	Coefficients     []string
	AddAreaFields    bool
	MaxFieldLength   int
	OverlapTolerance float64
	Concurrency      int
	UnitField        string
	Sink             diag.Sink
}

// Summary describes a finished run.
type Summary struct {
	RunID     string            `json:"run_id"`
	Scheme    string            `json:"scheme"`
	Family    string            `json:"family"`
	Units     int               `json:"units"`
	Layout    Layout            `json:"layout"`
	Warnings  map[diag.Kind]int `json:"warnings"`
	StartedAt time.Time         `json:"started_at"`
	Elapsed   time.Duration     `json:"elapsed"`
}

// Run evaluates every reporting unit and writes one row per unit to w, in the
// order the unit source lists them. Units are evaluated concurrently; a single
// failing unit aborts the run. The caller owns w and must close it.
func Run(ctx context.Context, scheme *lcc.Scheme, opts Options, src Sources, w output.Writer) (*Summary, error) {
	start := time.Now()
	if scheme == nil {
		return nil, lcc.ErrNotLoaded
	}
	if src.Units == nil || src.Areas == nil || src.Histograms == nil {
		return nil, eris.New("metric: units, areas and histograms are all required")
	}

	runID := uuid.New().String()
	log := zap.L().With(
		zap.String("component", "metric"),
		zap.String("run_id", runID),
		zap.String("family", opts.Family.Name),
	)

	collector := &diag.Collector{}
	sink := diag.Tee(collector, opts.Sink)

	engine, layout, err := plan(scheme, opts, sink)
	if err != nil {
		return nil, err
	}

	ids := src.Units.UnitIDs()
	log.Info("starting metric run",
		zap.String("scheme", scheme.Metadata().Name),
		zap.Int("units", len(ids)),
		zap.Int("classes", len(layout.Percent)),
		zap.Int("coefficients", len(layout.Coefficients)),
	)

	results, err := evaluate(ctx, engine, ids, src, opts.Concurrency, sink)
	if err != nil {
		return nil, err
	}

	if err := w.WriteHeader(layout.Columns()); err != nil {
		return nil, eris.Wrap(err, "metric: write header")
	}
	for _, res := range results {
		if err := w.WriteRow(layout.Row(res)); err != nil {
			return nil, eris.Wrapf(err, "metric: write unit %s", res.UnitID)
		}
	}

	summary := &Summary{
		RunID:     runID,
		Scheme:    scheme.Metadata().Name,
		Family:    opts.Family.Name,
		Units:     len(results),
		Layout:    layout,
		Warnings:  collector.Counts(),
		StartedAt: start,
		Elapsed:   time.Since(start),
	}
	log.Info("metric run complete",
		zap.Int("units", summary.Units),
		zap.Int("warnings", len(collector.Warnings())),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

// Plan resolves the output layout a run with opts would write, without
// evaluating any unit. Naming warnings go to opts.Sink.
func Plan(scheme *lcc.Scheme, opts Options) (Layout, error) {
	if scheme == nil {
		return Layout{}, lcc.ErrNotLoaded
	}
	_, layout, err := plan(scheme, opts, diag.OrDiscard(opts.Sink))
	return layout, err
}

func plan(scheme *lcc.Scheme, opts Options, sink diag.Sink) (*zonal.Engine, Layout, error) {
	classIDs := opts.ClassIDs
	if len(classIDs) == 0 && opts.Family.Override != nil {
		classIDs = DefaultClasses(scheme, opts.Family)
	}
	coefficients := opts.Coefficients
	if len(coefficients) == 0 && opts.Family.Name == LCCC.Name {
		for _, c := range scheme.Coefficients() {
			coefficients = append(coefficients, c.ID)
		}
	}

	engine, err := zonal.NewEngine(scheme, classIDs, zonal.Options{
		OverlapTolerance: opts.OverlapTolerance,
		Coefficients:     coefficients,
		Sink:             sink,
	})
	if err != nil {
		return nil, Layout{}, eris.Wrap(err, "metric: build engine")
	}

	layout, err := NewLayout(engine, LayoutOptions{
		Family:         opts.Family,
		UnitField:      opts.UnitField,
		MaxFieldLength: opts.MaxFieldLength,
		AddAreaFields:  opts.AddAreaFields,
		Sink:           sink,
	})
	if err != nil {
		return nil, Layout{}, err
	}
	return engine, layout, nil
}

// evaluate computes every unit. Results keep the order of ids.
func evaluate(ctx context.Context, engine *zonal.Engine, ids []string, src Sources, concurrency int, sink diag.Sink) ([]zonal.Result, error) {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	results := make([]zonal.Result, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			hist, err := src.Histograms.Histogram(gctx, id)
			if err != nil {
				return eris.Wrapf(err, "metric: histogram for unit %s", id)
			}
			if hist == nil {
				sink.Report(diag.Warning{
					Kind:    diag.MissingTabulation,
					Unit:    id,
					Message: fmt.Sprintf("reporting unit %s has no tabulated grid area", id),
				})
				hist = zonal.Histogram{}
			}

			area, err := src.Areas.NominalArea(gctx, id)
			if err != nil {
				return eris.Wrapf(err, "metric: nominal area for unit %s", id)
			}

			res, err := engine.Compute(zonal.Unit{ID: id, NominalArea: area, Histogram: hist})
			if err != nil {
				return eris.Wrapf(err, "metric: compute unit %s", id)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
