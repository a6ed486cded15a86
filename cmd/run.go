package main

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/USEPA/ATtILA2-sub000/internal/db"
	"github.com/USEPA/ATtILA2-sub000/internal/diag"
	"github.com/USEPA/ATtILA2-sub000/internal/fetcher"
	"github.com/USEPA/ATtILA2-sub000/internal/lcc"
	"github.com/USEPA/ATtILA2-sub000/internal/metric"
	"github.com/USEPA/ATtILA2-sub000/internal/output"
	"github.com/USEPA/ATtILA2-sub000/internal/tabulate"
	"github.com/USEPA/ATtILA2-sub000/internal/units"
)

// schemeFlags locate the classification document.
type schemeFlags struct {
	path         string
	emptyClasses string
}

func (f *schemeFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.path, "lcc", "", "classification file or URL (default from config lcc.path)")
	fs.StringVar(&f.emptyClasses, "empty-classes", "", "keep or drop classes without included values (default from config lcc.empty_classes)")
}

// policy resolves the empty class policy. It has no default.
func (f *schemeFlags) policy() (lcc.EmptyClassPolicy, error) {
	raw := f.emptyClasses
	if raw == "" {
		raw = cfg.LCC.EmptyClasses
	}
	if raw == "" {
		return 0, eris.Wrap(lcc.ErrInvalidPolicy, "set --empty-classes or lcc.empty_classes to keep or drop")
	}
	return lcc.ParseEmptyClassPolicy(raw)
}

// load reads the document, downloading it first when it is remote.
func (f *schemeFlags) load(ctx context.Context, loc *fetcher.Localizer) (*lcc.Document, error) {
	path := f.path
	if path == "" {
		path = cfg.LCC.Path
	}
	if path == "" {
		return nil, eris.New("set --lcc or lcc.path")
	}
	policy, err := f.policy()
	if err != nil {
		return nil, err
	}

	local, cleanup, err := loc.Localize(ctx, path)
	if err != nil {
		return nil, eris.Wrap(err, "locate classification")
	}
	defer cleanup()

	doc, err := lcc.ParseFile(local, policy)
	if err != nil {
		return nil, err
	}
	scheme, err := doc.Scheme()
	if err != nil {
		return nil, err
	}
	zap.L().Info("loaded classification",
		zap.String("source", path),
		zap.String("scheme", scheme.Metadata().Name),
		zap.Stringer("empty_classes", policy),
	)
	return doc, nil
}

func newLocalizer() *fetcher.Localizer {
	return &fetcher.Localizer{
		HTTP: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Fetch.MaxRetries,
		}),
		FTP: fetcher.NewFTPFetcher(fetcher.FTPOptions{Attempts: cfg.Fetch.MaxRetries}),
		Dir: cfg.Fetch.TempDir,
	}
}

// runFlags hold the inputs and output of a metric run.
type runFlags struct {
	scheme schemeFlags

	tabulation  string
	unitField   string
	valuePrefix string
	valueField  string
	areaField   string
	sheet       string

	units         string
	unitsIDField  string
	unitAreaField string

	output string
	format string
	table  string
	upsert bool

	concurrency      int
	maxFieldLength   int
	overlapTolerance float64
	areaFields       bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	f.scheme.register(cmd.Flags())

	fl := cmd.Flags()
	fl.StringVar(&f.tabulation, "tabulation", "", "zonal tabulation table (.csv, .txt or .xlsx; path or URL)")
	fl.StringVar(&f.unitField, "unit-field", "", "reporting unit id column (default from config tabulation.unit_field)")
	fl.StringVar(&f.valuePrefix, "value-prefix", "", "prefix of grid value columns in wide tables (default from config)")
	fl.StringVar(&f.valueField, "value-field", "", "grid value column of a long table")
	fl.StringVar(&f.areaField, "area-field", "", "area column of a long table")
	fl.StringVar(&f.sheet, "sheet", "", "worksheet name for .xlsx inputs")

	fl.StringVar(&f.units, "units", "", "reporting units: polygon shapefile (.shp or .zip) or area table; path or URL")
	fl.StringVar(&f.unitsIDField, "units-id-field", "", "id field of the reporting units (default: --unit-field)")
	fl.StringVar(&f.unitAreaField, "units-area-field", "", "area column when --units is a table")

	fl.StringVarP(&f.output, "output", "o", "", "output path or SQLite DSN; '-' writes CSV to stdout")
	fl.StringVar(&f.format, "format", "", "output format: csv, xlsx, shp, sqlite or postgres (default from config)")
	fl.StringVar(&f.table, "table", "", "table or sheet name (default from config output.table)")
	fl.BoolVar(&f.upsert, "upsert", false, "upsert into an existing postgres table keyed by unit id")

	fl.IntVar(&f.concurrency, "concurrency", 0, "units evaluated in parallel (default from config)")
	fl.IntVar(&f.maxFieldLength, "max-field-length", -1, "longest output field name; 0 for no limit (default from config and format)")
	fl.Float64Var(&f.overlapTolerance, "overlap-tolerance", -1, "percent distance from 100 before overlap is reported (default from config)")
	fl.BoolVar(&f.areaFields, "area-fields", false, "also write the area of every class")
}

func orString(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// runEnv holds everything a metric command needs. Close releases it.
type runEnv struct {
	doc      *lcc.Document
	sources  metric.Sources
	geometry output.GeometrySource
	format   output.Format
	closers  []func()
}

func (e *runEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// prepare loads the scheme and the input tables.
func (f *runFlags) prepare(ctx context.Context) (*runEnv, error) {
	env := &runEnv{}
	loc := newLocalizer()

	format, err := output.ParseFormat(orString(f.format, cfg.Output.Format))
	if err != nil {
		return nil, err
	}
	env.format = format

	env.doc, err = f.scheme.load(ctx, loc)
	if err != nil {
		return nil, err
	}

	if f.tabulation == "" {
		return nil, eris.New("--tabulation is required")
	}
	tabPath, cleanup, err := loc.Localize(ctx, f.tabulation)
	if err != nil {
		return nil, eris.Wrap(err, "locate tabulation")
	}
	env.closers = append(env.closers, cleanup)

	unitField := orString(f.unitField, cfg.Tabulation.UnitField)
	tableOpts := fetcher.TableOptions{XLSX: fetcher.XLSXOptions{SheetName: orString(f.sheet, cfg.Tabulation.Sheet)}}
	tab, err := tabulate.ReadFile(ctx, tabPath, tabulate.Options{
		UnitField:   unitField,
		ValuePrefix: orString(f.valuePrefix, cfg.Tabulation.ValuePrefix),
		ValueField:  orString(f.valueField, cfg.Tabulation.ValueField),
		AreaField:   orString(f.areaField, cfg.Tabulation.AreaField),
		Scale:       cfg.Tabulation.Scale,
		Table:       tableOpts,
	})
	if err != nil {
		env.Close()
		return nil, err
	}

	if f.units == "" {
		// The tabulation doubles as the unit list and its total as nominal area.
		env.sources = metric.Sources{Units: tab, Areas: tab, Histograms: tab}
		return env, nil
	}

	unitsPath, cleanup, err := loc.Localize(ctx, f.units)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "locate units")
	}
	env.closers = append(env.closers, cleanup)

	idField := orString(f.unitsIDField, orString(cfg.Units.IDField, unitField))
	var u *units.Units
	switch strings.ToLower(filepath.Ext(unitsPath)) {
	case ".shp", ".zip":
		u, err = units.ReadShapefile(unitsPath, units.ShapefileOptions{
			IDField:   idField,
			AreaScale: cfg.Units.AreaScale,
			SRID:      cfg.Units.SRID,
			Sink:      diag.NewZapSink(nil),
		})
	default:
		areaField := orString(f.unitAreaField, cfg.Units.AreaField)
		u, err = units.ReadTable(ctx, unitsPath, idField, areaField, cfg.Units.AreaScale, tableOpts)
	}
	if err != nil {
		env.Close()
		return nil, err
	}
	env.sources = metric.Sources{Units: u, Areas: u, Histograms: tab}
	env.geometry = u
	return env, nil
}

// options builds metric options from flags and config.
func (f *runFlags) options(family metric.Family, format output.Format) metric.Options {
	opts := metric.Options{
		Family:           family,
		AddAreaFields:    f.areaFields || cfg.Run.AddAreaFields,
		MaxFieldLength:   cfg.Run.MaxFieldLength,
		OverlapTolerance: cfg.Run.OverlapTolerance,
		Concurrency:      cfg.Run.Concurrency,
		UnitField:        orString(f.unitField, orString(cfg.Tabulation.UnitField, "ID")),
		Sink:             diag.NewZapSink(nil),
	}
	if f.maxFieldLength >= 0 {
		opts.MaxFieldLength = f.maxFieldLength
	}
	if limit := format.MaxFieldLength(); limit > 0 && (opts.MaxFieldLength <= 0 || opts.MaxFieldLength > limit) {
		opts.MaxFieldLength = limit
	}
	if f.overlapTolerance >= 0 {
		opts.OverlapTolerance = f.overlapTolerance
	}
	if f.concurrency > 0 {
		opts.Concurrency = f.concurrency
	}
	return opts
}

// openOutput opens the output writer. The returned close func releases any
// database pool after the writer.
func (f *runFlags) openOutput(ctx context.Context, env *runEnv) (output.Writer, func(), error) {
	target := output.Target{
		Format: env.format,
		Path:   orString(f.output, cfg.Output.Path),
		Table:  orString(f.table, cfg.Output.Table),
		Upsert: f.upsert || cfg.Output.Upsert,
		SRID:   cfg.Units.SRID,
	}
	if env.geometry != nil {
		target.Geometry = env.geometry
	}

	release := func() {}
	if env.format == output.FormatPostgres {
		if err := cfg.Validate("postgres"); err != nil {
			return nil, release, err
		}
		pool, err := db.Connect(ctx, cfg.Postgres.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
		})
		if err != nil {
			return nil, release, err
		}
		target.Pool = pool
		release = pool.Close
	} else if target.Path == "" && env.format != output.FormatCSV {
		return nil, release, eris.Errorf("--output is required for %s", env.format)
	}

	w, err := output.Open(ctx, target)
	if err != nil {
		release()
		return nil, func() {}, err
	}
	return w, release, nil
}

// execute runs one metric family end to end.
func (f *runFlags) execute(ctx context.Context, cmd *cobra.Command, family metric.Family, classIDs []lcc.ClassID, coefficients []string) error {
	if err := cfg.Validate("run"); err != nil {
		return err
	}

	env, err := f.prepare(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	scheme, err := env.doc.Scheme()
	if err != nil {
		return err
	}

	opts := f.options(family, env.format)
	opts.ClassIDs = classIDs
	opts.Coefficients = coefficients

	w, release, err := f.openOutput(ctx, env)
	if err != nil {
		return err
	}
	defer release()

	summary, err := metric.Run(ctx, scheme, opts, env.sources, w)
	if err != nil {
		_ = w.Close()
		if metric.IsSchemaError(err) {
			return eris.Wrap(err, "cannot build output fields")
		}
		return err
	}
	if err := w.Close(); err != nil {
		return eris.Wrap(err, "close output")
	}

	printSummary(cmd, summary)
	recordHistory(ctx, historyRun(summary, f.inputs(), orString(f.output, cfg.Output.Path)))
	return nil
}

// inputs lists the locations a run read, for the history record.
func (f *runFlags) inputs() []string {
	var out []string
	for _, loc := range []string{f.scheme.path, f.tabulation, f.units} {
		if loc != "" {
			out = append(out, loc)
		}
	}
	return out
}

func printSummary(cmd *cobra.Command, s *metric.Summary) {
	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "%s: %d units (run %s, %s)\n", s.Family, s.Units, s.RunID, s.Elapsed.Round(time.Millisecond))
	for _, kind := range slices.Sorted(maps.Keys(s.Warnings)) {
		fmt.Fprintf(out, "  %-24s %d\n", kind, s.Warnings[kind])
	}
}

// splitList accepts repeated and comma separated flag values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func classIDs(values []string) []lcc.ClassID {
	ids := splitList(values)
	out := make([]lcc.ClassID, len(ids))
	for i, id := range ids {
		out[i] = lcc.ClassID(id)
	}
	return out
}
