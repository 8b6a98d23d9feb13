package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"

	"github.com/TFMV/splitcheck/pkg/errors"
	"github.com/TFMV/splitcheck/pkg/hub"
	"github.com/TFMV/splitcheck/pkg/infrastructure/converter"
	"github.com/TFMV/splitcheck/pkg/infrastructure/memory"
	"github.com/TFMV/splitcheck/pkg/infrastructure/metrics"
	"github.com/TFMV/splitcheck/pkg/models"
	"github.com/TFMV/splitcheck/pkg/profile"
	"github.com/TFMV/splitcheck/pkg/report"
)

// LabelColumn is the column whose value distribution is reported.
const LabelColumn = "output"

// DefaultHeadRows is the number of rows shown in the table preview.
const DefaultHeadRows = 5

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHeadRows sets the number of preview rows.
func WithHeadRows(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.headRows = n
		}
	}
}

// WithAllocator reports the allocator's usage as a metric after each fetch.
func WithAllocator(a *memory.TrackedAllocator) LoaderOption {
	return func(l *Loader) { l.alloc = a }
}

// Loader fetches one split, converts it to a Table, and emits diagnostics.
type Loader struct {
	provider  hub.Provider
	converter converter.TypeConverter
	profiler  profile.Profiler
	sink      report.Sink
	metrics   metrics.Collector
	alloc     *memory.TrackedAllocator
	logger    zerolog.Logger
	headRows  int
}

var _ SplitLoader = (*Loader)(nil)

// NewLoader creates a loader.
func NewLoader(
	provider hub.Provider,
	conv converter.TypeConverter,
	profiler profile.Profiler,
	sink report.Sink,
	collector metrics.Collector,
	logger zerolog.Logger,
	opts ...LoaderOption,
) *Loader {
	if collector == nil {
		collector = metrics.NewNoOpCollector()
	}
	if sink == nil {
		sink = report.Discard
	}
	l := &Loader{
		provider:  provider,
		converter: conv,
		profiler:  profiler,
		sink:      sink,
		metrics:   collector,
		logger:    logger.With().Str("component", "loader").Logger(),
		headRows:  DefaultHeadRows,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadSplit validates the arguments and loads the split. Exactly one of the
// result's Table and Err is set.
func (l *Loader) LoadSplit(ctx context.Context, datasetID string, split models.Split, revision string) models.LoadResult {
	handle, err := models.NewDatasetHandle(datasetID, split, revision)
	if err != nil {
		l.fail(split, err)
		return models.LoadResult{Err: err}
	}
	table, err := l.Load(ctx, handle)
	if err != nil {
		return models.LoadResult{Err: err}
	}
	return models.LoadResult{Table: table}
}

// Load fetches and converts the split named by handle. Failures, including
// panics raised by the provider or the decoders, are emitted as a single
// "error:" line before being returned.
func (l *Loader) Load(ctx context.Context, handle models.DatasetHandle) (table *models.Table, err error) {
	split := handle.Split()
	logger := l.logger.With().
		Str("dataset", handle.ID()).
		Str("split", split.String()).
		Str("revision", handle.Revision()).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Panic recovered")
			table = nil
			err = errors.New(errors.CodeInternal, fmt.Sprintf("unexpected failure loading split %s: %v", split, r))
			l.fail(split, err)
		}
	}()

	l.emit("=== %s loading (revision: %s) ===", split, handle.Revision())

	start := time.Now()
	pt, err := l.provider.Fetch(ctx, handle)
	elapsed := time.Since(start)
	l.metrics.RecordHistogram(metrics.FetchDurationSeconds, elapsed.Seconds(), "split", split.String())
	if err != nil {
		logger.Error().Err(err).Dur("duration", elapsed).Msg("Fetch failed")
		l.fail(split, err)
		return nil, err
	}
	defer pt.Release()

	if l.alloc != nil {
		l.metrics.RecordGauge(metrics.ArrowBytesAllocated, float64(l.alloc.BytesUsed()))
	}
	l.emit("fetched %d samples from hub", pt.NumRows())

	table, err = l.converter.ToTable(pt.Schema, pt.Records)
	if err != nil {
		logger.Error().Err(err).Msg("Conversion failed")
		l.fail(split, err)
		return nil, err
	}
	l.emit("converted to table: %s", table.Shape())

	if e := logger.Debug(); e.Enabled() {
		e.Str("sample", spew.Sdump(table.Head(models.SampleSize).Rows)).Msg("Converted sample")
	}

	if err := l.describe(ctx, table); err != nil {
		logger.Error().Err(err).Msg("Profiling failed")
		l.fail(split, err)
		return nil, err
	}

	l.metrics.IncrementCounter(metrics.SplitLoadsTotal, "split", split.String(), "status", "success")
	l.metrics.RecordGauge(metrics.SplitRows, float64(table.NumRows()), "split", split.String())
	logger.Info().
		Int("rows", table.NumRows()).
		Int("cols", table.NumCols()).
		Strs("files", pt.Files).
		Dur("fetch_duration", elapsed).
		Msg("Split loaded")
	return table, nil
}

// describe emits the preview, column info, and label distribution, each
// section as soon as it is computed.
func (l *Loader) describe(ctx context.Context, table *models.Table) error {
	l.emit("table preview")
	l.emit("%s", report.Rule("-"))
	l.emitLines(report.FormatHead(table, l.headRows))
	l.emit("%s", report.Rule("-"))

	infos, err := l.profiler.ColumnInfo(ctx, table)
	if err != nil {
		return err
	}
	l.emit("column info:")
	l.emitLines(report.FormatColumnInfo(table, infos))

	if !table.HasColumn(LabelColumn) {
		return nil
	}
	counts, err := l.profiler.ValueCounts(ctx, table, LabelColumn)
	if err != nil {
		return err
	}
	l.emit("%s", report.Rule("-"))
	l.emit("%s distribution:", LabelColumn)
	l.emitLines(report.FormatValueCounts(counts))
	return nil
}

func (l *Loader) fail(split models.Split, err error) {
	l.metrics.IncrementCounter(metrics.SplitLoadsTotal, "split", split.String(), "status", "failure")
	l.emit("error: %s", err.Error())
}

func (l *Loader) emit(format string, args ...interface{}) {
	if len(args) == 0 {
		l.sink.Emit(format)
		return
	}
	l.sink.Emit(fmt.Sprintf(format, args...))
}

func (l *Loader) emitLines(lines []string) {
	for _, line := range lines {
		l.sink.Emit(line)
	}
}
