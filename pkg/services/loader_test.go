package services

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/splitcheck/pkg/errors"
	"github.com/TFMV/splitcheck/pkg/hub"
	"github.com/TFMV/splitcheck/pkg/infrastructure/converter"
	"github.com/TFMV/splitcheck/pkg/infrastructure/memory"
	"github.com/TFMV/splitcheck/pkg/infrastructure/metrics"
	"github.com/TFMV/splitcheck/pkg/models"
	"github.com/TFMV/splitcheck/pkg/profile"
	"github.com/TFMV/splitcheck/pkg/report"
)

func TestLoader_Success(t *testing.T) {
	rec := report.NewRecorder()
	p := &fakeProvider{splits: map[models.Split]fetchFunc{models.SplitTrain: fixture(fourCols, 7)}}
	l := newTestLoader(t, p, rec, nil)

	res := l.LoadSplit(context.Background(), "ds/x", models.SplitTrain, "v1.0")
	require.True(t, res.OK())
	assert.Equal(t, models.Shape{Rows: 7, Cols: 4}, res.Table.Shape())
	assert.Equal(t, fourCols, res.Table.ColumnNames())

	lines := rec.Lines()
	assert.Equal(t, "=== train loading (revision: v1.0) ===", lines[0])
	assert.Equal(t, "fetched 7 samples from hub", lines[1])
	assert.Equal(t, "converted to table: (7, 4)", lines[2])
	assert.Contains(t, lines, "table preview")
	assert.Contains(t, lines, "column info:")
	assert.Contains(t, lines, "RangeIndex: 7 entries, 0 to 6")
	assert.Contains(t, lines, "output distribution:")
	assert.Equal(t, []string{"0  4", "1  3"}, lines[len(lines)-2:])
	assert.Zero(t, rec.Count("error:"))
}

func TestLoader_HeadRows(t *testing.T) {
	rec := report.NewRecorder()
	p := &fakeProvider{splits: map[models.Split]fetchFunc{models.SplitTrain: fixture([]string{"text"}, 20)}}
	l := newTestLoader(t, p, rec, nil)
	WithHeadRows(2)(l)

	require.True(t, l.LoadSplit(context.Background(), "ds/x", models.SplitTrain, "").OK())
	assert.True(t, rec.Contains("text 1"))
	assert.False(t, rec.Contains("text 2"))
	assert.Equal(t, "=== train loading (revision: main) ===", rec.Lines()[0])
}

func TestLoader_NoLabelColumn(t *testing.T) {
	rec := report.NewRecorder()
	p := &fakeProvider{splits: map[models.Split]fetchFunc{models.SplitTest: fixture([]string{"text", "label"}, 3)}}
	l := newTestLoader(t, p, rec, nil)

	require.True(t, l.LoadSplit(context.Background(), "ds/x", models.SplitTest, "v1.0").OK())
	assert.False(t, rec.Contains("distribution"))
}

func TestLoader_FetchFailure(t *testing.T) {
	rec := report.NewRecorder()
	fetchErr := errors.Fetch(nil, errors.CodeNotFound, "dataset ds/x at revision v9 not found")
	p := &fakeProvider{splits: map[models.Split]fetchFunc{
		models.SplitTrain: func() (*hub.ProviderTable, error) { return nil, fetchErr },
	}}
	l := newTestLoader(t, p, rec, nil)

	res := l.LoadSplit(context.Background(), "ds/x", models.SplitTrain, "v9")
	assert.False(t, res.OK())
	assert.Nil(t, res.Table)
	assert.Equal(t, fetchErr, res.Err)

	assert.Equal(t, 1, rec.Count("error:"))
	assert.True(t, rec.Contains("error: "+fetchErr.Error()), "message is surfaced verbatim")
	assert.False(t, rec.Contains("converted"))
}

func TestLoader_ConversionFailure(t *testing.T) {
	rec := report.NewRecorder()
	p := &fakeProvider{splits: map[models.Split]fetchFunc{
		models.SplitValidation: func() (*hub.ProviderTable, error) {
			pt := providerTable([]string{"text", "output"}, 2)
			pt.Schema = arrow.NewSchema([]arrow.Field{{Name: "text", Type: arrow.BinaryTypes.String}}, nil)
			return pt, nil
		},
	}}
	l := newTestLoader(t, p, rec, nil)

	res := l.LoadSplit(context.Background(), "ds/x", models.SplitValidation, "v1.0")
	require.Error(t, res.Err)
	assert.True(t, errors.IsConversion(res.Err))
	assert.True(t, rec.Contains("fetched 2 samples from hub"))
	assert.Equal(t, 1, rec.Count("error:"))
}

// failingCounts profiles columns but cannot count values.
type failingCounts struct {
	*profile.MemoryProfiler
}

func (failingCounts) ValueCounts(context.Context, *models.Table, string) ([]profile.ValueCount, error) {
	return nil, errors.New(errors.CodeInternal, "value counts unavailable")
}

func TestLoader_ProfilerFailureKeepsPreview(t *testing.T) {
	rec := report.NewRecorder()
	p := &fakeProvider{splits: map[models.Split]fetchFunc{models.SplitTrain: fixture(fourCols, 3)}}
	logger := zerolog.New(zerolog.NewTestWriter(t))
	l := NewLoader(p, converter.New(logger), failingCounts{profile.NewMemoryProfiler()}, rec, nil, logger)

	res := l.LoadSplit(context.Background(), "ds/x", models.SplitTrain, "v1.0")
	require.Error(t, res.Err)
	assert.True(t, rec.Contains("table preview"))
	assert.True(t, rec.Contains("text 0"), "head rows are printed before profiling")
	assert.True(t, rec.Contains("column info:"))
	assert.False(t, rec.Contains("output distribution:"))
	assert.Equal(t, 1, rec.Count("error:"))
	assert.Equal(t, "error: "+res.Err.Error(), rec.Lines()[len(rec.Lines())-1])
}

func TestLoader_RecoversFromPanic(t *testing.T) {
	rec := report.NewRecorder()
	collector := metrics.NewPrometheusCollector()
	p := &fakeProvider{splits: map[models.Split]fetchFunc{
		models.SplitTrain: func() (*hub.ProviderTable, error) {
			var b *array.RecordBuilder
			return &hub.ProviderTable{Records: []arrow.Record{b.NewRecord()}}, nil
		},
		models.SplitValidation: fixture(fourCols, 2),
	}}
	l := newTestLoader(t, p, rec, collector)
	r := newTestRunner(t, l, rec)

	var summary *models.RunSummary
	require.NotPanics(t, func() {
		summary = r.Run(context.Background(), "ds/x", "v1.0", []models.Split{models.SplitTrain, models.SplitValidation})
	})
	require.Equal(t, 2, summary.Len())

	train, ok := summary.Get(models.SplitTrain)
	require.True(t, ok)
	assert.False(t, train.Succeeded())
	assert.Equal(t, errors.CodeInternal, errors.GetCode(train.Err))

	validation, ok := summary.Get(models.SplitValidation)
	require.True(t, ok)
	assert.True(t, validation.Succeeded())

	assert.Equal(t, 1, rec.Count("error:"))
	assert.True(t, rec.Contains("[ERROR] train failed"))
	assert.False(t, summary.Consistency.Checked)

	n, err := testutil.GatherAndCount(collector.Registry(), metrics.SplitLoadsTotal)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "failure and success series")
}

func TestLoader_InvalidArguments(t *testing.T) {
	rec := report.NewRecorder()
	p := &fakeProvider{}
	l := newTestLoader(t, p, rec, nil)

	res := l.LoadSplit(context.Background(), "", models.SplitTrain, "v1.0")
	assert.True(t, errors.IsInvalidRequest(res.Err))
	assert.Empty(t, p.fetched)
	assert.Equal(t, 1, rec.Count("error:"))
}

func TestLoader_PlainProviderError(t *testing.T) {
	rec := report.NewRecorder()
	l := newTestLoader(t, &fakeProvider{}, rec, nil)

	res := l.LoadSplit(context.Background(), "ds/x", models.SplitTest, "v1.0")
	assert.Error(t, res.Err)
	assert.False(t, stderrors.Is(res.Err, context.Canceled))
	assert.True(t, rec.Contains("error: split test not found at revision v1.0"))
}

func TestLoader_Metrics(t *testing.T) {
	collector := metrics.NewPrometheusCollector()
	p := &fakeProvider{splits: map[models.Split]fetchFunc{models.SplitTrain: fixture(fourCols, 3)}}
	alloc := memory.NewTrackedAllocator(nil)
	l := newTestLoader(t, p, report.Discard, collector)
	WithAllocator(alloc)(l)

	l.LoadSplit(context.Background(), "ds/x", models.SplitTrain, "v1.0")
	l.LoadSplit(context.Background(), "ds/x", models.SplitTest, "v1.0")

	reg := collector.Registry()
	n, err := testutil.GatherAndCount(reg, metrics.SplitLoadsTotal)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per split and status")

	n, err = testutil.GatherAndCount(reg, metrics.FetchDurationSeconds)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = testutil.GatherAndCount(reg, metrics.ArrowBytesAllocated)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
