package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/splitcheck/pkg/errors"
	"github.com/TFMV/splitcheck/pkg/models"
	"github.com/TFMV/splitcheck/pkg/report"
)

// stubLoader returns canned results and records the calls it receives.
type stubLoader struct {
	results map[models.Split]models.LoadResult
	calls   []string
	cancel  context.CancelFunc
}

func (s *stubLoader) LoadSplit(ctx context.Context, id string, split models.Split, rev string) models.LoadResult {
	s.calls = append(s.calls, fmt.Sprintf("%s@%s:%s", id, rev, split))
	if s.cancel != nil {
		s.cancel()
	}
	if r, ok := s.results[split]; ok {
		return r
	}
	return models.LoadResult{Err: errors.ErrSplitNotFound}
}

func table(cols []string, rows int) *models.Table {
	columns := make([]models.Column, len(cols))
	for i, c := range cols {
		columns[i] = models.Column{Name: c, Type: arrow.BinaryTypes.String}
	}
	t := models.NewTable(columns)
	for r := 0; r < rows; r++ {
		row := make([]models.Value, len(cols))
		for i := range row {
			row[i] = models.IntValue(int64(r))
		}
		_ = t.AppendRow(row)
	}
	return t
}

func TestRunner_ScenarioOneSplitFails(t *testing.T) {
	rec := report.NewRecorder()
	p := &fakeProvider{splits: map[models.Split]fetchFunc{
		models.SplitTrain:      fixture(fourCols, 900),
		models.SplitValidation: fixture(fourCols, 100),
	}}
	r := newTestRunner(t, newTestLoader(t, p, rec, nil), rec)

	summary := r.Run(context.Background(), "ds/x", "v1.0", []models.Split{models.SplitTrain, models.SplitValidation, models.SplitTest})

	require.Equal(t, []models.Split{models.SplitTrain, models.SplitValidation, models.SplitTest}, summary.Splits())
	train, _ := summary.Get(models.SplitTrain)
	assert.True(t, train.Succeeded())
	assert.Equal(t, models.Shape{Rows: 900, Cols: 4}, train.Shape)
	val, _ := summary.Get(models.SplitValidation)
	assert.Equal(t, models.Shape{Rows: 100, Cols: 4}, val.Shape)
	test, _ := summary.Get(models.SplitTest)
	assert.False(t, test.Succeeded())
	assert.Error(t, test.Err)

	lines := rec.Lines()
	assert.Contains(t, lines, "[OK] train       :   900 rows × 4 cols")
	assert.Contains(t, lines, "[OK] validation  :   100 rows × 4 cols")
	assert.Contains(t, lines, "[FAIL] test        : FAILED")
	assert.Contains(t, lines, "[ERROR] test failed")

	assert.False(t, summary.Consistency.Checked)
	assert.False(t, rec.Contains("consistency check"))
	assert.False(t, rec.Contains("[WARNING]"))

	for _, h := range p.fetched {
		assert.Equal(t, "v1.0", h.Revision())
	}
}

func TestRunner_ScenarioAllConsistent(t *testing.T) {
	rec := report.NewRecorder()
	p := &fakeProvider{splits: map[models.Split]fetchFunc{
		models.SplitTrain:      fixture(fourCols, 9),
		models.SplitValidation: fixture([]string{"meta", "id", "output", "text"}, 3),
		models.SplitTest:       fixture(fourCols, 2),
	}}
	r := newTestRunner(t, newTestLoader(t, p, rec, nil), rec)

	summary := r.Run(context.Background(), "ds/x", "v1.0", nil)

	assert.True(t, summary.AllSucceeded())
	assert.True(t, summary.Consistency.Checked)
	assert.True(t, summary.Consistency.Consistent)
	assert.Equal(t, 1, rec.Count("[OK] all splits share the same columns"))
	assert.False(t, rec.Contains("[WARNING]"))
	assert.Equal(t, "test-run", summary.RunID)
}

func TestRunner_ScenarioColumnMismatch(t *testing.T) {
	rec := report.NewRecorder()
	p := &fakeProvider{splits: map[models.Split]fetchFunc{
		models.SplitTrain:      fixture(fourCols, 9),
		models.SplitValidation: fixture(fourCols, 3),
		models.SplitTest:       fixture([]string{"text", "output", "id"}, 2),
	}}
	r := newTestRunner(t, newTestLoader(t, p, rec, nil), rec)

	summary := r.Run(context.Background(), "ds/x", "v1.0", nil)

	assert.True(t, summary.Consistency.Checked)
	assert.False(t, summary.Consistency.Consistent)
	assert.Contains(t, rec.Lines(), "[WARNING] column mismatch found:")
	assert.Contains(t, rec.Lines(), "   train: {id, meta, output, text}")
	assert.Contains(t, rec.Lines(), "   validation: {id, meta, output, text}")
	assert.Contains(t, rec.Lines(), "   test: {id, output, text}")
	assert.False(t, rec.Contains("[OK] all splits"))
}

func TestRunner_ColumnAndSampleInvariants(t *testing.T) {
	for _, rows := range []int{0, 1, 2, 3, 50} {
		t.Run(fmt.Sprint(rows), func(t *testing.T) {
			loader := &stubLoader{results: map[models.Split]models.LoadResult{
				models.SplitTrain:      {Table: table([]string{"a", "b", "c"}, rows)},
				models.SplitValidation: {Table: table([]string{"a"}, rows)},
				models.SplitTest:       {Table: table(nil, rows)},
			}}
			summary := newTestRunner(t, loader, nil).Run(context.Background(), "ds/x", "v1.0", nil)

			for _, res := range summary.Results() {
				require.True(t, res.Succeeded())
				assert.Len(t, res.Columns, res.Shape.Cols)
				expected := rows
				if expected > 2 {
					expected = 2
				}
				assert.Len(t, res.Sample, expected)
			}
		})
	}
}

func TestRunner_FailureIsolation(t *testing.T) {
	loader := &stubLoader{results: map[models.Split]models.LoadResult{
		models.SplitTest: {Table: table([]string{"a"}, 1)},
	}}
	splits := []models.Split{models.SplitTrain, models.SplitValidation, models.SplitTest, "extra"}

	summary := newTestRunner(t, loader, nil).Run(context.Background(), "ds/x", "", splits)

	assert.Equal(t, splits, summary.Splits())
	assert.Equal(t, []string{
		"ds/x@main:train", "ds/x@main:validation", "ds/x@main:test", "ds/x@main:extra",
	}, loader.calls, "every split is attempted in order")
	assert.Equal(t, models.DefaultRevision, summary.Revision)
	assert.False(t, summary.AllSucceeded())
}

func TestRunner_GateRequiresAllSuccess(t *testing.T) {
	tests := []struct {
		name    string
		results map[models.Split]models.LoadResult
		checked bool
	}{
		{"all succeed", map[models.Split]models.LoadResult{
			models.SplitTrain:      {Table: table([]string{"a"}, 1)},
			models.SplitValidation: {Table: table([]string{"a"}, 1)},
			models.SplitTest:       {Table: table([]string{"a"}, 1)},
		}, true},
		{"one fails", map[models.Split]models.LoadResult{
			models.SplitTrain:      {Table: table([]string{"a"}, 1)},
			models.SplitValidation: {Table: table([]string{"a"}, 1)},
		}, false},
		{"all fail", map[models.Split]models.LoadResult{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := report.NewRecorder()
			summary := newTestRunner(t, &stubLoader{results: tt.results}, rec).Run(context.Background(), "ds/x", "v1.0", nil)
			assert.Equal(t, tt.checked, summary.Consistency.Checked)
			assert.Equal(t, tt.checked, rec.Contains("consistency check"))
			assert.Equal(t, 3, summary.Len())
		})
	}
}

func TestRunner_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loader := &stubLoader{
		results: map[models.Split]models.LoadResult{models.SplitTrain: {Table: table([]string{"a"}, 1)}},
		cancel:  cancel,
	}
	rec := report.NewRecorder()

	summary := newTestRunner(t, loader, rec).Run(ctx, "ds/x", "v1.0", nil)

	assert.Len(t, loader.calls, 1, "splits after cancellation are not loaded")
	require.Equal(t, 3, summary.Len())
	train, _ := summary.Get(models.SplitTrain)
	assert.True(t, train.Succeeded())
	for _, split := range []models.Split{models.SplitValidation, models.SplitTest} {
		res, _ := summary.Get(split)
		assert.False(t, res.Succeeded())
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
	assert.Equal(t, 2, rec.Count("[FAIL]"))
}

func TestRunner_HeaderAndSummaryLayout(t *testing.T) {
	rec := report.NewRecorder()
	loader := &stubLoader{results: map[models.Split]models.LoadResult{
		models.SplitTrain: {Table: table([]string{"a"}, 1)},
	}}
	newTestRunner(t, loader, rec).Run(context.Background(), "ds/x", "v2", []models.Split{models.SplitTrain})

	lines := rec.Lines()
	assert.Equal(t, "dataset loading check: ds/x (revision: v2)", lines[0])
	assert.Equal(t, report.Rule("="), lines[1])
	assert.Equal(t, "TRAIN data check", lines[3])
	assert.Equal(t, "[SUCCESS] train loaded", lines[4])
	assert.Contains(t, lines, "summary")
}

func TestCheckConsistency(t *testing.T) {
	s := models.NewRunSummary("id", "ds/x", "main")
	assert.False(t, CheckConsistency(s).Checked, "empty summary is not checked")

	s.Record(models.NewSuccess(models.SplitTrain, table([]string{"b", "a"}, 1)))
	s.Record(models.NewSuccess(models.SplitTest, table([]string{"a", "b"}, 4)))
	rep := CheckConsistency(s)
	assert.True(t, rep.Checked)
	assert.True(t, rep.Consistent)
	assert.Len(t, rep.ColumnSets, 2)
}
