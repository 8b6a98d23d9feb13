package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TFMV/splitcheck/pkg/errors"
	"github.com/TFMV/splitcheck/pkg/infrastructure/metrics"
	"github.com/TFMV/splitcheck/pkg/models"
	"github.com/TFMV/splitcheck/pkg/report"
)

// Runner loads each split in order and checks that they share columns.
type Runner struct {
	loader  SplitLoader
	sink    report.Sink
	metrics metrics.Collector
	logger  zerolog.Logger
	newID   func() string
}

var _ SplitRunner = (*Runner)(nil)

// NewRunner creates a runner.
func NewRunner(loader SplitLoader, sink report.Sink, collector metrics.Collector, logger zerolog.Logger) *Runner {
	if collector == nil {
		collector = metrics.NewNoOpCollector()
	}
	if sink == nil {
		sink = report.Discard
	}
	return &Runner{
		loader:  loader,
		sink:    sink,
		metrics: collector,
		logger:  logger.With().Str("component", "runner").Logger(),
		newID:   uuid.NewString,
	}
}

// Run loads splits sequentially and returns one result per split, in input
// order. An empty revision means models.DefaultRevision and no splits means
// models.DefaultSplits. Splits not yet started when ctx is done are recorded
// as failures. Run never fails as a whole.
func (r *Runner) Run(ctx context.Context, datasetID, revision string, splits []models.Split) *models.RunSummary {
	if revision == "" {
		revision = models.DefaultRevision
	}
	if len(splits) == 0 {
		splits = models.DefaultSplits()
	}

	timer := r.metrics.StartTimer(metrics.RunDurationSeconds)
	defer timer.Stop()

	summary := models.NewRunSummary(r.newID(), datasetID, revision)
	logger := r.logger.With().
		Str("run_id", summary.RunID).
		Str("dataset", datasetID).
		Str("revision", revision).
		Logger()
	logger.Info().Int("splits", len(splits)).Msg("Starting dataset check")

	r.sink.Emit("dataset loading check: " + datasetID + " (revision: " + revision + ")")
	r.sink.Emit(report.Rule("="))

	for _, split := range splits {
		r.sink.Emit("")
		r.sink.Emit(strings.ToUpper(split.String()) + " data check")

		var res models.LoadResult
		if err := ctx.Err(); err != nil {
			res.Err = errors.Fetch(err, errors.CodeCanceled, "run stopped before split %s", split)
			r.sink.Emit("error: " + res.Err.Error())
		} else {
			res = r.loader.LoadSplit(ctx, datasetID, split, revision)
		}

		if res.OK() {
			summary.Record(models.NewSuccess(split, res.Table))
			r.sink.Emit("[SUCCESS] " + split.String() + " loaded")
		} else {
			summary.Record(models.NewFailure(split, res.Err))
			r.sink.Emit("[ERROR] " + split.String() + " failed")
			logger.Warn().Err(res.Err).Str("split", split.String()).Msg("Split failed")
		}
	}

	r.emitSummary(summary)

	summary.Consistency = CheckConsistency(summary)
	if summary.Consistency.Checked {
		r.emitConsistency(summary.Consistency)
		verdict := "consistent"
		if !summary.Consistency.Consistent {
			verdict = "mismatch"
		}
		r.metrics.IncrementCounter(metrics.ConsistencyChecksTotal, "result", verdict)
	} else {
		logger.Info().Msg("Consistency check skipped, not every split loaded")
	}

	logger.Info().
		Bool("all_succeeded", summary.AllSucceeded()).
		Bool("consistent", summary.Consistency.Consistent).
		Msg("Dataset check finished")
	return summary
}

// CheckConsistency compares the column sets of every split. The check only
// runs when the summary is non-empty and every split succeeded.
func CheckConsistency(summary *models.RunSummary) models.ConsistencyReport {
	if !summary.AllSucceeded() {
		return models.ConsistencyReport{}
	}

	results := summary.Results()
	rep := models.ConsistencyReport{Checked: true, Consistent: true}
	for _, res := range results {
		rep.ColumnSets = append(rep.ColumnSets, models.SplitColumns{Split: res.Split, Columns: res.Columns})
		if !sameSet(res.Columns, results[0].Columns) {
			rep.Consistent = false
		}
	}
	return rep
}

func (r *Runner) emitSummary(summary *models.RunSummary) {
	r.sink.Emit("")
	r.sink.Emit(report.Rule("="))
	r.sink.Emit("summary")
	r.sink.Emit(report.Rule("="))
	for _, res := range summary.Results() {
		r.sink.Emit(report.SummaryLine(res))
	}
}

func (r *Runner) emitConsistency(rep models.ConsistencyReport) {
	r.sink.Emit("")
	r.sink.Emit(report.Rule("="))
	r.sink.Emit("consistency check")
	r.sink.Emit(report.Rule("="))
	if rep.Consistent {
		r.sink.Emit("[OK] all splits share the same columns")
		return
	}
	r.sink.Emit("[WARNING] column mismatch found:")
	for _, sc := range rep.ColumnSets {
		r.sink.Emit(report.MismatchLine(sc))
	}
}

// sameSet compares two sorted, duplicate-free column sets.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
