package models

import (
	"sort"
	"strings"
)

// SampleSize is the number of leading rows kept on a successful SplitResult.
const SampleSize = 2

// SplitStatus is the terminal state of one split load.
type SplitStatus int

const (
	StatusFailed SplitStatus = iota
	StatusSucceeded
)

func (s SplitStatus) String() string {
	if s == StatusSucceeded {
		return "success"
	}
	return "failure"
}

// LoadResult is the outcome of loading one split: exactly one of Table and Err is set.
type LoadResult struct {
	Table *Table
	Err   error
}

// OK reports whether the load produced a table.
func (r LoadResult) OK() bool {
	return r.Err == nil && r.Table != nil
}

// SplitResult records what a run learned about one split.
type SplitResult struct {
	Split   Split
	Status  SplitStatus
	Shape   Shape
	Columns []string // sorted, unique
	Sample  []map[string]Value
	Err     error
}

// NewSuccess summarizes a loaded table.
func NewSuccess(split Split, t *Table) SplitResult {
	n := SampleSize
	if t.NumRows() < n {
		n = t.NumRows()
	}
	sample := make([]map[string]Value, n)
	for i := 0; i < n; i++ {
		sample[i] = t.RowMap(i)
	}
	return SplitResult{
		Split:   split,
		Status:  StatusSucceeded,
		Shape:   t.Shape(),
		Columns: ColumnSet(t.ColumnNames()),
		Sample:  sample,
	}
}

// NewFailure records a failed split.
func NewFailure(split Split, err error) SplitResult {
	return SplitResult{Split: split, Status: StatusFailed, Err: err}
}

// Succeeded reports whether the split loaded.
func (r SplitResult) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// ColumnSet returns the sorted unique names.
func ColumnSet(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	set := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		set = append(set, n)
	}
	sort.Strings(set)
	return set
}

// FormatColumnSet renders a set as {a, b, c}.
func FormatColumnSet(set []string) string {
	return "{" + strings.Join(set, ", ") + "}"
}

// SplitColumns pairs a split with its column set.
type SplitColumns struct {
	Split   Split
	Columns []string
}

// ConsistencyReport is the verdict of the cross-split column check.
type ConsistencyReport struct {
	// Checked is false when at least one split failed and the check was skipped.
	Checked    bool
	Consistent bool
	ColumnSets []SplitColumns
}

// RunSummary maps split names to results, in the order the splits were run.
type RunSummary struct {
	RunID       string
	DatasetID   string
	Revision    string
	Consistency ConsistencyReport

	order   []Split
	results map[Split]SplitResult
}

// NewRunSummary creates an empty summary.
func NewRunSummary(runID, datasetID, revision string) *RunSummary {
	return &RunSummary{
		RunID:     runID,
		DatasetID: datasetID,
		Revision:  revision,
		results:   make(map[Split]SplitResult),
	}
}

// Record stores a result. Recording a split twice replaces the result but keeps its position.
func (s *RunSummary) Record(r SplitResult) {
	if _, ok := s.results[r.Split]; !ok {
		s.order = append(s.order, r.Split)
	}
	s.results[r.Split] = r
}

// Get returns the result for split.
func (s *RunSummary) Get(split Split) (SplitResult, bool) {
	r, ok := s.results[split]
	return r, ok
}

// Splits returns the recorded splits in run order.
func (s *RunSummary) Splits() []Split {
	out := make([]Split, len(s.order))
	copy(out, s.order)
	return out
}

// Results returns the results in run order.
func (s *RunSummary) Results() []SplitResult {
	out := make([]SplitResult, 0, len(s.order))
	for _, split := range s.order {
		out = append(out, s.results[split])
	}
	return out
}

// Len returns the number of recorded splits.
func (s *RunSummary) Len() int { return len(s.order) }

// AllSucceeded is true when at least one split was recorded and none failed.
func (s *RunSummary) AllSucceeded() bool {
	if len(s.order) == 0 {
		return false
	}
	for _, r := range s.results {
		if !r.Succeeded() {
			return false
		}
	}
	return true
}
