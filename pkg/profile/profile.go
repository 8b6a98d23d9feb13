// Package profile computes the descriptive diagnostics printed for a split:
// per-column non-null counts and the value distribution of one column.
package profile

import (
	"context"

	"github.com/TFMV/splitcheck/pkg/errors"
	"github.com/TFMV/splitcheck/pkg/models"
)

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Index   int
	Name    string
	NonNull int
	Dtype   string
}

// ValueCount is one distinct value and how often it occurs.
type ValueCount struct {
	Value models.Value
	Count int
}

// Profiler computes table diagnostics.
type Profiler interface {
	// ColumnInfo returns one entry per column, in column order.
	ColumnInfo(ctx context.Context, t *models.Table) ([]ColumnInfo, error)

	// ValueCounts returns the distinct non-null values of column in
	// descending count order. Equal counts keep first-appearance order.
	ValueCounts(ctx context.Context, t *models.Table, column string) ([]ValueCount, error)
}

// MemoryProfiler profiles tables by scanning their rows.
type MemoryProfiler struct{}

// NewMemoryProfiler creates an in-memory profiler.
func NewMemoryProfiler() *MemoryProfiler {
	return &MemoryProfiler{}
}

// ColumnInfo implements Profiler.
func (p *MemoryProfiler) ColumnInfo(ctx context.Context, t *models.Table) ([]ColumnInfo, error) {
	infos := make([]ColumnInfo, t.NumCols())
	for j, c := range t.Columns {
		infos[j] = ColumnInfo{Index: j, Name: c.Name, Dtype: c.Dtype()}
	}
	for i, row := range t.Rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for j, v := range row {
			if !v.IsNull() {
				infos[j].NonNull++
			}
		}
	}
	return infos, nil
}

// ValueCounts implements Profiler.
func (p *MemoryProfiler) ValueCounts(ctx context.Context, t *models.Table, column string) ([]ValueCount, error) {
	j := t.ColumnIndex(column)
	if j < 0 {
		return nil, errors.New(errors.CodeInvalidRequest, "column "+column+" does not exist")
	}

	index := make(map[string]int)
	var counts []ValueCount
	for i, row := range t.Rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		v := row[j]
		if v.IsNull() {
			continue
		}
		k := v.Key()
		if pos, ok := index[k]; ok {
			counts[pos].Count++
			continue
		}
		index[k] = len(counts)
		counts = append(counts, ValueCount{Value: v, Count: 1})
	}

	SortCounts(counts)
	return counts, nil
}
