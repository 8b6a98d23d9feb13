package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"

	"github.com/TFMV/splitcheck/pkg/hub"
	"github.com/TFMV/splitcheck/pkg/infrastructure/converter"
	"github.com/TFMV/splitcheck/pkg/infrastructure/metrics"
	"github.com/TFMV/splitcheck/pkg/models"
	"github.com/TFMV/splitcheck/pkg/profile"
	"github.com/TFMV/splitcheck/pkg/report"
)

// providerTable builds a split with the given columns. "output" holds
// alternating 0/1 labels, "id" the row number, and every other column text.
func providerTable(cols []string, rows int) *hub.ProviderTable {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		typ := arrow.DataType(arrow.BinaryTypes.String)
		if c == "output" || c == "id" {
			typ = arrow.PrimitiveTypes.Int64
		}
		fields[i] = arrow.Field{Name: c, Type: typ, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(arrowmem.NewGoAllocator(), schema)
	defer b.Release()
	for r := 0; r < rows; r++ {
		for i, c := range cols {
			switch c {
			case "output":
				b.Field(i).(*array.Int64Builder).Append(int64(r % 2))
			case "id":
				b.Field(i).(*array.Int64Builder).Append(int64(r))
			default:
				b.Field(i).(*array.StringBuilder).Append(fmt.Sprintf("%s %d", c, r))
			}
		}
	}
	return &hub.ProviderTable{Schema: schema, Records: []arrow.Record{b.NewRecord()}, Files: []string{"fixture"}}
}

type fetchFunc func() (*hub.ProviderTable, error)

// fakeProvider serves splits from fixtures and records every fetch.
type fakeProvider struct {
	splits  map[models.Split]fetchFunc
	fetched []models.DatasetHandle
}

func (p *fakeProvider) Fetch(ctx context.Context, h models.DatasetHandle) (*hub.ProviderTable, error) {
	p.fetched = append(p.fetched, h)
	f, ok := p.splits[h.Split()]
	if !ok {
		return nil, hubNotFound(h)
	}
	return f()
}

func hubNotFound(h models.DatasetHandle) error {
	return fmt.Errorf("split %s not found at revision %s", h.Split(), h.Revision())
}

func fixture(cols []string, rows int) fetchFunc {
	return func() (*hub.ProviderTable, error) { return providerTable(cols, rows), nil }
}

func newTestLoader(t *testing.T, p hub.Provider, sink report.Sink, collector metrics.Collector) *Loader {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
	return NewLoader(p, converter.New(logger), profile.NewMemoryProfiler(), sink, collector, logger)
}

func newTestRunner(t *testing.T, loader SplitLoader, sink report.Sink) *Runner {
	t.Helper()
	r := NewRunner(loader, sink, nil, zerolog.New(zerolog.NewTestWriter(t)))
	r.newID = func() string { return "test-run" }
	return r
}

var fourCols = []string{"text", "output", "id", "meta"}
