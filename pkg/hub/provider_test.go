package hub

import (
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/splitcheck/pkg/errors"
	"github.com/TFMV/splitcheck/pkg/infrastructure/converter"
	"github.com/TFMV/splitcheck/pkg/models"
)

func parquetFile(t *testing.T, texts []string, outputs []int64) string {
	t.Helper()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "text", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "output", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues(texts, nil)
	b.Field(1).(*array.Int64Builder).AppendValues(outputs, nil)
	rec := b.NewRecord()
	defer rec.Release()

	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	var buf bytes.Buffer
	require.NoError(t, pqarrow.WriteTable(tbl, &buf, 1024, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()))
	return buf.String()
}

func newTestProvider(t *testing.T, files map[string]string) *HubProvider {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	c := newTestClient(t, &fakeHub{sha: "abc", files: files}, ClientConfig{})
	return NewHubProvider(c, converter.NewDecoder(memory.NewGoAllocator(), logger), logger)
}

func handle(t *testing.T, split models.Split) models.DatasetHandle {
	t.Helper()
	h, err := models.NewDatasetHandle("acme/reviews", split, "v1.0")
	require.NoError(t, err)
	return h
}

func TestHubProvider_Fetch(t *testing.T) {
	p := newTestProvider(t, map[string]string{
		"data/train-00000-of-00002.parquet": parquetFile(t, []string{"a", "b"}, []int64{0, 1}),
		"data/train-00001-of-00002.parquet": parquetFile(t, []string{"c"}, []int64{1}),
		"train.csv":                         "text,output\nx,0\n",
		"README.md":                         "# reviews",
	})

	tbl, err := p.Fetch(context.Background(), handle(t, models.SplitTrain))
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, int64(3), tbl.NumRows())
	assert.Equal(t, []string{"data/train-00000-of-00002.parquet", "data/train-00001-of-00002.parquet"}, tbl.Files)
	assert.Equal(t, "text", tbl.Schema.Field(0).Name)
}

func TestHubProvider_SplitNotFound(t *testing.T) {
	p := newTestProvider(t, map[string]string{"train.csv": "text,output\nx,0\n"})

	_, err := p.Fetch(context.Background(), handle(t, models.SplitTest))
	require.Error(t, err)
	assert.True(t, errors.IsFetch(err))
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), `split "test" not found`)
}

func TestHubProvider_SchemaMismatch(t *testing.T) {
	p := newTestProvider(t, map[string]string{
		"test/a.csv": "text,output\nx,0\n",
		"test/b.csv": "text,label\ny,1\n",
	})

	_, err := p.Fetch(context.Background(), handle(t, models.SplitTest))
	require.Error(t, err)
	assert.True(t, errors.IsConversion(err))
	assert.ErrorIs(t, err, errors.ErrSchemaMismatch)
}

func TestHubProvider_UndecodableFile(t *testing.T) {
	p := newTestProvider(t, map[string]string{"validation.jsonl": "{not json"})

	_, err := p.Fetch(context.Background(), handle(t, models.SplitValidation))
	require.Error(t, err)
	assert.True(t, errors.IsConversion(err))
}
