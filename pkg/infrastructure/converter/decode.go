package converter

import (
	"bytes"
	"context"
	stdcsv "encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/rs/zerolog"

	"github.com/TFMV/splitcheck/pkg/errors"
)

const defaultChunkSize = 64 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decoded is the Arrow form of one dataset file.
type Decoded struct {
	Schema  *arrow.Schema
	Records []arrow.Record
}

// NumRows returns the total number of rows across records.
func (d *Decoded) NumRows() int64 {
	var n int64
	for _, rec := range d.Records {
		n += rec.NumRows()
	}
	return n
}

// Release releases all records.
func (d *Decoded) Release() {
	for _, rec := range d.Records {
		rec.Release()
	}
	d.Records = nil
}

// Decoder turns raw dataset files into Arrow records.
type Decoder struct {
	alloc     memory.Allocator
	logger    zerolog.Logger
	chunkSize int
}

// NewDecoder creates a decoder allocating from alloc; nil means the Go allocator.
func NewDecoder(alloc memory.Allocator, logger zerolog.Logger) *Decoder {
	if alloc == nil {
		alloc = memory.NewGoAllocator()
	}
	return &Decoder{
		alloc:     alloc,
		logger:    logger,
		chunkSize: defaultChunkSize,
	}
}

// SetChunkSize sets the number of rows per record batch.
func (d *Decoder) SetChunkSize(size int) {
	if size > 0 {
		d.chunkSize = size
	}
}

// Decode decodes data in the given format.
func (d *Decoder) Decode(ctx context.Context, format Format, data []byte) (*Decoded, error) {
	start := time.Now()

	var (
		out *Decoded
		err error
	)
	switch format {
	case FormatParquet:
		out, err = d.decodeParquet(ctx, data)
	case FormatCSV:
		out, err = d.decodeCSV(ctx, data, ',')
	case FormatTSV:
		out, err = d.decodeCSV(ctx, data, '\t')
	case FormatJSON, FormatJSONL:
		out, err = d.decodeJSON(ctx, data)
	default:
		return nil, errors.ErrUnsupportedFiles
	}
	if err != nil {
		return nil, err
	}

	d.logger.Debug().
		Str("format", format.String()).
		Int("bytes", len(data)).
		Int64("rows", out.NumRows()).
		Int("batches", len(out.Records)).
		Dur("duration", time.Since(start)).
		Msg("Decoded file")
	return out, nil
}

func (d *Decoder) decodeParquet(ctx context.Context, data []byte) (*Decoded, error) {
	tbl, err := pqarrow.ReadTable(
		ctx,
		bytes.NewReader(data),
		parquet.NewReaderProperties(d.alloc),
		pqarrow.ArrowReadProperties{BatchSize: int64(d.chunkSize)},
		d.alloc,
	)
	if err != nil {
		return nil, errors.Conversion(err, "failed to read parquet")
	}
	defer tbl.Release()

	tr := array.NewTableReader(tbl, int64(d.chunkSize))
	defer tr.Release()

	return d.collect(ctx, tr, tbl.Schema)
}

func (d *Decoder) decodeCSV(ctx context.Context, data []byte, comma rune) (*Decoded, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	schema, err := inferCSVSchema(data, comma)
	if err != nil {
		return nil, errors.Conversion(err, "failed to read CSV")
	}

	r := csv.NewReader(
		bytes.NewReader(data),
		schema,
		csv.WithHeader(true),
		csv.WithComma(comma),
		csv.WithAllocator(d.alloc),
		csv.WithChunk(d.chunkSize),
		csv.WithNullReader(true, ""),
	)
	defer r.Release()

	return d.collect(ctx, r, r.Schema)
}

// inferCSVSchema reads the header and every row, giving each column the
// narrowest type all of its non-empty cells parse as: Int64, Boolean,
// Float64, else String. A header without rows yields String columns.
func inferCSVSchema(data []byte, comma rune) (*arrow.Schema, error) {
	r := stdcsv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, err
	}
	names := append([]string(nil), header...)

	candidates := make([]csvKind, len(names))
	for i := range candidates {
		candidates[i] = csvInt | csvBool | csvFloat | csvEmpty
	}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for i, cell := range row {
			if cell == "" {
				continue
			}
			candidates[i] &= kindsOfCSVCell(cell)
		}
	}

	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: name, Type: arrowTypeForCSV(candidates[i]), Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

// csvKind is a bit set of the types a column's cells can still parse as.
// csvEmpty stays set until the column has a non-empty cell.
type csvKind uint8

const (
	csvInt csvKind = 1 << iota
	csvBool
	csvFloat
	csvEmpty
)

func kindsOfCSVCell(cell string) csvKind {
	var k csvKind
	if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
		k |= csvInt
	}
	if _, err := strconv.ParseBool(cell); err == nil {
		k |= csvBool
	}
	if _, err := strconv.ParseFloat(cell, 64); err == nil {
		k |= csvFloat
	}
	return k
}

// arrowTypeForCSV prefers Int64 over Boolean so 0/1 columns stay numeric.
// A column with no non-empty cells still carries csvEmpty and reads as String.
func arrowTypeForCSV(k csvKind) arrow.DataType {
	switch {
	case k&csvEmpty != 0:
		return arrow.BinaryTypes.String
	case k&csvInt != 0:
		return arrow.PrimitiveTypes.Int64
	case k&csvBool != 0:
		return arrow.FixedWidthTypes.Boolean
	case k&csvFloat != 0:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

// recordReader is the subset of array.RecordReader and csv.Reader used here.
type recordReader interface {
	Next() bool
	Record() arrow.Record
	Err() error
}

// collect drains rr, retaining every record. schema is read after draining
// because inferring readers only know it after the first batch.
func (d *Decoder) collect(ctx context.Context, rr recordReader, schema func() *arrow.Schema) (*Decoded, error) {
	out := &Decoded{}
	for rr.Next() {
		if err := ctx.Err(); err != nil {
			out.Release()
			return nil, errors.Wrap(err, errors.CodeCanceled, "decoding interrupted")
		}
		rec := rr.Record()
		rec.Retain()
		out.Records = append(out.Records, rec)
	}
	if err := rr.Err(); err != nil {
		out.Release()
		return nil, errors.Conversion(err, "failed to read records")
	}

	out.Schema = schema()
	if out.Schema == nil {
		out.Schema = arrow.NewSchema(nil, nil)
	}
	return out, nil
}
