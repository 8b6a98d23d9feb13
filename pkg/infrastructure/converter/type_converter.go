// Package converter decodes dataset files into Apache Arrow and converts
// Arrow data into the canonical models.Table.
package converter

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/rs/zerolog"

	"github.com/TFMV/splitcheck/pkg/errors"
	"github.com/TFMV/splitcheck/pkg/models"
)

// TypeConverter handles conversions out of Arrow.
type TypeConverter interface {
	// ToTable converts record batches sharing schema into a Table.
	ToTable(schema *arrow.Schema, records []arrow.Record) (*models.Table, error)

	// ValueAt converts one cell.
	ValueAt(arr arrow.Array, i int) models.Value

	// DuckDBType returns the DuckDB column type able to hold every given kind.
	DuckDBType(kinds map[models.ValueKind]bool) string
}

type typeConverter struct {
	duckMap map[models.ValueKind]string
	logger  zerolog.Logger
}

// New creates a new type converter.
func New(logger zerolog.Logger) TypeConverter {
	return &typeConverter{
		duckMap: initializeDuckDBMap(),
		logger:  logger,
	}
}

// ToTable converts record batches into a Table, validating that every batch
// matches the schema.
func (tc *typeConverter) ToTable(schema *arrow.Schema, records []arrow.Record) (*models.Table, error) {
	if schema == nil {
		return nil, errors.Conversion(nil, "missing schema")
	}

	columns := make([]models.Column, schema.NumFields())
	for i, f := range schema.Fields() {
		columns[i] = models.Column{Name: f.Name, Type: f.Type}
	}
	table := models.NewTable(columns)

	var total int64
	for _, rec := range records {
		total += rec.NumRows()
	}
	table.Rows = make([][]models.Value, 0, total)

	for b, rec := range records {
		if int(rec.NumCols()) != len(columns) {
			return nil, errors.Conversion(nil, "batch %d has %d columns, schema has %d", b, rec.NumCols(), len(columns))
		}
		for j, col := range rec.Columns() {
			if !arrow.TypeEqual(col.DataType(), columns[j].Type) {
				return nil, errors.Conversion(nil, "batch %d column %q is %s, schema says %s", b, columns[j].Name, col.DataType(), columns[j].Type)
			}
		}

		for i := 0; i < int(rec.NumRows()); i++ {
			row := make([]models.Value, len(columns))
			for j, col := range rec.Columns() {
				row[j] = tc.ValueAt(col, i)
			}
			table.Rows = append(table.Rows, row)
		}
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}

	tc.logger.Debug().
		Int("rows", table.NumRows()).
		Int("cols", table.NumCols()).
		Int("batches", len(records)).
		Msg("Converted records to table")
	return table, nil
}

// ValueAt converts the i-th cell of arr. Types without a scalar mapping are
// rendered with the array's own string form.
func (tc *typeConverter) ValueAt(arr arrow.Array, i int) models.Value {
	if arr.IsNull(i) {
		return models.NullValue()
	}

	switch a := arr.(type) {
	case *array.Boolean:
		return models.BoolValue(a.Value(i))
	case *array.Int8:
		return models.IntValue(int64(a.Value(i)))
	case *array.Int16:
		return models.IntValue(int64(a.Value(i)))
	case *array.Int32:
		return models.IntValue(int64(a.Value(i)))
	case *array.Int64:
		return models.IntValue(a.Value(i))
	case *array.Uint8:
		return models.IntValue(int64(a.Value(i)))
	case *array.Uint16:
		return models.IntValue(int64(a.Value(i)))
	case *array.Uint32:
		return models.IntValue(int64(a.Value(i)))
	case *array.Uint64:
		return models.ValueOf(a.Value(i))
	case *array.Float16:
		return models.FloatValue(float64(a.Value(i).Float32()))
	case *array.Float32:
		return models.FloatValue(float64(a.Value(i)))
	case *array.Float64:
		return models.FloatValue(a.Value(i))
	case *array.String:
		return models.StringValue(a.Value(i))
	case *array.LargeString:
		return models.StringValue(a.Value(i))
	case *array.Binary:
		return models.StringValue(string(a.Value(i)))
	case *array.LargeBinary:
		return models.StringValue(string(a.Value(i)))
	case *array.Dictionary:
		return tc.ValueAt(a.Dictionary(), a.GetValueIndex(i))
	default:
		return models.StringValue(arr.ValueStr(i))
	}
}

// DuckDBType returns the narrowest DuckDB type holding every kind. Mixed
// kinds other than int/float widen to VARCHAR.
func (tc *typeConverter) DuckDBType(kinds map[models.ValueKind]bool) string {
	var present []models.ValueKind
	for k, ok := range kinds {
		if ok && k != models.KindNull {
			present = append(present, k)
		}
	}

	switch len(present) {
	case 0:
		return tc.duckMap[models.KindString]
	case 1:
		return tc.duckMap[present[0]]
	case 2:
		if kinds[models.KindInt] && kinds[models.KindFloat] {
			return tc.duckMap[models.KindFloat]
		}
	}
	return tc.duckMap[models.KindString]
}

// initializeDuckDBMap creates the value kind to DuckDB type mapping.
func initializeDuckDBMap() map[models.ValueKind]string {
	return map[models.ValueKind]string{
		models.KindBool:   "BOOLEAN",
		models.KindInt:    "BIGINT",
		models.KindFloat:  "DOUBLE",
		models.KindString: "VARCHAR",
	}
}
