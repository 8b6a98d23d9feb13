package models

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/TFMV/splitcheck/pkg/errors"
)

// Column describes one named column of a Table.
type Column struct {
	Name string
	Type arrow.DataType
}

// Dtype returns the display name of the column type.
func (c Column) Dtype() string {
	if c.Type == nil {
		return "object"
	}
	return c.Type.String()
}

// Shape is a (rows, cols) pair.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d)", s.Rows, s.Cols)
}

// Table is the canonical in-memory table: ordered columns and fixed-arity rows.
type Table struct {
	Columns []Column
	Rows    [][]Value
}

// NewTable builds an empty table with the given columns.
func NewTable(columns []Column) *Table {
	return &Table{Columns: columns}
}

// AppendRow appends a row; its arity must match the column count.
func (t *Table) AppendRow(row []Value) error {
	if len(row) != len(t.Columns) {
		return errors.Conversion(nil, "row %d has %d values, table has %d columns", len(t.Rows), len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.Columns) }

// Shape returns (rows, cols).
func (t *Table) Shape() Shape {
	return Shape{Rows: t.NumRows(), Cols: t.NumCols()}
}

// ColumnNames returns column names in provider order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether a column with the exact name exists.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Head returns a table sharing the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// RowMap returns row i keyed by column name.
func (t *Table) RowMap(i int) map[string]Value {
	row := t.Rows[i]
	m := make(map[string]Value, len(t.Columns))
	for j, c := range t.Columns {
		m[c.Name] = row[j]
	}
	return m
}

// Validate checks that column names are unique and every row has one value per column.
func (t *Table) Validate() error {
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if _, dup := seen[c.Name]; dup {
			return errors.Conversion(nil, "duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return errors.Conversion(nil, "row %d has %d values, table has %d columns", i, len(row), len(t.Columns))
		}
	}
	return nil
}
