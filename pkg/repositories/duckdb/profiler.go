// Package duckdb provides a DuckDB-backed table profiler.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/marcboeker/go-duckdb/v2"
	"github.com/rs/zerolog"

	"github.com/TFMV/splitcheck/pkg/errors"
	"github.com/TFMV/splitcheck/pkg/infrastructure/converter"
	"github.com/TFMV/splitcheck/pkg/models"
	"github.com/TFMV/splitcheck/pkg/profile"
)

// ordinalColumn records the source row position of each appended row.
const ordinalColumn = "__splitcheck_row"

// Profiler implements profile.Profiler by appending the table into DuckDB
// and aggregating with SQL.
type Profiler struct {
	db     *sql.DB
	types  converter.TypeConverter
	logger zerolog.Logger
	seq    atomic.Int64
}

var _ profile.Profiler = (*Profiler)(nil)

// NewProfiler opens a DuckDB database. An empty dsn opens an in-memory database.
func NewProfiler(dsn string, types converter.TypeConverter, logger zerolog.Logger) (*Profiler, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to open duckdb")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to connect to duckdb")
	}
	return &Profiler{
		db:     db,
		types:  types,
		logger: logger.With().Str("component", "duckdb").Logger(),
	}, nil
}

// Close closes the database.
func (p *Profiler) Close() error {
	return p.db.Close()
}

// ColumnInfo implements profile.Profiler.
func (p *Profiler) ColumnInfo(ctx context.Context, t *models.Table) ([]profile.ColumnInfo, error) {
	cols := make([]int, t.NumCols())
	for j := range cols {
		cols[j] = j
	}

	infos := make([]profile.ColumnInfo, t.NumCols())
	for j, c := range t.Columns {
		infos[j] = profile.ColumnInfo{Index: j, Name: c.Name, Dtype: c.Dtype()}
	}
	if len(infos) == 0 {
		return infos, nil
	}

	err := p.withTable(ctx, t, cols, func(conn *sql.Conn, table string) error {
		exprs := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			exprs[j] = "count(" + quoteIdentifier(c.Name) + ")"
		}
		query := "SELECT " + strings.Join(exprs, ", ") + " FROM " + table

		counts := make([]int64, len(exprs))
		dest := make([]interface{}, len(exprs))
		for j := range counts {
			dest[j] = &counts[j]
		}
		if err := conn.QueryRowContext(ctx, query).Scan(dest...); err != nil {
			return errors.Wrapf(err, errors.CodeInternal, "failed to count non-null values: %s", query)
		}
		for j, n := range counts {
			infos[j].NonNull = int(n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// ValueCounts implements profile.Profiler.
func (p *Profiler) ValueCounts(ctx context.Context, t *models.Table, column string) ([]profile.ValueCount, error) {
	j := t.ColumnIndex(column)
	if j < 0 {
		return nil, errors.New(errors.CodeInvalidRequest, "column "+column+" does not exist")
	}

	var counts []profile.ValueCount
	err := p.withTable(ctx, t, []int{j}, func(conn *sql.Conn, table string) error {
		col := quoteIdentifier(column)
		query := fmt.Sprintf(
			"SELECT %s, count(*) AS n, min(%s) AS first_seen FROM %s WHERE %s IS NOT NULL GROUP BY 1 ORDER BY n DESC, first_seen ASC",
			col, quoteIdentifier(ordinalColumn), table, col,
		)

		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return errors.Wrapf(err, errors.CodeInternal, "failed to count values: %s", query)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				value     interface{}
				n, ignore int64
			)
			if err := rows.Scan(&value, &n, &ignore); err != nil {
				return errors.Wrap(err, errors.CodeInternal, "failed to scan value count")
			}
			counts = append(counts, profile.ValueCount{Value: models.ValueOf(value), Count: int(n)})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// withTable appends the selected columns of t into a fresh table, calls fn on
// the same connection, and drops the table afterwards.
func (p *Profiler) withTable(ctx context.Context, t *models.Table, cols []int, fn func(conn *sql.Conn, table string) error) error {
	start := time.Now()

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "failed to get duckdb connection")
	}
	defer conn.Close()

	name := fmt.Sprintf("split_profile_%d", p.seq.Add(1))
	table := quoteIdentifier(name)

	colTypes := make([]string, len(cols))
	defs := make([]string, 0, len(cols)+1)
	defs = append(defs, quoteIdentifier(ordinalColumn)+" BIGINT")
	for k, j := range cols {
		kinds := make(map[models.ValueKind]bool)
		for _, row := range t.Rows {
			kinds[row[j].Kind] = true
		}
		colTypes[k] = p.types.DuckDBType(kinds)
		defs = append(defs, quoteIdentifier(t.Columns[j].Name)+" "+colTypes[k])
	}

	stmt := "CREATE TABLE " + table + " (" + strings.Join(defs, ", ") + ")"
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "failed to create table: %s", stmt)
	}
	defer func() {
		if _, err := conn.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+table); err != nil {
			p.logger.Warn().Err(err).Str("table", name).Msg("Failed to drop profile table")
		}
	}()

	if err := p.appendRows(ctx, conn, name, t, cols, colTypes); err != nil {
		return err
	}

	p.logger.Debug().
		Str("table", name).
		Int("rows", t.NumRows()).
		Int("columns", len(cols)).
		Dur("duration", time.Since(start)).
		Msg("Loaded table into duckdb")

	return fn(conn, table)
}

func (p *Profiler) appendRows(ctx context.Context, conn *sql.Conn, table string, t *models.Table, cols []int, colTypes []string) error {
	return conn.Raw(func(driverConnRaw interface{}) error {
		driverConn, ok := driverConnRaw.(driver.Conn)
		if !ok {
			return errors.New(errors.CodeInternal, fmt.Sprintf("expected driver.Conn, got %T", driverConnRaw))
		}

		appender, err := duckdb.NewAppenderFromConn(driverConn, "", table)
		if err != nil {
			return errors.Wrapf(err, errors.CodeInternal, "failed to create appender for %s", table)
		}

		args := make([]driver.Value, len(cols)+1)
		for i, row := range t.Rows {
			if i%4096 == 0 {
				if err := ctx.Err(); err != nil {
					appender.Close()
					return err
				}
			}
			args[0] = int64(i)
			for k, j := range cols {
				args[k+1] = coerce(row[j], colTypes[k])
			}
			if err := appender.AppendRow(args...); err != nil {
				appender.Close()
				return errors.Wrapf(err, errors.CodeInternal, "failed to append row %d", i)
			}
		}

		if err := appender.Close(); err != nil {
			return errors.Wrapf(err, errors.CodeInternal, "failed to flush appender for %s", table)
		}
		return nil
	})
}

// coerce converts v into the Go type DuckDB expects for colType.
func coerce(v models.Value, colType string) driver.Value {
	if v.IsNull() {
		return nil
	}
	switch colType {
	case "DOUBLE":
		if i, ok := v.Int(); ok {
			return float64(i)
		}
		f, _ := v.Float()
		return f
	case "BIGINT", "BOOLEAN":
		return v.Interface()
	default:
		return v.String()
	}
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
