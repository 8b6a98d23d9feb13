package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/TFMV/splitcheck/pkg/models"
	"github.com/TFMV/splitcheck/pkg/profile"
)

const (
	// RuleWidth is the width of separator rules.
	RuleWidth = 100
	// MaxCellWidth is the number of runes shown per head cell.
	MaxCellWidth = 40
)

// Rule returns a separator line of ch.
func Rule(ch string) string {
	return strings.Repeat(ch, RuleWidth)
}

// cellSpaces flattens characters that would break a row or add a tabwriter column.
var cellSpaces = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

// Truncate shortens s to max runes, ending in "..." when cut. Line breaks
// and tabs become spaces.
func Truncate(s string, max int) string {
	s = cellSpaces.Replace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return "..."
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}

// aligned renders rows as tab-aligned columns.
func aligned(rows [][]string) []string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintln(w, strings.Join(r, "\t"))
	}
	w.Flush()

	out := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	for i, l := range out {
		out[i] = strings.TrimRight(l, " ")
	}
	return out
}

// FormatHead renders the first n rows of t with a row-index column.
func FormatHead(t *models.Table, n int) []string {
	head := t.Head(n)
	if head.NumCols() == 0 {
		return []string{fmt.Sprintf("Empty table: %d rows, 0 columns", t.NumRows())}
	}

	rows := make([][]string, 0, head.NumRows()+1)
	header := []string{""}
	for _, name := range head.ColumnNames() {
		header = append(header, cellSpaces.Replace(name))
	}
	rows = append(rows, header)
	for i, row := range head.Rows {
		cells := make([]string, 0, len(row)+1)
		cells = append(cells, fmt.Sprint(i))
		for _, v := range row {
			cells = append(cells, Truncate(v.String(), MaxCellWidth))
		}
		rows = append(rows, cells)
	}
	return aligned(rows)
}

// FormatColumnInfo renders a column summary in the layout of pandas' info().
func FormatColumnInfo(t *models.Table, infos []profile.ColumnInfo) []string {
	lines := []string{"<class 'splitcheck.Table'>"}
	if t.NumRows() == 0 {
		lines = append(lines, "RangeIndex: 0 entries")
	} else {
		lines = append(lines, fmt.Sprintf("RangeIndex: %d entries, 0 to %d", t.NumRows(), t.NumRows()-1))
	}
	lines = append(lines, fmt.Sprintf("Data columns (total %d columns):", len(infos)))

	rows := [][]string{
		{" #", "Column", "Non-Null Count", "Dtype"},
		{"---", "------", "--------------", "-----"},
	}
	dtypes := make(map[string]int)
	for _, info := range infos {
		rows = append(rows, []string{
			fmt.Sprintf(" %d", info.Index),
			info.Name,
			fmt.Sprintf("%d non-null", info.NonNull),
			info.Dtype,
		})
		dtypes[info.Dtype]++
	}
	lines = append(lines, aligned(rows)...)

	names := make([]string, 0, len(dtypes))
	for d := range dtypes {
		names = append(names, d)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, d := range names {
		parts[i] = fmt.Sprintf("%s(%d)", d, dtypes[d])
	}
	return append(lines, "dtypes: "+strings.Join(parts, ", "))
}

// FormatValueCounts renders one "<value>  <count>" line per entry.
func FormatValueCounts(counts []profile.ValueCount) []string {
	if len(counts) == 0 {
		return nil
	}
	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{Truncate(c.Value.String(), MaxCellWidth), fmt.Sprint(c.Count)}
	}
	return aligned(rows)
}

// SummaryLine renders one split of the run summary.
func SummaryLine(r models.SplitResult) string {
	if !r.Succeeded() {
		return fmt.Sprintf("[FAIL] %-12s: FAILED", r.Split)
	}
	return fmt.Sprintf("[OK] %-12s: %5d rows × %d cols", r.Split, r.Shape.Rows, r.Shape.Cols)
}

// MismatchLine renders one split's column set in a mismatch warning.
func MismatchLine(sc models.SplitColumns) string {
	return fmt.Sprintf("   %s: %s", sc.Split, models.FormatColumnSet(sc.Columns))
}
