package tidb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// ExecResult reports the outcome of a statement that returns no rows.
type ExecResult struct {
	RowsAffected int64
	LastInsertID int64
}

func newExecResult(res sql.Result) *ExecResult {
	out := &ExecResult{}
	// Both accessors can fail for statements the engine reports nothing
	// for; zero is the right answer there.
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out
}

// Result is a fully materialized query result. It is immutable once
// returned; the extraction helpers never touch the engine again.
type Result struct {
	columns []string
	rows    [][]any
}

// NewResult assembles a Result from already-fetched data. Fakes and
// tests build results this way; live queries get theirs from
// Client.Query.
func NewResult(columns []string, rows [][]any) *Result {
	return &Result{columns: columns, rows: rows}
}

// newResult drains rows into memory, converting []byte cells to string the
// way the engine's text protocol intends.
func newResult(rows *sql.Rows) (*Result, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var all [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		all = append(all, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &Result{columns: columns, rows: all}, nil
}

// Columns returns the column names in engine order.
func (r *Result) Columns() []string {
	return r.columns
}

// Rows returns every row as a positional tuple, in result order.
func (r *Result) Rows() [][]any {
	return r.rows
}

// Count returns the number of rows.
func (r *Result) Count() int {
	return len(r.rows)
}

// Scalar returns the single value of a one-column result. Multi-column or
// multi-row results fail with ErrResultShape; an empty result yields nil.
func (r *Result) Scalar() (any, error) {
	if len(r.columns) > 1 {
		return nil, fmt.Errorf("%w: expected one column, got %d", ErrResultShape, len(r.columns))
	}
	if len(r.rows) > 1 {
		return nil, fmt.Errorf("%w: expected at most one row, got %d", ErrResultShape, len(r.rows))
	}
	if len(r.rows) == 0 {
		return nil, nil
	}
	return r.rows[0][0], nil
}

// One returns the only row of the result. Zero or multiple rows fail with
// ErrResultShape.
func (r *Result) One() ([]any, error) {
	if len(r.rows) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one row, got %d", ErrResultShape, len(r.rows))
	}
	return r.rows[0], nil
}

// Maps returns every row keyed by column name.
func (r *Result) Maps() []map[string]any {
	out := make([]map[string]any, len(r.rows))
	for i, row := range r.rows {
		m := make(map[string]any, len(r.columns))
		for j, col := range r.columns {
			m[col] = row[j]
		}
		out[i] = m
	}
	return out
}

// Unmarshal decodes the rows into dest, a pointer to a slice of structs
// whose json tags match the column names.
func (r *Result) Unmarshal(dest any) error {
	buf, err := json.Marshal(r.Maps())
	if err != nil {
		return fmt.Errorf("failed to encode rows: %w", err)
	}
	if err := json.Unmarshal(buf, dest); err != nil {
		return fmt.Errorf("failed to decode rows: %w", err)
	}
	return nil
}

// RenderTable writes the result as an aligned text table.
func (r *Result) RenderTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(r.columns)
	for _, row := range r.rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		table.Append(cells)
	}
	table.Render()
}

func (r *Result) String() string {
	var sb strings.Builder
	r.RenderTable(&sb)
	return sb.String()
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// asInt64 converts the values the driver produces for integer columns. The
// text protocol returns numbers as strings, the binary protocol as int64.
func asInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case uint64:
		return int64(t), nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse integer %q: %w", t, err)
		}
		return n, nil
	case []byte:
		return asInt64(string(t))
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", v)
	}
}
