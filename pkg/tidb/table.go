package tidb

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Table is a named handle onto one table. Handles from Client.Table
// follow the client's default scope; handles from Database.Table are
// qualified and pin their database explicitly.
type Table struct {
	db     string
	name   string
	client engine
}

func (t *Table) Name() string { return t.name }

// qualified returns the quoted table reference used in generated SQL.
func (t *Table) qualified() string {
	if t.db == "" {
		return QuoteIdentifier(t.name)
	}
	return QuoteIdentifier(t.db) + "." + QuoteIdentifier(t.name)
}

// Column describes one column of a table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// SelectOption adjusts how Select and Search build their queries.
type SelectOption func(*selectQuery)

type selectQuery struct {
	columns []string
	orderBy string
	desc    bool
	limit   int
}

// WithColumns restricts the projection to the given columns instead of *.
func WithColumns(columns ...string) SelectOption {
	return func(q *selectQuery) { q.columns = columns }
}

// WithOrderBy sorts the result by the given column.
func WithOrderBy(column string, desc bool) SelectOption {
	return func(q *selectQuery) {
		q.orderBy = column
		q.desc = desc
	}
}

// WithLimit caps the number of returned rows.
func WithLimit(n int) SelectOption {
	return func(q *selectQuery) { q.limit = n }
}

// Insert adds one row, given as column name to value. Rows that do not
// fit the table's shape fail with ErrSchemaViolation.
func (t *Table) Insert(ctx context.Context, row map[string]any) (*ExecResult, error) {
	if len(row) == 0 {
		return nil, fmt.Errorf("%w: row has no columns", ErrSchemaViolation)
	}
	columns := sortedKeys(row)
	args := make([]any, 0, len(columns))
	for _, col := range columns {
		args = append(args, row[col])
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.qualified(), strings.Join(quoteAll(columns), ", "), placeholders(len(columns)))
	return t.exec(ctx, stmt, args...)
}

// BulkInsert adds many rows in one statement. Every row must carry the
// same column set; a mismatch fails with ErrSchemaViolation before any
// SQL is sent.
func (t *Table) BulkInsert(ctx context.Context, rows []map[string]any) (*ExecResult, error) {
	if len(rows) == 0 {
		return &ExecResult{}, nil
	}
	columns := sortedKeys(rows[0])
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: row has no columns", ErrSchemaViolation)
	}
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrSchemaViolation, i, len(row), len(columns))
		}
		for _, col := range columns {
			val, ok := row[col]
			if !ok {
				return nil, fmt.Errorf("%w: row %d is missing column %q", ErrSchemaViolation, i, col)
			}
			args = append(args, val)
		}
	}
	tuple := "(" + placeholders(len(columns)) + ")"
	tuples := make([]string, len(rows))
	for i := range tuples {
		tuples[i] = tuple
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		t.qualified(), strings.Join(quoteAll(columns), ", "), strings.Join(tuples, ", "))
	return t.exec(ctx, stmt, args...)
}

// Update sets the given columns on every row matching filters. Nil
// filters update the whole table.
func (t *Table) Update(ctx context.Context, values map[string]any, filters Filters) (*ExecResult, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no columns to update", ErrSchemaViolation)
	}
	columns := sortedKeys(values)
	assignments := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for _, col := range columns {
		assignments = append(assignments, QuoteIdentifier(col)+" = ?")
		args = append(args, values[col])
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s", t.qualified(), strings.Join(assignments, ", "))
	where, whereArgs, err := CompileFilters(filters)
	if err != nil {
		return nil, err
	}
	if where != "" {
		stmt += " WHERE " + where
		args = append(args, whereArgs...)
	}
	return t.exec(ctx, stmt, args...)
}

// Delete removes every row matching filters. Nil filters empty the
// table row by row; Truncate is the cheaper way to do that.
func (t *Table) Delete(ctx context.Context, filters Filters) (*ExecResult, error) {
	stmt := "DELETE FROM " + t.qualified()
	where, args, err := CompileFilters(filters)
	if err != nil {
		return nil, err
	}
	if where != "" {
		stmt += " WHERE " + where
	}
	return t.exec(ctx, stmt, args...)
}

// Select returns the rows matching filters.
func (t *Table) Select(ctx context.Context, filters Filters, opts ...SelectOption) (*Result, error) {
	where, args, err := CompileFilters(filters)
	if err != nil {
		return nil, err
	}
	return t.query(ctx, where, args, "", opts)
}

// Search returns rows whose column matches the full-text query, most
// relevant first unless an explicit order is given. The column needs a
// full-text index, see CreateFullTextIndex.
func (t *Table) Search(ctx context.Context, column, query string, filters Filters, opts ...SelectOption) (*Result, error) {
	match := fmt.Sprintf("fts_match_word(?, %s)", QuoteIdentifier(column))
	where, filterArgs, err := CompileFilters(filters)
	if err != nil {
		return nil, err
	}
	args := append([]any{query}, filterArgs...)
	if where != "" {
		where = match + " AND " + where
	} else {
		where = match
	}
	return t.query(ctx, where, args, match+" DESC", opts)
}

func (t *Table) query(ctx context.Context, where string, args []any, defaultOrder string, opts []SelectOption) (*Result, error) {
	q := selectQuery{}
	for _, opt := range opts {
		opt(&q)
	}
	projection := "*"
	if len(q.columns) > 0 {
		projection = strings.Join(quoteAll(q.columns), ", ")
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s", projection, t.qualified())
	if where != "" {
		stmt += " WHERE " + where
	}
	switch {
	case q.orderBy != "":
		stmt += " ORDER BY " + QuoteIdentifier(q.orderBy)
		if q.desc {
			stmt += " DESC"
		}
	case defaultOrder != "":
		// Relevance ordering repeats the match expression, so its
		// argument rides along a second time.
		stmt += " ORDER BY " + defaultOrder
		args = append(args, args[0])
	}
	if q.limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", q.limit)
	}
	conn, err := t.client.sess()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query table %q: %w", t.name, classifyEngineError(err))
	}
	return newResult(rows)
}

// Count returns the number of rows matching filters, the whole table
// for nil filters.
func (t *Table) Count(ctx context.Context, filters Filters) (int64, error) {
	stmt := "SELECT COUNT(*) FROM " + t.qualified()
	where, args, err := CompileFilters(filters)
	if err != nil {
		return 0, err
	}
	if where != "" {
		stmt += " WHERE " + where
	}
	conn, err := t.client.sess()
	if err != nil {
		return 0, err
	}
	rows, err := conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count table %q: %w", t.name, classifyEngineError(err))
	}
	res, err := newResult(rows)
	if err != nil {
		return 0, err
	}
	val, err := res.Scalar()
	if err != nil {
		return 0, err
	}
	return asInt64(val)
}

// Exists reports whether the table exists.
func (t *Table) Exists(ctx context.Context) (bool, error) {
	if t.db == "" {
		return t.client.HasTable(ctx, t.name)
	}
	conn, err := t.client.sess()
	if err != nil {
		return false, err
	}
	return hasTable(ctx, conn, t.db, t.name)
}

// Columns describes the table's columns in definition order. A missing
// table fails with ErrNotFound.
func (t *Table) Columns(ctx context.Context) ([]Column, error) {
	conn, err := t.client.sess()
	if err != nil {
		return nil, err
	}
	schema := "DATABASE()"
	args := []any{t.name}
	if t.db != "" {
		schema = "?"
		args = []any{t.db, t.name}
	}
	rows, err := conn.QueryContext(ctx,
		"SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE FROM INFORMATION_SCHEMA.COLUMNS"+
			" WHERE TABLE_SCHEMA = "+schema+" AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %q: %w", t.name, classifyEngineError(err))
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q %w", t.name, ErrNotFound)
	}
	return columns, nil
}

// CreateIndex adds a secondary index over the given columns. A taken
// index name fails with ErrAlreadyExists.
func (t *Table) CreateIndex(ctx context.Context, name string, columns ...string) error {
	if len(columns) == 0 {
		return fmt.Errorf("%w: index %q has no columns", ErrSchemaViolation, name)
	}
	stmt := fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
		QuoteIdentifier(name), t.qualified(), strings.Join(quoteAll(columns), ", "))
	_, err := t.exec(ctx, stmt)
	return err
}

// CreateFullTextIndex adds a full-text index over one text column,
// enabling Search on it.
func (t *Table) CreateFullTextIndex(ctx context.Context, name, column string) error {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD FULLTEXT INDEX %s (%s) WITH PARSER STANDARD",
		t.qualified(), QuoteIdentifier(name), QuoteIdentifier(column))
	_, err := t.exec(ctx, stmt)
	return err
}

// DropIndex removes the named index. A missing index fails with
// ErrNotFound.
func (t *Table) DropIndex(ctx context.Context, name string) error {
	stmt := fmt.Sprintf("DROP INDEX %s ON %s", QuoteIdentifier(name), t.qualified())
	_, err := t.exec(ctx, stmt)
	return err
}

// Truncate removes all rows.
func (t *Table) Truncate(ctx context.Context) error {
	_, err := t.exec(ctx, "TRUNCATE TABLE "+t.qualified())
	return err
}

func (t *Table) exec(ctx context.Context, stmt string, args ...any) (*ExecResult, error) {
	conn, err := t.client.sess()
	if err != nil {
		return nil, err
	}
	res, err := conn.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to modify table %q: %w", t.name, classifyEngineError(err))
	}
	return newExecResult(res), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = "?"
	}
	return strings.Join(ps, ", ")
}
