package datarecording

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/structs"
)

// ErrNoRecording is returned when the file to read does not exist.
var ErrNoRecording = errors.New("recording not found")

// ErrUnmappedTable is returned when a table is queried before MapTable.
var ErrUnmappedTable = errors.New("table is not mapped")

// QueryParams narrows and orders the rows a query returns.
type QueryParams struct {
	// Where is a condition without the WHERE keyword, such as "Kind = ?".
	Where string
	Args  []any

	// Limit caps the number of rows, zero meaning all of them. Offset only
	// applies together with a limit.
	Limit  int
	Offset int

	// OrderBy is a sort expression without the ORDER BY keywords.
	OrderBy string
}

// DataReader reads back the tables a DataRecorder wrote.
type DataReader interface {
	// MapTable declares that the rows of a table fill structs of the type of
	// sampleEntry. The columns are matched by field name.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the mapped tables in sorted order.
	ListTables() []string

	// StoredTables returns the tables present in the file in sorted order.
	StoredTables(ctx context.Context) ([]string, error)

	// Count returns the number of rows matching where. An empty where counts
	// every row.
	Count(ctx context.Context, tableName, where string, args ...any) (int, error)

	// CountBy groups the rows of a table by the value of a column and
	// returns the size of each group.
	CountBy(ctx context.Context, tableName, column string) (map[string]int, error)

	// Query returns pointers to structs filled from the matching rows, and
	// the number of rows matching the condition regardless of the limit.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	Close() error
}

// A tableMapping is the row type of a table and the columns to select into
// its fields, in field order.
type tableMapping struct {
	rowType reflect.Type
	columns []string
}

type sqliteReader struct {
	db       *sql.DB
	mappings map[string]tableMapping
}

// NewReader opens a recording read-only. The filename includes the
// ".sqlite3" extension.
func NewReader(dbFilename string) (DataReader, error) {
	if _, err := os.Stat(dbFilename); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoRecording, dbFilename)
		}

		return nil, err
	}

	db, err := sql.Open("sqlite3", "file:"+dbFilename+"?mode=ro")
	if err != nil {
		return nil, err
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a DataReader on an open database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		db:       db,
		mappings: make(map[string]tableMapping),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	r.mappings[tableName] = tableMapping{
		rowType: reflect.TypeOf(sampleEntry),
		columns: structs.Names(sampleEntry),
	}
}

func (r *sqliteReader) ListTables() []string {
	names := make([]string, 0, len(r.mappings))
	for name := range r.mappings {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *sqliteReader) StoredTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		names = append(names, name)
	}

	return names, rows.Err()
}

func (r *sqliteReader) Count(
	ctx context.Context,
	tableName, where string,
	args ...any,
) (int, error) {
	stmt := "SELECT COUNT(*) FROM " + quoteIdent(tableName)
	if where != "" {
		stmt += " WHERE " + where
	}

	var n int
	if err := r.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows of %s: %w", tableName, err)
	}

	return n, nil
}

func (r *sqliteReader) CountBy(
	ctx context.Context,
	tableName, column string,
) (map[string]int, error) {
	col := quoteIdent(column)
	stmt := "SELECT " + col + ", COUNT(*) FROM " + quoteIdent(tableName) +
		" GROUP BY " + col

	rows, err := r.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("grouping %s by %s: %w", tableName, column, err)
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var (
			key sql.NullString
			n   int
		)

		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}

		counts[key.String] += n
	}

	return counts, rows.Err()
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	m, ok := r.mappings[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnmappedTable, tableName)
	}

	total, err := r.Count(ctx, tableName, params.Where, params.Args...)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, m.selectStatement(tableName, params),
		params.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying %s: %w", tableName, err)
	}
	defer rows.Close()

	var results []any

	for rows.Next() {
		row, err := m.scan(rows)
		if err != nil {
			return nil, 0, err
		}

		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

func (m tableMapping) selectStatement(tableName string, params QueryParams) string {
	var b strings.Builder

	b.WriteString("SELECT ")

	for i, c := range m.columns {
		if i > 0 {
			b.WriteString(", ")
		}

		b.WriteString(quoteIdent(c))
	}

	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(tableName))

	if params.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(params.Where)
	}

	if params.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(params.OrderBy)
	}

	if params.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", params.Limit, params.Offset)
	}

	return b.String()
}

// scan fills a new row struct from a row of selectStatement.
func (m tableMapping) scan(rows *sql.Rows) (any, error) {
	row := reflect.New(m.rowType)
	fields := row.Elem()

	targets := make([]any, len(m.columns))
	for i, name := range m.columns {
		targets[i] = fields.FieldByName(name).Addr().Interface()
	}

	if err := rows.Scan(targets...); err != nil {
		return nil, err
	}

	return row.Interface(), nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}
