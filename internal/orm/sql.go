package orm

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// validIdentifier matches SQL identifiers that are safe to interpolate.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Dialect selects SQL syntax for a relational manager.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// String implements fmt.Stringer.
func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	default:
		return "sqlite"
	}
}

// Builder returns a squirrel statement builder using the dialect's placeholders.
func (d Dialect) Builder() sq.StatementBuilderType {
	if d == DialectPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

func (d Dialect) columnType(t ColumnType) string {
	switch t {
	case TypeInteger:
		if d == DialectPostgres {
			return "BIGINT"
		}
		return "INTEGER"
	case TypeBoolean:
		if d == DialectPostgres {
			return "BOOLEAN"
		}
		return "INTEGER"
	case TypeBlob:
		if d == DialectPostgres {
			return "BYTEA"
		}
		return "BLOB"
	default:
		return "TEXT"
	}
}

// CreateTableSQL renders the CREATE TABLE statement for m.
func (d Dialect) CreateTableSQL(m EntityMetadata) (string, error) {
	return d.createTable(m, "CREATE TABLE")
}

// CreateMissingTableSQL is CreateTableSQL guarded by IF NOT EXISTS, leaving
// an existing table and its rows alone.
func (d Dialect) CreateMissingTableSQL(m EntityMetadata) (string, error) {
	return d.createTable(m, "CREATE TABLE IF NOT EXISTS")
}

func (d Dialect) createTable(m EntityMetadata, verb string) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	defs := make([]string, 0, len(m.Columns))
	for _, c := range m.Columns {
		def := c.Name + " " + d.columnType(c.Type)
		if !c.Nullable || c.PrimaryKey {
			def += " NOT NULL"
		}
		if c.PrimaryKey {
			def += " PRIMARY KEY"
		} else if c.Unique {
			def += " UNIQUE"
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("%s %s (%s)", verb, m.Table, strings.Join(defs, ", ")), nil
}

// DropTableSQL renders a DROP TABLE statement that tolerates missing tables.
func (d Dialect) DropTableSQL(table string) string {
	if d == DialectPostgres {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)
	}
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
}

// TruncateSQL renders a statement removing every row of table and resetting
// identity sequences where the dialect has them. SQLite has no TRUNCATE, so
// a plain DELETE is used.
func (d Dialect) TruncateSQL(table string) string {
	if d == DialectPostgres {
		return fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)
	}
	return fmt.Sprintf("DELETE FROM %s", table)
}

// DeleteSQL renders a DELETE of every row of table.
func (d Dialect) DeleteSQL(table string) (string, []any, error) {
	return d.Builder().Delete(table).ToSql()
}

// InsertSQL renders an INSERT of row into m's table. Columns are emitted in
// sorted order so statements are stable. Unknown columns are rejected.
func (d Dialect) InsertSQL(m EntityMetadata, row Row) (string, []any, error) {
	if len(row) == 0 {
		return "", nil, fmt.Errorf("insert into %s: empty row", m.Table)
	}
	cols := make([]string, 0, len(row))
	for name := range row {
		if _, ok := m.Column(name); !ok {
			return "", nil, fmt.Errorf("insert into %s: unknown column %q", m.Table, name)
		}
		cols = append(cols, name)
	}
	sort.Strings(cols)
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = row[c]
	}
	return d.Builder().Insert(m.Table).Columns(cols...).Values(vals...).ToSql()
}

// SelectAllSQL renders a SELECT of every column of m ordered by primary key.
func (d Dialect) SelectAllSQL(m EntityMetadata) (string, []any, error) {
	q := d.Builder().Select(m.ColumnNames()...).From(m.Table)
	if pk := m.PrimaryKey(); pk != "" {
		q = q.OrderBy(pk)
	}
	return q.ToSql()
}

// NormalizeValue converts a scanned driver value to the Go type implied by
// the column: text as string, booleans as bool.
func NormalizeValue(c Column, v any) any {
	switch val := v.(type) {
	case []byte:
		if c.Type == TypeBlob {
			return val
		}
		return string(val)
	case int64:
		if c.Type == TypeBoolean {
			return val != 0
		}
	}
	return v
}
