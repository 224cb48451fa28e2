// Package sqlite provides a SQLite-backed orm.Manager.
//
// A manager opened on a file path is a single-file embedded database: it
// implements orm.FileDatabase so fixture snapshots can be copied over the
// live file. A manager opened on ":memory:" is not file backed.
//
// # Database Configuration
//
//   - WAL mode for file databases (readers do not block the writer)
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// The connection pool is limited to one connection. SQLite allows a single
// writer, and Suspend must be able to close every connection so the WAL is
// checkpointed into the main file before it is copied.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/webtest/internal/orm"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Manager is a SQLite orm.Manager.
type Manager struct {
	name  string
	path  string
	metas []orm.EntityMetadata

	mu sync.Mutex
	db *sql.DB
}

var (
	_ orm.Relational    = (*Manager)(nil)
	_ orm.SchemaManager = (*Manager)(nil)
	_ orm.FileDatabase  = (*Manager)(nil)
)

// Open creates or opens a SQLite database at path and returns a manager
// named name that owns metas. The schema is not created; use CreateSchema.
func Open(name, path string, metas []orm.EntityMetadata) (*Manager, error) {
	for _, m := range metas {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	m := &Manager{name: name, path: path, metas: metas}
	db, err := m.open()
	if err != nil {
		return nil, err
	}
	m.db = db
	return m, nil
}

func (m *Manager) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", m.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, and an in-memory database
	// lives only as long as its single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db, m.path != MemoryPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return db, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, file bool) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if file {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Name implements orm.Manager.
func (m *Manager) Name() string { return m.name }

// Family implements orm.Manager.
func (m *Manager) Family() orm.Family { return orm.FamilyRelational }

// Metadata implements orm.Manager.
func (m *Manager) Metadata() []orm.EntityMetadata { return m.metas }

// Dialect implements orm.Relational.
func (m *Manager) Dialect() orm.Dialect { return orm.DialectSQLite }

// Path implements orm.FileDatabase. In-memory databases report "".
func (m *Manager) Path() string {
	if m.path == MemoryPath || m.path == "" {
		return ""
	}
	return m.path
}

// DB returns the underlying sql.DB for direct queries.
// The handle is invalidated by Suspend.
func (m *Manager) DB() *sql.DB {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db
}

func (m *Manager) conn() (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil, orm.ErrClosed
	}
	return m.db, nil
}

// Exec implements orm.Relational.
func (m *Manager) Exec(ctx context.Context, query string, args ...any) error {
	db, err := m.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec %q: %w", query, err)
	}
	return nil
}

// Persist implements orm.Manager.
func (m *Manager) Persist(ctx context.Context, entity string, row orm.Row) error {
	meta, err := orm.Lookup(m.metas, entity)
	if err != nil {
		return err
	}
	query, args, err := orm.DialectSQLite.InsertSQL(meta, row)
	if err != nil {
		return err
	}
	return m.Exec(ctx, query, args...)
}

// Find implements orm.Manager.
func (m *Manager) Find(ctx context.Context, entity string) ([]orm.Row, error) {
	meta, err := orm.Lookup(m.metas, entity)
	if err != nil {
		return nil, err
	}
	query, args, err := orm.DialectSQLite.SelectAllSQL(meta)
	if err != nil {
		return nil, err
	}
	db, err := m.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", meta.Table, err)
	}
	defer rows.Close()

	var out []orm.Row
	for rows.Next() {
		vals := make([]any, len(meta.Columns))
		ptrs := make([]any, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", meta.Table, err)
		}
		row := make(orm.Row, len(vals))
		for i, c := range meta.Columns {
			row[c.Name] = orm.NormalizeValue(c, vals[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DropSchema implements orm.SchemaManager by dropping every user table,
// including tables the manager's metadata no longer declares.
func (m *Manager) DropSchema(ctx context.Context) error {
	db, err := m.conn()
	if err != nil {
		return err
	}
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// Foreign keys would otherwise make drop order significant.
	return m.withoutForeignKeys(ctx, func() error {
		for _, table := range tables {
			if err := m.Exec(ctx, orm.DialectSQLite.DropTableSQL(`"`+table+`"`)); err != nil {
				return err
			}
		}
		return nil
	})
}

// withoutForeignKeys runs fn with foreign key enforcement off and turns it
// back on whether or not fn fails.
func (m *Manager) withoutForeignKeys(ctx context.Context, fn func() error) (err error) {
	if err := m.Exec(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return err
	}
	defer func() {
		if onErr := m.Exec(context.WithoutCancel(ctx), "PRAGMA foreign_keys = ON"); onErr != nil && err == nil {
			err = onErr
		}
	}()
	return fn()
}

// CreateSchema implements orm.SchemaManager.
func (m *Manager) CreateSchema(ctx context.Context, metas []orm.EntityMetadata) error {
	for _, meta := range metas {
		stmt, err := orm.DialectSQLite.CreateTableSQL(meta)
		if err != nil {
			return err
		}
		if err := m.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Suspend implements orm.FileDatabase. Closing the last connection
// checkpoints the WAL into the main database file.
func (m *Manager) Suspend(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return orm.ErrClosed
	}
	if m.path != MemoryPath {
		if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}
	}
	err := m.db.Close()
	m.db = nil
	return err
}

// Resume implements orm.FileDatabase.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		return nil
	}
	db, err := m.open()
	if err != nil {
		return err
	}
	m.db = db
	return nil
}

// Close implements orm.Manager. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	if err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (m *Manager) verifyPragma(name, expected string) error {
	db, err := m.conn()
	if err != nil {
		return err
	}
	var value string
	if err := db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
