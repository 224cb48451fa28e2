// Package postgres provides a PostgreSQL-backed orm.Manager built on pgx.
//
// PostgreSQL databases are server-side, so the manager never implements
// orm.FileDatabase: fixture loads against it always take the full
// drop/create/purge/execute path.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/webtest/internal/orm"
)

// Pool exposes the subset of pgxpool behaviour the manager needs.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Option configures the pool created by Connect.
type Option func(*pgxpool.Config)

// WithMaxConns sets the maximum pool size.
func WithMaxConns(n int32) Option {
	return func(cfg *pgxpool.Config) { cfg.MaxConns = n }
}

// WithMaxConnLifetime configures the maximum connection lifetime.
func WithMaxConnLifetime(d time.Duration) Option {
	return func(cfg *pgxpool.Config) { cfg.MaxConnLifetime = d }
}

// Manager is a PostgreSQL orm.Manager.
type Manager struct {
	name  string
	pool  Pool
	metas []orm.EntityMetadata
}

var (
	_ orm.Relational    = (*Manager)(nil)
	_ orm.SchemaManager = (*Manager)(nil)
)

// Connect opens a pool for url and wraps it in a manager.
func Connect(ctx context.Context, name, url string, metas []orm.EntityMetadata, opts ...Option) (*Manager, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	cfg.MaxConns = 4
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	m, err := New(name, pool, metas)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return m, nil
}

// New wraps an existing pool. The manager takes ownership of pool.
func New(name string, pool Pool, metas []orm.EntityMetadata) (*Manager, error) {
	for _, m := range metas {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	return &Manager{name: name, pool: pool, metas: metas}, nil
}

// Name implements orm.Manager.
func (m *Manager) Name() string { return m.name }

// Family implements orm.Manager.
func (m *Manager) Family() orm.Family { return orm.FamilyRelational }

// Metadata implements orm.Manager.
func (m *Manager) Metadata() []orm.EntityMetadata { return m.metas }

// Dialect implements orm.Relational.
func (m *Manager) Dialect() orm.Dialect { return orm.DialectPostgres }

// Exec implements orm.Relational.
func (m *Manager) Exec(ctx context.Context, query string, args ...any) error {
	if m.pool == nil {
		return orm.ErrClosed
	}
	if _, err := m.pool.Exec(ctx, query, args...); err != nil {
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
	query, args, err := orm.DialectPostgres.InsertSQL(meta, row)
	if err != nil {
		return err
	}
	return m.Exec(ctx, query, args...)
}

// Find implements orm.Manager.
func (m *Manager) Find(ctx context.Context, entity string) ([]orm.Row, error) {
	if m.pool == nil {
		return nil, orm.ErrClosed
	}
	meta, err := orm.Lookup(m.metas, entity)
	if err != nil {
		return nil, err
	}
	query, args, err := orm.DialectPostgres.SelectAllSQL(meta)
	if err != nil {
		return nil, err
	}
	rows, err := m.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", meta.Table, err)
	}
	defer rows.Close()

	var out []orm.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", meta.Table, err)
		}
		row := make(orm.Row, len(meta.Columns))
		for i, c := range meta.Columns {
			if i < len(vals) {
				row[c.Name] = orm.NormalizeValue(c, vals[i])
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DropSchema implements orm.SchemaManager. Tables are dropped in reverse
// declaration order with CASCADE.
func (m *Manager) DropSchema(ctx context.Context) error {
	for i := len(m.metas) - 1; i >= 0; i-- {
		if err := m.Exec(ctx, orm.DialectPostgres.DropTableSQL(m.metas[i].Table)); err != nil {
			return err
		}
	}
	return nil
}

// CreateSchema implements orm.SchemaManager.
func (m *Manager) CreateSchema(ctx context.Context, metas []orm.EntityMetadata) error {
	for _, meta := range metas {
		stmt, err := orm.DialectPostgres.CreateTableSQL(meta)
		if err != nil {
			return err
		}
		if err := m.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close implements orm.Manager.
func (m *Manager) Close() error {
	if m.pool != nil {
		m.pool.Close()
		m.pool = nil
	}
	return nil
}
