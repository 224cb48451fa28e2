package orm

import (
	"context"
	"errors"
)

// Family identifies a store family.
type Family string

const (
	// FamilyRelational covers SQL databases.
	FamilyRelational Family = "relational"
	// FamilyDocument covers document/collection stores.
	FamilyDocument Family = "document"
)

// String implements fmt.Stringer.
func (f Family) String() string { return string(f) }

// Row is a single record keyed by column (or field) name.
type Row map[string]any

// Manager is a named persistent store.
type Manager interface {
	// Name is the manager name used for registry lookup.
	Name() string

	// Family reports which purge/execute strategy applies.
	Family() Family

	// Metadata returns every entity type registered with the manager, in
	// declaration order. The result must not be modified.
	Metadata() []EntityMetadata

	// Persist stores row as an instance of entity.
	Persist(ctx context.Context, entity string, row Row) error

	// Find returns every stored instance of entity ordered by primary key.
	Find(ctx context.Context, entity string) ([]Row, error)

	// Close releases connections held by the manager.
	Close() error
}

// Relational is implemented by managers backed by a SQL database.
type Relational interface {
	Manager
	Dialect() Dialect
	Exec(ctx context.Context, query string, args ...any) error
}

// SchemaManager is implemented by managers that can rebuild their schema.
type SchemaManager interface {
	// DropSchema removes every table owned by the manager.
	DropSchema(ctx context.Context) error
	// CreateSchema creates tables for metas.
	CreateSchema(ctx context.Context, metas []EntityMetadata) error
}

// FileDatabase is implemented by single-file embedded databases.
//
// Suspend closes every connection so the file can be copied or replaced;
// Resume reopens it. No other manager method may be called in between.
type FileDatabase interface {
	Path() string
	Suspend(ctx context.Context) error
	Resume(ctx context.Context) error
}

// DocumentStore is implemented by collection-oriented managers.
type DocumentStore interface {
	Manager
	Collections() []string
	DropCollection(ctx context.Context, name string) error
}

// FilePath returns the on-disk path of m when m is a file-backed database.
// In-memory databases report ok=false.
func FilePath(m Manager) (string, bool) {
	fdb, ok := m.(FileDatabase)
	if !ok {
		return "", false
	}
	path := fdb.Path()
	return path, path != ""
}

// Errors returned by managers and registries.
var (
	ErrUnknownManager = errors.New("orm: unknown manager")
	ErrUnknownEntity  = errors.New("orm: unknown entity")
	ErrClosed         = errors.New("orm: manager is closed")
)
