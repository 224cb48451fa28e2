// Package docstore is an in-memory document store. It stands in for
// collection-oriented databases so the document purge/execute strategy has
// a concrete manager to run against.
package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/webtest/internal/orm"
)

// Store is an orm.DocumentStore keeping each collection as a slice of rows.
// Entity metadata maps entity names to collections (EntityMetadata.Table).
type Store struct {
	name  string
	metas []orm.EntityMetadata

	mu          sync.Mutex
	collections map[string][]orm.Row
	closed      bool
}

var _ orm.DocumentStore = (*Store)(nil)

// New returns an empty store.
func New(name string, metas []orm.EntityMetadata) *Store {
	return &Store{
		name:        name,
		metas:       metas,
		collections: make(map[string][]orm.Row),
	}
}

// Name implements orm.Manager.
func (s *Store) Name() string { return s.name }

// Family implements orm.Manager.
func (s *Store) Family() orm.Family { return orm.FamilyDocument }

// Metadata implements orm.Manager.
func (s *Store) Metadata() []orm.EntityMetadata { return s.metas }

// Persist implements orm.Manager. Fields not declared in metadata are kept.
func (s *Store) Persist(_ context.Context, entity string, row orm.Row) error {
	meta, err := orm.Lookup(s.metas, entity)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return orm.ErrClosed
	}
	if pk := meta.PrimaryKey(); pk != "" {
		for _, existing := range s.collections[meta.Table] {
			if existing[pk] == row[pk] {
				return fmt.Errorf("persist %s: duplicate %s %v", meta.Name, pk, row[pk])
			}
		}
	}
	doc := make(orm.Row, len(row))
	for k, v := range row {
		doc[k] = v
	}
	s.collections[meta.Table] = append(s.collections[meta.Table], doc)
	return nil
}

// Find implements orm.Manager. Documents are returned in insertion order.
func (s *Store) Find(_ context.Context, entity string) ([]orm.Row, error) {
	meta, err := orm.Lookup(s.metas, entity)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, orm.ErrClosed
	}
	docs := s.collections[meta.Table]
	out := make([]orm.Row, len(docs))
	for i, d := range docs {
		cp := make(orm.Row, len(d))
		for k, v := range d {
			cp[k] = v
		}
		out[i] = cp
	}
	return out, nil
}

// Collections implements orm.DocumentStore. Declared collections are listed
// even when empty.
func (s *Store) Collections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var names []string
	for _, m := range s.metas {
		if !seen[m.Table] {
			seen[m.Table] = true
			names = append(names, m.Table)
		}
	}
	for name := range s.collections {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// DropCollection implements orm.DocumentStore.
func (s *Store) DropCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return orm.ErrClosed
	}
	delete(s.collections, name)
	return nil
}

// Close implements orm.Manager.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
