package fixture

import (
	"context"
	"fmt"

	"github.com/roach88/webtest/internal/orm"
)

// PurgeMode selects how a purger empties tables.
type PurgeMode int

const (
	// PurgeModeDelete removes rows with DELETE statements.
	PurgeModeDelete PurgeMode = 1
	// PurgeModeTruncate removes rows with TRUNCATE (or the dialect's closest
	// equivalent), resetting identity sequences.
	PurgeModeTruncate PurgeMode = 2
)

// String implements fmt.Stringer.
func (m PurgeMode) String() string {
	switch m {
	case PurgeModeDelete:
		return "delete"
	case PurgeModeTruncate:
		return "truncate"
	default:
		return fmt.Sprintf("PurgeMode(%d)", int(m))
	}
}

// Valid reports whether m is a known mode.
func (m PurgeMode) Valid() bool {
	return m == PurgeModeDelete || m == PurgeModeTruncate
}

// Purger empties a store before fixtures are loaded.
type Purger interface {
	Purge(ctx context.Context) error
	SetPurgeMode(mode PurgeMode)
	PurgeMode() PurgeMode
}

// RelationalPurger empties every table declared in a relational manager's
// metadata, in reverse declaration order so dependents go first.
type RelationalPurger struct {
	manager orm.Relational
	mode    PurgeMode
}

// NewRelationalPurger returns a purger in PurgeModeDelete.
func NewRelationalPurger(m orm.Manager) (Purger, error) {
	rel, ok := m.(orm.Relational)
	if !ok {
		return nil, resolutionError(KindFamily, m.Name(), "manager is not relational", nil)
	}
	return &RelationalPurger{manager: rel, mode: PurgeModeDelete}, nil
}

// SetPurgeMode implements Purger.
func (p *RelationalPurger) SetPurgeMode(mode PurgeMode) { p.mode = mode }

// PurgeMode implements Purger.
func (p *RelationalPurger) PurgeMode() PurgeMode { return p.mode }

// Purge implements Purger.
func (p *RelationalPurger) Purge(ctx context.Context) error {
	metas := p.manager.Metadata()
	dialect := p.manager.Dialect()
	for i := len(metas) - 1; i >= 0; i-- {
		table := metas[i].Table
		var (
			query string
			args  []any
			err   error
		)
		switch p.mode {
		case PurgeModeTruncate:
			query = dialect.TruncateSQL(table)
		case PurgeModeDelete:
			query, args, err = dialect.DeleteSQL(table)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("purge %s: unknown purge mode %d", table, int(p.mode))
		}
		if err := p.manager.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("purge %s: %w", table, err)
		}
	}
	return nil
}

// DocumentPurger drops every collection of a document store. Both purge
// modes drop collections.
type DocumentPurger struct {
	store orm.DocumentStore
	mode  PurgeMode
}

// NewDocumentPurger returns a purger for a document store.
func NewDocumentPurger(m orm.Manager) (Purger, error) {
	ds, ok := m.(orm.DocumentStore)
	if !ok {
		return nil, resolutionError(KindFamily, m.Name(), "manager is not a document store", nil)
	}
	return &DocumentPurger{store: ds, mode: PurgeModeDelete}, nil
}

// SetPurgeMode implements Purger.
func (p *DocumentPurger) SetPurgeMode(mode PurgeMode) { p.mode = mode }

// PurgeMode implements Purger.
func (p *DocumentPurger) PurgeMode() PurgeMode { return p.mode }

// Purge implements Purger.
func (p *DocumentPurger) Purge(ctx context.Context) error {
	for _, name := range p.store.Collections() {
		if err := p.store.DropCollection(ctx, name); err != nil {
			return fmt.Errorf("purge collection %s: %w", name, err)
		}
	}
	return nil
}
