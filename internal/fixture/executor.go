package fixture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/webtest/internal/orm"
)

// ErrNoPurger is returned by Executor.Purge when the executor was built
// without a purger.
var ErrNoPurger = errors.New("fixture: executor has no purger")

// Executor runs fixtures against a manager.
type Executor struct {
	manager  orm.Manager
	purger   Purger
	refs     *References
	logger   *slog.Logger
	executed int
	restored bool
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor returns an executor for m. purger may be nil when the caller
// prepares the store itself and always executes in append mode.
func NewExecutor(m orm.Manager, purger Purger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		manager: m,
		purger:  purger,
		refs:    NewReferences(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewRestoredExecutor returns an executor handle for a store whose contents
// were restored from a snapshot instead of by running fixtures.
func NewRestoredExecutor(m orm.Manager, opts ...ExecutorOption) *Executor {
	e := NewExecutor(m, nil, opts...)
	e.restored = true
	return e
}

// Manager returns the manager fixtures run against.
func (e *Executor) Manager() orm.Manager { return e.manager }

// Purger returns the executor's purger, or nil.
func (e *Executor) Purger() Purger { return e.purger }

// References returns the references shared by executed fixtures.
func (e *Executor) References() *References { return e.refs }

// Executed reports how many fixtures have run.
func (e *Executor) Executed() int { return e.executed }

// Restored reports whether the store was restored from a snapshot.
func (e *Executor) Restored() bool { return e.restored }

// Purge empties the store through the executor's purger.
func (e *Executor) Purge(ctx context.Context) error {
	if e.purger == nil {
		return ErrNoPurger
	}
	e.logger.Debug("purging", "manager", e.manager.Name(), "mode", e.purger.PurgeMode())
	return e.purger.Purge(ctx)
}

// Execute loads fixtures in order. Unless appending, the store is purged first.
func (e *Executor) Execute(ctx context.Context, fixtures []Fixture, appendData bool) error {
	if !appendData {
		if err := e.Purge(ctx); err != nil {
			return err
		}
	}
	for _, f := range fixtures {
		e.logger.Debug("loading fixture", "fixture", fmt.Sprintf("%T", f), "manager", e.manager.Name())
		if err := f.Load(ctx, e.manager, e.refs); err != nil {
			return fmt.Errorf("load fixture %T: %w", f, err)
		}
		e.executed++
	}
	return nil
}
