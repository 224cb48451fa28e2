// Package seed loads fixture sets into a kernel's stores, restoring cached
// SQLite snapshots instead of re-running fixtures when it can.
//
// # Load workflow
//
//  1. Resolve the manager registry from the container, the manager from the
//     registry and the purge/execute strategy from the manager's family.
//  2. Resolve every fixture id. Nothing touches the store before this succeeds.
//  3. Fast path: for a file-backed SQLite manager with webtest.cache_sqlite_db
//     enabled, compute the snapshot key and, if an artifact exists, copy it
//     over the live database and return without running fixtures.
//  4. Cold path: drop and recreate the schema, purge, then execute the
//     fixtures in append mode.
//  5. When caching applies, store the resulting database as the artifact.
package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/webtest/internal/config"
	"github.com/roach88/webtest/internal/container"
	"github.com/roach88/webtest/internal/fixture"
	"github.com/roach88/webtest/internal/metrics"
	"github.com/roach88/webtest/internal/orm"
	"github.com/roach88/webtest/internal/snapshot"
)

// DefaultRegistry is the service id of the manager registry.
const DefaultRegistry = "default"

const instrumentationName = "github.com/roach88/webtest/internal/seed"

// Seeder loads fixtures into the stores of one container.
type Seeder struct {
	container *container.Container
	fixtures  *fixture.Registry
	logger    *slog.Logger
	metrics   *metrics.Recorder
	tracer    trace.Tracer
	snapshots snapshot.Store
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Seeder) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records load metrics.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Seeder) { s.metrics = r }
}

// WithTracerProvider sets the tracer provider. The global provider is used
// by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Seeder) {
		if tp != nil {
			s.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithFixtureRegistry sets the fixture registry instead of resolving the
// webtest.fixtures service.
func WithFixtureRegistry(r *fixture.Registry) Option {
	return func(s *Seeder) { s.fixtures = r }
}

// WithSnapshotStore sets the artifact store instead of building one from
// the webtest.snapshot.* parameters.
func WithSnapshotStore(st snapshot.Store) Option {
	return func(s *Seeder) { s.snapshots = st }
}

// New returns a seeder for c.
func New(c *container.Container, opts ...Option) *Seeder {
	s := &Seeder{
		container: c,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:    otel.GetTracerProvider().Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadOption configures a single Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	manager   string
	registry  string
	purgeMode *fixture.PurgeMode
}

// WithManager selects the manager by name. The default manager is used
// otherwise.
func WithManager(name string) LoadOption {
	return func(o *loadOptions) { o.manager = name }
}

// WithRegistry selects the manager registry service id.
func WithRegistry(id string) LoadOption {
	return func(o *loadOptions) { o.registry = id }
}

// WithPurgeMode sets the purge mode used on the cold path.
func WithPurgeMode(mode fixture.PurgeMode) LoadOption {
	return func(o *loadOptions) { o.purgeMode = &mode }
}

// Load replaces the contents of a store with the fixtures named by ids and
// returns the executor that produced them.
func (s *Seeder) Load(ctx context.Context, ids []string, opts ...LoadOption) (_ *fixture.Executor, err error) {
	o := loadOptions{registry: DefaultRegistry}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := s.tracer.Start(ctx, "webtest.fixtures.load", trace.WithAttributes(
		attribute.StringSlice("webtest.fixtures", ids),
		attribute.String("webtest.registry", o.registry),
	))
	start := time.Now()
	managerName := o.manager
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.metrics.LoadFailed(managerName)
		}
		span.End()
	}()

	m, strategy, err := s.resolveManager(o)
	if err != nil {
		return nil, err
	}
	managerName = m.Name()
	span.SetAttributes(
		attribute.String("webtest.manager", m.Name()),
		attribute.String("webtest.family", m.Family().String()),
	)

	loader, err := s.resolveFixtures(ids, m.Family())
	if err != nil {
		return nil, err
	}

	logger := s.logger.With("manager", m.Name())
	outcome := metrics.OutcomeUncached
	var (
		key   string
		store snapshot.Store
	)
	path, fileBacked := orm.FilePath(m)
	if fileBacked && s.container.Bool(config.ParamCacheSQLite) {
		store, err = s.snapshotStore(ctx)
		if err != nil {
			return nil, err
		}
		key, err = snapshot.Key(m.Metadata(), ids)
		if err != nil {
			return nil, fmt.Errorf("snapshot key: %w", err)
		}
		span.SetAttributes(attribute.String("webtest.snapshot.key", key))
		outcome = metrics.OutcomeMiss

		restored, err := s.restore(ctx, logger, m.(orm.FileDatabase), store, key, path)
		if err != nil {
			return nil, err
		}
		if restored {
			span.SetAttributes(attribute.Bool("webtest.snapshot.hit", true))
			s.metrics.ObserveLoad(m.Name(), metrics.OutcomeHit, 0, time.Since(start))
			return fixture.NewRestoredExecutor(m, fixture.WithLogger(logger)), nil
		}
	}

	executor, err := s.coldLoad(ctx, logger, m, strategy, loader, o.purgeMode)
	if err != nil {
		return nil, err
	}

	if store != nil {
		if err := s.save(ctx, logger, m.(orm.FileDatabase), store, key, path); err != nil {
			return nil, err
		}
	}

	s.metrics.ObserveLoad(m.Name(), outcome, executor.Executed(), time.Since(start))
	return executor, nil
}

func (s *Seeder) resolveManager(o loadOptions) (orm.Manager, fixture.Strategy, error) {
	svc, err := s.container.Get(o.registry)
	if err != nil {
		return nil, fixture.Strategy{}, fixture.NewResolutionError(fixture.KindRegistry, o.registry, "registry service not found", err)
	}
	registry, ok := svc.(orm.Registry)
	if !ok {
		return nil, fixture.Strategy{}, fixture.NewResolutionError(fixture.KindRegistry, o.registry,
			fmt.Sprintf("service is %T, not a manager registry", svc), nil)
	}
	m, err := registry.Manager(o.manager)
	if err != nil {
		return nil, fixture.Strategy{}, fixture.NewResolutionError(fixture.KindManager, o.manager, "manager not found", err)
	}
	strategy, err := fixture.StrategyFor(m.Family())
	if err != nil {
		return nil, fixture.Strategy{}, err
	}
	return m, strategy, nil
}

func (s *Seeder) resolveFixtures(ids []string, family orm.Family) (*fixture.Loader, error) {
	reg := s.fixtures
	if reg == nil {
		r, err := container.Lookup[*fixture.Registry](s.container, container.ServiceFixtures)
		if err != nil {
			return nil, fixture.NewResolutionError(fixture.KindRegistry, container.ServiceFixtures, "fixture registry not found", err)
		}
		reg = r
	}
	loader := fixture.NewLoader(reg, s.container)
	for _, id := range ids {
		if err := loader.AddFixture(id); err != nil {
			return nil, err
		}
	}
	if err := fixture.CheckFamily(loader.Fixtures(), family); err != nil {
		return nil, err
	}
	return loader, nil
}

// restore copies the artifact for key over the live database. A missing or
// unreadable artifact is a cache miss, reported as restored=false.
func (s *Seeder) restore(ctx context.Context, logger *slog.Logger, fdb orm.FileDatabase, store snapshot.Store, key, path string) (bool, error) {
	exists, err := store.Exists(ctx, key)
	if err != nil {
		logger.Warn("snapshot lookup failed, treating as cache miss", "key", key, "error", err)
		return false, nil
	}
	if !exists {
		logger.Debug("snapshot cache miss", "key", key)
		return false, nil
	}

	if err := fdb.Suspend(ctx); err != nil {
		return false, fmt.Errorf("suspend database: %w", err)
	}
	restoreErr := store.Restore(ctx, key, path)
	if err := fdb.Resume(ctx); err != nil {
		return false, fmt.Errorf("resume database: %w", err)
	}
	if restoreErr != nil {
		logger.Warn("snapshot unreadable, treating as cache miss", "key", key, "error", restoreErr)
		return false, nil
	}
	logger.Debug("snapshot restored", "key", key, "path", path)
	return true, nil
}

// save stores the live database as the artifact for key. Artifact write
// failures are logged, not returned.
func (s *Seeder) save(ctx context.Context, logger *slog.Logger, fdb orm.FileDatabase, store snapshot.Store, key, path string) error {
	if err := fdb.Suspend(ctx); err != nil {
		return fmt.Errorf("suspend database: %w", err)
	}
	saveErr := store.Save(ctx, key, path)
	if err := fdb.Resume(ctx); err != nil {
		return fmt.Errorf("resume database: %w", err)
	}
	if saveErr != nil {
		logger.Warn("snapshot not saved", "key", key, "error", saveErr)
		return nil
	}
	logger.Debug("snapshot saved", "key", key)
	return nil
}

func (s *Seeder) coldLoad(ctx context.Context, logger *slog.Logger, m orm.Manager, strategy fixture.Strategy, loader *fixture.Loader, mode *fixture.PurgeMode) (*fixture.Executor, error) {
	if sm, ok := m.(orm.SchemaManager); ok {
		if err := sm.DropSchema(ctx); err != nil {
			return nil, fmt.Errorf("drop schema: %w", err)
		}
		if metas := m.Metadata(); len(metas) > 0 {
			if err := sm.CreateSchema(ctx, metas); err != nil {
				return nil, fmt.Errorf("create schema: %w", err)
			}
		}
	}

	purger, err := strategy.NewPurger(m)
	if err != nil {
		return nil, err
	}
	if mode != nil {
		purger.SetPurgeMode(*mode)
	}
	executor := strategy.NewExecutor(m, purger, logger)
	if err := executor.Purge(ctx); err != nil {
		return nil, fmt.Errorf("purge: %w", err)
	}

	fixtures := loader.Fixtures()
	logger.Debug("executing fixtures", "count", len(fixtures))
	if err := executor.Execute(ctx, fixtures, true); err != nil {
		return nil, err
	}
	return executor, nil
}

// snapshotStore returns the configured artifact store, building it on first use.
func (s *Seeder) snapshotStore(ctx context.Context) (snapshot.Store, error) {
	if s.snapshots != nil {
		return s.snapshots, nil
	}
	st, err := NewSnapshotStore(ctx, s.container)
	if err != nil {
		return nil, err
	}
	s.snapshots = st
	return st, nil
}

// NewSnapshotStore builds the artifact store selected by the
// webtest.snapshot.driver parameter: files under kernel.cache_dir by
// default, or an S3 bucket.
func NewSnapshotStore(ctx context.Context, c *container.Container) (snapshot.Store, error) {
	driver, _ := c.String(config.ParamSnapshotDriver)
	switch snapshot.Driver(driver) {
	case "", snapshot.DriverFilesystem:
		dir, ok := c.String(config.ParamCacheDir)
		if !ok {
			return nil, fmt.Errorf("%s is required for snapshot caching", config.ParamCacheDir)
		}
		st, err := snapshot.NewFSStore(dir)
		if err != nil {
			return nil, err
		}
		return st, nil
	case snapshot.DriverS3:
		bucket, _ := c.String(config.ParamSnapshotBucket)
		prefix, _ := c.String(config.ParamSnapshotPrefix)
		region, _ := c.String(config.ParamSnapshotRegion)
		endpoint, _ := c.String(config.ParamSnapshotEndpoint)
		st, err := snapshot.NewS3Store(ctx, snapshot.S3Config{
			Bucket:    bucket,
			Prefix:    prefix,
			Region:    region,
			Endpoint:  endpoint,
			PathStyle: c.Bool(config.ParamSnapshotPathStyle),
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown snapshot driver %q", driver)
	}
}
