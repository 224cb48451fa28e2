package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/webtest/internal/config"
	"github.com/roach88/webtest/internal/container"
	"github.com/roach88/webtest/internal/fixture"
	"github.com/roach88/webtest/internal/metrics"
	"github.com/roach88/webtest/internal/orm"
	"github.com/roach88/webtest/internal/orm/docstore"
	"github.com/roach88/webtest/internal/orm/sqlite"
	"github.com/roach88/webtest/internal/snapshot"
)

var (
	userMeta = orm.EntityMetadata{
		Name:  "User",
		Table: "users",
		Columns: []orm.Column{
			{Name: "id", Type: orm.TypeInteger, PrimaryKey: true},
			{Name: "username", Type: orm.TypeText, Unique: true},
		},
	}
	postMeta = orm.EntityMetadata{
		Name:  "Post",
		Table: "posts",
		Columns: []orm.Column{
			{Name: "id", Type: orm.TypeInteger, PrimaryKey: true},
			{Name: "author_id", Type: orm.TypeInteger},
			{Name: "title", Type: orm.TypeText},
		},
	}
	schema = []orm.EntityMetadata{userMeta, postMeta}
)

// counts records how often each fixture ran.
type counts map[string]int

func testFixtures(runs counts) *fixture.Registry {
	r := fixture.NewRegistry()
	r.MustRegister("users", func() fixture.Fixture {
		return fixture.Func(func(ctx context.Context, m orm.Manager, refs *fixture.References) error {
			runs["users"]++
			row := orm.Row{"id": int64(1), "username": "admin"}
			refs.Set("admin", row)
			return m.Persist(ctx, "User", row)
		})
	})
	r.MustRegister("posts", func() fixture.Fixture {
		return fixture.Func(func(ctx context.Context, m orm.Manager, refs *fixture.References) error {
			runs["posts"]++
			admin, err := refs.Get("admin")
			if err != nil {
				return err
			}
			return m.Persist(ctx, "Post", orm.Row{"id": int64(1), "author_id": admin["id"], "title": "Hello"})
		})
	})
	r.MustRegister("broken", func() fixture.Fixture {
		return fixture.Func(func(ctx context.Context, m orm.Manager, _ *fixture.References) error {
			return m.Persist(ctx, "Comment", orm.Row{"id": int64(1)})
		})
	})
	return r
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newEnv builds a container holding a file-backed SQLite manager.
func newEnv(t *testing.T, cacheDir string, cache bool, runs counts) (*container.Container, *sqlite.Manager) {
	t.Helper()
	m, err := sqlite.Open("default", filepath.Join(t.TempDir(), "app.db"), schema)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	c := container.New()
	c.Set(DefaultRegistry, orm.NewRegistry(m))
	c.Set(container.ServiceFixtures, testFixtures(runs))
	c.SetParameter(config.ParamCacheDir, cacheDir)
	c.SetParameter(config.ParamCacheSQLite, cache)
	return c, m
}

func TestLoad_ColdPath(t *testing.T) {
	ctx := context.Background()
	runs := counts{}
	c, m := newEnv(t, t.TempDir(), false, runs)

	// Stale data from an earlier test is replaced.
	require.NoError(t, m.CreateSchema(ctx, schema))
	require.NoError(t, m.Persist(ctx, "User", orm.Row{"id": int64(9), "username": "stale"}))

	exec, err := New(c, WithLogger(discardLogger())).Load(ctx, []string{"users", "posts"})
	require.NoError(t, err)
	assert.False(t, exec.Restored())
	assert.Equal(t, 2, exec.Executed())
	assert.True(t, exec.References().Has("admin"))
	assert.Equal(t, counts{"users": 1, "posts": 1}, runs)

	users, err := m.Find(ctx, "User")
	require.NoError(t, err)
	assert.Equal(t, []orm.Row{{"id": int64(1), "username": "admin"}}, users)
}

func TestLoad_ColdPathEquivalence(t *testing.T) {
	ctx := context.Background()
	var results [][]orm.Row
	for i := 0; i < 2; i++ {
		c, m := newEnv(t, t.TempDir(), false, counts{})
		_, err := New(c).Load(ctx, []string{"users", "posts"})
		require.NoError(t, err)
		posts, err := m.Find(ctx, "Post")
		require.NoError(t, err)
		results = append(results, posts)
	}
	assert.Equal(t, results[0], results[1])
}

func TestLoad_CacheSubstitutesForFixtures(t *testing.T) {
	ctx := context.Background()
	cacheDir := t.TempDir()
	runs := counts{}
	ids := []string{"users", "posts"}

	c1, m1 := newEnv(t, cacheDir, true, runs)
	exec, err := New(c1).Load(ctx, ids)
	require.NoError(t, err)
	assert.False(t, exec.Restored())
	assert.Equal(t, counts{"users": 1, "posts": 1}, runs)
	first, err := m1.Find(ctx, "Post")
	require.NoError(t, err)

	key, err := snapshot.Key(schema, ids)
	require.NoError(t, err)
	artifact := filepath.Join(cacheDir, "test_"+key+".db")
	require.FileExists(t, artifact)

	// A fresh store with the same schema is restored, not re-seeded.
	c2, m2 := newEnv(t, cacheDir, true, runs)
	exec, err = New(c2).Load(ctx, ids)
	require.NoError(t, err)
	assert.True(t, exec.Restored())
	assert.Zero(t, exec.Executed())
	assert.Equal(t, counts{"users": 1, "posts": 1}, runs, "fixtures must not run on a cache hit")

	second, err := m2.Find(ctx, "Post")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, m2.Suspend(ctx))
	want, err := os.ReadFile(artifact)
	require.NoError(t, err)
	got, err := os.ReadFile(m2.Path())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	require.NoError(t, m2.Resume(ctx))
}

func TestLoad_DifferentFixturesMissCache(t *testing.T) {
	ctx := context.Background()
	cacheDir := t.TempDir()
	runs := counts{}

	c, _ := newEnv(t, cacheDir, true, runs)
	_, err := New(c).Load(ctx, []string{"users"})
	require.NoError(t, err)
	_, err = New(c).Load(ctx, []string{"users", "posts"})
	require.NoError(t, err)

	assert.Equal(t, counts{"users": 2, "posts": 1}, runs)
	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLoad_InMemoryNeverCached(t *testing.T) {
	ctx := context.Background()
	cacheDir := t.TempDir()
	m, err := sqlite.Open("default", sqlite.MemoryPath, schema)
	require.NoError(t, err)
	defer m.Close()

	c := container.New()
	c.Set(DefaultRegistry, orm.NewRegistry(m))
	c.Set(container.ServiceFixtures, testFixtures(counts{}))
	c.SetParameter(config.ParamCacheDir, cacheDir)
	c.SetParameter(config.ParamCacheSQLite, true)

	_, err = New(c).Load(ctx, []string{"users"})
	require.NoError(t, err)
	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// brokenStore reports every artifact as present but cannot read any.
type brokenStore struct {
	snapshot.Store
	saved []string
}

func (b *brokenStore) Exists(context.Context, string) (bool, error) { return true, nil }
func (b *brokenStore) Restore(context.Context, string, string) error {
	return errors.New("permission denied")
}
func (b *brokenStore) Save(_ context.Context, key, _ string) error {
	b.saved = append(b.saved, key)
	return nil
}

func TestLoad_UnreadableArtifactIsMiss(t *testing.T) {
	ctx := context.Background()
	runs := counts{}
	c, m := newEnv(t, t.TempDir(), true, runs)
	store := &brokenStore{}

	exec, err := New(c, WithSnapshotStore(store)).Load(ctx, []string{"users"})
	require.NoError(t, err)
	assert.False(t, exec.Restored())
	assert.Equal(t, 1, runs["users"])
	assert.Len(t, store.saved, 1)

	users, err := m.Find(ctx, "User")
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

// stmtManager is a relational, non-file manager that records statements.
type stmtManager struct {
	metas []orm.EntityMetadata
	stmts []string
	rows  int
}

func (m *stmtManager) Name() string                   { return "pg" }
func (m *stmtManager) Family() orm.Family             { return orm.FamilyRelational }
func (m *stmtManager) Metadata() []orm.EntityMetadata { return m.metas }
func (m *stmtManager) Dialect() orm.Dialect           { return orm.DialectPostgres }
func (m *stmtManager) Close() error                   { return nil }
func (m *stmtManager) Find(context.Context, string) ([]orm.Row, error) {
	return nil, nil
}
func (m *stmtManager) Exec(_ context.Context, q string, _ ...any) error {
	m.stmts = append(m.stmts, q)
	return nil
}
func (m *stmtManager) Persist(context.Context, string, orm.Row) error {
	m.rows++
	return nil
}
func (m *stmtManager) DropSchema(context.Context) error {
	m.stmts = append(m.stmts, "DROP SCHEMA")
	return nil
}
func (m *stmtManager) CreateSchema(_ context.Context, metas []orm.EntityMetadata) error {
	m.stmts = append(m.stmts, fmt.Sprintf("CREATE SCHEMA %d", len(metas)))
	return nil
}

func newStmtEnv(metas []orm.EntityMetadata) (*container.Container, *stmtManager) {
	m := &stmtManager{metas: metas}
	c := container.New()
	c.Set(DefaultRegistry, orm.NewRegistry(m))
	c.Set(container.ServiceFixtures, testFixtures(counts{}))
	c.SetParameter(config.ParamCacheSQLite, true)
	return c, m
}

func TestLoad_PurgeModePropagates(t *testing.T) {
	ctx := context.Background()
	c, m := newStmtEnv(schema)

	exec, err := New(c).Load(ctx, []string{"users"}, WithPurgeMode(fixture.PurgeModeTruncate))
	require.NoError(t, err)
	assert.Equal(t, fixture.PurgeModeTruncate, exec.Purger().PurgeMode())
	assert.Equal(t, []string{
		"DROP SCHEMA",
		"CREATE SCHEMA 2",
		"TRUNCATE TABLE posts RESTART IDENTITY CASCADE",
		"TRUNCATE TABLE users RESTART IDENTITY CASCADE",
	}, m.stmts)
	assert.Equal(t, 1, m.rows)
}

func TestLoad_DefaultPurgeMode(t *testing.T) {
	ctx := context.Background()
	c, m := newStmtEnv(schema)

	_, err := New(c).Load(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"DROP SCHEMA", "CREATE SCHEMA 2", "DELETE FROM posts", "DELETE FROM users"}, m.stmts)
}

func TestLoad_EmptyMetadataSkipsCreate(t *testing.T) {
	ctx := context.Background()
	c, m := newStmtEnv(nil)

	_, err := New(c).Load(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"DROP SCHEMA"}, m.stmts)
}

func TestLoad_ResolutionErrorsLeaveStoreUntouched(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		ids  []string
		opts []LoadOption
		kind fixture.ResolutionKind
	}{
		{"unknown fixture", []string{"users", "missing"}, nil, fixture.KindFixture},
		{"unknown registry", []string{"users"}, []LoadOption{WithRegistry("mongo")}, fixture.KindRegistry},
		{"unknown manager", []string{"users"}, []LoadOption{WithManager("other")}, fixture.KindManager},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, m := newStmtEnv(schema)
			_, err := New(c).Load(ctx, tt.ids, tt.opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, fixture.ErrResolution)
			assert.True(t, fixture.IsResolutionError(err, tt.kind), "got %v", err)
			assert.Empty(t, m.stmts)
			assert.Zero(t, m.rows)
		})
	}
}

func TestLoad_RegistryOfWrongType(t *testing.T) {
	c, _ := newStmtEnv(schema)
	c.Set("doctrine", "not a registry")

	_, err := New(c).Load(context.Background(), nil, WithRegistry("doctrine"))
	assert.True(t, fixture.IsResolutionError(err, fixture.KindRegistry))
}

func TestLoad_MissingFixtureRegistry(t *testing.T) {
	c := container.New()
	c.Set(DefaultRegistry, orm.NewRegistry(&stmtManager{}))

	_, err := New(c).Load(context.Background(), []string{"users"})
	assert.True(t, fixture.IsResolutionError(err, fixture.KindRegistry))

	_, err = New(c, WithFixtureRegistry(testFixtures(counts{}))).Load(context.Background(), []string{"users"})
	assert.NoError(t, err)
}

type documentOnly struct{ fixture.Func }

func (documentOnly) Family() orm.Family { return orm.FamilyDocument }

func TestLoad_MixedFamiliesRejected(t *testing.T) {
	c, m := newStmtEnv(schema)
	reg := testFixtures(counts{})
	reg.MustRegister("articles", func() fixture.Fixture { return documentOnly{} })

	_, err := New(c, WithFixtureRegistry(reg)).Load(context.Background(), []string{"users", "articles"})
	assert.True(t, fixture.IsResolutionError(err, fixture.KindFamily))
	assert.Empty(t, m.stmts)
}

func TestLoad_DocumentStore(t *testing.T) {
	ctx := context.Background()
	articleMeta := orm.EntityMetadata{Name: "Article", Table: "articles", Columns: []orm.Column{{Name: "id", Type: orm.TypeText, PrimaryKey: true}}}
	store := docstore.New("docs", []orm.EntityMetadata{articleMeta})
	require.NoError(t, store.Persist(ctx, "Article", orm.Row{"id": "stale"}))

	reg := fixture.NewRegistry()
	reg.MustRegister("articles", func() fixture.Fixture {
		return documentOnly{fixture.Func(func(ctx context.Context, m orm.Manager, _ *fixture.References) error {
			return m.Persist(ctx, "Article", orm.Row{"id": "fresh"})
		})}
	})
	c := container.New()
	c.Set(DefaultRegistry, orm.NewRegistry(store))
	c.SetParameter(config.ParamCacheSQLite, true)

	exec, err := New(c, WithFixtureRegistry(reg)).Load(ctx, []string{"articles"})
	require.NoError(t, err)
	assert.IsType(t, &fixture.DocumentPurger{}, exec.Purger())

	docs, err := store.Find(ctx, "Article")
	require.NoError(t, err)
	assert.Equal(t, []orm.Row{{"id": "fresh"}}, docs)
}

func TestLoad_StoreErrorsSurface(t *testing.T) {
	ctx := context.Background()
	c, _ := newEnv(t, t.TempDir(), false, counts{})

	_, err := New(c).Load(ctx, []string{"broken"})
	require.Error(t, err)
	assert.ErrorIs(t, err, orm.ErrUnknownEntity)
}

func TestLoad_TracesAndMetrics(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reg := prometheus.NewRegistry()
	rec, err := metrics.New(reg)
	require.NoError(t, err)

	cacheDir := t.TempDir()
	c, _ := newEnv(t, cacheDir, true, counts{})
	s := New(c, WithTracerProvider(tp), WithMetrics(rec))
	_, err = s.Load(ctx, []string{"users"})
	require.NoError(t, err)

	c2, _ := newEnv(t, cacheDir, true, counts{})
	_, err = New(c2, WithTracerProvider(tp), WithMetrics(rec)).Load(ctx, []string{"users"})
	require.NoError(t, err)

	_, err = s.Load(ctx, []string{"missing"})
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	for _, span := range spans {
		assert.Equal(t, "webtest.fixtures.load", span.Name())
	}
	assert.Len(t, spans[2].Events(), 1, "error recorded on failed load")

	want := `
# HELP webtest_fixtures_loads_total Fixture loads by manager and cache outcome.
# TYPE webtest_fixtures_loads_total counter
webtest_fixtures_loads_total{manager="default",outcome="hit"} 1
webtest_fixtures_loads_total{manager="default",outcome="miss"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "webtest_fixtures_loads_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "webtest_fixtures_load_failures_total"))
}

func TestNewSnapshotStore(t *testing.T) {
	ctx := context.Background()
	c := container.New()

	_, err := NewSnapshotStore(ctx, c)
	assert.ErrorContains(t, err, config.ParamCacheDir)

	c.SetParameter(config.ParamCacheDir, t.TempDir())
	st, err := NewSnapshotStore(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, snapshot.DriverFilesystem, st.Driver())

	c.SetParameter(config.ParamSnapshotDriver, "s3")
	c.SetParameter(config.ParamSnapshotBucket, "snaps")
	st, err = NewSnapshotStore(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, snapshot.DriverS3, st.Driver())

	c.SetParameter(config.ParamSnapshotDriver, "ftp")
	_, err = NewSnapshotStore(ctx, c)
	assert.ErrorContains(t, err, "unknown snapshot driver")
}
