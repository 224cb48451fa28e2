// Package demoapp is a small gin blog used to exercise the webtest
// package end to end. It boots from a webtest.yaml configuration
// directory, keeps posts in a SQLite (or PostgreSQL) store and protects
// its account and admin pages with firewall-scoped session tokens.
package demoapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/roach88/webtest/internal/config"
	"github.com/roach88/webtest/internal/container"
	"github.com/roach88/webtest/internal/orm"
	"github.com/roach88/webtest/internal/orm/postgres"
	"github.com/roach88/webtest/internal/orm/sqlite"
	"github.com/roach88/webtest/internal/seed"
	"github.com/roach88/webtest/internal/session"
)

// ConfigFile is the configuration file read from the kernel directory.
// An environment-specific webtest_<env>.yaml takes precedence.
const ConfigFile = "webtest.yaml"

// Application parameters.
const (
	ParamEnvironment = "kernel.environment"
	ParamDebug       = "kernel.debug"
	// ParamPostCount overrides how many posts PostFixture creates.
	ParamPostCount = "demo.post_count"
)

// Firewall names.
const (
	FirewallMain  = "main"
	FirewallAdmin = "admin"
)

// RoleAdmin grants access to the admin firewall's pages.
const RoleAdmin = "ROLE_ADMIN"

var ginMode sync.Once

// Kernel is the blog application.
type Kernel struct {
	opts   container.Options
	logger *slog.Logger

	booted   bool
	c        *container.Container
	registry *orm.MapRegistry
	sessions *session.MemoryStore
	codec    *session.Codec
	engine   *gin.Engine
}

var _ container.Kernel = (*Kernel)(nil)

// NewKernel is a container.Factory for the blog.
func NewKernel(opts container.Options) (container.Kernel, error) {
	if opts.Dir == "" {
		return nil, errors.New("demoapp: kernel directory required")
	}
	ginMode.Do(func() { gin.SetMode(gin.TestMode) })
	return &Kernel{
		opts:   opts,
		logger: slog.Default().With("component", "demoapp", "env", opts.Environment),
	}, nil
}

// ConfigPath returns the configuration file the kernel boots from.
func (k *Kernel) ConfigPath() string {
	if k.opts.Environment != "" {
		p := filepath.Join(k.opts.Dir, fmt.Sprintf("webtest_%s.yaml", k.opts.Environment))
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(k.opts.Dir, ConfigFile)
}

// Boot implements container.Kernel.
func (k *Kernel) Boot(ctx context.Context) error {
	if k.booted {
		return nil
	}
	cfg, err := config.Load(k.ConfigPath())
	if err != nil {
		return err
	}

	c := container.New()
	cfg.Apply(c)
	c.SetParameter(ParamEnvironment, k.opts.Environment)
	c.SetParameter(ParamDebug, k.opts.Debug)

	m, err := openManager(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if err := ensureSchema(ctx, m); err != nil {
		m.Close()
		return err
	}
	k.registry = orm.NewRegistry(m)
	k.sessions = session.NewMemoryStore()
	if secret, ok := c.String(config.ParamSecret); ok {
		k.codec, err = session.NewCodec([]byte(secret))
		if err != nil {
			k.registry.Close()
			return err
		}
	}

	c.Set(container.ServiceKernel, k)
	c.Set(container.ServiceRouter, Router{})
	c.Set(container.ServiceSession, k.sessions)
	c.Set(container.ServiceFixtures, Fixtures())
	c.Set(seed.DefaultRegistry, k.registry)
	k.c = c
	k.engine = k.routes()
	k.booted = true
	k.logger.Debug("kernel booted", "config", k.ConfigPath(), "manager", m.Name())
	return nil
}

func openManager(ctx context.Context, db *config.Database) (orm.Manager, error) {
	if db != nil && db.Driver == "postgres" {
		m, err := postgres.Connect(ctx, "default", db.URL, Metadata())
		if err != nil {
			return nil, err
		}
		return m, nil
	}

	path := sqlite.MemoryPath
	if db != nil && db.Path != "" {
		path = db.Path
	}
	if path != sqlite.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	m, err := sqlite.Open("default", path, Metadata())
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ensureSchema creates the blog tables that do not exist yet so pages render
// before any fixture load. Existing tables keep their rows.
func ensureSchema(ctx context.Context, m orm.Manager) error {
	rel, ok := m.(orm.Relational)
	if !ok {
		return nil
	}
	for _, meta := range m.Metadata() {
		stmt, err := rel.Dialect().CreateMissingTableSQL(meta)
		if err != nil {
			return err
		}
		if err := rel.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Container implements container.Kernel.
func (k *Kernel) Container() *container.Container { return k.c }

// Handler implements container.Kernel.
func (k *Kernel) Handler() http.Handler { return k.engine }

// Sessions returns the session store.
func (k *Kernel) Sessions() *session.MemoryStore { return k.sessions }

// Shutdown implements container.Kernel.
func (k *Kernel) Shutdown(ctx context.Context) error {
	if !k.booted {
		return nil
	}
	k.booted = false
	k.logger.Debug("kernel shutdown")
	return k.registry.Close()
}
