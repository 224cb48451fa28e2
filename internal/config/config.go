// Package config loads webtest configuration files.
//
// A configuration file is YAML. It is validated against an embedded CUE
// schema, decoded with unknown fields rejected, and flattened into the
// dotted parameters a kernel container exposes (see the Param constants).
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/webtest/internal/container"
)

//go:embed schema.cue
var schemaSource string

// Parameter names.
const (
	ParamCacheDir          = "kernel.cache_dir"
	ParamSecret            = "kernel.secret"
	ParamSessionName       = "session.storage.options.name"
	ParamCacheSQLite       = "webtest.cache_sqlite_db"
	ParamAuthentication    = "webtest.authentication"
	ParamSnapshotDriver    = "webtest.snapshot.driver"
	ParamSnapshotBucket    = "webtest.snapshot.s3.bucket"
	ParamSnapshotPrefix    = "webtest.snapshot.s3.prefix"
	ParamSnapshotRegion    = "webtest.snapshot.s3.region"
	ParamSnapshotEndpoint  = "webtest.snapshot.s3.endpoint"
	ParamSnapshotPathStyle = "webtest.snapshot.s3.path_style"
	ParamDatabaseDriver    = "database.driver"
	ParamDatabasePath      = "database.path"
	ParamDatabaseURL       = "database.url"
)

// Config is a decoded configuration file.
type Config struct {
	Kernel   Kernel    `yaml:"kernel"`
	Session  *Session  `yaml:"session,omitempty"`
	Webtest  Webtest   `yaml:"webtest,omitempty"`
	Database *Database `yaml:"database,omitempty"`
}

// Kernel holds kernel settings.
type Kernel struct {
	CacheDir string `yaml:"cache_dir"`
	Secret   string `yaml:"secret,omitempty"`
}

// Session mirrors session.storage.options.
type Session struct {
	Storage struct {
		Options struct {
			Name string `yaml:"name"`
		} `yaml:"options"`
	} `yaml:"storage"`
}

// Webtest holds test-support settings.
type Webtest struct {
	CacheSQLiteDB  bool            `yaml:"cache_sqlite_db,omitempty"`
	Authentication *Authentication `yaml:"authentication,omitempty"`
	Snapshot       Snapshot        `yaml:"snapshot,omitempty"`
}

// Authentication is the default basic-auth credential pair.
type Authentication struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Snapshot selects the artifact store.
type Snapshot struct {
	Driver string    `yaml:"driver,omitempty"`
	S3     *S3Config `yaml:"s3,omitempty"`
}

// S3Config configures the S3 artifact store.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// Database selects the store the application under test uses.
type Database struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path,omitempty"`
	URL    string `yaml:"url,omitempty"`
}

// ErrInvalid matches every *Error via errors.Is.
var ErrInvalid = errors.New("config: invalid configuration")

// ErrorCode categorizes configuration errors.
type ErrorCode string

const (
	ErrCodeRead   ErrorCode = "READ_FAILED"
	ErrCodeParse  ErrorCode = "PARSE_FAILED"
	ErrCodeSchema ErrorCode = "SCHEMA_VIOLATION"
)

// Error reports an unreadable or invalid configuration file.
type Error struct {
	Code    ErrorCode
	Path    string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is lets errors.Is(err, ErrInvalid) match.
func (e *Error) Is(target error) bool { return target == ErrInvalid }

// Load reads, validates and decodes the file at path. Relative paths in
// the file are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Code: ErrCodeRead, Path: path, Message: err.Error()}
	}
	cfg, err := Parse(data, filepath.Dir(path))
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) && ce.Path == "" {
			ce.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse validates and decodes data, resolving relative paths against baseDir
// when it is non-empty.
func Parse(data []byte, baseDir string) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &Error{Code: ErrCodeParse, Message: err.Error()}
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	// Decode with strict field validation (catches typos the schema let through)
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, &Error{Code: ErrCodeParse, Message: err.Error()}
	}

	if cfg.Webtest.Snapshot.Driver == "" {
		cfg.Webtest.Snapshot.Driver = "fs"
	}
	if cfg.Webtest.Snapshot.Driver == "s3" && cfg.Webtest.Snapshot.S3 == nil {
		return nil, &Error{Code: ErrCodeSchema, Message: "webtest.snapshot.s3 is required for the s3 driver"}
	}
	if db := cfg.Database; db != nil {
		if db.Driver == "postgres" && db.URL == "" {
			return nil, &Error{Code: ErrCodeSchema, Message: "database.url is required for postgres"}
		}
		if db.Driver == "sqlite" && db.Path == "" {
			db.Path = ":memory:"
		}
		if db.Driver == "sqlite" && db.Path != ":memory:" {
			db.Path = resolve(baseDir, db.Path)
		}
	}
	cfg.Kernel.CacheDir = resolve(baseDir, cfg.Kernel.CacheDir)
	return &cfg, nil
}

func resolve(baseDir, p string) string {
	if baseDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// validate checks raw against the #Config schema.
func validate(raw any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.Encode(raw)
	if err := value.Err(); err != nil {
		return &Error{Code: ErrCodeParse, Message: err.Error()}
	}
	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return &Error{Code: ErrCodeSchema, Message: err.Error()}
	}
	return nil
}

// Parameters flattens the configuration into container parameters.
// Unset optional settings are omitted.
func (c *Config) Parameters() map[string]any {
	p := map[string]any{
		ParamCacheDir:       c.Kernel.CacheDir,
		ParamCacheSQLite:    c.Webtest.CacheSQLiteDB,
		ParamSnapshotDriver: c.Webtest.Snapshot.Driver,
	}
	if c.Kernel.Secret != "" {
		p[ParamSecret] = c.Kernel.Secret
	}
	if c.Session != nil {
		p[ParamSessionName] = c.Session.Storage.Options.Name
	}
	if a := c.Webtest.Authentication; a != nil {
		p[ParamAuthentication] = map[string]string{"username": a.Username, "password": a.Password}
	}
	if s3 := c.Webtest.Snapshot.S3; s3 != nil {
		p[ParamSnapshotBucket] = s3.Bucket
		p[ParamSnapshotPrefix] = s3.Prefix
		p[ParamSnapshotRegion] = s3.Region
		p[ParamSnapshotEndpoint] = s3.Endpoint
		p[ParamSnapshotPathStyle] = s3.PathStyle
	}
	if db := c.Database; db != nil {
		p[ParamDatabaseDriver] = db.Driver
		if db.Path != "" {
			p[ParamDatabasePath] = db.Path
		}
		if db.URL != "" {
			p[ParamDatabaseURL] = db.URL
		}
	}
	return p
}

// Apply sets every parameter on c.
func (c *Config) Apply(ct *container.Container) {
	for name, v := range c.Parameters() {
		ct.SetParameter(name, v)
	}
}
