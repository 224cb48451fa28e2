// Package snapshot derives cache keys for loaded fixture sets and stores the
// resulting SQLite database files as reusable artifacts.
//
// An artifact named test_<key>.db holds the database produced by loading a
// fixture list into a schema. The key is a pure function of the schema
// metadata and the ordered fixture ids, so a changed schema or fixture list
// never reuses a stale artifact. Artifacts are written once per key and are
// never evicted by the loader; the CLI prunes them.
package snapshot

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/roach88/webtest/internal/canonical"
	"github.com/roach88/webtest/internal/orm"
)

// ErrNotFound is returned when no artifact exists for a key.
var ErrNotFound = errors.New("snapshot: artifact not found")

const (
	artifactPrefix = "test_"
	artifactSuffix = ".db"
)

var artifactName = regexp.MustCompile(`^test_([0-9a-f]{64})\.db$`)

// Key returns the snapshot key for metas and the ordered fixture ids.
func Key(metas []orm.EntityMetadata, ids []string) (string, error) {
	fixtures := make([]any, len(ids))
	for i, id := range ids {
		fixtures[i] = id
	}
	return canonical.Hash(canonical.DomainSnapshot, orm.CanonicalMetadata(metas), fixtures)
}

// ArtifactName returns the file or object name for key.
func ArtifactName(key string) string {
	return artifactPrefix + key + artifactSuffix
}

// ParseArtifactName extracts the key from an artifact name.
func ParseArtifactName(name string) (string, bool) {
	m := artifactName.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Info describes a stored artifact.
type Info struct {
	Key     string    `json:"key"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Driver names an artifact store backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// Store holds snapshot artifacts.
type Store interface {
	Driver() Driver

	// Exists reports whether an artifact is stored for key.
	Exists(ctx context.Context, key string) (bool, error)

	// Restore replaces the file at dst with the artifact for key. dst is
	// replaced atomically, so a failed restore leaves it untouched.
	Restore(ctx context.Context, key, dst string) error

	// Save stores the file at src as the artifact for key, replacing any
	// existing artifact.
	Save(ctx context.Context, key, src string) error

	// List returns every stored artifact ordered by key.
	List(ctx context.Context) ([]Info, error)

	// Delete removes the artifact for key. Deleting a missing artifact
	// returns ErrNotFound.
	Delete(ctx context.Context, key string) error
}
