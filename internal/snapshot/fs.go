package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// FSStore keeps artifacts as files in a directory, normally kernel.cache_dir.
type FSStore struct {
	root string
}

var _ Store = (*FSStore)(nil)

// NewFSStore returns a store rooted at dir, creating it if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot: empty cache dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FSStore{root: dir}, nil
}

// Driver implements Store.
func (s *FSStore) Driver() Driver { return DriverFilesystem }

// Root returns the directory holding artifacts.
func (s *FSStore) Root() string { return s.root }

// Path returns the artifact path for key.
func (s *FSStore) Path(key string) string {
	return filepath.Join(s.root, ArtifactName(key))
}

// Exists implements Store.
func (s *FSStore) Exists(_ context.Context, key string) (bool, error) {
	info, err := os.Stat(s.Path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Restore implements Store.
func (s *FSStore) Restore(_ context.Context, key, dst string) error {
	f, err := os.Open(s.Path(key))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	return replaceFile(dst, f)
}

// Save implements Store.
func (s *FSStore) Save(_ context.Context, key, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer f.Close()
	return replaceFile(s.Path(key), f)
}

// List implements Store. Files not named like artifacts are ignored.
func (s *FSStore) List(_ context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	var infos []Info
	for _, e := range entries {
		key, ok := ParseArtifactName(e.Name())
		if !ok || !e.Type().IsRegular() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return nil, err
		}
		infos = append(infos, Info{Key: key, Name: e.Name(), Size: fi.Size(), ModTime: fi.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Delete implements Store.
func (s *FSStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.Path(key))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return err
}

// replaceFile writes r to a temp file beside dst and renames it over dst.
// Stale SQLite sidecar files for dst are removed so the new file is read
// without a leftover journal.
func replaceFile(dst string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("copy artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		if err := os.Remove(dst + suffix); err != nil && !os.IsNotExist(err) {
			cleanup()
			return fmt.Errorf("remove %s: %w", dst+suffix, err)
		}
	}
	if err := os.Rename(tmpName, dst); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", dst, err)
	}
	return nil
}
