package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/webtest/internal/config"
	"github.com/roach88/webtest/internal/container"
	"github.com/roach88/webtest/internal/orm"
	"github.com/roach88/webtest/internal/seed"
	"github.com/roach88/webtest/internal/snapshot"
)

// CacheListResult is the output of cache list.
type CacheListResult struct {
	Driver    snapshot.Driver `json:"driver"`
	Artifacts []snapshot.Info `json:"artifacts"`
	TotalSize int64           `json:"total_size"`
}

func (r CacheListResult) String() string {
	var b strings.Builder
	for _, a := range r.Artifacts {
		fmt.Fprintf(&b, "%s  %10d  %s\n", a.Key, a.Size, a.ModTime.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "%d artifact(s), %d bytes", len(r.Artifacts), r.TotalSize)
	return b.String()
}

// CachePruneResult is the output of cache prune.
type CachePruneResult struct {
	DryRun  bool     `json:"dry_run"`
	Deleted []string `json:"deleted"`
	Kept    int      `json:"kept"`
	Freed   int64    `json:"freed"`
}

// CacheKeyResult is the output of cache key.
type CacheKeyResult struct {
	Key      string   `json:"key"`
	Artifact string   `json:"artifact"`
	Fixtures []string `json:"fixtures"`
	Entities int      `json:"entities"`
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune snapshot artifacts",
	}
	cmd.AddCommand(newCacheListCommand(rootOpts))
	cmd.AddCommand(newCachePruneCommand(rootOpts))
	cmd.AddCommand(newCacheKeyCommand(rootOpts))
	return cmd
}

// storeSource selects the artifact store: a cache directory argument or
// the snapshot settings of a webtest config file.
type storeSource struct {
	configPath string
}

func (s *storeSource) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.configPath, "config", "c", "", "webtest config file selecting the snapshot store")
}

func (s *storeSource) open(cmd *cobra.Command, f *OutputFormatter, args []string) (snapshot.Store, error) {
	ctx := cmd.Context()
	switch {
	case s.configPath != "" && len(args) > 0:
		return nil, f.Fail(ExitCommandError, ErrCodeGeneric, "give a cache directory or --config, not both", nil)
	case s.configPath != "":
		cfg, err := config.Load(s.configPath)
		if err != nil {
			return nil, failConfig(f, err)
		}
		c := container.New()
		cfg.Apply(c)
		f.Debugf("Using %s snapshot store from %s", cfg.Webtest.Snapshot.Driver, s.configPath)
		st, err := seed.NewSnapshotStore(ctx, c)
		if err != nil {
			return nil, f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		return st, nil
	case len(args) == 1:
		info, err := os.Stat(args[0])
		if err != nil || !info.IsDir() {
			return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("cache directory not found: %s", args[0]), nil)
		}
		st, err := snapshot.NewFSStore(args[0])
		if err != nil {
			return nil, f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		return st, nil
	default:
		return nil, f.Fail(ExitCommandError, ErrCodeGeneric, "a cache directory or --config is required", nil)
	}
}

func newCacheListCommand(rootOpts *RootOptions) *cobra.Command {
	var src storeSource
	cmd := &cobra.Command{
		Use:   "list [cache-dir]",
		Short: "List snapshot artifacts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			st, err := src.open(cmd, f, args)
			if err != nil {
				return err
			}
			infos, err := st.List(cmd.Context())
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
			}
			result := CacheListResult{Driver: st.Driver(), Artifacts: infos}
			if result.Artifacts == nil {
				result.Artifacts = []snapshot.Info{}
			}
			for _, info := range infos {
				result.TotalSize += info.Size
			}
			return f.Success(result)
		},
	}
	src.register(cmd)
	return cmd
}

func newCachePruneCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		src       storeSource
		olderThan time.Duration
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "prune [cache-dir]",
		Short: "Delete snapshot artifacts",
		Long: `Delete snapshot artifacts. With --older-than only artifacts last
written before that age are removed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			logger := newLogger(rootOpts, cmd)
			if olderThan < 0 {
				return f.Fail(ExitCommandError, ErrCodeGeneric, "--older-than must not be negative", nil)
			}
			st, err := src.open(cmd, f, args)
			if err != nil {
				return err
			}
			infos, err := st.List(cmd.Context())
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
			}

			cutoff := time.Now().Add(-olderThan)
			result := CachePruneResult{DryRun: dryRun, Deleted: []string{}}
			for _, info := range infos {
				if olderThan > 0 && !info.ModTime.Before(cutoff) {
					result.Kept++
					continue
				}
				if !dryRun {
					err := st.Delete(cmd.Context(), info.Key)
					if err != nil && !errors.Is(err, snapshot.ErrNotFound) {
						return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), map[string]any{"deleted": result.Deleted})
					}
				}
				logger.Debug("artifact pruned", "key", info.Key, "size", info.Size, "dry_run", dryRun)
				result.Deleted = append(result.Deleted, info.Name)
				result.Freed += info.Size
			}

			if f.Format == "json" {
				return f.Success(result)
			}
			verb := "Deleted"
			if dryRun {
				verb = "Would delete"
			}
			return f.Success(f.OK(fmt.Sprintf("%s %d artifact(s) (%d bytes), kept %d", verb, len(result.Deleted), result.Freed, result.Kept)))
		},
	}
	src.register(cmd)
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only prune artifacts older than this (e.g. 72h)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting")
	return cmd
}

// schemaFile is the YAML layout read by cache key.
type schemaFile struct {
	Entities []orm.EntityMetadata `yaml:"entities"`
}

func newCacheKeyCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		schemaPath string
		fixtures   []string
	)
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print the snapshot key for a schema and fixture list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			metas, err := loadSchemaFile(schemaPath)
			if err != nil {
				return f.Fail(ExitFailure, ErrCodeSchemaFile, err.Error(), nil)
			}
			key, err := snapshot.Key(metas, fixtures)
			if err != nil {
				return f.Fail(ExitFailure, ErrCodeGeneric, err.Error(), nil)
			}
			result := CacheKeyResult{
				Key:      key,
				Artifact: snapshot.ArtifactName(key),
				Fixtures: fixtures,
				Entities: len(metas),
			}
			if result.Fixtures == nil {
				result.Fixtures = []string{}
			}
			if f.Format == "json" {
				return f.Success(result)
			}
			return f.Success(key)
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "YAML file listing entity metadata")
	cmd.Flags().StringSliceVar(&fixtures, "fixtures", nil, "comma-separated fixture ids, in load order")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func loadSchemaFile(path string) ([]orm.EntityMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sf schemaFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, m := range sf.Entities {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return sf.Entities, nil
}
