package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the webtest CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "webtest",
		Short: "Maintain functional-test fixture snapshots",
		Long: `Tools for the webtest functional-test support library.

Fixture loads against file-backed SQLite stores are cached as snapshot
artifacts keyed by schema and fixture identity. These commands list,
prune and explain those artifacts and validate webtest configuration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return exitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// newFormatter builds the formatter for cmd's output streams. Colors are
// only used for text written to a terminal.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	out := cmd.OutOrStdout()
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    out,
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
		Color:     opts.Format == "text" && out == os.Stdout && !color.NoColor,
	}
}

// newLogger returns the logger commands pass to library code. It writes
// to stderr at debug level with --verbose and warnings otherwise.
func newLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// Execute runs the CLI and returns the process exit code.
func Execute(args []string) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err != nil {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) || !exitErr.Reported {
			fmt.Fprintln(cmd.ErrOrStderr(), "webtest:", err)
		}
	}
	return ExitCode(err)
}
