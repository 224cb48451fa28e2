package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/webtest/internal/config"
)

// ConfigValidateResult is the output of config validate.
type ConfigValidateResult struct {
	Valid      bool           `json:"valid"`
	Path       string         `json:"path"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with webtest configuration files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a webtest configuration file against the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(rootOpts, cmd, args[0])
		},
	})
	return cmd
}

func runConfigValidate(opts *RootOptions, cmd *cobra.Command, path string) error {
	f := newFormatter(opts, cmd)
	cfg, err := config.Load(path)
	if err != nil {
		return failConfig(f, err)
	}

	result := ConfigValidateResult{Valid: true, Path: path}
	if opts.Verbose {
		result.Parameters = cfg.Parameters()
	}
	if f.Format == "json" {
		return f.Success(result)
	}
	f.Debugf("Parameters: %v", cfg.Parameters())
	return f.Success(f.OK("Configuration valid: " + path))
}

// failConfig reports a config.Load error. Unreadable files are command
// errors; malformed or invalid files are failures.
func failConfig(f *OutputFormatter, err error) error {
	var ce *config.Error
	if !errors.As(err, &ce) {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	switch ce.Code {
	case config.ErrCodeRead:
		return f.Fail(ExitCommandError, ErrCodeConfigRead, ce.Message, ce.Path)
	case config.ErrCodeParse:
		return f.Fail(ExitFailure, ErrCodeConfigParse, ce.Message, ce.Path)
	default:
		return f.Fail(ExitFailure, ErrCodeConfigSchema, ce.Message, ce.Path)
	}
}
