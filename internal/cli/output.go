package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Validation failure, invalid configuration
	ExitCommandError = 2 // Command error (unreadable files, unreachable store, bad flags)
)

// Error codes reported in CLI output.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeConfigRead   = "E201" // Config file unreadable
	ErrCodeConfigParse  = "E202" // Config YAML malformed
	ErrCodeConfigSchema = "E203" // Config violates the schema
	ErrCodeSchemaFile   = "E301" // Entity schema file invalid
	ErrCodeStore        = "E401" // Snapshot store operation failed
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
	// Reported is set once the error was written to the command output.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func exitError(code int, message string, cause error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: cause}
}

// ExitCode maps err to a process exit code. Errors that carry no
// ExitError are plain failures.
func ExitCode(err error) int {
	var ee *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &ee):
		return ee.Code
	default:
		return ExitFailure
	}
}

// OutputFormatter renders command results as text or JSON envelopes.
type OutputFormatter struct {
	Format    string // "text" or "json"
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
	Color     bool
}

// Envelope is the JSON shape of every command's output.
type Envelope struct {
	Status string     `json:"status"`
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed command in JSON output.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

func (f *OutputFormatter) encode(env Envelope) error {
	return json.NewEncoder(f.Writer).Encode(env)
}

// Success writes data, either as the envelope payload or via its String form.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return f.encode(Envelope{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes a coded error. Details are printed in text mode only with --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(Envelope{
			Status: "error",
			Error:  &ErrorBody{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "%s [%s]: %s\n", f.paint(color.FgRed, "Error"), code, message)
	if details != nil && f.Verbose {
		fmt.Fprintf(f.Writer, "  %v\n", details)
	}
	return nil
}

// Fail writes an error through Error and returns the matching ExitError.
func (f *OutputFormatter) Fail(exitCode int, code, message string, details any) error {
	if err := f.Error(code, message, details); err != nil {
		return exitError(ExitCommandError, "write output", err)
	}
	return &ExitError{Code: exitCode, Message: fmt.Sprintf("%s: %s", code, message), Reported: true}
}

// OK returns a check-marked status line for text output.
func (f *OutputFormatter) OK(msg string) string {
	return f.paint(color.FgGreen, "✓") + " " + msg
}

// Warn returns a highlighted status line for text output.
func (f *OutputFormatter) Warn(msg string) string {
	return f.paint(color.FgYellow, "!") + " " + msg
}

func (f *OutputFormatter) paint(attr color.Attribute, s string) string {
	c := color.New(attr)
	if f.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

// Debugf prints a diagnostic line when --verbose is set. Diagnostics go to
// ErrWriter when one is configured so JSON on stdout stays parseable.
func (f *OutputFormatter) Debugf(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.diag(), format+"\n", args...)
	}
}

func (f *OutputFormatter) diag() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}
