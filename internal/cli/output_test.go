package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]int{"artifacts": 2}))

	var resp Envelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"artifacts": float64(2)}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeConfigSchema, "kernel.cache_dir: incomplete value", []string{"webtest.yaml"}))

	var resp Envelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfigSchema, resp.Error.Code)
	assert.Equal(t, "kernel.cache_dir: incomplete value", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error(ErrCodeStore, "list failed", "bucket unreachable"))
			assert.Contains(t, buf.String(), "Error [E401]: list failed")
			assert.Equal(t, tt.wantDetails, bytes.Contains(buf.Bytes(), []byte("  bucket unreachable")))
		})
	}
}

func TestOutputFormatter_Marks(t *testing.T) {
	plain := &OutputFormatter{Format: "text"}
	assert.Equal(t, "✓ done", plain.OK("done"))
	assert.Equal(t, "! careful", plain.Warn("careful"))

	colored := &OutputFormatter{Format: "text", Color: true}
	assert.Contains(t, colored.OK("done"), "\x1b[32m")
}

func TestOutputFormatter_DebugfUsesErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.Debugf("scanning %s", "var/cache")
	assert.Empty(t, out.String())
	assert.Equal(t, "scanning var/cache\n", errOut.String())

	formatter.Verbose = false
	formatter.Debugf("hidden")
	assert.NotContains(t, errOut.String(), "hidden")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, ExitCode(exitError(ExitCommandError, "bad flag", nil)))

	wrapped := fmt.Errorf("run: %w", exitError(ExitFailure, "invalid", errors.New("cause")))
	assert.Equal(t, ExitFailure, ExitCode(wrapped))
	assert.EqualError(t, errors.Unwrap(wrapped), "invalid: cause")
}
