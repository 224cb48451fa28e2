package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "webtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConfigValidate_Valid(t *testing.T) {
	path := writeConfig(t, "kernel:\n  cache_dir: var/cache\nwebtest:\n  cache_sqlite_db: true\n")

	out, _, err := execute(t, "config", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Configuration valid")
}

func TestConfigValidate_VerboseJSON(t *testing.T) {
	path := writeConfig(t, "kernel:\n  cache_dir: var/cache\n")

	out, _, err := execute(t, "--format", "json", "-v", "config", "validate", path)
	require.NoError(t, err)

	var resp struct {
		Status string               `json:"status"`
		Data   ConfigValidateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "var", "cache"), resp.Data.Parameters["kernel.cache_dir"])
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantExit int
		wantCode string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.yaml"), ExitCommandError, ErrCodeConfigRead},
		{"malformed yaml", writeConfig(t, "kernel: [\n"), ExitFailure, ErrCodeConfigParse},
		{"schema violation", writeConfig(t, "kernel: {}\n"), ExitFailure, ErrCodeConfigSchema},
		{"unknown driver", writeConfig(t, "kernel:\n  cache_dir: x\nwebtest:\n  snapshot:\n    driver: ftp\n"), ExitFailure, ErrCodeConfigSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "--format", "json", "config", "validate", tt.path)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, ExitCode(err))

			var resp Envelope
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}
