package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(APIKeyEnv, "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultTimeoutSeconds, cfg.Timeout)
	assert.Equal(t, DefaultMaxScopes, cfg.MaxScopes)
	assert.Equal(t, DefaultMaxSnapshots, cfg.MaxSnapshots)
	assert.Equal(t, DefaultAgentMaxDepth, cfg.AgentMaxDepth)
	assert.Equal(t, DefaultAgentMaxParallel, cfg.AgentMaxParallel)
	assert.Equal(t, 120*time.Second, cfg.ScopeTimeout())
}

func TestLoad_MissingKeyForcesNoLLM(t *testing.T) {
	t.Setenv(APIKeyEnv, "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.NoLLM)
}

func TestLoad_KeyPresentKeepsLLM(t *testing.T) {
	t.Setenv(APIKeyEnv, "sk-or-test")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.False(t, cfg.NoLLM)
	assert.Equal(t, "sk-or-test", cfg.APIKey)
}

func TestLoad_FileOverrides(t *testing.T) {
	t.Setenv(APIKeyEnv, "sk-or-test")

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, DocbotDir), 0o755))
	toml := `
model = "openai/gpt-5"
concurrency = 2
timeout = 30.5
max_scopes = 5
no_llm = true
ignore = ["**/vendor/**"]
`
	require.NoError(t, os.WriteFile(filepath.Join(root, DocbotDir, ConfigFileName), []byte(toml), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-5", cfg.Model)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 30.5, cfg.Timeout)
	assert.Equal(t, 5, cfg.MaxScopes)
	assert.True(t, cfg.NoLLM)
	assert.Equal(t, []string{"**/vendor/**"}, cfg.Ignore)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv(APIKeyEnv, "sk-or-test")

	cases := []struct {
		name string
		toml string
	}{
		{"zero concurrency", "concurrency = 0"},
		{"negative timeout", "timeout = -1.0"},
		{"zero max_scopes", "max_scopes = 0"},
		{"zero max_snapshots", "max_snapshots = 0"},
		{"negative depth", "agent_max_depth = -1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			require.NoError(t, os.MkdirAll(filepath.Join(root, DocbotDir), 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(root, DocbotDir, ConfigFileName), []byte(tc.toml), 0o644))

			_, err := Load(root)
			assert.Error(t, err)
		})
	}
}

func TestWriteDefault(t *testing.T) {
	root := t.TempDir()

	path, err := WriteDefault(root)
	require.NoError(t, err)
	assert.FileExists(t, path)

	// Idempotent: a second call must not clobber user edits.
	require.NoError(t, os.WriteFile(path, []byte(`model = "custom"`), 0o644))
	_, err = WriteDefault(root)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `model = "custom"`, string(data))
}
