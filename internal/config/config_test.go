package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `{
		"org_id": "0b0e7b5e-7d5a-4f40-9db1-65c8d3adbd3a",
		"rubric": "strict",
		"batch_size": 3,
		"chunk_delay_ms": 250
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "strict", cfg.Rubric)
	assert.Equal(t, 3, cfg.BatchSize)
	assert.Equal(t, 250, cfg.ChunkDelayMS)
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"rubric": `)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad rubric", Config{Rubric: "merciless"}},
		{"bad org id", Config{OrgID: "not-a-uuid"}},
		{"oversized batch", Config{BatchSize: 500}},
		{"missing documents dir", Config{DocumentsDir: "/definitely/not/here"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestFromEnv_FillsOnlyUnsetFields(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg := Config{APIKey: "explicit-key"}
	cfg.FromEnv()

	assert.Equal(t, "postgres://env/db", cfg.DatabaseURL)
	assert.Equal(t, "explicit-key", cfg.APIKey, "explicit values win over the environment")
}
