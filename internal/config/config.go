// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Config is the CLI configuration, loadable from a JSON file. All fields are
// optional; missing values use defaults or come from CLI flags and the
// environment.
type Config struct {
	// Inputs
	DocumentsDir string `json:"documents_dir,omitempty"` // Directory of candidate documents (pdf/docx/txt)
	JobID        string `json:"job_id,omitempty" validate:"omitempty,uuid"`
	OrgID        string `json:"org_id,omitempty" validate:"omitempty,uuid"`

	// Collaborators
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key

	// Scoring behavior
	Rubric         string `json:"rubric,omitempty" validate:"omitempty,oneof=lenient standard strict"`
	BatchSize      int    `json:"batch_size,omitempty" validate:"min=0,max=50"`
	ChunkDelayMS   int    `json:"chunk_delay_ms,omitempty" validate:"min=0"`
	CallTimeoutSec int    `json:"call_timeout_sec,omitempty" validate:"min=0"`

	// Output
	Verbose  bool `json:"verbose,omitempty"`
	JSONLogs bool `json:"json_logs,omitempty"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// FromEnv fills unset fields from the environment. Flag and file values take
// precedence over the environment.
func (c *Config) FromEnv() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}

// Validate checks field formats and ranges. Required-field checks happen in
// the commands, after flag merging.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.DocumentsDir != "" {
		if _, err := os.Stat(c.DocumentsDir); os.IsNotExist(err) {
			return fmt.Errorf("config error: documents directory not found: %s", c.DocumentsDir)
		}
	}
	return nil
}
