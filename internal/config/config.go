// Package config loads orchestrator configuration from environment
// variables with a JSON-file fallback, following the nested-struct plus
// encoding/json load/save pattern of PedroCLI's pkg/config.Config.
package config

import (
	"encoding/json"
	"os"

	"orchestrator/internal/errs"
)

// Config is the top-level orchestrator configuration.
type Config struct {
	APIURL       string `json:"api_url"`
	APIKey       string `json:"api_key"`
	DefaultMode  string `json:"default_mode"`
	OutputFormat string `json:"output_format"`
	ProjectPath  string `json:"project_path"`
	Database     DatabaseConfig `json:"database"`
	WorkerPool   WorkerPoolConfig `json:"worker_pool"`
}

// DatabaseConfig mirrors pkg/database.Config's fields.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode"`
}

// WorkerPoolConfig bounds the orchestrator's subtask worker pool.
type WorkerPoolConfig struct {
	Size         int `json:"size"`
	MaxListeners int `json:"max_listeners"`
}

// Default returns the baseline configuration before env/file overrides.
func Default() *Config {
	return &Config{
		APIURL:       "http://localhost:8080",
		DefaultMode:  "SPEED",
		OutputFormat: "text",
		Database: DatabaseConfig{
			Host: "localhost", Port: 5432, Database: "orchestrator",
			User: "orchestrator", Password: "orchestrator", SSLMode: "disable",
		},
		WorkerPool: WorkerPoolConfig{Size: 4, MaxListeners: 100},
	}
}

// Load builds a Config from defaults, an optional JSON file, and finally
// environment variable overrides (highest precedence), mirroring the
// defaulting order of pkg/config.LoadConfig.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, errs.Wrap(errs.Validation, "parse config file "+path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, errs.Wrap(errs.Internal, "read config file "+path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ORCH_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("ORCH_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("ORCH_DEFAULT_MODE"); v != "" {
		cfg.DefaultMode = v
	}
	if v := os.Getenv("ORCH_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = v
	}
	if v := os.Getenv("ORCH_PROJECT_PATH"); v != "" {
		cfg.ProjectPath = v
	}
}

// Save writes cfg to path as indented JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.Internal, "write config file "+path, err)
	}
	return nil
}
