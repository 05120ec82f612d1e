package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Lumos-Labs-HQ/flashseed/internal/executor"
	"github.com/Lumos-Labs-HQ/flashseed/internal/planner"
	"github.com/spf13/viper"
)

const FileName = "flashseed.config.json"

type Config struct {
	Version    string          `json:"version" mapstructure:"version"`
	SchemaPath string          `json:"schema_path" mapstructure:"schema_path"`
	Output     Output          `json:"output" mapstructure:"output"`
	Database   Database        `json:"database" mapstructure:"database"`
	Profile    planner.Profile `json:"profile" mapstructure:"profile"`
	Execution  executor.Config `json:"execution" mapstructure:"execution"`
}

type Output struct {
	CSVDir string `json:"csv_dir" mapstructure:"csv_dir"`
}

// Database is the relational store used by the sqlite output mode. SQLite
// writes to Path; postgres and mysql read their URL from URLEnv.
type Database struct {
	Provider string `json:"provider" mapstructure:"provider"`
	Path     string `json:"path,omitempty" mapstructure:"path"`
	URLEnv   string `json:"url_env" mapstructure:"url_env"`
}

func Load() (*Config, error) {
	var cfg Config

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if !viper.IsSet("execution.fallback_to_single_process") {
		cfg.Execution.FallbackToSingleProcess = true
	}
	return &cfg, nil
}

// Default returns the configuration written by `flashseed init`.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Execution.FallbackToSingleProcess = true
	return cfg
}

func (c *Config) applyDefaults() {
	profile := planner.DefaultProfile()
	exec := executor.DefaultConfig()

	if c.Version == "" {
		c.Version = "1"
	}
	if c.SchemaPath == "" {
		c.SchemaPath = "schema.json"
	}
	if c.Output.CSVDir == "" {
		c.Output.CSVDir = "output/csv"
	}
	if c.Database.Provider == "" {
		c.Database.Provider = "sqlite"
	}
	if c.Database.Path == "" && isSQLite(c.Database.Provider) {
		c.Database.Path = "output/flashseed.db"
	}
	if c.Database.URLEnv == "" {
		c.Database.URLEnv = "DATABASE_URL"
	}
	if c.Profile.ChunkSizeRows == 0 {
		c.Profile.ChunkSizeRows = profile.ChunkSizeRows
	}
	if c.Profile.OutputMode == "" {
		c.Profile.OutputMode = profile.OutputMode
	}
	if c.Profile.PreviewRowTarget == 0 {
		c.Profile.PreviewRowTarget = profile.PreviewRowTarget
	}
	if c.Profile.BatchSize == 0 {
		c.Profile.BatchSize = profile.BatchSize
	}
	if c.Profile.CSVBufferRows == 0 {
		c.Profile.CSVBufferRows = profile.CSVBufferRows
	}
	if c.Execution.Mode == "" {
		c.Execution.Mode = exec.Mode
	}
	if c.Execution.WorkerCount == 0 {
		c.Execution.WorkerCount = exec.WorkerCount
	}
	if c.Execution.MaxInflightChunks == 0 {
		c.Execution.MaxInflightChunks = max(exec.MaxInflightChunks, c.Execution.WorkerCount)
	}
	if c.Execution.IPCQueueSize == 0 {
		c.Execution.IPCQueueSize = max(exec.IPCQueueSize, c.Execution.MaxInflightChunks)
	}
	if c.Execution.LedgerPath == "" {
		c.Execution.LedgerPath = executor.DefaultLedgerPath()
	}
}

func isSQLite(provider string) bool {
	return provider == "sqlite" || provider == "sqlite3"
}

func (c *Config) GetDatabaseURL() (string, error) {
	if isSQLite(c.Database.Provider) {
		return c.Database.Path, nil
	}
	dbURL := os.Getenv(c.Database.URLEnv)
	if dbURL == "" {
		return "", fmt.Errorf("database URL not found in environment variable %s", c.Database.URLEnv)
	}
	return dbURL, nil
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Execution.LedgerPath)}
	switch c.Profile.OutputMode {
	case planner.OutputCSV, planner.OutputAll:
		dirs = append(dirs, c.Output.CSVDir)
	}
	if isSQLite(c.Database.Provider) && c.Database.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Database.Path))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	supportedProviders := []string{"postgresql", "postgres", "mysql", "sqlite", "sqlite3"}
	supported := false
	for _, provider := range supportedProviders {
		if c.Database.Provider == provider {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported database provider: %s. Supported providers: %v", c.Database.Provider, supportedProviders)
	}

	if c.SchemaPath == "" {
		return fmt.Errorf("schema_path cannot be empty")
	}

	switch c.Profile.OutputMode {
	case planner.OutputPreview, planner.OutputCSV, planner.OutputSQLite, planner.OutputAll:
	default:
		return fmt.Errorf("unsupported output mode: %s. Supported modes: preview, csv, sqlite, all", c.Profile.OutputMode)
	}

	return c.Execution.Validate()
}

// Write saves the configuration as indented JSON.
func (c *Config) Write(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
