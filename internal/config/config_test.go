package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Lumos-Labs-HQ/flashseed/internal/executor"
	"github.com/Lumos-Labs-HQ/flashseed/internal/planner"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFrom(t *testing.T, body string) *Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg := loadFrom(t, `{"schema_path": "retail.json"}`)
	assert.Equal(t, "retail.json", cfg.SchemaPath)
	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, "sqlite", cfg.Database.Provider)
	assert.Equal(t, "output/flashseed.db", cfg.Database.Path)
	assert.Equal(t, planner.DefaultProfile(), cfg.Profile)
	assert.Equal(t, executor.ModeSingleProcess, cfg.Execution.Mode)
	assert.True(t, cfg.Execution.FallbackToSingleProcess)
	assert.Equal(t, executor.DefaultLedgerPath(), cfg.Execution.LedgerPath)
	require.NoError(t, cfg.Validate())
}

func TestLoadReadsNestedSections(t *testing.T) {
	cfg := loadFrom(t, `{
  "database": {"provider": "postgresql", "url_env": "SHOP_DB"},
  "profile": {"chunk_size_rows": 250, "output_mode": "csv", "target_tables": ["orders"], "row_overrides": {"orders": 40}},
  "execution": {"mode": "multi_process_local", "worker_count": 1, "retry_limit": 3, "fallback_to_single_process": false}
}`)
	assert.Equal(t, "postgresql", cfg.Database.Provider)
	assert.Empty(t, cfg.Database.Path)
	assert.Equal(t, 250, cfg.Profile.ChunkSizeRows)
	assert.Equal(t, planner.OutputCSV, cfg.Profile.OutputMode)
	assert.Equal(t, []string{"orders"}, cfg.Profile.TargetTables)
	assert.Equal(t, map[string]int{"orders": 40}, cfg.Profile.RowOverrides)
	assert.Equal(t, 3, cfg.Execution.RetryLimit)
	assert.False(t, cfg.Execution.FallbackToSingleProcess)
	assert.Equal(t, 4, cfg.Execution.MaxInflightChunks)
	assert.Equal(t, 128, cfg.Execution.IPCQueueSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"provider", func(c *Config) { c.Database.Provider = "oracle" }, "unsupported database provider: oracle"},
		{"schema path", func(c *Config) { c.SchemaPath = "" }, "schema_path cannot be empty"},
		{"output mode", func(c *Config) { c.Profile.OutputMode = "parquet" }, "unsupported output mode: parquet"},
		{"execution", func(c *Config) { c.Execution.RetryLimit = -1 }, "Execution / retry_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestGetDatabaseURL(t *testing.T) {
	cfg := Default()
	url, err := cfg.GetDatabaseURL()
	require.NoError(t, err)
	assert.Equal(t, "output/flashseed.db", url)

	cfg.Database.Provider = "postgresql"
	cfg.Database.URLEnv = "FLASHSEED_TEST_DB_URL"
	t.Setenv("FLASHSEED_TEST_DB_URL", "")
	_, err = cfg.GetDatabaseURL()
	assert.ErrorContains(t, err, "FLASHSEED_TEST_DB_URL")

	t.Setenv("FLASHSEED_TEST_DB_URL", "postgres://localhost/shop")
	url, err = cfg.GetDatabaseURL()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/shop", url)
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Profile.OutputMode = planner.OutputAll
	cfg.Output.CSVDir = filepath.Join(root, "csv")
	cfg.Database.Path = filepath.Join(root, "db", "out.db")
	cfg.Execution.LedgerPath = filepath.Join(root, "state", "ledger.json")
	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{"csv", "db", "state"} {
		info, err := os.Stat(filepath.Join(root, dir))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := Default()
	cfg.SchemaPath = "shop.yaml"
	require.NoError(t, cfg.Write(path))

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())
	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
