package executor

import (
	"runtime"
	"testing"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeSingleProcess, cfg.Mode)
	assert.True(t, cfg.FallbackToSingleProcess)
	assert.Equal(t, ".flashseed/run_ledger.json", DefaultLedgerPath())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"mode", func(c *Config) { c.Mode = "cluster" }, "Execution / mode"},
		{"zero workers", func(c *Config) { c.WorkerCount = 0 }, "Execution / worker_count"},
		{"single with many workers", func(c *Config) { c.WorkerCount = 2 }, "exactly one worker"},
		{"too many workers", func(c *Config) {
			c.Mode = ModeMultiProcessLocal
			c.WorkerCount = runtime.NumCPU() + 1
			c.MaxInflightChunks = c.WorkerCount
		}, "available CPUs"},
		{"inflight below workers", func(c *Config) { c.MaxInflightChunks = 0 }, "Execution / max_inflight_chunks"},
		{"queue below inflight", func(c *Config) { c.IPCQueueSize = 2 }, "Execution / ipc_queue_size"},
		{"negative retry", func(c *Config) { c.RetryLimit = -1 }, "Execution / retry_limit"},
		{"huge retry", func(c *Config) { c.RetryLimit = 51 }, "Execution / retry_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
