package executor

import (
	"fmt"
	"runtime"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
)

const (
	ModeSingleProcess     = "single_process"
	ModeMultiProcessLocal = "multi_process_local"

	maxWorkers    = 256
	maxInflight   = 4096
	maxRetryLimit = 50
	defaultLedger = ".flashseed/run_ledger.json"
)

type Config struct {
	Mode                    string `json:"mode" mapstructure:"mode"`
	WorkerCount             int    `json:"worker_count" mapstructure:"worker_count"`
	MaxInflightChunks       int    `json:"max_inflight_chunks" mapstructure:"max_inflight_chunks"`
	IPCQueueSize            int    `json:"ipc_queue_size" mapstructure:"ipc_queue_size"`
	RetryLimit              int    `json:"retry_limit" mapstructure:"retry_limit"`
	FallbackToSingleProcess bool   `json:"fallback_to_single_process" mapstructure:"fallback_to_single_process"`
	// LedgerPath enables resumable runs; empty keeps the ledger in memory.
	LedgerPath string `json:"ledger_path" mapstructure:"ledger_path"`
}

func DefaultConfig() Config {
	return Config{
		Mode:                    ModeSingleProcess,
		WorkerCount:             1,
		MaxInflightChunks:       4,
		IPCQueueSize:            128,
		RetryLimit:              1,
		FallbackToSingleProcess: true,
	}
}

func DefaultLedgerPath() string {
	return defaultLedger
}

func configErr(field, issue, hint string) error {
	return apperrors.Validation("Execution / "+field, issue, hint)
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeSingleProcess, ModeMultiProcessLocal:
	default:
		return configErr("mode", fmt.Sprintf("unsupported mode '%s'", c.Mode), "use single_process or multi_process_local")
	}
	if c.WorkerCount < 1 || c.WorkerCount > maxWorkers {
		return configErr("worker_count", fmt.Sprintf("value %d is outside 1..%d", c.WorkerCount, maxWorkers), "pick between 1 and 256 workers")
	}
	if c.Mode == ModeSingleProcess && c.WorkerCount != 1 {
		return configErr("worker_count", "single_process mode runs exactly one worker", "set worker_count to 1 or switch to multi_process_local")
	}
	if c.Mode == ModeMultiProcessLocal && c.WorkerCount > runtime.NumCPU() {
		return configErr("worker_count", fmt.Sprintf("value %d exceeds the %d available CPUs", c.WorkerCount, runtime.NumCPU()),
			"lower worker_count to the CPU count or less")
	}
	if c.MaxInflightChunks < c.WorkerCount || c.MaxInflightChunks > maxInflight {
		return configErr("max_inflight_chunks", fmt.Sprintf("value %d is outside %d..%d", c.MaxInflightChunks, c.WorkerCount, maxInflight),
			"keep max_inflight_chunks at least worker_count and at most 4096")
	}
	if c.IPCQueueSize < c.MaxInflightChunks {
		return configErr("ipc_queue_size", fmt.Sprintf("value %d is below max_inflight_chunks %d", c.IPCQueueSize, c.MaxInflightChunks),
			"raise ipc_queue_size to at least max_inflight_chunks")
	}
	if c.RetryLimit < 0 || c.RetryLimit > maxRetryLimit {
		return configErr("retry_limit", fmt.Sprintf("value %d is outside 0..%d", c.RetryLimit, maxRetryLimit), "pick a retry limit between 0 and 50")
	}
	return nil
}
