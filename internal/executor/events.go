package executor

import "time"

type EventType string

const (
	EventStarted         EventType = "started"
	EventProgress        EventType = "progress"
	EventPartitionFailed EventType = "partition_failed"
	EventFallback        EventType = "fallback"
	EventTableDone       EventType = "table_done"
	EventCancelled       EventType = "cancelled"
	EventRunDone         EventType = "run_done"
)

// Event is emitted to the observer as a run progresses. Only the fields
// relevant to Type are set.
type Event struct {
	Type      EventType `json:"type"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	PartitionID string `json:"partition_id,omitempty"`
	Table       string `json:"table_name,omitempty"`
	Stage       int    `json:"stage,omitempty"`
	WorkerID    int    `json:"worker_id,omitempty"`
	RetryCount  int    `json:"retry_count,omitempty"`
	Action      string `json:"action,omitempty"` // retry|fail|fallback

	RowsProcessed int `json:"rows_processed,omitempty"`
	TotalRows     int `json:"total_rows,omitempty"`
	Done          int `json:"done,omitempty"`
	Total         int `json:"total,omitempty"`
}

type Observer func(Event)

type WorkerState string

const (
	WorkerIdle     WorkerState = "idle"
	WorkerRunning  WorkerState = "running"
	WorkerRetrying WorkerState = "retrying"
	WorkerFailed   WorkerState = "failed"
	WorkerFallback WorkerState = "fallback"
)

type WorkerStatus struct {
	WorkerID           int         `json:"worker_id"`
	CurrentTable       string      `json:"current_table,omitempty"`
	CurrentPartitionID string      `json:"current_partition_id,omitempty"`
	RowsProcessed      int         `json:"rows_processed"`
	Throughput         float64     `json:"throughput_rows_per_sec"`
	MemoryMB           float64     `json:"memory_mb"`
	LastHeartbeat      time.Time   `json:"last_heartbeat"`
	State              WorkerState `json:"state"`

	started time.Time
}

// PartitionFailure records a partition that ran out of retries.
type PartitionFailure struct {
	PartitionID string `json:"partition_id"`
	Error       string `json:"error"`
	RetryCount  int    `json:"retry_count"`
	Action      string `json:"action"` // fallback|fail
}
