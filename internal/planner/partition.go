package planner

import (
	"fmt"

	"github.com/Lumos-Labs-HQ/flashseed/internal/generator"
)

type PartitionStatus string

const (
	StatusPending PartitionStatus = "pending"
	StatusRunning PartitionStatus = "running"
	StatusDone    PartitionStatus = "done"
	StatusFailed  PartitionStatus = "failed"
)

// Partition is a chunk bound to a worker, with its execution state.
type Partition struct {
	ID             string          `json:"partition_id"`
	Table          string          `json:"table_name"`
	Stage          int             `json:"stage"`
	ChunkIndex     int             `json:"chunk_index"`
	StartRow       int             `json:"start_row"`
	EndRow         int             `json:"end_row"`
	AssignedWorker int             `json:"assigned_worker"`
	Seed           int64           `json:"seed"`
	Status         PartitionStatus `json:"status"`
	RetryCount     int             `json:"retry_count"`
	Error          string          `json:"error_message,omitempty"`
}

func (p Partition) Rows() int {
	return p.EndRow - p.StartRow + 1
}

func PartitionID(table string, stage, chunk int) string {
	return fmt.Sprintf("%s|stage=%d|chunk=%d", table, stage, chunk)
}

// PartitionSeed derives the deterministic seed of one partition.
func PartitionSeed(projectSeed int64, table, partitionID string) int64 {
	return generator.StableSeed(projectSeed, table, partitionID)
}

// BuildPartitionPlan maps chunks 1:1 onto partitions, assigning workers
// round-robin in plan order.
func BuildPartitionPlan(projectSeed int64, chunks []ChunkEntry, workerCount int) []Partition {
	if workerCount < 1 {
		workerCount = 1
	}
	out := make([]Partition, len(chunks))
	for i, c := range chunks {
		id := PartitionID(c.Table, c.Stage, c.ChunkIndex)
		out[i] = Partition{
			ID:             id,
			Table:          c.Table,
			Stage:          c.Stage,
			ChunkIndex:     c.ChunkIndex,
			StartRow:       c.StartRow,
			EndRow:         c.EndRow,
			AssignedWorker: (i % workerCount) + 1,
			Seed:           PartitionSeed(projectSeed, c.Table, id),
			Status:         StatusPending,
		}
	}
	return out
}
