package executor

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"runtime"

	"github.com/Lumos-Labs-HQ/flashseed/internal/planner"
	"github.com/zeebo/xxh3"
)

// Task is the unit of work sent to a worker for one partition.
type Task struct {
	PartitionID string `msgpack:"partition_id"`
	Table       string `msgpack:"table_name"`
	StartRow    int    `msgpack:"start_row"`
	EndRow      int    `msgpack:"end_row"`
	Seed        int64  `msgpack:"seed"`
	ForceFail   bool   `msgpack:"force_fail"`
}

type TaskResult struct {
	PartitionID   string  `msgpack:"partition_id"`
	RowsProcessed int     `msgpack:"rows_processed"`
	Checksum      uint64  `msgpack:"checksum"`
	MemoryMB      float64 `msgpack:"memory_mb"`
	WorkerPID     int     `msgpack:"worker_pid"`
	Error         string  `msgpack:"error,omitempty"`
}

func taskFor(p *planner.Partition, forceFail bool) Task {
	return Task{
		PartitionID: p.ID,
		Table:       p.Table,
		StartRow:    p.StartRow,
		EndRow:      p.EndRow,
		Seed:        p.Seed,
		ForceFail:   forceFail,
	}
}

// RunTask walks the partition's row range and folds a seeded stream into
// a checksum. The authoritative rows are produced by the seeder; this work
// exercises the worker pipeline and proves the partition was reached.
func RunTask(t Task) (TaskResult, error) {
	if t.ForceFail {
		return TaskResult{PartitionID: t.PartitionID}, fmt.Errorf("injected failure for partition %s", t.PartitionID)
	}
	if t.EndRow < t.StartRow {
		return TaskResult{PartitionID: t.PartitionID}, fmt.Errorf("partition %s has empty range [%d, %d]", t.PartitionID, t.StartRow, t.EndRow)
	}

	rng := rand.New(rand.NewSource(t.Seed))
	h := xxh3.New()
	var buf [8]byte
	for row := t.StartRow; row <= t.EndRow; row++ {
		binary.LittleEndian.PutUint64(buf[:], uint64(rng.Int63())^uint64(row))
		h.Write(buf[:])
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return TaskResult{
		PartitionID:   t.PartitionID,
		RowsProcessed: t.EndRow - t.StartRow + 1,
		Checksum:      h.Sum64(),
		MemoryMB:      float64(mem.Alloc) / (1024 * 1024),
		WorkerPID:     os.Getpid(),
	}, nil
}
