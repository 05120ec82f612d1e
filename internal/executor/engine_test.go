package executor

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/ledger"
	"github.com/Lumos-Labs-HQ/flashseed/internal/planner"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
	"github.com/Lumos-Labs-HQ/flashseed/internal/seeder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runProject() *schema.Project {
	return &schema.Project{
		Name: "shop",
		Seed: 42,
		Tables: []schema.Table{
			{Name: "customers", RowCount: 30, Columns: []schema.Column{
				{Name: "id", DType: schema.DTypeInt, PrimaryKey: true},
				{Name: "name", DType: schema.DTypeText},
			}},
			{Name: "orders", Columns: []schema.Column{
				{Name: "id", DType: schema.DTypeInt, PrimaryKey: true},
				{Name: "customer_id", DType: schema.DTypeInt},
				{Name: "total", DType: schema.DTypeDecimal},
			}},
		},
		ForeignKeys: []schema.ForeignKey{{
			ChildTable: "orders", ChildColumn: "customer_id",
			ParentTable: "customers", ParentColumn: "id",
			MinChildren: 1, MaxChildren: 2,
		}},
	}
}

func runProfile() planner.Profile {
	pr := planner.DefaultProfile()
	pr.ChunkSizeRows = 10
	return pr
}

type recorder struct {
	events []Event
}

func (r *recorder) observe(ev Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) count(typ EventType) int {
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func (r *recorder) actions(typ EventType) []string {
	var out []string
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev.Action)
		}
	}
	return out
}

// failingRunner crashes on the target partition, or on every partition
// when target is empty.
type failingRunner struct {
	target string
	calls  atomic.Int32
}

func (r *failingRunner) Run(ctx context.Context, task Task) (TaskResult, error) {
	if r.target != "" && task.PartitionID != r.target {
		return RunTask(task)
	}
	r.calls.Add(1)
	return TaskResult{PartitionID: task.PartitionID}, errors.New("worker crashed")
}

// slowRunner holds every task long enough for a cancellation to land while
// it is in flight.
type slowRunner struct {
	started atomic.Bool
}

func (r *slowRunner) Run(ctx context.Context, task Task) (TaskResult, error) {
	if err := ctx.Err(); err != nil {
		return TaskResult{PartitionID: task.PartitionID}, err
	}
	r.started.Store(true)
	time.Sleep(300 * time.Millisecond)
	return RunTask(task)
}

type memorySink struct {
	tables []string
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Write(ctx context.Context, p *schema.Project, data *seeder.GeneratedData, progress func(string, int)) (map[string]int, error) {
	out := make(map[string]int)
	for _, name := range data.Order {
		s.tables = append(s.tables, name)
		out[name] = len(data.Rows[name])
		progress(name, out[name])
	}
	return out, nil
}

func TestRunSingleProcess(t *testing.T) {
	rec := &recorder{}
	sink := &memorySink{}
	res, err := Run(context.Background(), runProject(), Options{
		Profile:  runProfile(),
		Config:   DefaultConfig(),
		Observer: rec.observe,
		Sinks:    []RowSink{sink},
	})
	require.NoError(t, err)

	require.Len(t, res.Partitions, 9)
	for _, p := range res.Partitions {
		assert.Equal(t, planner.StatusDone, p.Status, p.ID)
	}
	assert.False(t, res.FallbackUsed)
	assert.Empty(t, res.Failures)
	assert.Equal(t, res.Data.TotalRows(), res.TotalRows)
	assert.Len(t, res.Data.Rows["customers"], 30)

	assert.Equal(t, 1, rec.count(EventStarted))
	assert.Equal(t, 9, rec.count(EventProgress))
	assert.Equal(t, 2, rec.count(EventTableDone))
	assert.Equal(t, 1, rec.count(EventRunDone))
	assert.Equal(t, EventStarted, rec.events[0].Type)
	assert.Equal(t, EventRunDone, rec.events[len(rec.events)-1].Type)

	assert.Equal(t, []string{"customers", "orders"}, sink.tables)
	assert.Equal(t, 30, res.Written["memory"]["customers"])

	require.Len(t, res.Workers, 1)
	assert.Equal(t, 90, res.Workers[0].RowsProcessed)
	assert.Equal(t, WorkerIdle, res.Workers[0].State)
	assert.Equal(t, 9, res.Ledger.Counts()[planner.StatusDone])
}

func TestRunStagesAreOrdered(t *testing.T) {
	rec := &recorder{}
	_, err := Run(context.Background(), runProject(), Options{
		Profile:  runProfile(),
		Config:   DefaultConfig(),
		Observer: rec.observe,
	})
	require.NoError(t, err)
	maxStage := 0
	for _, ev := range rec.events {
		if ev.Type != EventProgress {
			continue
		}
		assert.GreaterOrEqual(t, ev.Stage, maxStage, ev.PartitionID)
		maxStage = ev.Stage
	}
	assert.Equal(t, 2, maxStage)
}

func TestRunRetriesInjectedFailure(t *testing.T) {
	rec := &recorder{}
	target := planner.PartitionID("customers", 1, 2)
	res, err := Run(context.Background(), runProject(), Options{
		Profile:        runProfile(),
		Config:         DefaultConfig(),
		Observer:       rec.observe,
		FailPartitions: []string{target},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"retry"}, rec.actions(EventPartitionFailed))
	for _, p := range res.Partitions {
		if p.ID == target {
			assert.Equal(t, 1, p.RetryCount)
			assert.Equal(t, planner.StatusDone, p.Status)
		}
	}
}

func TestRunFailsWhenRetriesExhausted(t *testing.T) {
	rec := &recorder{}
	cfg := DefaultConfig()
	cfg.RetryLimit = 0
	target := planner.PartitionID("orders", 2, 1)
	res, err := Run(context.Background(), runProject(), Options{
		Profile:        runProfile(),
		Config:         cfg,
		Observer:       rec.observe,
		FailPartitions: []string{target},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsExecution(err))
	assert.Contains(t, err.Error(), "Partition "+target)
	require.NotNil(t, res)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, PartitionFailure{PartitionID: target, Error: "injected failure for partition " + target, RetryCount: 1, Action: "fail"}, res.Failures[0])
	assert.Nil(t, res.Data)
	assert.Equal(t, []string{"fail"}, rec.actions(EventPartitionFailed))
	assert.Zero(t, rec.count(EventFallback))
}

func multiConfig() Config {
	cfg := DefaultConfig()
	cfg.Mode = ModeMultiProcessLocal
	cfg.WorkerCount = 1
	return cfg
}

func TestRunFallsBackToSingleProcess(t *testing.T) {
	rec := &recorder{}
	runner := &failingRunner{target: planner.PartitionID("customers", 1, 1)}
	res, err := Run(context.Background(), runProject(), Options{
		Profile:  runProfile(),
		Config:   multiConfig(),
		Runner:   runner,
		Observer: rec.observe,
	})
	require.NoError(t, err)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, ModeMultiProcessLocal, res.Mode)
	assert.Equal(t, int32(2), runner.calls.Load())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "fallback", res.Failures[0].Action)
	assert.Equal(t, 1, rec.count(EventFallback))
	assert.Equal(t, []string{"retry", "fail"}, rec.actions(EventPartitionFailed))
	for _, p := range res.Partitions {
		assert.Equal(t, planner.StatusDone, p.Status, p.ID)
	}
	assert.Equal(t, WorkerFallback, res.Workers[0].State)
	assert.NotNil(t, res.Data)
	assert.Equal(t, 9, res.Ledger.Counts()[planner.StatusDone])

	rerun := 0
	seenFallback := false
	for _, ev := range rec.events {
		switch {
		case ev.Type == EventFallback:
			seenFallback = true
		case ev.Type == EventProgress && seenFallback:
			rerun++
		}
	}
	assert.Equal(t, 9, rerun)
}

func TestRunWithoutFallback(t *testing.T) {
	cfg := multiConfig()
	cfg.FallbackToSingleProcess = false
	res, err := Run(context.Background(), runProject(), Options{
		Profile: runProfile(),
		Config:  cfg,
		Runner:  &failingRunner{},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsExecution(err))
	assert.False(t, res.FallbackUsed)
}

func TestRunCancelled(t *testing.T) {
	rec := &recorder{}
	res, err := Run(context.Background(), runProject(), Options{
		Profile:  runProfile(),
		Config:   DefaultConfig(),
		Observer: rec.observe,
		Cancel:   func() bool { return true },
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCancelled(err))
	assert.Equal(t, 1, rec.count(EventCancelled))
	assert.Zero(t, rec.count(EventRunDone))
	require.NotNil(t, res)
	for _, p := range res.Partitions {
		assert.NotEqual(t, planner.StatusRunning, p.Status, p.ID)
	}
}

func TestRunKeepsTaskInFlightAtCancel(t *testing.T) {
	rec := &recorder{}
	runner := &slowRunner{}
	res, err := Run(context.Background(), runProject(), Options{
		Profile:  runProfile(),
		Config:   DefaultConfig(),
		Runner:   runner,
		Observer: rec.observe,
		Cancel:   runner.started.Load,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCancelled(err))
	assert.Equal(t, 1, rec.count(EventProgress))

	first := planner.PartitionID("customers", 1, 1)
	for _, p := range res.Partitions {
		if p.ID == first {
			assert.Equal(t, planner.StatusDone, p.Status)
		} else {
			assert.Equal(t, planner.StatusPending, p.Status, p.ID)
		}
	}
	assert.Equal(t, 1, res.Ledger.Counts()[planner.StatusDone])
}

func TestRunMultiWorkerMatchesSingleProcess(t *testing.T) {
	workers := min(3, runtime.NumCPU())
	if workers < 2 {
		t.Skip("needs at least two CPUs")
	}

	single, err := Run(context.Background(), runProject(), Options{Profile: runProfile(), Config: DefaultConfig()})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Mode = ModeMultiProcessLocal
	cfg.WorkerCount = workers
	multi, err := Run(context.Background(), runProject(), Options{
		Profile: runProfile(),
		Config:  cfg,
		Runner:  LocalRunner{},
	})
	require.NoError(t, err)
	assert.False(t, multi.FallbackUsed)

	assert.Equal(t, single.Data.Order, multi.Data.Order)
	assert.Equal(t, single.Data.Rows, multi.Data.Rows)
	assert.Equal(t, single.TotalRows, multi.TotalRows)

	assigned := map[int]bool{}
	for _, p := range multi.Partitions {
		assert.Equal(t, planner.StatusDone, p.Status, p.ID)
		assigned[p.AssignedWorker] = true
	}
	assert.Len(t, assigned, workers)

	require.Len(t, multi.Workers, workers)
	total := 0
	for _, w := range multi.Workers {
		assert.Positive(t, w.RowsProcessed, "worker %d", w.WorkerID)
		total += w.RowsProcessed
	}
	assert.Equal(t, 90, total)
}

func TestRunRejectsInvalidInputs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "cluster"
	_, err := Run(context.Background(), runProject(), Options{Profile: runProfile(), Config: cfg})
	assert.True(t, apperrors.IsValidation(err))

	p := runProject()
	p.Name = ""
	_, err = Run(context.Background(), p, Options{Profile: runProfile(), Config: DefaultConfig()})
	assert.True(t, apperrors.IsValidation(err))

	pr := runProfile()
	pr.OutputMode = "parquet"
	_, err = Run(context.Background(), runProject(), Options{Profile: pr, Config: DefaultConfig()})
	assert.True(t, apperrors.IsValidation(err))
}

func TestRunResumesFromLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_ledger.json")
	cfg := DefaultConfig()
	cfg.RetryLimit = 0
	cfg.LedgerPath = path
	target := planner.PartitionID("orders", 2, 3)

	_, err := Run(context.Background(), runProject(), Options{
		Profile:        runProfile(),
		Config:         cfg,
		FailPartitions: []string{target},
	})
	require.Error(t, err)

	saved, err := ledger.Load(path)
	require.NoError(t, err)
	assert.Equal(t, planner.StatusFailed, saved.Partitions[target].Status)
	doneBefore := saved.Counts()[planner.StatusDone]
	assert.GreaterOrEqual(t, doneBefore, 3)

	rec := &recorder{}
	res, err := Run(context.Background(), runProject(), Options{
		Profile:  runProfile(),
		Config:   cfg,
		Observer: rec.observe,
	})
	require.NoError(t, err)
	assert.Equal(t, doneBefore, rec.events[0].Done)
	assert.Equal(t, 9-doneBefore, rec.count(EventProgress))
	assert.Equal(t, saved.RunID, res.Ledger.RunID)

	final, err := ledger.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, final.Counts()[planner.StatusDone])
	assert.Equal(t, 0, final.Partitions[target].RetryCount)
}

func TestRunRejectsForeignLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_ledger.json")
	cfg := DefaultConfig()
	cfg.LedgerPath = path
	_, err := Run(context.Background(), runProject(), Options{Profile: runProfile(), Config: cfg})
	require.NoError(t, err)

	p := runProject()
	p.Seed = 7
	_, err = Run(context.Background(), p, Options{Profile: runProfile(), Config: cfg})
	require.Error(t, err)
	assert.True(t, apperrors.IsExecution(err))
	assert.Contains(t, err.Error(), "Run ledger / project_seed")
}
