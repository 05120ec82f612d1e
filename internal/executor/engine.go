// Package executor runs a partition plan across local workers with retry,
// fallback to a single process, cooperative cancellation and a resumable
// ledger, then produces the authoritative rows and hands them to sinks.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/generator"
	"github.com/Lumos-Labs-HQ/flashseed/internal/ledger"
	"github.com/Lumos-Labs-HQ/flashseed/internal/planner"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
	"github.com/Lumos-Labs-HQ/flashseed/internal/seeder"
	"golang.org/x/sync/errgroup"
)

const pollInterval = 200 * time.Millisecond

// RowSink receives the generated rows once every partition is done.
type RowSink interface {
	Name() string
	Write(ctx context.Context, p *schema.Project, data *seeder.GeneratedData, progress func(table string, rows int)) (map[string]int, error)
}

type Options struct {
	Profile  planner.Profile
	Config   Config
	Registry *generator.Registry

	// Runner executes partitions. Nil picks a ProcessRunner in
	// multi_process_local mode and a LocalRunner otherwise.
	Runner Runner
	// Observer receives progress events on the coordinator goroutine.
	Observer Observer
	// Cancel is polled while the run is active; true stops it. It is
	// called from more than one goroutine.
	Cancel func() bool
	// FailPartitions lists partition ids whose first attempt fails.
	FailPartitions []string

	Sinks []RowSink
}

type RunResult struct {
	Mode         string
	FallbackUsed bool
	Partitions   []planner.Partition
	Workers      []WorkerStatus
	Failures     []PartitionFailure
	Data         *seeder.GeneratedData
	TotalRows    int
	Written      map[string]map[string]int
	Ledger       *ledger.Ledger
}

type engine struct {
	opts     Options
	cfg      Config
	ledger   *ledger.Ledger
	parts    []*planner.Partition
	workers  map[int]*WorkerStatus
	failures []PartitionFailure
	inject   map[string]bool
	injected map[string]bool
	done     int
}

type job struct {
	part *planner.Partition
	task Task
}

type attempt struct {
	worker int
	part   *planner.Partition
	res    TaskResult
	err    error
}

// Run validates the inputs, executes the partition plan stage by stage and
// generates the final rows.
func Run(ctx context.Context, p *schema.Project, opts Options) (*RunResult, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := seeder.Validate(p, opts.Registry); err != nil {
		return nil, err
	}
	chunks, err := planner.BuildChunkPlan(p, opts.Profile)
	if err != nil {
		return nil, err
	}
	counts, err := planner.EffectiveRowCounts(p, opts.Profile)
	if err != nil {
		return nil, err
	}
	if err := planner.VerifyCoverage(chunks, counts); err != nil {
		return nil, apperrors.Execution("Chunk planner", err.Error(), "report this schema; the chunk plan is inconsistent", err)
	}
	selected, err := planner.SelectTables(p, opts.Profile.TargetTables)
	if err != nil {
		return nil, err
	}

	plan := planner.BuildPartitionPlan(p.Seed, chunks, cfg.WorkerCount)
	id := ledger.Identity{
		ProjectName:    p.Name,
		ProjectSeed:    p.Seed,
		Mode:           cfg.Mode,
		WorkerCount:    cfg.WorkerCount,
		SelectedTables: selected,
	}
	led, plan, err := openLedger(cfg.LedgerPath, id, plan)
	if err != nil {
		return nil, err
	}

	e := &engine{
		opts:     opts,
		cfg:      cfg,
		ledger:   led,
		workers:  make(map[int]*WorkerStatus),
		inject:   make(map[string]bool),
		injected: make(map[string]bool),
	}
	for _, id := range opts.FailPartitions {
		e.inject[id] = true
	}
	for i := range plan {
		e.parts = append(e.parts, &plan[i])
		if plan[i].Status == planner.StatusDone {
			e.done++
		}
	}
	for w := 1; w <= cfg.WorkerCount; w++ {
		e.workers[w] = &WorkerStatus{WorkerID: w, State: WorkerIdle}
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	if opts.Cancel != nil {
		go watchCancel(runCtx, stop, opts.Cancel)
	}

	result := &RunResult{Mode: cfg.Mode, Ledger: led}
	e.emit(Event{Type: EventStarted, Total: len(e.parts), Done: e.done, TotalRows: sumRows(plan),
		Message: fmt.Sprintf("%d partitions across %d tables", len(e.parts), len(selected))})

	runner := opts.Runner
	if runner == nil {
		if cfg.Mode == ModeMultiProcessLocal {
			pr, err := NewProcessRunner()
			if err != nil {
				return nil, err
			}
			runner = pr
		} else {
			runner = LocalRunner{}
		}
	}

	err = e.runStages(runCtx, runner, cfg.WorkerCount, false)
	if err != nil && !apperrors.IsCancelled(err) && cfg.Mode == ModeMultiProcessLocal && cfg.FallbackToSingleProcess {
		result.FallbackUsed = true
		if n := len(e.failures); n > 0 {
			e.failures[n-1].Action = "fallback"
		}
		e.emit(Event{Type: EventFallback, Action: "fallback", Message: "discarding the partition plan and rerunning in single_process mode: " + err.Error()})
		for _, part := range e.parts {
			part.Status = planner.StatusPending
			part.RetryCount = 0
			part.Error = ""
			e.record(part)
		}
		e.done = 0
		for _, w := range e.workers {
			w.State = WorkerFallback
		}
		err = e.runStages(runCtx, LocalRunner{}, 1, true)
	}
	e.snapshot(result)
	if err != nil {
		if apperrors.IsCancelled(err) {
			e.emit(Event{Type: EventCancelled, Done: e.done, Total: len(e.parts), Message: "run cancelled"})
		}
		return result, err
	}

	working := planner.ApplyOverrides(p, opts.Profile)
	data, err := seeder.Generate(runCtx, working, seeder.Options{Registry: opts.Registry, Tables: selected})
	if err != nil {
		if apperrors.IsCancelled(err) {
			e.emit(Event{Type: EventCancelled, Message: "run cancelled during generation"})
		}
		return result, err
	}
	result.Data = data
	result.TotalRows = data.TotalRows()

	result.Written = make(map[string]map[string]int, len(opts.Sinks))
	for _, s := range opts.Sinks {
		written, err := s.Write(runCtx, working, data, func(table string, rows int) {
			e.emit(Event{Type: EventTableDone, Table: table, RowsProcessed: rows, Message: s.Name()})
		})
		if err != nil {
			if runCtx.Err() != nil {
				e.emit(Event{Type: EventCancelled, Message: "run cancelled while writing " + s.Name()})
				return result, apperrors.Cancelled("Sink " + s.Name())
			}
			return result, fmt.Errorf("%s sink failed: %w", s.Name(), err)
		}
		result.Written[s.Name()] = written
	}

	e.emit(Event{Type: EventRunDone, Done: e.done, Total: len(e.parts), TotalRows: result.TotalRows,
		Message: fmt.Sprintf("generated %d rows", result.TotalRows)})
	return result, nil
}

func openLedger(path string, id ledger.Identity, plan []planner.Partition) (*ledger.Ledger, []planner.Partition, error) {
	if path == "" {
		return ledger.New("", id, plan), plan, nil
	}
	led, err := ledger.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		led = ledger.New(path, id, plan)
		return led, plan, led.Save()
	}
	if err != nil {
		return nil, nil, err
	}
	if err := led.Validate(id); err != nil {
		return nil, nil, err
	}
	plan = led.Apply(plan)
	return led, plan, led.Save()
}

func watchCancel(ctx context.Context, stop context.CancelFunc, cancel func() bool) {
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if cancel() {
				stop()
				return
			}
		}
	}
}

func (e *engine) cancelRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return e.opts.Cancel != nil && e.opts.Cancel()
}

func (e *engine) emit(ev Event) {
	if e.opts.Observer == nil {
		return
	}
	ev.Timestamp = time.Now().UTC()
	e.opts.Observer(ev)
}

// record persists a partition transition. Ledger write failures are
// surfaced as events; they do not stop the run.
func (e *engine) record(part *planner.Partition) {
	if err := e.ledger.Record(*part); err != nil {
		e.emit(Event{Type: EventPartitionFailed, PartitionID: part.ID, Message: "ledger write failed: " + err.Error()})
	}
}

// runStages runs stage after stage; a stage starts only when every
// partition of the previous one is done.
func (e *engine) runStages(ctx context.Context, runner Runner, workers int, fallback bool) error {
	var stages [][]*planner.Partition
	for _, part := range e.parts {
		if len(stages) == 0 || stages[len(stages)-1][0].Stage != part.Stage {
			stages = append(stages, nil)
		}
		stages[len(stages)-1] = append(stages[len(stages)-1], part)
	}
	for _, stage := range stages {
		if err := e.runStage(ctx, stage, runner, workers, fallback); err != nil {
			return err
		}
	}
	return nil
}

func (e *engine) runStage(ctx context.Context, stage []*planner.Partition, runner Runner, workers int, fallback bool) error {
	var queue []*planner.Partition
	for _, part := range stage {
		if part.Status != planner.StatusDone {
			queue = append(queue, part)
		}
	}
	if len(queue) == 0 {
		return nil
	}

	wctx, stop := context.WithCancel(ctx)
	defer stop()
	results := make(chan attempt, e.cfg.IPCQueueSize)
	inboxes := make([]chan job, workers)
	var g errgroup.Group
	for i := range inboxes {
		inbox := make(chan job, e.cfg.MaxInflightChunks)
		inboxes[i] = inbox
		workerID := i + 1
		g.Go(func() error {
			for j := range inbox {
				res, err := runner.Run(wctx, j.task)
				results <- attempt{worker: workerID, part: j.part, res: res, err: err}
			}
			return nil
		})
	}
	shutdown := func() {
		for _, inbox := range inboxes {
			close(inbox)
		}
		stop()
		_ = g.Wait()
		close(results)
	}

	inflight := 0
	for len(queue) > 0 || inflight > 0 {
		for inflight < e.cfg.MaxInflightChunks && len(queue) > 0 {
			part := queue[0]
			queue = queue[1:]
			w := 1
			if !fallback {
				w = ((part.AssignedWorker - 1) % workers) + 1
			}
			task := taskFor(part, e.takeInjection(part))
			part.Status = planner.StatusRunning
			part.Error = ""
			e.record(part)
			e.beginWork(w, part, fallback)
			inboxes[w-1] <- job{part: part, task: task}
			inflight++
		}

		select {
		case a := <-results:
			inflight--
			switch o := classify(a.res, a.err, a.part.RetryCount, e.cfg.RetryLimit).(type) {
			case outcomeDone:
				e.finish(a.worker, a.part, o.result, fallback)
			case outcomeRetry:
				if e.cancelRequested(ctx) {
					break
				}
				a.part.Status = planner.StatusPending
				a.part.RetryCount = o.retryCount
				a.part.Error = o.err.Error()
				e.record(a.part)
				e.setWorkerState(a.worker, WorkerRetrying, fallback)
				e.emit(Event{Type: EventPartitionFailed, PartitionID: a.part.ID, Table: a.part.Table, Stage: a.part.Stage,
					WorkerID: a.worker, RetryCount: o.retryCount, Action: "retry", Message: o.err.Error()})
				queue = append(queue, a.part)
			case outcomeFailed:
				a.part.Status = planner.StatusFailed
				a.part.RetryCount = o.retryCount
				a.part.Error = o.err.Error()
				e.record(a.part)
				e.setWorkerState(a.worker, WorkerFailed, fallback)
				e.failures = append(e.failures, PartitionFailure{
					PartitionID: a.part.ID, Error: o.err.Error(), RetryCount: o.retryCount, Action: "fail",
				})
				e.emit(Event{Type: EventPartitionFailed, PartitionID: a.part.ID, Table: a.part.Table, Stage: a.part.Stage,
					WorkerID: a.worker, RetryCount: o.retryCount, Action: "fail", Message: o.err.Error()})
				shutdown()
				e.drain(results, fallback)
				return apperrors.Execution("Partition "+a.part.ID,
					fmt.Sprintf("failed after %d attempts: %v", o.retryCount, o.err),
					"inspect the worker error, raise retry_limit or enable fallback_to_single_process", o.err)
			}
		case <-time.After(pollInterval):
		}

		if e.cancelRequested(ctx) {
			shutdown()
			e.drain(results, fallback)
			return apperrors.Cancelled("Execution engine")
		}
	}
	shutdown()
	return nil
}

// drain settles attempts that finished while the stage was shutting down:
// successes count, everything still running goes back to pending.
func (e *engine) drain(results <-chan attempt, fallback bool) {
	for a := range results {
		if a.err == nil {
			e.finish(a.worker, a.part, a.res, fallback)
		}
	}
	for _, part := range e.parts {
		if part.Status == planner.StatusRunning {
			part.Status = planner.StatusPending
			e.record(part)
		}
	}
	for _, w := range e.workers {
		if w.State == WorkerRunning || w.State == WorkerRetrying {
			w.State = WorkerIdle
			w.CurrentPartitionID = ""
		}
	}
}

// takeInjection reports whether this submission should fail on purpose.
// Each listed partition fails only its first attempt.
func (e *engine) takeInjection(part *planner.Partition) bool {
	if !e.inject[part.ID] || e.injected[part.ID] {
		return false
	}
	e.injected[part.ID] = true
	return true
}

func (e *engine) beginWork(w int, part *planner.Partition, fallback bool) {
	ws := e.workers[w]
	now := time.Now().UTC()
	if ws.started.IsZero() {
		ws.started = now
	}
	ws.CurrentTable = part.Table
	ws.CurrentPartitionID = part.ID
	ws.LastHeartbeat = now
	if fallback {
		ws.State = WorkerFallback
	} else {
		ws.State = WorkerRunning
	}
}

func (e *engine) setWorkerState(w int, state WorkerState, fallback bool) {
	ws := e.workers[w]
	ws.LastHeartbeat = time.Now().UTC()
	if fallback {
		state = WorkerFallback
	}
	ws.State = state
}

func (e *engine) finish(w int, part *planner.Partition, res TaskResult, fallback bool) {
	part.Status = planner.StatusDone
	part.Error = ""
	e.record(part)
	e.done++

	ws := e.workers[w]
	now := time.Now().UTC()
	ws.RowsProcessed += res.RowsProcessed
	ws.MemoryMB = res.MemoryMB
	ws.LastHeartbeat = now
	if elapsed := now.Sub(ws.started).Seconds(); elapsed > 0 {
		ws.Throughput = float64(ws.RowsProcessed) / elapsed
	}
	if ws.CurrentPartitionID == part.ID {
		ws.CurrentPartitionID = ""
		if fallback {
			ws.State = WorkerFallback
		} else {
			ws.State = WorkerIdle
		}
	}

	e.emit(Event{Type: EventProgress, PartitionID: part.ID, Table: part.Table, Stage: part.Stage, WorkerID: w,
		RowsProcessed: res.RowsProcessed, Done: e.done, Total: len(e.parts)})
}

func (e *engine) snapshot(result *RunResult) {
	result.Partitions = make([]planner.Partition, len(e.parts))
	for i, part := range e.parts {
		result.Partitions[i] = *part
	}
	result.Workers = make([]WorkerStatus, 0, len(e.workers))
	for _, w := range e.workers {
		result.Workers = append(result.Workers, *w)
	}
	sort.Slice(result.Workers, func(i, j int) bool { return result.Workers[i].WorkerID < result.Workers[j].WorkerID })
	result.Failures = append([]PartitionFailure(nil), e.failures...)
}

func sumRows(plan []planner.Partition) int {
	n := 0
	for _, p := range plan {
		n += p.Rows()
	}
	return n
}
