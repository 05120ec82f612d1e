// Package ledger persists per-partition progress of a run so an
// interrupted run can resume without redoing finished partitions.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/planner"
	"github.com/google/uuid"
)

const formatVersion = "1"

type Entry struct {
	Table      string                  `json:"table_name"`
	Stage      int                     `json:"stage"`
	ChunkIndex int                     `json:"chunk_index"`
	Status     planner.PartitionStatus `json:"status"`
	RetryCount int                     `json:"retry_count"`
	Error      string                  `json:"error_message,omitempty"`
}

// Identity is what a ledger must agree on with the run resuming it.
type Identity struct {
	ProjectName    string
	ProjectSeed    int64
	Mode           string
	WorkerCount    int
	SelectedTables []string
}

type Ledger struct {
	Version        string            `json:"version"`
	RunID          string            `json:"run_id"`
	ProjectName    string            `json:"project_name"`
	ProjectSeed    int64             `json:"project_seed"`
	Mode           string            `json:"mode"`
	WorkerCount    int               `json:"worker_count"`
	SelectedTables []string          `json:"selected_tables"`
	Partitions     map[string]*Entry `json:"partitions"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`

	path string
	mu   sync.Mutex
}

// New creates a ledger for a fresh run with every partition recorded.
func New(path string, id Identity, parts []planner.Partition) *Ledger {
	now := time.Now().UTC()
	l := &Ledger{
		Version:        formatVersion,
		RunID:          uuid.NewString(),
		ProjectName:    id.ProjectName,
		ProjectSeed:    id.ProjectSeed,
		Mode:           id.Mode,
		WorkerCount:    id.WorkerCount,
		SelectedTables: sortedCopy(id.SelectedTables),
		Partitions:     make(map[string]*Entry, len(parts)),
		CreatedAt:      now,
		UpdatedAt:      now,
		path:           path,
	}
	for _, p := range parts {
		l.Partitions[p.ID] = entryFor(p)
	}
	return l
}

func entryFor(p planner.Partition) *Entry {
	return &Entry{
		Table:      p.Table,
		Stage:      p.Stage,
		ChunkIndex: p.ChunkIndex,
		Status:     p.Status,
		RetryCount: p.RetryCount,
		Error:      p.Error,
	}
}

func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run ledger: %w", err)
	}
	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, apperrors.Execution("Run ledger", fmt.Sprintf("file %s is not a valid ledger", path),
			"delete the ledger file to start a fresh run", err)
	}
	if l.Partitions == nil {
		l.Partitions = make(map[string]*Entry)
	}
	l.path = path
	return &l, nil
}

func (l *Ledger) Path() string {
	return l.path
}

// Save writes the ledger atomically via a temp file and rename.
func (l *Ledger) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked()
}

func (l *Ledger) saveLocked() error {
	if l.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run ledger: %w", err)
	}
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write run ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("failed to replace run ledger: %w", err)
	}
	return nil
}

// Validate refuses to resume a ledger written for a different run.
func (l *Ledger) Validate(id Identity) error {
	mismatch := func(field string, got, want any) error {
		return apperrors.Execution("Run ledger / "+field,
			fmt.Sprintf("ledger has %v, current run has %v", got, want),
			"use a different ledger path or delete the stale ledger", nil)
	}
	switch {
	case l.ProjectName != id.ProjectName:
		return mismatch("project_name", l.ProjectName, id.ProjectName)
	case l.ProjectSeed != id.ProjectSeed:
		return mismatch("project_seed", l.ProjectSeed, id.ProjectSeed)
	case l.Mode != id.Mode:
		return mismatch("mode", l.Mode, id.Mode)
	case !slices.Equal(l.SelectedTables, sortedCopy(id.SelectedTables)):
		return mismatch("selected_tables", l.SelectedTables, sortedCopy(id.SelectedTables))
	}
	return nil
}

// Apply carries recorded progress onto a freshly built plan. Done stays
// done. Running and failed partitions go back to pending; a failed one
// starts its retry budget over.
func (l *Ledger) Apply(parts []planner.Partition) []planner.Partition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]planner.Partition, len(parts))
	for i, p := range parts {
		e, ok := l.Partitions[p.ID]
		if ok {
			switch e.Status {
			case planner.StatusDone:
				p.Status = planner.StatusDone
				p.RetryCount = e.RetryCount
			case planner.StatusFailed:
				p.Status = planner.StatusPending
				p.RetryCount = 0
			default:
				p.Status = planner.StatusPending
				p.RetryCount = e.RetryCount
			}
			p.Error = e.Error
		} else {
			l.Partitions[p.ID] = entryFor(p)
		}
		out[i] = p
	}
	return out
}

// Record stores a partition's state and persists the ledger.
func (l *Ledger) Record(p planner.Partition) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Partitions[p.ID] = entryFor(p)
	l.UpdatedAt = time.Now().UTC()
	return l.saveLocked()
}

// Counts tallies partitions by status.
func (l *Ledger) Counts() map[planner.PartitionStatus]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[planner.PartitionStatus]int)
	for _, e := range l.Partitions {
		out[e.Status]++
	}
	return out
}

// IDs returns partition ids sorted for display.
func (l *Ledger) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.Partitions))
	for id := range l.Partitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}
