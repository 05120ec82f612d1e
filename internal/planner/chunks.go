package planner

import (
	"sort"

	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
)

// ChunkEntry is one contiguous, inclusive, 1-based row range of a table.
type ChunkEntry struct {
	Table      string `json:"table_name"`
	Stage      int    `json:"stage"`
	ChunkIndex int    `json:"chunk_index"`
	StartRow   int    `json:"start_row"`
	EndRow     int    `json:"end_row"`
}

func (c ChunkEntry) Rows() int {
	return c.EndRow - c.StartRow + 1
}

// Stages assigns each table 1 + the highest stage of its parents; roots
// are stage 1.
func Stages(p *schema.Project, order []string) map[string]int {
	stages := make(map[string]int, len(order))
	for _, name := range order {
		stage := 1
		for _, fk := range p.IncomingFKs(name) {
			if s, ok := stages[fk.ParentTable]; ok && s+1 > stage {
				stage = s + 1
			}
		}
		stages[name] = stage
	}
	return stages
}

// BuildChunkPlan splits every selected table into chunks of at most
// chunk_size_rows. Entries are ordered by stage, then table order, then
// chunk index.
func BuildChunkPlan(p *schema.Project, pr Profile) ([]ChunkEntry, error) {
	if err := pr.Validate(p); err != nil {
		return nil, err
	}
	order, err := SelectTables(p, pr.TargetTables)
	if err != nil {
		return nil, err
	}
	counts, err := EffectiveRowCounts(p, pr)
	if err != nil {
		return nil, err
	}
	stages := Stages(p, order)

	position := make(map[string]int, len(order))
	var entries []ChunkEntry
	for i, name := range order {
		position[name] = i
		total := counts[name]
		idx := 1
		for start := 1; start <= total; start += pr.ChunkSizeRows {
			end := start + pr.ChunkSizeRows - 1
			if end > total {
				end = total
			}
			entries = append(entries, ChunkEntry{
				Table:      name,
				Stage:      stages[name],
				ChunkIndex: idx,
				StartRow:   start,
				EndRow:     end,
			})
			idx++
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Stage != entries[j].Stage {
			return entries[i].Stage < entries[j].Stage
		}
		return position[entries[i].Table] < position[entries[j].Table]
	})
	return entries, nil
}

// PlanSummary aggregates a chunk plan for display.
type PlanSummary struct {
	Tables    int
	Chunks    int
	TotalRows int
	MaxStage  int
}

func SummarizeChunks(entries []ChunkEntry) PlanSummary {
	var s PlanSummary
	tables := make(map[string]bool)
	for _, e := range entries {
		tables[e.Table] = true
		s.Chunks++
		s.TotalRows += e.Rows()
		if e.Stage > s.MaxStage {
			s.MaxStage = e.Stage
		}
	}
	s.Tables = len(tables)
	return s
}
