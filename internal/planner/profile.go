// Package planner sizes a run before any row is produced: which tables are
// in scope, how many rows each gets, how they split into chunks and how
// the chunks become worker partitions.
package planner

import (
	"fmt"
	"sort"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
	"github.com/Lumos-Labs-HQ/flashseed/internal/seeder"
)

const (
	OutputPreview = "preview"
	OutputCSV     = "csv"
	OutputSQLite  = "sqlite"
	OutputAll     = "all"

	MaxRowOverride = 10_000_000
	MaxChunkSize   = 1_000_000
)

type Profile struct {
	TargetTables     []string       `json:"target_tables,omitempty" mapstructure:"target_tables"`
	RowOverrides     map[string]int `json:"row_overrides,omitempty" mapstructure:"row_overrides"`
	ChunkSizeRows    int            `json:"chunk_size_rows" mapstructure:"chunk_size_rows"`
	OutputMode       string         `json:"output_mode" mapstructure:"output_mode"`
	PreviewRowTarget int            `json:"preview_row_target" mapstructure:"preview_row_target"`
	BatchSize        int            `json:"batch_size" mapstructure:"batch_size"`
	CSVBufferRows    int            `json:"csv_buffer_rows" mapstructure:"csv_buffer_rows"`
}

func DefaultProfile() Profile {
	return Profile{
		ChunkSizeRows:    10000,
		OutputMode:       OutputPreview,
		PreviewRowTarget: 500,
		BatchSize:        5000,
		CSVBufferRows:    5000,
	}
}

func profileErr(field, issue, hint string) error {
	return apperrors.Validation("Run profile / "+field, issue, hint)
}

// Validate checks the profile against the project it will run on.
func (pr Profile) Validate(p *schema.Project) error {
	if pr.ChunkSizeRows < 1 || pr.ChunkSizeRows > MaxChunkSize {
		return profileErr("chunk_size_rows", fmt.Sprintf("value %d is outside 1..%d", pr.ChunkSizeRows, MaxChunkSize),
			"pick a chunk size between 1 and 1000000")
	}
	switch pr.OutputMode {
	case OutputPreview, OutputCSV, OutputSQLite, OutputAll:
	default:
		return profileErr("output_mode", fmt.Sprintf("unsupported mode '%s'", pr.OutputMode), "use preview, csv, sqlite or all")
	}
	if pr.PreviewRowTarget < 0 || pr.BatchSize < 0 || pr.CSVBufferRows < 0 {
		return profileErr("buffers", "preview_row_target, batch_size and csv_buffer_rows cannot be negative", "use 0 for defaults or a positive size")
	}
	for _, name := range pr.TargetTables {
		if _, ok := p.Table(name); !ok {
			return profileErr("target_tables", fmt.Sprintf("unknown table '%s'", name), "select tables that exist in the schema")
		}
	}

	names := make([]string, 0, len(pr.RowOverrides))
	for name := range pr.RowOverrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		n := pr.RowOverrides[name]
		if _, ok := p.Table(name); !ok {
			return profileErr("row_overrides", fmt.Sprintf("unknown table '%s'", name), "override only tables that exist in the schema")
		}
		if n < 1 || n > MaxRowOverride {
			return profileErr("row_overrides", fmt.Sprintf("table '%s' override %d is outside 1..%d", name, n, MaxRowOverride),
				"pick a row count between 1 and 10000000")
		}
	}

	counts, err := EffectiveRowCounts(p, pr)
	if err != nil {
		return err
	}
	for _, name := range names {
		n := pr.RowOverrides[name]
		for _, fk := range p.IncomingFKs(name) {
			need := counts[fk.ParentTable] * fk.MinChildren
			if n < need {
				return profileErr("row_overrides",
					fmt.Sprintf("table '%s' override %d is below the %d rows required by %s", name, n, need, fk),
					fmt.Sprintf("raise the override to at least %d or lower min_children", need))
			}
		}
	}
	return nil
}

// ApplyOverrides returns a copy of the project with row overrides written
// into the tables' row counts.
func ApplyOverrides(p *schema.Project, pr Profile) *schema.Project {
	out := p.Clone()
	for i := range out.Tables {
		if n, ok := pr.RowOverrides[out.Tables[i].Name]; ok {
			out.Tables[i].RowCount = n
		}
	}
	return out
}

// SelectTables closes the target list over parent tables and returns it in
// dependency order. No targets selects everything.
func SelectTables(p *schema.Project, targets []string) ([]string, error) {
	if len(targets) == 0 {
		return seeder.TableOrder(p, nil)
	}
	selected := make(map[string]bool)
	var visit func(string)
	visit = func(name string) {
		if selected[name] {
			return
		}
		selected[name] = true
		for _, fk := range p.IncomingFKs(name) {
			visit(fk.ParentTable)
		}
	}
	for _, t := range targets {
		visit(t)
	}
	names := make([]string, 0, len(selected))
	for n := range selected {
		names = append(names, n)
	}
	return seeder.TableOrder(p, names)
}

// EffectiveRowCounts resolves the planned rows of every table: override,
// then declared row_count, then an estimate for auto-sized children.
func EffectiveRowCounts(p *schema.Project, pr Profile) (map[string]int, error) {
	order, err := seeder.TableOrder(p, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(order))
	for _, name := range order {
		t, _ := p.Table(name)
		if n, ok := pr.RowOverrides[name]; ok {
			counts[name] = n
			continue
		}
		fks := p.IncomingFKs(name)
		switch {
		case len(fks) == 0 || (len(fks) > 1 && t.RowCount > 0):
			counts[name] = t.RowCount
		case len(fks) == 1:
			fk := fks[0]
			counts[name] = counts[fk.ParentTable] * ((fk.MinChildren + fk.MaxChildren + 1) / 2)
		default:
			lo, _ := seeder.ChildRowRange(fks, counts)
			counts[name] = lo
		}
	}
	return counts, nil
}
