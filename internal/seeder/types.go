package seeder

import (
	"github.com/Lumos-Labs-HQ/flashseed/internal/generator"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
)

type Options struct {
	// Registry defaults to generator.Default().
	Registry *generator.Registry
	// Tables restricts generation; parents of selected tables must be
	// selected too. Empty means every table.
	Tables []string
	// Logf receives one line per generated table.
	Logf func(format string, args ...any)
}

// GeneratedData holds the rows of a run in dependency order.
type GeneratedData struct {
	Order []string
	Rows  map[string][]schema.Row
}

func (d *GeneratedData) TotalRows() int {
	n := 0
	for _, rows := range d.Rows {
		n += len(rows)
	}
	return n
}

// RowCounts returns rows per table.
func (d *GeneratedData) RowCounts() map[string]int {
	out := make(map[string]int, len(d.Rows))
	for t, rows := range d.Rows {
		out[t] = len(rows)
	}
	return out
}
