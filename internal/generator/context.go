package generator

import (
	"math/rand"

	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
)

// Context is what a generator sees for one cell.
type Context struct {
	RowIndex int // 1-based within the table
	Table    *schema.Table
	Column   *schema.Column
	Row      schema.Row // values produced earlier in this row; read-only
	Rand     *rand.Rand

	// State persists across rows of one column during a single table run.
	State map[string]any
}

func (c *Context) location() string {
	return columnLoc(c.Table.Name, c.Column.Name)
}
