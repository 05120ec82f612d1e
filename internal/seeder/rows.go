package seeder

import (
	"fmt"
	"math"
	"math/rand"
	"regexp"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/generator"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
)

const maxUniqueAttempts = 50

// rowBuilder produces the non-key values of one table's rows.
type rowBuilder struct {
	table    *schema.Table
	order    []*schema.Column
	gens     map[string]generator.Generator
	patterns map[string]*regexp.Regexp
	state    map[string]map[string]any
	fkCols   map[string]bool
	seen     map[string]map[string]bool
	pk       string
	rng      *rand.Rand
}

func newRowBuilder(reg *generator.Registry, t *schema.Table, fkCols map[string]bool, rng *rand.Rand) (*rowBuilder, error) {
	names, err := ColumnOrder(t)
	if err != nil {
		return nil, err
	}
	b := &rowBuilder{
		table:    t,
		gens:     make(map[string]generator.Generator),
		patterns: make(map[string]*regexp.Regexp),
		state:    make(map[string]map[string]any),
		seen:     make(map[string]map[string]bool),
		fkCols:   fkCols,
		rng:      rng,
	}
	if pk, ok := t.PrimaryKey(); ok {
		b.pk = pk.Name
	}
	for _, name := range names {
		c, _ := t.Column(name)
		b.order = append(b.order, c)
		b.state[name] = make(map[string]any)
		if c.Unique && !c.PrimaryKey && !fkCols[name] {
			b.seen[name] = make(map[string]bool)
		}
		if c.Generator != "" {
			g, err := reg.Resolve(t.Name, c.Name, c.Generator)
			if err != nil {
				return nil, err
			}
			b.gens[name] = g
		}
		if c.Pattern != "" && c.DType == schema.DTypeText {
			re, err := regexp.Compile(`^(?:` + c.Pattern + `)$`)
			if err != nil {
				return nil, apperrors.Generation(columnLoc(t.Name, c.Name), "pattern does not compile", "fix the pattern")
			}
			b.patterns[name] = re
		}
	}
	return b, nil
}

// build fills one row. fkValues presets foreign key columns; columns in
// fkCols without a preset stay nil until the assigner runs.
func (b *rowBuilder) build(rowIndex int, fkValues map[string]any) (schema.Row, error) {
	row := make(schema.Row, len(b.order))
	for _, c := range b.order {
		switch {
		case c.Name == b.pk:
			row[c.Name] = int64(rowIndex)
		case b.fkCols[c.Name]:
			row[c.Name] = fkValues[c.Name]
		default:
			v, err := b.uniqueValue(rowIndex, row, c)
			if err != nil {
				return nil, err
			}
			row[c.Name] = v
		}
	}
	return row, nil
}

// uniqueValue redraws a unique column until it produces a value not seen
// earlier in the table. Nulls never collide.
func (b *rowBuilder) uniqueValue(rowIndex int, row schema.Row, c *schema.Column) (any, error) {
	seen, ok := b.seen[c.Name]
	if !ok {
		return b.value(rowIndex, row, c)
	}
	for attempt := 0; attempt < maxUniqueAttempts; attempt++ {
		v, err := b.value(rowIndex, row, c)
		if err != nil || v == nil {
			return v, err
		}
		key := valueKey(v)
		if !seen[key] {
			seen[key] = true
			return v, nil
		}
	}
	return nil, apperrors.Generationf(columnLoc(b.table.Name, c.Name),
		"widen min_value/max_value, add choices, lower row_count or drop unique",
		"no unique value after %d attempts at row %d (%d distinct values so far)", maxUniqueAttempts, rowIndex, len(seen))
}

func valueKey(v any) string {
	if raw, ok := v.([]byte); ok {
		return "bytes:" + string(raw)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// value runs the dispatch pipeline for one cell: null draw, generator or
// dtype fallback, bounds and rounding, outliers, choices, pattern check.
func (b *rowBuilder) value(rowIndex int, row schema.Row, c *schema.Column) (any, error) {
	params := generator.Params(c.Params)
	loc := columnLoc(b.table.Name, c.Name)

	if c.Nullable {
		rate, err := params.Float("null_rate", 0)
		if err != nil {
			return nil, apperrors.Generation(loc, err.Error(), "set params.null_rate between 0 and 1")
		}
		if rate > 0 && b.rng.Float64() < rate {
			return nil, nil
		}
	}

	var (
		v   any
		err error
	)
	if g, ok := b.gens[c.Name]; ok {
		v, err = g.Generate(&generator.Context{
			RowIndex: rowIndex,
			Table:    b.table,
			Column:   c,
			Row:      row,
			Rand:     b.rng,
			State:    b.state[c.Name],
		}, params)
	} else {
		v, err = generator.Fallback(c, b.rng, params)
		if err != nil {
			err = apperrors.Generation(loc, err.Error(), "fix the column params")
		}
	}
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}

	v = normalize(c, v)
	v, err = postProcess(c, params, v)
	if err != nil {
		return nil, apperrors.Generation(loc, err.Error(), "fix the numeric params")
	}

	if c.IsNumeric() {
		rate, err := params.Float("outlier_rate", 0)
		if err != nil {
			return nil, apperrors.Generation(loc, err.Error(), "set params.outlier_rate between 0 and 1")
		}
		if rate > 0 && b.rng.Float64() < rate {
			factor, err := params.Float("outlier_factor", 10)
			if err != nil {
				return nil, apperrors.Generation(loc, err.Error(), "set params.outlier_factor to a number")
			}
			v = scale(c, v, factor)
		}
	}

	if len(c.Choices) > 0 && c.Generator != "choice_weighted" {
		v = normalize(c, c.Choices[b.rng.Intn(len(c.Choices))])
	}

	if re, ok := b.patterns[c.Name]; ok {
		s, isStr := v.(string)
		if !isStr || !re.MatchString(s) {
			return nil, apperrors.Generationf(loc, "relax the pattern or use choices/sample_csv values that match it",
				"value %v does not match pattern %q", v, c.Pattern)
		}
	}
	return v, nil
}

// normalize coerces generator and config values to the column's storage
// form: int64 for int and bool, float64 for decimal.
func normalize(c *schema.Column, v any) any {
	switch c.BaseDType() {
	case schema.DTypeInt:
		if f, ok := asFloat(v); ok {
			return int64(math.Round(f))
		}
	case schema.DTypeDecimal:
		if f, ok := asFloat(v); ok {
			return f
		}
	case schema.DTypeBool:
		switch b := v.(type) {
		case bool:
			if b {
				return int64(1)
			}
			return int64(0)
		default:
			if f, ok := asFloat(v); ok {
				if f != 0 {
					return int64(1)
				}
				return int64(0)
			}
		}
	case schema.DTypeBytes:
		if s, ok := v.(string); ok {
			return []byte(s)
		}
	}
	return v
}

func postProcess(c *schema.Column, params generator.Params, v any) (any, error) {
	switch c.BaseDType() {
	case schema.DTypeInt:
		n, ok := v.(int64)
		if !ok {
			return v, nil
		}
		if c.MinValue != nil && float64(n) < *c.MinValue {
			n = int64(math.Ceil(*c.MinValue))
		}
		if c.MaxValue != nil && float64(n) > *c.MaxValue {
			n = int64(math.Floor(*c.MaxValue))
		}
		return n, nil
	case schema.DTypeDecimal:
		f, ok := v.(float64)
		if !ok {
			return v, nil
		}
		if c.MinValue != nil && f < *c.MinValue {
			f = *c.MinValue
		}
		if c.MaxValue != nil && f > *c.MaxValue {
			f = *c.MaxValue
		}
		if params.Has("scale") {
			s, err := params.Int("scale", 2)
			if err != nil {
				return nil, err
			}
			f = generator.Round(f, s)
		}
		return f, nil
	}
	return v, nil
}

func scale(c *schema.Column, v any, factor float64) any {
	switch n := v.(type) {
	case int64:
		return int64(math.Round(float64(n) * factor))
	case float64:
		return generator.Round(n*factor, 2)
	}
	return v
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func columnLoc(table, column string) string {
	return fmt.Sprintf("Table '%s', column '%s'", table, column)
}

func tableLoc(table string) string {
	return fmt.Sprintf("Table '%s'", table)
}
