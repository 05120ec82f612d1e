package seeder

import (
	"math/rand"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/generator"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
)

// ChildRowRange is the row count range every incoming foreign key allows
// given the parent row counts.
func ChildRowRange(fks []schema.ForeignKey, parentCounts map[string]int) (lo, hi int) {
	for i, fk := range fks {
		n := parentCounts[fk.ParentTable]
		flo, fhi := n*fk.MinChildren, n*fk.MaxChildren
		if i == 0 || flo > lo {
			lo = flo
		}
		if i == 0 || fhi < hi {
			hi = fhi
		}
	}
	return lo, hi
}

// multiFKRowCount picks the child row count for a table with two or more
// incoming foreign keys.
func multiFKRowCount(t *schema.Table, fks []schema.ForeignKey, parentCounts map[string]int, rng *rand.Rand) (int, error) {
	lo, hi := ChildRowRange(fks, parentCounts)
	if lo > hi {
		return 0, apperrors.Generationf(tableLoc(t.Name),
			"widen min_children/max_children so the per-key ranges overlap",
			"incoming foreign keys allow no common row count (need at least %d, at most %d)", lo, hi)
	}
	if t.RowCount > 0 {
		for _, fk := range fks {
			n := parentCounts[fk.ParentTable]
			if t.RowCount < n*fk.MinChildren || t.RowCount > n*fk.MaxChildren {
				return 0, &apperrors.BoundsError{
					Table:  t.Name,
					FK:     fk.String(),
					Min:    n * fk.MinChildren,
					Max:    n * fk.MaxChildren,
					Actual: t.RowCount,
				}
			}
		}
		return t.RowCount, nil
	}
	return lo + rng.Intn(hi-lo+1), nil
}

// buildPool repeats each parent id between min and max times, then tops up
// or trims to exactly n entries without leaving [min, max], and shuffles.
// n must lie in [len(ids)*min, len(ids)*max].
func buildPool(ids []any, n, min, max int, rng *rand.Rand) []any {
	counts := make([]int, len(ids))
	total := 0
	for i := range ids {
		counts[i] = min + rng.Intn(max-min+1)
		total += counts[i]
	}

	if total < n {
		var open []int
		for i, c := range counts {
			if c < max {
				open = append(open, i)
			}
		}
		for total < n && len(open) > 0 {
			j := rng.Intn(len(open))
			i := open[j]
			counts[i]++
			total++
			if counts[i] == max {
				open[j] = open[len(open)-1]
				open = open[:len(open)-1]
			}
		}
	} else if total > n {
		var open []int
		for i, c := range counts {
			if c > min {
				open = append(open, i)
			}
		}
		for total > n && len(open) > 0 {
			j := rng.Intn(len(open))
			i := open[j]
			counts[i]--
			total--
			if counts[i] == min {
				open[j] = open[len(open)-1]
				open = open[:len(open)-1]
			}
		}
	}

	pool := make([]any, 0, n)
	for i, id := range ids {
		for k := 0; k < counts[i]; k++ {
			pool = append(pool, id)
		}
	}
	rng.Shuffle(len(pool), func(a, b int) { pool[a], pool[b] = pool[b], pool[a] })
	return pool
}

// assignForeignKeys fills every FK column of rows, one deterministic pass
// per key.
func assignForeignKeys(seed int64, t *schema.Table, fks []schema.ForeignKey, rows []schema.Row, parentIDs map[string][]any) {
	for _, fk := range fks {
		rng := generator.NewRand(seed, generator.FKScope(t.Name, fk.ChildColumn, fk.ParentTable))
		pool := buildPool(parentIDs[fk.ParentTable], len(rows), fk.MinChildren, fk.MaxChildren, rng)
		for i := range rows {
			rows[i][fk.ChildColumn] = pool[i]
		}
	}
}

// fkCounts counts child rows per parent value for one FK column.
func fkCounts(rows []schema.Row, column string) map[any]int {
	counts := make(map[any]int)
	for _, r := range rows {
		counts[r[column]]++
	}
	return counts
}
