package seeder

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/Lumos-Labs-HQ/flashseed/internal/generator"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
)

var (
	periodEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	periodLimit = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

const (
	minWindowDays = 30
	maxWindowDays = 365
)

type version struct {
	row   schema.Row
	key   int
	index int
}

// applySCD1 checks key uniqueness and opens the current period when the
// table carries period columns.
func applySCD1(t *schema.Table, rows []schema.Row) error {
	if err := checkKeyUnique(t, rows); err != nil {
		return err
	}
	if t.SCDActiveToColumn == "" {
		return nil
	}
	to, _ := t.Column(t.SCDActiveToColumn)
	for _, r := range rows {
		r[t.SCDActiveToColumn] = openEnd(to.DType)
	}
	return nil
}

// expandSCD2 turns rows into versioned history. Without a unique count every
// even-numbered row gets a second version, unless that would push a parent
// past max_children. With a unique count the rows sharing a key become its
// versions. Periods are contiguous per key and primary keys are renumbered.
func expandSCD2(seed int64, t *schema.Table, fks []schema.ForeignKey, rows []schema.Row) []schema.Row {
	rng := generator.NewRand(seed, "scd2:"+t.Name)

	var versions []version
	if t.BusinessKeyUniqueCount != nil {
		keys := make(map[string]int)
		next := make(map[int]int)
		for _, r := range rows {
			tuple := keyTuple(t, r)
			k, ok := keys[tuple]
			if !ok {
				k = len(keys)
				keys[tuple] = k
			}
			versions = append(versions, version{row: r, key: k, index: next[k]})
			next[k]++
		}
	} else {
		counts := make(map[string]map[any]int, len(fks))
		for _, fk := range fks {
			counts[fk.ChildColumn] = fkCounts(rows, fk.ChildColumn)
		}
		for i, r := range rows {
			versions = append(versions, version{row: r, key: i})
			if (i+1)%2 != 0 || !hasCapacity(fks, counts, r) {
				continue
			}
			for _, fk := range fks {
				counts[fk.ChildColumn][r[fk.ChildColumn]]++
			}
			versions = append(versions, version{row: r.Clone(), key: i, index: 1})
		}
	}

	first := make(map[int]schema.Row)
	groups := make(map[int][]schema.Row)
	var keyOrder []int
	for _, v := range versions {
		if v.index == 0 {
			first[v.key] = v.row
			keyOrder = append(keyOrder, v.key)
		}
		groups[v.key] = append(groups[v.key], v.row)
	}

	tracked := t.VersionColumns()
	for _, v := range versions {
		if v.index == 0 {
			continue
		}
		base := first[v.key]
		for _, name := range tracked {
			c, _ := t.Column(name)
			v.row[name] = mutate(c, base[name], v.index, rng)
		}
		for _, name := range t.BusinessKeyStaticColumns {
			v.row[name] = base[name]
		}
	}

	from, _ := t.Column(t.SCDActiveFromColumn)
	for _, k := range keyOrder {
		assignPeriods(groups[k], t.SCDActiveFromColumn, t.SCDActiveToColumn, from.DType, rng)
	}

	out := make([]schema.Row, len(versions))
	pk, hasPK := t.PrimaryKey()
	for i, v := range versions {
		if hasPK {
			v.row[pk.Name] = int64(i + 1)
		}
		out[i] = v.row
	}
	return out
}

func hasCapacity(fks []schema.ForeignKey, counts map[string]map[any]int, r schema.Row) bool {
	for _, fk := range fks {
		if counts[fk.ChildColumn][r[fk.ChildColumn]]+1 > fk.MaxChildren {
			return false
		}
	}
	return true
}

// assignPeriods gives the versions of one key back-to-back validity
// windows; the last stays open. Long histories get shorter windows so every
// version starts before the open-end date.
func assignPeriods(rows []schema.Row, fromCol, toCol string, dtype schema.DType, rng *rand.Rand) {
	start := periodEpoch.AddDate(0, 0, rng.Intn(365))
	if dtype == schema.DTypeDatetime {
		start = start.Add(time.Duration(rng.Intn(86400)) * time.Second)
	}
	lo, hi := minWindowDays, maxWindowDays
	if n := len(rows) - 1; n > 0 {
		budget := int((periodLimit.Unix()-start.Unix())/86400) - 1
		if per := budget / n; per < hi {
			hi = max(per, 1)
			lo = min(lo, hi)
		}
	}
	for i, r := range rows {
		r[fromCol] = generator.FormatTemporal(dtype, start)
		if i == len(rows)-1 {
			r[toCol] = openEnd(dtype)
			break
		}
		next := start.AddDate(0, 0, lo+rng.Intn(hi-lo+1))
		if dtype == schema.DTypeDatetime {
			r[toCol] = generator.FormatDatetime(next.Add(-time.Second))
		} else {
			r[toCol] = generator.FormatDate(next.AddDate(0, 0, -1))
		}
		start = next
	}
}

func openEnd(dtype schema.DType) string {
	if dtype == schema.DTypeDatetime {
		return generator.OpenEndDatetime
	}
	return generator.OpenEndDate
}

// mutate derives the value of a tracked column for version n (n >= 1) from
// the first version's value.
func mutate(c *schema.Column, base any, n int, rng *rand.Rand) any {
	if base == nil {
		return nil
	}
	if c.Generator == "ordered_choice" {
		if v, ok := generator.AdvanceOrderedChoice(c.Params, base, n, rng); ok {
			return v
		}
	}
	if len(c.Choices) > 1 {
		for i, choice := range c.Choices {
			if generator.ValuesEqual(choice, base) {
				return normalize(c, c.Choices[(i+n)%len(c.Choices)])
			}
		}
	}
	switch v := base.(type) {
	case int64:
		if c.BaseDType() == schema.DTypeBool {
			if n%2 == 1 {
				return 1 - v
			}
			return v
		}
		return v + int64(n)
	case float64:
		return generator.Round(v+0.75*float64(n), 2)
	case []byte:
		out := append([]byte(nil), v...)
		return append(out, byte(n))
	case string:
		if c.IsTemporal() {
			if t, err := generator.ParseTemporal(v); err == nil {
				return generator.FormatTemporal(c.DType, t.AddDate(0, 0, 30*n))
			}
		}
		return fmt.Sprintf("%s_v%d", v, n+1)
	}
	return base
}
