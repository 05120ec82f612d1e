package seeder

import (
	"fmt"
	"strings"
	"time"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/generator"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
)

var keyEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// keyTuple renders the business key of a row as a comparable string.
func keyTuple(t *schema.Table, r schema.Row) string {
	parts := make([]string, len(t.BusinessKey))
	for i, col := range t.BusinessKey {
		parts[i] = fmt.Sprintf("%T:%v", r[col], r[col])
	}
	return strings.Join(parts, "\x1f")
}

// syntheticKey derives the k-th key value for a column.
func syntheticKey(c *schema.Column, k int) any {
	switch c.BaseDType() {
	case schema.DTypeInt:
		return int64(k)
	case schema.DTypeDecimal:
		return float64(k)
	case schema.DTypeDate:
		return generator.FormatDate(keyEpoch.AddDate(0, 0, k))
	case schema.DTypeDatetime:
		return generator.FormatDatetime(keyEpoch.Add(time.Duration(k) * time.Second))
	case schema.DTypeBytes:
		return []byte(fmt.Sprintf("%s-%06d", c.Name, k))
	default:
		return fmt.Sprintf("%s-%06d", c.Name, k)
	}
}

func setKey(t *schema.Table, r schema.Row, k int) {
	for _, name := range t.BusinessKey {
		c, _ := t.Column(name)
		r[name] = syntheticKey(c, k)
	}
}

// enforceBusinessKey makes key tuples unique, or reduces them to exactly
// business_key_unique_count distinct tuples assigned cyclically.
func enforceBusinessKey(t *schema.Table, rows []schema.Row) error {
	if len(t.BusinessKey) == 0 {
		return nil
	}
	loc := tableLoc(t.Name)

	if t.BusinessKeyUniqueCount != nil {
		k := *t.BusinessKeyUniqueCount
		if k > len(rows) {
			return apperrors.Generationf(loc, "lower business_key_unique_count or raise the row count",
				"business_key_unique_count %d exceeds the %d generated rows", k, len(rows))
		}
		if t.SCDMode == schema.SCDMode1 && k != len(rows) {
			return apperrors.Generationf(loc, "scd1 keeps one row per key; make the count equal to the row count",
				"business_key_unique_count %d does not match the %d generated rows", k, len(rows))
		}
		for i, r := range rows {
			setKey(t, r, (i%k)+1)
		}
		return nil
	}

	seen := make(map[string]bool, len(rows))
	unique := true
	for _, r := range rows {
		key := keyTuple(t, r)
		if seen[key] {
			unique = false
			break
		}
		seen[key] = true
	}
	if unique {
		return nil
	}
	for i, r := range rows {
		setKey(t, r, i+1)
	}
	return nil
}

func checkKeyUnique(t *schema.Table, rows []schema.Row) error {
	seen := make(map[string]bool, len(rows))
	for i, r := range rows {
		key := keyTuple(t, r)
		if seen[key] {
			return apperrors.Generationf(tableLoc(t.Name), "scd1 tables need one row per business key",
				"duplicate business key at row %d", i+1)
		}
		seen[key] = true
	}
	return nil
}
