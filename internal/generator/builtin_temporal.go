package generator

import (
	"fmt"
	"time"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
)

func init() {
	register("date", genDate, validateTemporalOrText)
	register("timestamp_utc", genTimestampUTC, validateTemporalOrText)
	register("time_offset", genTimeOffset, validateTimeOffset)
}

func temporalRange(ctx *Context, p Params, defStart, defEnd string) (time.Time, time.Time, error) {
	start, err := ParseTemporal(p.String("start", defStart))
	if err != nil {
		return time.Time{}, time.Time{}, paramError(ctx, fmt.Errorf("params.start: %w", err))
	}
	end, err := ParseTemporal(p.String("end", defEnd))
	if err != nil {
		return time.Time{}, time.Time{}, paramError(ctx, fmt.Errorf("params.end: %w", err))
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, apperrors.Generation(ctx.location(), "params.end is before params.start", "swap the range bounds")
	}
	return start, end, nil
}

func genDate(ctx *Context, p Params) (any, error) {
	start, end, err := temporalRange(ctx, p, "2000-01-01", "2026-12-31")
	if err != nil {
		return nil, err
	}
	days := int(end.Sub(start).Hours() / 24)
	d := start.AddDate(0, 0, ctx.Rand.Intn(days+1))
	return FormatTemporal(ctx.Column.DType, d), nil
}

func genTimestampUTC(ctx *Context, p Params) (any, error) {
	start, end, err := temporalRange(ctx, p, "2020-01-01T00:00:00Z", "2026-12-31T23:59:59Z")
	if err != nil {
		return nil, err
	}
	span := int64(end.Sub(start) / time.Second)
	ts := start.Add(time.Duration(ctx.Rand.Int63n(span+1)) * time.Second)
	if ctx.Column.DType == schema.DTypeDate {
		return FormatDate(ts), nil
	}
	return FormatDatetime(ts), nil
}

func genTimeOffset(ctx *Context, p Params) (any, error) {
	base := p.String("base_column", "")
	raw, ok := ctx.Row[base]
	if !ok || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, apperrors.Generationf(ctx.location(), "point base_column at a date or datetime column",
			"base column '%s' holds %T, not a temporal value", base, raw)
	}
	t, err := ParseTemporal(s)
	if err != nil {
		return nil, apperrors.Generationf(ctx.location(), "point base_column at a date or datetime column",
			"base column '%s' value %q is not temporal", base, s)
	}

	var offset time.Duration
	if p.Has("min_seconds") || p.Has("max_seconds") {
		lo, err := p.Int("min_seconds", 0)
		if err != nil {
			return nil, paramError(ctx, err)
		}
		hi, err := p.Int("max_seconds", 3600)
		if err != nil {
			return nil, paramError(ctx, err)
		}
		if hi < lo {
			hi = lo
		}
		offset = time.Duration(lo+ctx.Rand.Intn(hi-lo+1)) * time.Second
	} else {
		lo, err := p.Int("min_days", 0)
		if err != nil {
			return nil, paramError(ctx, err)
		}
		hi, err := p.Int("max_days", 30)
		if err != nil {
			return nil, paramError(ctx, err)
		}
		if hi < lo {
			hi = lo
		}
		offset = time.Duration(lo+ctx.Rand.Intn(hi-lo+1)) * 24 * time.Hour
	}
	if p.String("direction", "after") == "before" {
		offset = -offset
	}
	return FormatTemporal(ctx.Column.DType, t.Add(offset)), nil
}

func validateTemporalOrText(t *schema.Table, c *schema.Column) error {
	if !c.IsTemporal() && c.DType != schema.DTypeText {
		return apperrors.Validationf(columnLoc(t.Name, c.Name), "use dtype date, datetime or text",
			"generator '%s' cannot fill dtype '%s'", c.Generator, c.DType)
	}
	return nil
}

func validateTimeOffset(t *schema.Table, c *schema.Column) error {
	loc := columnLoc(t.Name, c.Name)
	if !c.IsTemporal() {
		return apperrors.Validation(loc, "time_offset requires a date or datetime column", "change the dtype")
	}
	p := Params(c.Params)
	base := p.String("base_column", "")
	if base == "" {
		return apperrors.Validation(loc, "time_offset requires params.base_column", "name the column to offset from")
	}
	bc, ok := t.Column(base)
	if !ok || !bc.IsTemporal() {
		return apperrors.Validationf(loc, "point base_column at a date or datetime column", "base column '%s' is missing or not temporal", base)
	}
	if !containsString(c.DependsOn, base) {
		return apperrors.Validationf(loc, fmt.Sprintf("add '%s' to depends_on", base), "time_offset reads '%s' but does not depend on it", base)
	}
	switch p.String("direction", "after") {
	case "after", "before":
	default:
		return apperrors.Validation(loc, "params.direction must be 'after' or 'before'", "fix params.direction")
	}
	for _, pair := range [][2]string{{"min_days", "max_days"}, {"min_seconds", "max_seconds"}} {
		if !p.Has(pair[0]) && !p.Has(pair[1]) {
			continue
		}
		lo, err1 := p.Int(pair[0], 0)
		hi, err2 := p.Int(pair[1], lo)
		if err1 != nil || err2 != nil || lo < 0 || hi < lo {
			return apperrors.Validationf(loc, "use non-negative integers with min <= max", "invalid %s/%s", pair[0], pair[1])
		}
	}
	if (p.Has("min_days") || p.Has("max_days")) && (p.Has("min_seconds") || p.Has("max_seconds")) {
		return apperrors.Validation(loc, "time_offset mixes day and second offsets", "use either days or seconds")
	}
	return nil
}
