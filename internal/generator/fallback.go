package generator

import (
	"math"
	"math/rand"
	"regexp"
	"time"

	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
	"github.com/shopspring/decimal"
)

const (
	DateLayout     = "2006-01-02"
	DatetimeLayout = "2006-01-02T15:04:05Z"

	// OpenEndDate closes the current SCD2 version.
	OpenEndDate     = "9999-12-31"
	OpenEndDatetime = "9999-12-31T23:59:59Z"

	patternAttempts = 50
)

var fallbackEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	return decimal.NewFromFloat(v).Round(int32(decimals)).InexactFloat64()
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func FormatDatetime(t time.Time) string {
	return t.UTC().Format(DatetimeLayout)
}

// ParseTemporal accepts either a date or a UTC datetime string.
func ParseTemporal(s string) (time.Time, error) {
	if t, err := time.Parse(DatetimeLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(DateLayout, s)
}

// FormatTemporal renders t in the column's temporal dtype.
func FormatTemporal(dtype schema.DType, t time.Time) string {
	if dtype == schema.DTypeDatetime {
		return FormatDatetime(t)
	}
	return FormatDate(t)
}

// Fallback produces a value for a column that names no generator.
func Fallback(c *schema.Column, rng *rand.Rand, params Params) (any, error) {
	switch c.BaseDType() {
	case schema.DTypeInt:
		lo, hi := intBounds(c, 0, 1000)
		return lo + rng.Int63n(hi-lo+1), nil
	case schema.DTypeDecimal:
		lo, hi := floatBounds(c, 0, 1000)
		return Round(lo+rng.Float64()*(hi-lo), 2), nil
	case schema.DTypeBool:
		return int64(rng.Intn(2)), nil
	case schema.DTypeDate:
		return FormatDate(fallbackEpoch.AddDate(0, 0, rng.Intn(3651))), nil
	case schema.DTypeDatetime:
		secs := rng.Int63n(10_000_001) - rng.Int63n(31)*86400
		return FormatDatetime(fallbackEpoch.Add(time.Duration(secs) * time.Second)), nil
	case schema.DTypeBytes:
		minLen, err := params.Int("min_length", 8)
		if err != nil {
			return nil, err
		}
		maxLen, err := params.Int("max_length", 16)
		if err != nil {
			return nil, err
		}
		if maxLen < minLen {
			maxLen = minLen
		}
		buf := make([]byte, minLen+rng.Intn(maxLen-minLen+1))
		rng.Read(buf)
		return buf, nil
	default:
		return fallbackText(c, rng), nil
	}
}

func fallbackText(c *schema.Column, rng *rand.Rand) string {
	var re *regexp.Regexp
	if c.Pattern != "" {
		re, _ = regexp.Compile(`^(?:` + c.Pattern + `)$`)
	}
	var s string
	for attempt := 0; attempt < patternAttempts; attempt++ {
		s = randomLower(rng, 5+rng.Intn(10))
		if re == nil || re.MatchString(s) {
			return s
		}
	}
	return s
}

func randomLower(rng *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + rng.Intn(26))
	}
	return string(b)
}

func intBounds(c *schema.Column, lo, hi int64) (int64, int64) {
	if c.MinValue != nil {
		lo = int64(math.Ceil(*c.MinValue))
	}
	if c.MaxValue != nil {
		hi = int64(math.Floor(*c.MaxValue))
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func floatBounds(c *schema.Column, lo, hi float64) (float64, float64) {
	if c.MinValue != nil {
		lo = *c.MinValue
	}
	if c.MaxValue != nil {
		hi = *c.MaxValue
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
