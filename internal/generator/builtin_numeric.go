package generator

import (
	"fmt"
	"math"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
)

func init() {
	register("latitude", rangeGen(-90, 90, 6), numericOnly)
	register("longitude", rangeGen(-180, 180, 6), numericOnly)
	register("money", rangeGen(0, 10000, 2), numericOnly)
	register("percent", rangeGen(0, 100, 2), numericOnly)
	register("uniform_float", rangeGen(0, 1000, 2), numericOnly)
	register("uniform_int", genUniformInt, numericOnly)
	register("normal", genNormal, validateNormal)
	register("lognormal", genLognormal, validateLognormal)
	register("choice_weighted", genChoiceWeighted, validateChoiceWeighted)
	register("salary_from_age", genSalaryFromAge, validateSalaryFromAge)
}

// numericOut shapes a float draw for the column: ints are rounded to the
// nearest integer, decimals to the requested scale.
func numericOut(c *schema.Column, v float64, decimals int) any {
	if c.BaseDType() == schema.DTypeInt {
		return int64(math.Round(v))
	}
	return Round(v, decimals)
}

func clampOpt(v float64, lo, hi *float64) float64 {
	if lo != nil && v < *lo {
		v = *lo
	}
	if hi != nil && v > *hi {
		v = *hi
	}
	return v
}

func rangeGen(defMin, defMax float64, defDecimals int) Func {
	return func(ctx *Context, p Params) (any, error) {
		lo, err := p.Float("min", defMin)
		if err != nil {
			return nil, paramError(ctx, err)
		}
		hi, err := p.Float("max", defMax)
		if err != nil {
			return nil, paramError(ctx, err)
		}
		decimals, err := p.Int("decimals", defDecimals)
		if err != nil {
			return nil, paramError(ctx, err)
		}
		if hi < lo {
			return nil, apperrors.Generationf(ctx.location(), "make params.min less than or equal to params.max",
				"params.min %v is greater than params.max %v", lo, hi)
		}
		return numericOut(ctx.Column, lo+ctx.Rand.Float64()*(hi-lo), decimals), nil
	}
}

func genUniformInt(ctx *Context, p Params) (any, error) {
	lo, hi := intBounds(ctx.Column, 0, 100)
	l, err := p.Int("min", int(lo))
	if err != nil {
		return nil, paramError(ctx, err)
	}
	h, err := p.Int("max", int(hi))
	if err != nil {
		return nil, paramError(ctx, err)
	}
	if h < l {
		return nil, apperrors.Generationf(ctx.location(), "make params.min less than or equal to params.max",
			"params.min %d is greater than params.max %d", l, h)
	}
	v := int64(l) + ctx.Rand.Int63n(int64(h-l)+1)
	if ctx.Column.BaseDType() == schema.DTypeDecimal {
		return float64(v), nil
	}
	return v, nil
}

func genNormal(ctx *Context, p Params) (any, error) {
	mean, err := p.Float("mean", 0)
	if err != nil {
		return nil, paramError(ctx, err)
	}
	stdevKey := "stdev"
	if !p.Has(stdevKey) && p.Has("stddev") {
		stdevKey = "stddev"
	}
	stdev, err := p.Float(stdevKey, 1)
	if err != nil {
		return nil, paramError(ctx, err)
	}
	decimals, err := p.Int("decimals", 2)
	if err != nil {
		return nil, paramError(ctx, err)
	}
	lo, err := p.OptFloat("min")
	if err != nil {
		return nil, paramError(ctx, err)
	}
	hi, err := p.OptFloat("max")
	if err != nil {
		return nil, paramError(ctx, err)
	}
	x := clampOpt(mean+ctx.Rand.NormFloat64()*stdev, lo, hi)
	return numericOut(ctx.Column, x, decimals), nil
}

func genLognormal(ctx *Context, p Params) (any, error) {
	median, err := p.Float("median", 1)
	if err != nil {
		return nil, paramError(ctx, err)
	}
	sigma, err := p.Float("sigma", 1)
	if err != nil {
		return nil, paramError(ctx, err)
	}
	decimals, err := p.Int("decimals", 2)
	if err != nil {
		return nil, paramError(ctx, err)
	}
	lo, err := p.OptFloat("min")
	if err != nil {
		return nil, paramError(ctx, err)
	}
	hi, err := p.OptFloat("max")
	if err != nil {
		return nil, paramError(ctx, err)
	}
	x := clampOpt(median*math.Exp(sigma*ctx.Rand.NormFloat64()), lo, hi)
	return numericOut(ctx.Column, x, decimals), nil
}

func genChoiceWeighted(ctx *Context, p Params) (any, error) {
	choices, err := p.Slice("choices")
	if err != nil {
		return nil, paramError(ctx, err)
	}
	if len(choices) == 0 {
		choices = ctx.Column.Choices
	}
	weights, err := p.FloatSlice("weights")
	if err != nil {
		return nil, paramError(ctx, err)
	}
	idx, err := weightedIndex(ctx.Rand.Float64(), weights, len(choices))
	if err != nil {
		return nil, apperrors.Generation(ctx.location(), err.Error(), "give one non-negative weight per choice with at least one above zero")
	}
	return choices[idx], nil
}

// weightedIndex maps u in [0,1) onto n buckets. Missing weights mean uniform.
func weightedIndex(u float64, weights []float64, n int) (int, error) {
	if n == 0 {
		return 0, fmt.Errorf("no choices to pick from")
	}
	if len(weights) == 0 {
		return int(u * float64(n)), nil
	}
	if len(weights) != n {
		return 0, fmt.Errorf("got %d weights for %d choices", len(weights), n)
	}
	total := 0.0
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return 0, fmt.Errorf("weights must be non-negative")
		}
		total += w
	}
	if total <= 0 {
		return 0, fmt.Errorf("at least one weight must be greater than zero")
	}
	target := u * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if target < acc {
			return i, nil
		}
	}
	for i := n - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i, nil
		}
	}
	return n - 1, nil
}

func genSalaryFromAge(ctx *Context, p Params) (any, error) {
	ageCol := p.String("age_col", "age")
	age := 30.0
	if v, ok := ctx.Row[ageCol]; ok && v != nil {
		f, ok := toFloat(v)
		if ok {
			age = f
		}
	}
	base := math.Min(35000+(math.Trunc(age)-18)*2500, 140000)
	val := math.Max(20000, base+math.Trunc(ctx.Rand.NormFloat64()*8000))
	lo, err := p.Float("min", 20000)
	if err != nil {
		return nil, paramError(ctx, err)
	}
	hi, err := p.Float("max", 250000)
	if err != nil {
		return nil, paramError(ctx, err)
	}
	return numericOut(ctx.Column, math.Max(lo, math.Min(hi, val)), 2), nil
}

func numericOnly(t *schema.Table, c *schema.Column) error {
	if !c.IsNumeric() {
		return apperrors.Validationf(columnLoc(t.Name, c.Name), "use dtype int or decimal",
			"generator '%s' requires a numeric column, got dtype '%s'", c.Generator, c.DType)
	}
	return nil
}

func validateNormal(t *schema.Table, c *schema.Column) error {
	if err := numericOnly(t, c); err != nil {
		return err
	}
	p := Params(c.Params)
	key := "stdev"
	if !p.Has(key) {
		key = "stddev"
	}
	stdev, err := p.Float(key, 1)
	if err != nil || stdev < 0 {
		return apperrors.Validation(columnLoc(t.Name, c.Name), "params.stdev must be a non-negative number", "set params.stdev to 0 or more")
	}
	return validateMinMaxParams(t, c)
}

func validateLognormal(t *schema.Table, c *schema.Column) error {
	if err := numericOnly(t, c); err != nil {
		return err
	}
	p := Params(c.Params)
	median, err := p.Float("median", 1)
	if err != nil || median <= 0 {
		return apperrors.Validation(columnLoc(t.Name, c.Name), "params.median must be greater than 0", "set a positive median")
	}
	sigma, err := p.Float("sigma", 1)
	if err != nil || sigma < 0 {
		return apperrors.Validation(columnLoc(t.Name, c.Name), "params.sigma must be a non-negative number", "set params.sigma to 0 or more")
	}
	return validateMinMaxParams(t, c)
}

func validateMinMaxParams(t *schema.Table, c *schema.Column) error {
	p := Params(c.Params)
	lo, err1 := p.OptFloat("min")
	hi, err2 := p.OptFloat("max")
	if err1 != nil || err2 != nil {
		return apperrors.Validation(columnLoc(t.Name, c.Name), "params.min and params.max must be numbers", "fix the bounds")
	}
	if lo != nil && hi != nil && *lo > *hi {
		return apperrors.Validation(columnLoc(t.Name, c.Name), "params.min is greater than params.max", "swap or fix the bounds")
	}
	return nil
}

func validateChoiceWeighted(t *schema.Table, c *schema.Column) error {
	loc := columnLoc(t.Name, c.Name)
	p := Params(c.Params)
	choices, err := p.Slice("choices")
	if err != nil {
		return apperrors.Validation(loc, err.Error(), "provide params.choices as a list")
	}
	if len(choices) == 0 {
		choices = c.Choices
	}
	if len(choices) == 0 {
		return apperrors.Validation(loc, "choice_weighted has no choices", "set params.choices")
	}
	weights, err := p.FloatSlice("weights")
	if err != nil {
		return apperrors.Validation(loc, err.Error(), "provide params.weights as a list of numbers")
	}
	if _, err := weightedIndex(0, weights, len(choices)); err != nil {
		return apperrors.Validation(loc, err.Error(), "give one non-negative weight per choice with at least one above zero")
	}
	return nil
}

func validateSalaryFromAge(t *schema.Table, c *schema.Column) error {
	if err := numericOnly(t, c); err != nil {
		return err
	}
	ageCol := Params(c.Params).String("age_col", "age")
	if !containsString(c.DependsOn, ageCol) {
		return apperrors.Validationf(columnLoc(t.Name, c.Name), fmt.Sprintf("add '%s' to depends_on", ageCol),
			"salary_from_age reads '%s' but does not depend on it", ageCol)
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
