package generator

import (
	"fmt"
	"math/rand"
	"reflect"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
	"github.com/spf13/cast"
)

func init() {
	register("if_then", genIfThen, validateIfThen)
	register("hierarchical_category", genHierarchical, validateHierarchical)
	register("ordered_choice", genOrderedChoice, validateOrderedChoice)
}

// ValuesEqual compares a generated value with a configured one. Numbers
// compare by value, bools by their stored 0/1 form.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if bb, ok := b.(bool); ok {
		b = boolInt(bb)
	}
	if ab, ok := a.(bool); ok {
		a = boolInt(ab)
	}
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa == fb
	}
	if reflect.TypeOf(a) == reflect.TypeOf(b) && reflect.TypeOf(a).Comparable() {
		return a == b
	}
	return cast.ToString(a) == cast.ToString(b)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func genIfThen(ctx *Context, p Params) (any, error) {
	current := ctx.Row[p.String("if_column", "")]
	match := ValuesEqual(current, p["value"])
	if p.String("operator", "==") == "!=" {
		match = !match
	}
	out := p["else_value"]
	if match {
		out = p["then_value"]
	}
	if b, ok := out.(bool); ok {
		return boolInt(b), nil
	}
	return out, nil
}

func validateIfThen(t *schema.Table, c *schema.Column) error {
	loc := columnLoc(t.Name, c.Name)
	p := Params(c.Params)
	col := p.String("if_column", "")
	if col == "" {
		return apperrors.Validation(loc, "if_then requires params.if_column", "name the column to test")
	}
	if _, ok := t.Column(col); !ok {
		return apperrors.Validationf(loc, "reference an existing column", "if_column '%s' not found", col)
	}
	if !containsString(c.DependsOn, col) {
		return apperrors.Validationf(loc, fmt.Sprintf("add '%s' to depends_on", col), "if_then reads '%s' but does not depend on it", col)
	}
	switch p.String("operator", "==") {
	case "==", "!=":
	default:
		return apperrors.Validation(loc, "params.operator must be '==' or '!='", "fix params.operator")
	}
	if _, ok := p["value"]; !ok {
		return apperrors.Validation(loc, "if_then requires params.value", "set the value to compare against")
	}
	_, hasThen := p["then_value"]
	_, hasElse := p["else_value"]
	if !hasThen || !hasElse {
		return apperrors.Validation(loc, "if_then requires params.then_value and params.else_value", "set both branch values")
	}
	return nil
}

func genHierarchical(ctx *Context, p Params) (any, error) {
	parent := ctx.Row[p.String("parent_column", "")]
	hierarchy, err := p.Map("hierarchy")
	if err != nil {
		return nil, paramError(ctx, err)
	}
	var children []any
	if parent != nil {
		if raw, ok := hierarchy[cast.ToString(parent)]; ok {
			children, err = cast.ToSliceE(raw)
			if err != nil {
				return nil, paramError(ctx, fmt.Errorf("hierarchy[%v] must be a list: %w", parent, err))
			}
		}
	}
	if len(children) == 0 {
		children, err = p.Slice("default_children")
		if err != nil {
			return nil, paramError(ctx, err)
		}
	}
	if len(children) == 0 {
		return nil, apperrors.Generationf(ctx.location(), "add the parent value to params.hierarchy or set params.default_children",
			"no children configured for parent value %v", parent)
	}
	return children[ctx.Rand.Intn(len(children))], nil
}

func validateHierarchical(t *schema.Table, c *schema.Column) error {
	loc := columnLoc(t.Name, c.Name)
	p := Params(c.Params)
	parent := p.String("parent_column", "")
	if parent == "" {
		return apperrors.Validation(loc, "hierarchical_category requires params.parent_column", "name the parent column")
	}
	if _, ok := t.Column(parent); !ok {
		return apperrors.Validationf(loc, "reference an existing column", "parent_column '%s' not found", parent)
	}
	if !containsString(c.DependsOn, parent) {
		return apperrors.Validationf(loc, fmt.Sprintf("add '%s' to depends_on", parent), "hierarchical_category reads '%s' but does not depend on it", parent)
	}
	hierarchy, err := p.Map("hierarchy")
	if err != nil || len(hierarchy) == 0 {
		return apperrors.Validation(loc, "params.hierarchy must be a non-empty mapping", "map each parent value to a list of children")
	}
	for _, k := range sortedKeys(hierarchy) {
		list, err := cast.ToSliceE(hierarchy[k])
		if err != nil || len(list) == 0 {
			return apperrors.Validationf(loc, "give every parent a non-empty list", "hierarchy entry '%s' has no children", k)
		}
	}
	return nil
}

// orderedChoiceConfig is the parsed form of the ordered_choice params.
type orderedChoiceConfig struct {
	names        []string
	orders       map[string][]any
	orderWeights []float64
	moveWeights  []float64
	startIndex   int
}

func parseOrderedChoice(p Params) (*orderedChoiceConfig, error) {
	raw, err := p.Map("orders")
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("params.orders must be a non-empty mapping of name to list")
	}
	cfg := &orderedChoiceConfig{names: sortedKeys(raw), orders: make(map[string][]any, len(raw))}
	for _, name := range cfg.names {
		list, err := cast.ToSliceE(raw[name])
		if err != nil || len(list) == 0 {
			return nil, fmt.Errorf("order '%s' must be a non-empty list", name)
		}
		cfg.orders[name] = list
	}

	weights, err := p.Map("order_weights")
	if err != nil {
		return nil, err
	}
	if len(weights) > 0 {
		if len(weights) != len(raw) {
			return nil, fmt.Errorf("params.order_weights keys must match params.orders exactly")
		}
		for _, name := range cfg.names {
			w, ok := weights[name]
			if !ok {
				return nil, fmt.Errorf("params.order_weights is missing order '%s'", name)
			}
			f, err := cast.ToFloat64E(w)
			if err != nil {
				return nil, fmt.Errorf("params.order_weights['%s'] must be a number", name)
			}
			cfg.orderWeights = append(cfg.orderWeights, f)
		}
		if _, err := weightedIndex(0, cfg.orderWeights, len(cfg.names)); err != nil {
			return nil, fmt.Errorf("params.order_weights: %w", err)
		}
	}

	cfg.moveWeights, err = p.FloatSlice("move_weights")
	if err != nil {
		return nil, err
	}
	if len(cfg.moveWeights) == 0 {
		cfg.moveWeights = []float64{0, 1}
	}
	if _, err := weightedIndex(0, cfg.moveWeights, len(cfg.moveWeights)); err != nil {
		return nil, fmt.Errorf("params.move_weights: %w", err)
	}

	cfg.startIndex, err = p.Int("start_index", 0)
	if err != nil {
		return nil, err
	}
	for _, name := range cfg.names {
		if cfg.startIndex < 0 || cfg.startIndex >= len(cfg.orders[name]) {
			return nil, fmt.Errorf("params.start_index %d is outside order '%s'", cfg.startIndex, name)
		}
	}
	return cfg, nil
}

func (cfg *orderedChoiceConfig) step(rng *rand.Rand) int {
	idx, _ := weightedIndex(rng.Float64(), cfg.moveWeights, len(cfg.moveWeights))
	return idx
}

type orderedChoiceState struct {
	cfg   *orderedChoiceConfig
	order string
	pos   int
}

// genOrderedChoice walks one configured sequence across rows: the first row
// picks an order and starts at start_index, later rows move forward by a
// weighted step and stay on the last element once they reach it.
func genOrderedChoice(ctx *Context, p Params) (any, error) {
	st, _ := ctx.State["ordered_choice"].(*orderedChoiceState)
	if st == nil {
		cfg, err := parseOrderedChoice(p)
		if err != nil {
			return nil, paramError(ctx, err)
		}
		idx, _ := weightedIndex(ctx.Rand.Float64(), cfg.orderWeights, len(cfg.names))
		st = &orderedChoiceState{cfg: cfg, order: cfg.names[idx], pos: cfg.startIndex}
		ctx.State["ordered_choice"] = st
	} else {
		list := st.cfg.orders[st.order]
		st.pos += st.cfg.step(ctx.Rand)
		if st.pos >= len(list) {
			st.pos = len(list) - 1
		}
	}
	return st.cfg.orders[st.order][st.pos], nil
}

// AdvanceOrderedChoice moves a value along whichever configured order
// contains it, taking the given number of weighted steps. It reports false
// when the value belongs to no order.
func AdvanceOrderedChoice(params map[string]any, current any, steps int, rng *rand.Rand) (any, bool) {
	cfg, err := parseOrderedChoice(Params(params))
	if err != nil {
		return nil, false
	}
	for _, name := range cfg.names {
		list := cfg.orders[name]
		for i, v := range list {
			if !ValuesEqual(v, current) {
				continue
			}
			pos := i
			for s := 0; s < steps; s++ {
				pos += cfg.step(rng)
			}
			if pos >= len(list) {
				pos = len(list) - 1
			}
			return list[pos], true
		}
	}
	return nil, false
}

func validateOrderedChoice(t *schema.Table, c *schema.Column) error {
	if _, err := parseOrderedChoice(Params(c.Params)); err != nil {
		return apperrors.Validation(columnLoc(t.Name, c.Name), err.Error(), "fix the ordered_choice params")
	}
	return nil
}

