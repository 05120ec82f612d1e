package generator

import (
	"fmt"
	"sort"

	"github.com/spf13/cast"
)

// Params is the open parameter bag attached to a column.
type Params map[string]any

func (p Params) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

func (p Params) Float(key string, def float64) (float64, error) {
	if !p.Has(key) {
		return def, nil
	}
	v, err := cast.ToFloat64E(p[key])
	if err != nil {
		return 0, fmt.Errorf("param '%s' must be a number: %w", key, err)
	}
	return v, nil
}

// OptFloat returns nil when the key is absent.
func (p Params) OptFloat(key string) (*float64, error) {
	if !p.Has(key) {
		return nil, nil
	}
	v, err := p.Float(key, 0)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (p Params) Int(key string, def int) (int, error) {
	if !p.Has(key) {
		return def, nil
	}
	v, err := cast.ToIntE(p[key])
	if err != nil {
		return 0, fmt.Errorf("param '%s' must be an integer: %w", key, err)
	}
	return v, nil
}

func (p Params) String(key, def string) string {
	if !p.Has(key) {
		return def
	}
	return cast.ToString(p[key])
}

func (p Params) Slice(key string) ([]any, error) {
	if !p.Has(key) {
		return nil, nil
	}
	v, err := cast.ToSliceE(p[key])
	if err != nil {
		return nil, fmt.Errorf("param '%s' must be a list: %w", key, err)
	}
	return v, nil
}

func (p Params) FloatSlice(key string) ([]float64, error) {
	raw, err := p.Slice(key)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("param '%s'[%d] must be a number: %w", key, i, err)
		}
		out[i] = f
	}
	return out, nil
}

func (p Params) Map(key string) (map[string]any, error) {
	if !p.Has(key) {
		return nil, nil
	}
	v, err := cast.ToStringMapE(p[key])
	if err != nil {
		return nil, fmt.Errorf("param '%s' must be a mapping: %w", key, err)
	}
	return v, nil
}

// sortedKeys gives deterministic iteration over mapping params.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
