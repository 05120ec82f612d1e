package generator

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func newCtx(t *schema.Table, col string, seed int64) *Context {
	c, _ := t.Column(col)
	return &Context{
		RowIndex: 1,
		Table:    t,
		Column:   c,
		Row:      schema.Row{},
		Rand:     NewRand(seed, TableScope(t.Name)),
		State:    map[string]any{},
	}
}

func oneColumn(c schema.Column) *schema.Table {
	return &schema.Table{Name: "t", RowCount: 10, Columns: []schema.Column{c}}
}

func run(t *testing.T, ctx *Context, name string) any {
	t.Helper()
	g, err := Default().Resolve(ctx.Table.Name, ctx.Column.Name, name)
	require.NoError(t, err)
	v, err := g.Generate(ctx, Params(ctx.Column.Params))
	require.NoError(t, err)
	return v
}

func TestStableSeed(t *testing.T) {
	a := StableSeed(42, "table:users")
	assert.Equal(t, a, StableSeed(42, "table:users"))
	assert.NotEqual(t, a, StableSeed(43, "table:users"))
	assert.NotEqual(t, a, StableSeed(42, "table:orders"))
	assert.Equal(t, StableSeed(1, "a", "b"), StableSeed(1, "a:b"))
	assert.GreaterOrEqual(t, a, int64(0))

	assert.Equal(t, "fk:orders:customer_id:customers", FKScope("orders", "customer_id", "customers"))
	assert.Equal(t, NewRand(5, "x").Int63(), NewRand(5, "x").Int63())
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	gen := Func(func(*Context, Params) (any, error) { return int64(1), nil })
	require.NoError(t, reg.Register("one", gen))

	err := reg.Register("one", gen)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
	assert.Error(t, reg.Register(" ", gen))
	assert.Error(t, reg.Register("nil", nil))

	_, err = reg.Resolve("t", "c", "two")
	require.Error(t, err)
	assert.True(t, apperrors.IsGeneration(err))
	assert.Contains(t, err.Error(), "unknown generator 'two'")
	assert.Contains(t, err.Error(), "one")

	clone := reg.Clone()
	require.NoError(t, clone.Register("two", gen))
	_, ok := reg.Lookup("two")
	assert.False(t, ok)
}

func TestDefaultRegistryHasBuiltins(t *testing.T) {
	names := Default().Names()
	for _, name := range []string{
		"latitude", "longitude", "money", "percent", "uniform_int", "uniform_float", "normal",
		"lognormal", "choice_weighted", "date", "timestamp_utc", "sample_csv", "salary_from_age",
		"if_then", "hierarchical_category", "time_offset", "ordered_choice",
		"first_last_name", "email", "phone", "url", "address", "sentence", "word", "uuid",
	} {
		assert.Contains(t, names, name)
	}
	assert.Panics(t, func() { MustRegister("uuid", Func(genUUID)) })
}

func TestParamsCoercion(t *testing.T) {
	p := Params{"a": "2.5", "b": 3, "c": []any{"1", 2.0}, "bad": "x", "m": map[string]any{"k": 1}}

	f, err := p.Float("a", 0)
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	i, err := p.Int("b", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, i)

	def, err := p.Int("missing", 9)
	require.NoError(t, err)
	assert.Equal(t, 9, def)

	fs, err := p.FloatSlice("c")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, fs)

	_, err = p.Float("bad", 0)
	assert.Error(t, err)

	opt, err := p.OptFloat("missing")
	require.NoError(t, err)
	assert.Nil(t, opt)

	m, err := p.Map("m")
	require.NoError(t, err)
	assert.Equal(t, 1, m["k"])
}

func TestOrderedChoiceProgression(t *testing.T) {
	tbl := oneColumn(schema.Column{Name: "status", DType: schema.DTypeText, Generator: "ordered_choice",
		Params: map[string]any{"orders": map[string]any{"a": []any{"c1", "c2", "c3"}}}})
	ctx := newCtx(tbl, "status", 1)

	var got []any
	for i := 1; i <= 5; i++ {
		ctx.RowIndex = i
		got = append(got, run(t, ctx, "ordered_choice"))
	}
	assert.Equal(t, []any{"c1", "c2", "c3", "c3", "c3"}, got)
}

func TestOrderedChoiceStartIndexAndWeights(t *testing.T) {
	params := map[string]any{
		"orders":        map[string]any{"a": []any{"x1", "x2", "x3"}, "b": []any{"y1", "y2", "y3"}},
		"order_weights": map[string]any{"a": 0, "b": 1},
		"move_weights":  []any{1, 0},
		"start_index":   1,
	}
	tbl := oneColumn(schema.Column{Name: "s", DType: schema.DTypeText, Generator: "ordered_choice", Params: params})
	ctx := newCtx(tbl, "s", 3)
	for i := 0; i < 4; i++ {
		assert.Equal(t, "y2", run(t, ctx, "ordered_choice"))
	}

	rng := NewRand(1, "advance")
	next, ok := AdvanceOrderedChoice(map[string]any{"orders": map[string]any{"a": []any{"c1", "c2", "c3"}}}, "c1", 1, rng)
	require.True(t, ok)
	assert.Equal(t, "c2", next)
	next, ok = AdvanceOrderedChoice(map[string]any{"orders": map[string]any{"a": []any{"c1", "c2", "c3"}}}, "c2", 5, rng)
	require.True(t, ok)
	assert.Equal(t, "c3", next)
	_, ok = AdvanceOrderedChoice(map[string]any{"orders": map[string]any{"a": []any{"c1"}}}, "zz", 1, rng)
	assert.False(t, ok)
}

func TestOrderedChoiceValidation(t *testing.T) {
	bad := []map[string]any{
		{},
		{"orders": map[string]any{"a": []any{}}},
		{"orders": map[string]any{"a": []any{"c1"}}, "order_weights": map[string]any{"b": 1}},
		{"orders": map[string]any{"a": []any{"c1"}}, "move_weights": []any{0, 0}},
		{"orders": map[string]any{"a": []any{"c1"}}, "start_index": 3},
	}
	for _, params := range bad {
		tbl := oneColumn(schema.Column{Name: "s", DType: schema.DTypeText, Generator: "ordered_choice", Params: params})
		err := Default().ValidateProject(&schema.Project{Name: "p", Tables: []schema.Table{*tbl}})
		assert.Error(t, err, "params %v", params)
	}
}

func TestIfThen(t *testing.T) {
	tbl := &schema.Table{Name: "t", Columns: []schema.Column{
		{Name: "country", DType: schema.DTypeText},
		{Name: "vat", DType: schema.DTypeBool, Generator: "if_then", DependsOn: []string{"country"},
			Params: map[string]any{"if_column": "country", "value": "DE", "then_value": true, "else_value": false}},
	}}
	ctx := newCtx(tbl, "vat", 1)
	ctx.Row["country"] = "DE"
	assert.Equal(t, int64(1), run(t, ctx, "if_then"))
	ctx.Row["country"] = "US"
	assert.Equal(t, int64(0), run(t, ctx, "if_then"))

	ctx.Column.Params["operator"] = "!="
	assert.Equal(t, int64(1), run(t, ctx, "if_then"))

	require.NoError(t, Default().ValidateProject(&schema.Project{Name: "p", Tables: []schema.Table{*tbl}}))
	tbl.Columns[1].DependsOn = nil
	err := Default().ValidateProject(&schema.Project{Name: "p", Tables: []schema.Table{*tbl}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depends_on")
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, ValuesEqual(int64(3), 3.0))
	assert.True(t, ValuesEqual(int64(1), true))
	assert.True(t, ValuesEqual("a", "a"))
	assert.False(t, ValuesEqual("a", "b"))
	assert.False(t, ValuesEqual(nil, "a"))
	assert.True(t, ValuesEqual(nil, nil))
}

func TestHierarchicalCategory(t *testing.T) {
	tbl := &schema.Table{Name: "t", Columns: []schema.Column{
		{Name: "dept", DType: schema.DTypeText},
		{Name: "cat", DType: schema.DTypeText, Generator: "hierarchical_category", DependsOn: []string{"dept"},
			Params: map[string]any{
				"parent_column":    "dept",
				"hierarchy":        map[string]any{"toys": []any{"puzzles"}},
				"default_children": []any{"misc"},
			}},
	}}
	ctx := newCtx(tbl, "cat", 1)
	ctx.Row["dept"] = "toys"
	assert.Equal(t, "puzzles", run(t, ctx, "hierarchical_category"))
	ctx.Row["dept"] = "garden"
	assert.Equal(t, "misc", run(t, ctx, "hierarchical_category"))
}

func TestChoiceWeighted(t *testing.T) {
	tbl := oneColumn(schema.Column{Name: "c", DType: schema.DTypeText, Generator: "choice_weighted",
		Params: map[string]any{"choices": []any{"never", "always"}, "weights": []any{0, 1}}})
	ctx := newCtx(tbl, "c", 9)
	for i := 0; i < 20; i++ {
		assert.Equal(t, "always", run(t, ctx, "choice_weighted"))
	}

	tbl.Columns[0].Params["weights"] = []any{1}
	err := Default().ValidateProject(&schema.Project{Name: "p", Tables: []schema.Table{*tbl}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights")
}

func TestNumericGenerators(t *testing.T) {
	tbl := oneColumn(schema.Column{Name: "n", DType: schema.DTypeInt, Params: map[string]any{"min": 3, "max": 5}})
	ctx := newCtx(tbl, "n", 1)
	for i := 0; i < 50; i++ {
		v := run(t, ctx, "uniform_int").(int64)
		assert.GreaterOrEqual(t, v, int64(3))
		assert.LessOrEqual(t, v, int64(5))
	}

	dec := oneColumn(schema.Column{Name: "d", DType: schema.DTypeDecimal, Params: map[string]any{"min": 10, "max": 20}})
	dctx := newCtx(dec, "d", 1)
	for i := 0; i < 50; i++ {
		v := run(t, dctx, "money").(float64)
		assert.GreaterOrEqual(t, v, 10.0)
		assert.LessOrEqual(t, v, 20.0)
		assert.Equal(t, Round(v, 2), v)
	}

	norm := oneColumn(schema.Column{Name: "d", DType: schema.DTypeDecimal, Params: map[string]any{"mean": 50, "stddev": 100, "min": 0, "max": 60}})
	nctx := newCtx(norm, "d", 1)
	for i := 0; i < 50; i++ {
		v := run(t, nctx, "normal").(float64)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 60.0)
	}

	text := oneColumn(schema.Column{Name: "n", DType: schema.DTypeText, Generator: "latitude"})
	err := Default().ValidateProject(&schema.Project{Name: "p", Tables: []schema.Table{*text}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a numeric column")
}

func TestTemporalGenerators(t *testing.T) {
	tbl := &schema.Table{Name: "t", Columns: []schema.Column{
		{Name: "d", DType: schema.DTypeDate, Params: map[string]any{"start": "2024-01-01", "end": "2024-01-31"}},
		{Name: "ts", DType: schema.DTypeDatetime},
		{Name: "later", DType: schema.DTypeDatetime, DependsOn: []string{"ts"},
			Params: map[string]any{"base_column": "ts", "min_days": 1, "max_days": 2}},
	}}
	ctx := newCtx(tbl, "d", 1)
	d := run(t, ctx, "date").(string)
	assert.Regexp(t, `^2024-01-\d{2}$`, d)

	ctx = newCtx(tbl, "ts", 1)
	ts := run(t, ctx, "timestamp_utc").(string)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`, ts)

	ctx = newCtx(tbl, "later", 1)
	ctx.Row["ts"] = "2024-03-01T00:00:00Z"
	later := run(t, ctx, "time_offset").(string)
	base, _ := ParseTemporal("2024-03-01T00:00:00Z")
	got, err := ParseTemporal(later)
	require.NoError(t, err)
	assert.True(t, !got.Before(base.AddDate(0, 0, 1)) && !got.After(base.AddDate(0, 0, 2)), later)

	ctx.Row["ts"] = nil
	g, _ := Default().Lookup("time_offset")
	v, err := g.Generate(ctx, Params(ctx.Column.Params))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestTextGenerators(t *testing.T) {
	tbl := oneColumn(schema.Column{Name: "s", DType: schema.DTypeText})
	ctx := newCtx(tbl, "s", 1)
	assert.Regexp(t, `^\S+ \S+$`, run(t, ctx, "first_last_name"))
	assert.Regexp(t, `^[a-z]+1_\d+@[a-z.]+$`, run(t, ctx, "email"))
	assert.Regexp(t, `^\+1-\d{3}-\d{3}-\d{4}$`, run(t, ctx, "phone"))

	a := run(t, newCtx(tbl, "s", 4), "uuid")
	b := run(t, newCtx(tbl, "s", 4), "uuid")
	assert.Equal(t, a, b)
	assert.Regexp(t, `^[0-9a-f-]{36}$`, a)

	num := oneColumn(schema.Column{Name: "n", DType: schema.DTypeInt, Generator: "email"})
	assert.Error(t, Default().ValidateProject(&schema.Project{Name: "p", Tables: []schema.Table{*num}}))
}

func TestSampleCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,country\nOslo,NO\nLima,PE\n,XX\n"), 0644))

	tbl := oneColumn(schema.Column{Name: "city", DType: schema.DTypeText, Generator: "sample_csv",
		Params: map[string]any{"path": path}})
	require.NoError(t, Default().ValidateProject(&schema.Project{Name: "p", Tables: []schema.Table{*tbl}}))

	values, err := LoadCSVColumn(path, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Oslo", "Lima"}, values)

	ctx := newCtx(tbl, "city", 1)
	for i := 0; i < 10; i++ {
		assert.Contains(t, values, run(t, ctx, "sample_csv"))
	}

	tbl.Columns[0].Params["path"] = filepath.Join(t.TempDir(), "missing.csv")
	assert.Error(t, Default().ValidateProject(&schema.Project{Name: "p", Tables: []schema.Table{*tbl}}))
}

func TestUnknownGeneratorIsValidationError(t *testing.T) {
	tbl := oneColumn(schema.Column{Name: "x", DType: schema.DTypeText, Generator: "nope"})
	err := Default().ValidateProject(&schema.Project{Name: "p", Tables: []schema.Table{*tbl}})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "unknown generator 'nope'")
}

func TestFallback(t *testing.T) {
	cols := []schema.Column{
		{Name: "i", DType: schema.DTypeInt, MinValue: fptr(5), MaxValue: fptr(7)},
		{Name: "d", DType: schema.DTypeFloat, MinValue: fptr(1), MaxValue: fptr(2)},
		{Name: "b", DType: schema.DTypeBool},
		{Name: "dt", DType: schema.DTypeDate},
		{Name: "ts", DType: schema.DTypeDatetime},
		{Name: "raw", DType: schema.DTypeBytes},
		{Name: "code", DType: schema.DTypeText, Pattern: "[a-z]+"},
	}
	for i := range cols {
		c := &cols[i]
		first, err := Fallback(c, NewRand(1, c.Name), nil)
		require.NoError(t, err)
		again, err := Fallback(c, NewRand(1, c.Name), nil)
		require.NoError(t, err)
		assert.Equal(t, first, again, c.Name)

		switch c.Name {
		case "i":
			assert.Contains(t, []int64{5, 6, 7}, first)
		case "d":
			assert.InDelta(t, 1.5, first.(float64), 0.5)
		case "b":
			assert.Contains(t, []int64{0, 1}, first)
		case "dt":
			assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, first)
		case "ts":
			assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`, first)
		case "raw":
			assert.GreaterOrEqual(t, len(first.([]byte)), 8)
			assert.LessOrEqual(t, len(first.([]byte)), 16)
		case "code":
			assert.True(t, regexp.MustCompile(`^[a-z]+$`).MatchString(first.(string)), first)
		}
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 2.35, Round(2.345, 2))
	assert.Equal(t, -2.35, Round(-2.345, 2))
	assert.Equal(t, 3.0, Round(2.5, 0))
}
