// Package generator holds the named value generators and the registry they
// are looked up from. Builtins register themselves at init; registering a
// name twice is an error.
package generator

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
)

type Generator interface {
	Generate(ctx *Context, params Params) (any, error)
}

// Func adapts a plain function to Generator.
type Func func(ctx *Context, params Params) (any, error)

func (f Func) Generate(ctx *Context, params Params) (any, error) {
	return f(ctx, params)
}

// Validator is implemented by generators that can reject a column
// configuration before any row is produced.
type Validator interface {
	ValidateColumn(t *schema.Table, c *schema.Column) error
}

type builtin struct {
	gen      Func
	validate func(t *schema.Table, c *schema.Column) error
}

func (b builtin) Generate(ctx *Context, params Params) (any, error) {
	return b.gen(ctx, params)
}

func (b builtin) ValidateColumn(t *schema.Table, c *schema.Column) error {
	if b.validate == nil {
		return nil
	}
	return b.validate(t, c)
}

type Registry struct {
	mu         sync.RWMutex
	generators map[string]Generator
}

func NewRegistry() *Registry {
	return &Registry{generators: make(map[string]Generator)}
}

func (r *Registry) Register(name string, g Generator) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("generator name cannot be empty")
	}
	if g == nil {
		return fmt.Errorf("generator '%s' is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.generators[name]; exists {
		return fmt.Errorf("generator '%s' is already registered", name)
	}
	r.generators[name] = g
	return nil
}

func (r *Registry) Lookup(name string) (Generator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.generators[name]
	return g, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up a generator and turns a miss into an actionable error.
func (r *Registry) Resolve(table, column, name string) (Generator, error) {
	if g, ok := r.Lookup(name); ok {
		return g, nil
	}
	return nil, apperrors.Generationf(columnLoc(table, column),
		"use one of: "+strings.Join(r.Names(), ", "),
		"unknown generator '%s'", name)
}

// Clone copies the registry so tests can add generators without touching
// the process-wide default.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := NewRegistry()
	for k, v := range r.generators {
		out.generators[k] = v
	}
	return out
}

var defaultRegistry = NewRegistry()

func Default() *Registry {
	return defaultRegistry
}

// MustRegister adds a generator to the default registry and panics on a
// duplicate name.
func MustRegister(name string, g Generator) {
	if err := defaultRegistry.Register(name, g); err != nil {
		panic(err)
	}
}

func register(name string, gen Func, validate func(t *schema.Table, c *schema.Column) error) {
	MustRegister(name, builtin{gen: gen, validate: validate})
}

func columnLoc(table, column string) string {
	return fmt.Sprintf("Table '%s', column '%s'", table, column)
}

func paramError(ctx *Context, err error) error {
	return apperrors.Generation(ctx.location(), err.Error(), "fix the generator params")
}
