// Package seeder turns a validated project into rows: tables in dependency
// order, columns in depends_on order, foreign keys within their
// cardinality bounds, then business key and SCD rules.
package seeder

import (
	"context"
	"fmt"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/generator"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
)

type Seeder struct {
	project  *schema.Project
	registry *generator.Registry
	tables   []string
	logf     func(format string, args ...any)
}

func NewSeeder(p *schema.Project, opts Options) *Seeder {
	reg := opts.Registry
	if reg == nil {
		reg = generator.Default()
	}
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Seeder{project: p, registry: reg, tables: opts.Tables, logf: logf}
}

// Validate runs the structural schema checks followed by the generator
// specific column checks.
func Validate(p *schema.Project, reg *generator.Registry) error {
	if reg == nil {
		reg = generator.Default()
	}
	if err := schema.Validate(p); err != nil {
		return err
	}
	if err := reg.ValidateProject(p); err != nil {
		return err
	}
	for i := range p.Tables {
		if _, err := ColumnOrder(&p.Tables[i]); err != nil {
			return err
		}
	}
	_, err := TableOrder(p, nil)
	return err
}

func (s *Seeder) Validate() error {
	return Validate(s.project, s.registry)
}

// Generate validates the project and produces rows for the selected tables.
// The same project and seed always produce the same rows.
func (s *Seeder) Generate(ctx context.Context) (*GeneratedData, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	order, err := TableOrder(s.project, s.tables)
	if err != nil {
		return nil, err
	}

	data := &GeneratedData{Order: order, Rows: make(map[string][]schema.Row, len(order))}
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Cancelled("Generator")
		}
		t, _ := s.project.Table(name)
		rows, err := s.generateTable(t, data.Rows)
		if err != nil {
			return nil, err
		}
		data.Rows[name] = rows
		s.logf("generated table %s rows=%d", name, len(rows))
	}
	return data, nil
}

func (s *Seeder) generateTable(t *schema.Table, generated map[string][]schema.Row) ([]schema.Row, error) {
	p := s.project
	fks := p.IncomingFKs(t.Name)

	parentIDs := make(map[string][]any, len(fks))
	parentCounts := make(map[string]int, len(fks))
	fkCols := make(map[string]bool, len(fks))
	for _, fk := range fks {
		rows, ok := generated[fk.ParentTable]
		if !ok {
			return nil, apperrors.Generationf(tableLoc(t.Name), fmt.Sprintf("select table '%s' as well", fk.ParentTable),
				"parent table '%s' was not generated", fk.ParentTable)
		}
		ids := make([]any, len(rows))
		for i, r := range rows {
			ids[i] = r[fk.ParentColumn]
		}
		parentIDs[fk.ParentTable] = ids
		parentCounts[fk.ParentTable] = len(ids)
		fkCols[fk.ChildColumn] = true
	}

	rng := generator.NewRand(p.Seed, generator.TableScope(t.Name))
	b, err := newRowBuilder(s.registry, t, fkCols, rng)
	if err != nil {
		return nil, err
	}

	var rows []schema.Row
	switch len(fks) {
	case 0:
		rows = make([]schema.Row, 0, t.RowCount)
		for i := 1; i <= t.RowCount; i++ {
			r, err := b.build(i, nil)
			if err != nil {
				return nil, err
			}
			rows = append(rows, r)
		}
	case 1:
		fk := fks[0]
		fkRng := generator.NewRand(p.Seed, generator.FKScope(t.Name, fk.ChildColumn, fk.ParentTable))
		for _, id := range parentIDs[fk.ParentTable] {
			k := fk.MinChildren + fkRng.Intn(fk.MaxChildren-fk.MinChildren+1)
			for j := 0; j < k; j++ {
				r, err := b.build(len(rows)+1, map[string]any{fk.ChildColumn: id})
				if err != nil {
					return nil, err
				}
				rows = append(rows, r)
			}
		}
	default:
		n, err := multiFKRowCount(t, fks, parentCounts, rng)
		if err != nil {
			return nil, err
		}
		rows = make([]schema.Row, 0, n)
		for i := 1; i <= n; i++ {
			r, err := b.build(i, nil)
			if err != nil {
				return nil, err
			}
			rows = append(rows, r)
		}
		assignForeignKeys(p.Seed, t, fks, rows, parentIDs)
	}

	if err := enforceBusinessKey(t, rows); err != nil {
		return nil, err
	}
	switch t.SCDMode {
	case schema.SCDMode1:
		if err := applySCD1(t, rows); err != nil {
			return nil, err
		}
	case schema.SCDMode2:
		rows = expandSCD2(p.Seed, t, fks, rows)
	}
	return rows, nil
}

// Generate is the one-call form used by the CLI and the execution engine.
func Generate(ctx context.Context, p *schema.Project, opts Options) (*GeneratedData, error) {
	return NewSeeder(p, opts).Generate(ctx)
}
