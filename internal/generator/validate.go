package generator

import (
	"strings"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
)

// ValidateProject runs each named generator's own column checks. Unknown
// generator names are reported as validation errors here.
func (r *Registry) ValidateProject(p *schema.Project) error {
	for ti := range p.Tables {
		t := &p.Tables[ti]
		for ci := range t.Columns {
			c := &t.Columns[ci]
			if c.Generator == "" {
				continue
			}
			g, ok := r.Lookup(c.Generator)
			if !ok {
				return apperrors.Validationf(columnLoc(t.Name, c.Name),
					"use one of: "+strings.Join(r.Names(), ", "),
					"unknown generator '%s'", c.Generator)
			}
			if v, ok := g.(Validator); ok {
				if err := v.ValidateColumn(t, c); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
