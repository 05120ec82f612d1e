package seeder

import (
	"fmt"
	"sort"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
)

// DependencyGraph orders named nodes so every node comes after the nodes it
// depends on. Ties are broken by name so the order is stable.
type DependencyGraph struct {
	nodes   map[string]bool
	parents map[string]map[string]bool
	order   []string
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:   make(map[string]bool),
		parents: make(map[string]map[string]bool),
	}
}

func (g *DependencyGraph) AddNode(name string) {
	g.nodes[name] = true
}

// AddEdge records that child depends on parent. Both must be nodes.
func (g *DependencyGraph) AddEdge(parent, child string) {
	if g.parents[child] == nil {
		g.parents[child] = make(map[string]bool)
	}
	g.parents[child][parent] = true
}

// Parents returns the direct dependencies of a node, sorted.
func (g *DependencyGraph) Parents(name string) []string {
	out := make([]string, 0, len(g.parents[name]))
	for p := range g.parents[name] {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// BuildOrder runs Kahn's algorithm. Nodes left over name the cycle.
func (g *DependencyGraph) BuildOrder(scope string) ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	children := make(map[string][]string)
	for n := range g.nodes {
		indegree[n] = 0
	}
	for child, ps := range g.parents {
		if !g.nodes[child] {
			continue
		}
		for p := range ps {
			if !g.nodes[p] {
				continue
			}
			indegree[child]++
			children[p] = append(children[p], child)
		}
	}

	var ready []string
	for n, d := range indegree {
		if d == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, c := range children[n] {
			indegree[c]--
			if indegree[c] == 0 {
				ready = insertSorted(ready, c)
			}
		}
	}

	if len(order) != len(g.nodes) {
		var unresolved []string
		for n, d := range indegree {
			if d > 0 {
				unresolved = append(unresolved, n)
			}
		}
		sort.Strings(unresolved)
		return nil, &apperrors.CycleError{Scope: scope, Unresolved: unresolved}
	}

	g.order = order
	return order, nil
}

func (g *DependencyGraph) GetOrder() []string {
	return g.order
}

func insertSorted(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}

// TableGraph builds the FK graph over the selected tables. An empty
// selection means every table in the project.
func TableGraph(p *schema.Project, selected []string) *DependencyGraph {
	g := NewDependencyGraph()
	if len(selected) == 0 {
		selected = p.TableNames()
	}
	for _, name := range selected {
		g.AddNode(name)
	}
	for _, fk := range p.ForeignKeys {
		if g.nodes[fk.ChildTable] && g.nodes[fk.ParentTable] {
			g.AddEdge(fk.ParentTable, fk.ChildTable)
		}
	}
	return g
}

// TableOrder returns a parents-first order of the selected tables.
func TableOrder(p *schema.Project, selected []string) ([]string, error) {
	return TableGraph(p, selected).BuildOrder("tables")
}

// ColumnOrder orders a table's columns so each comes after its depends_on.
func ColumnOrder(t *schema.Table) ([]string, error) {
	g := NewDependencyGraph()
	for _, c := range t.Columns {
		g.AddNode(c.Name)
	}
	for _, c := range t.Columns {
		for _, dep := range c.DependsOn {
			g.AddEdge(dep, c.Name)
		}
	}
	return g.BuildOrder(fmt.Sprintf("Table '%s' columns", t.Name))
}
