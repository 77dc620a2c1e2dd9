// Package dag builds the dependency graph over a template's resources and
// produces the order in which a stack walks them. Creation and resume walk
// forward (dependencies first); suspend and delete walk in reverse.
package dag

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"

	"github.com/zhangknight/heat/internal/template"
)

// Graph is the dependency graph of one stack's resources. It is built once
// per template and is read-only afterwards.
type Graph struct {
	nodes map[string]*node
}

type node struct {
	name string
	// deps holds the names of resources this node depends on (predecessors).
	deps map[string]struct{}
	// dependents holds the names of resources that depend on this node.
	dependents map[string]struct{}
}

// Build constructs the graph for a template. Edges come from explicit
// depends_on entries and from implicit resource.<name> traversals found in
// argument expressions. Unknown references and cycles are rejected.
func Build(tmpl *template.Template) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*node, tmpl.ResourceCount())}
	for _, r := range tmpl.Resources {
		g.nodes[r.Name] = &node{
			name:       r.Name,
			deps:       make(map[string]struct{}),
			dependents: make(map[string]struct{}),
		}
	}

	for _, r := range tmpl.Resources {
		for _, dep := range r.DependsOn {
			if err := g.addEdge(dep, r.Name); err != nil {
				return nil, err
			}
		}
		for _, ref := range implicitRefs(r.Arguments) {
			if ref == r.Name {
				return nil, fmt.Errorf("resource %q references itself", r.Name)
			}
			if err := g.addEdge(ref, r.Name); err != nil {
				return nil, err
			}
		}
	}

	if _, err := g.Order(false); err != nil {
		return nil, err
	}
	return g, nil
}

// addEdge records that `to` depends on `from`.
func (g *Graph) addEdge(from, to string) error {
	fromNode, ok := g.nodes[from]
	if !ok {
		return fmt.Errorf("resource %q depends on unknown resource %q", to, from)
	}
	toNode := g.nodes[to]
	toNode.deps[from] = struct{}{}
	fromNode.dependents[to] = struct{}{}
	return nil
}

// implicitRefs extracts the resource names referenced by resource.<name>
// traversals inside the given argument expressions.
func implicitRefs(args map[string]hcl.Expression) []string {
	seen := map[string]struct{}{}
	for _, expr := range args {
		if expr == nil {
			continue
		}
		for _, traversal := range expr.Variables() {
			if traversal.RootName() != "resource" || len(traversal) < 2 {
				continue
			}
			if attr, ok := traversal[1].(hcl.TraverseAttr); ok {
				seen[attr.Name] = struct{}{}
			}
		}
	}
	refs := make([]string, 0, len(seen))
	for name := range seen {
		refs = append(refs, name)
	}
	sort.Strings(refs)
	return refs
}

// Order returns a topological ordering of the resource names. With reverse
// set, dependents come before their dependencies, which is the order suspend
// and delete walk in. The ordering is deterministic: ties break by name.
func (g *Graph) Order(reverse bool) ([]string, error) {
	remaining := make(map[string]int, len(g.nodes))
	for name, n := range g.nodes {
		if reverse {
			remaining[name] = len(n.dependents)
		} else {
			remaining[name] = len(n.deps)
		}
	}

	var ready []string
	for name, count := range remaining {
		if count == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		next := g.nodes[name].dependents
		if reverse {
			next = g.nodes[name].deps
		}
		var unlocked []string
		for dep := range next {
			remaining[dep]--
			if remaining[dep] == 0 {
				unlocked = append(unlocked, dep)
			}
		}
		sort.Strings(unlocked)
		ready = append(ready, unlocked...)
	}

	if len(order) != len(g.nodes) {
		var stuck []string
		for name, count := range remaining {
			if count > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("dependency cycle detected involving %v", stuck)
	}
	return order, nil
}

// Dependencies returns the names of the resources the given resource depends
// on, in sorted order.
func (g *Graph) Dependencies(name string) ([]string, error) {
	n, ok := g.nodes[name]
	if !ok {
		return nil, fmt.Errorf("unknown resource %q", name)
	}
	deps := make([]string, 0, len(n.deps))
	for dep := range n.deps {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps, nil
}
