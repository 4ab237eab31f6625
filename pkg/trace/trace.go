// Package trace records how each resolved package is reached from the
// top-level requirements.
//
// A [Path] lists the ancestors of a node, nearest parent first and the
// top-level requirement last. A node required directly by the user also
// carries the sentinel path [dag.Root], so the path lists of a node are
// never empty when it is reachable.
package trace

import (
	"slices"
	"strings"

	"github.com/matzehuels/pylock/pkg/dag"
)

// Path is one route to a node, nearest parent first.
type Path []string

// Parent returns the node that depends on the traced node along p.
func (p Path) Parent() string {
	if len(p) == 0 {
		return dag.Root
	}
	return p[0]
}

// Roots returns the top-level requirement p enters through, or
// [dag.Root] for the sentinel path of a top-level requirement.
func Roots(p Path) string {
	if len(p) == 0 {
		return dag.Root
	}
	return p[len(p)-1]
}

// String renders p root-most first, e.g. "requests -> urllib3".
func (p Path) String() string {
	if len(p) == 1 && p[0] == dag.Root {
		return "(top-level)"
	}
	parts := slices.Clone(p)
	slices.Reverse(parts)
	return strings.Join(parts, " -> ")
}

// Trace finds every path from a top-level requirement to every node of g.
// Paths never repeat a node, so cycles terminate.
func Trace(g *dag.DAG) map[string][]Path {
	out := make(map[string][]Path, g.NodeCount())
	for _, node := range g.Nodes() {
		out[node] = nil
	}
	for _, top := range g.Children(dag.Root) {
		out[top] = append(out[top], Path{dag.Root})
		visit(g, top, nil, map[string]bool{}, out)
	}
	for node, paths := range out {
		slices.SortFunc(paths, comparePaths)
		out[node] = slices.CompactFunc(paths, func(a, b Path) bool { return comparePaths(a, b) == 0 })
	}
	return out
}

// visit walks forward from current. route holds current's ancestors,
// root-most first.
func visit(g *dag.DAG, current string, route []string, seen map[string]bool, out map[string][]Path) {
	seen[current] = true
	defer delete(seen, current)
	route = append(route, current)
	for _, child := range g.Children(current) {
		if seen[child] {
			continue
		}
		p := slices.Clone(route)
		slices.Reverse(p)
		out[child] = append(out[child], p)
		visit(g, child, route, seen, out)
	}
}

func comparePaths(a, b Path) int {
	if c := len(a) - len(b); c != 0 {
		return c
	}
	return slices.Compare(a, b)
}

// EntersThrough reports whether any path of paths starts at one of the
// given top-level requirements.
func EntersThrough(paths []Path, tops map[string]bool) bool {
	for _, p := range paths {
		if tops[Roots(p)] {
			return true
		}
	}
	return false
}
