package dag

import (
	"errors"
	"maps"
	"slices"
)

// Root is the sentinel node whose children are the top-level requirements.
const Root = ""

var (
	// ErrUnknownNode is returned when an operation names a node that does
	// not exist.
	ErrUnknownNode = errors.New("unknown node")

	// ErrGraphHasCycle is returned by [DAG.Validate] when a cycle is detected.
	// Cycles are detected using depth-first search with white/gray/black
	// coloring.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Edge is a directed connection from a dependant to a dependency.
type Edge struct {
	From string
	To   string
}

// DAG is a dependency graph keyed by identifier. [Root] always exists.
//
// The zero value is not usable - use New to create a valid DAG instance.
// DAG is not safe for concurrent use without external synchronization.
type DAG struct {
	nodes    map[string]struct{}
	outgoing map[string][]string // nodeID -> children IDs
	incoming map[string][]string // nodeID -> parent IDs
}

// New creates a graph holding only [Root].
func New() *DAG {
	return &DAG{
		nodes:    map[string]struct{}{Root: {}},
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
}

// AddNode adds id if it is not present yet.
func (d *DAG) AddNode(id string) {
	d.nodes[id] = struct{}{}
}

// Has reports whether id is a node of the graph.
func (d *DAG) Has(id string) bool {
	_, ok := d.nodes[id]
	return ok
}

// AddEdge adds the edge from→to, adding missing endpoints. Adding an
// existing edge again has no effect.
func (d *DAG) AddEdge(from, to string) {
	d.AddNode(from)
	d.AddNode(to)
	if slices.Contains(d.outgoing[from], to) {
		return
	}
	d.outgoing[from] = append(d.outgoing[from], to)
	d.incoming[to] = append(d.incoming[to], from)
}

// RemoveEdge removes the edge from→to if it exists.
func (d *DAG) RemoveEdge(from, to string) {
	d.outgoing[from] = slices.DeleteFunc(d.outgoing[from], func(s string) bool { return s == to })
	d.incoming[to] = slices.DeleteFunc(d.incoming[to], func(s string) bool { return s == from })
}

// RemoveNode removes id and every edge touching it. Root cannot be removed.
func (d *DAG) RemoveNode(id string) error {
	if id == Root {
		return nil
	}
	if !d.Has(id) {
		return ErrUnknownNode
	}
	for _, c := range slices.Clone(d.outgoing[id]) {
		d.RemoveEdge(id, c)
	}
	for _, p := range slices.Clone(d.incoming[id]) {
		d.RemoveEdge(p, id)
	}
	delete(d.nodes, id)
	delete(d.outgoing, id)
	delete(d.incoming, id)
	return nil
}

// Nodes returns every node except [Root], sorted.
func (d *DAG) Nodes() []string {
	ids := make([]string, 0, len(d.nodes))
	for id := range d.nodes {
		if id != Root {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Edges returns all edges, sorted by source then target.
func (d *DAG) Edges() []Edge {
	var edges []Edge
	for _, from := range slices.Sorted(maps.Keys(d.outgoing)) {
		for _, to := range slices.Sorted(slices.Values(d.outgoing[from])) {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

// NodeCount returns the number of nodes, not counting [Root].
func (d *DAG) NodeCount() int { return len(d.nodes) - 1 }

// EdgeCount returns the number of edges in the graph.
func (d *DAG) EdgeCount() int {
	n := 0
	for _, c := range d.outgoing {
		n += len(c)
	}
	return n
}

// Children returns the IDs of nodes that this node has edges to (dependencies).
// Returns nil if the node has no children or doesn't exist. The returned slice
// should not be modified - use it as a read-only view.
func (d *DAG) Children(id string) []string { return d.outgoing[id] }

// Parents returns the IDs of nodes that have edges to this node (dependents).
// Returns nil if the node has no parents or doesn't exist. The returned slice
// should not be modified - use it as a read-only view.
func (d *DAG) Parents(id string) []string { return d.incoming[id] }

// Clone returns an independent copy of the graph.
func (d *DAG) Clone() *DAG {
	c := New()
	for id := range d.nodes {
		c.nodes[id] = struct{}{}
	}
	for id, children := range d.outgoing {
		c.outgoing[id] = slices.Clone(children)
	}
	for id, parents := range d.incoming {
		c.incoming[id] = slices.Clone(parents)
	}
	return c
}

// Reachable returns every node reachable from the given start nodes,
// including the start nodes themselves.
func (d *DAG) Reachable(start ...string) map[string]bool {
	seen := make(map[string]bool)
	stack := slices.Clone(start)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		stack = append(stack, d.outgoing[id]...)
	}
	return seen
}

// Validate returns ErrGraphHasCycle if the graph contains a directed cycle.
//
// Cycle detection runs in O(N+E) time using depth-first search.
func (d *DAG) Validate() error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(d.nodes))
	var hasCycle bool

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, child := range d.outgoing[id] {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				hasCycle = true
				return
			}
		}
		color[id] = black
	}

	for id := range d.nodes {
		if color[id] == white {
			dfs(id)
			if hasCycle {
				return ErrGraphHasCycle
			}
		}
	}
	return nil
}
