package cli

import (
	"context"

	"github.com/matzehuels/pylock/pkg/dag"
	pio "github.com/matzehuels/pylock/pkg/io"
	"github.com/matzehuels/pylock/pkg/lock"
	"github.com/matzehuels/pylock/pkg/requirement"
)

// lockGraph is the dependency graph of a locked project with the locked
// version and markers of each node.
type lockGraph struct {
	graph *dag.DAG
	info  map[string]pio.NodeInfo
	tops  map[string]bool
}

// loadLockGraph builds the graph of the project's lock. When every locked
// package has a dependency cache entry the graph is assembled from the
// cache without network access; otherwise, or with resolve set, the
// project is resolved again keeping the locked versions. Nodes are
// package names in the first case and identifiers in the second.
func (c *CLI) loadLockGraph(ctx context.Context, proj *project, resolve bool) (*lockGraph, error) {
	lf, err := proj.requireLock()
	if err != nil {
		return nil, err
	}
	pins, err := lf.Pins()
	if err != nil {
		return nil, err
	}

	if !resolve {
		b, err := c.openBackends(ctx, proj.pipfile, false)
		if err != nil {
			return nil, err
		}
		g, ok, err := cachedGraph(ctx, b, proj, pins)
		_ = b.Close()
		if err != nil {
			return nil, err
		}
		if ok {
			return g, nil
		}
		loggerFromContext(ctx).Debug("dependency cache incomplete, resolving")
	}

	saved := proj.lockfile
	res, err := c.resolveProject(ctx, proj, lock.PinReuse, nil, false)
	proj.lockfile = saved
	if err != nil {
		return nil, err
	}
	lg := &lockGraph{graph: res.State.Graph, info: map[string]pio.NodeInfo{}, tops: map[string]bool{}}
	for id, cand := range res.State.Mapping {
		lg.info[id] = pio.NodeInfo{Version: cand.Version(), Markers: cand.Markers}
	}
	for _, id := range res.State.Graph.Children(dag.Root) {
		lg.tops[id] = true
	}
	return lg, nil
}

// cachedGraph assembles the graph by package name from cached dependency
// lists. ok is false when some locked package has no cache entry.
func cachedGraph(ctx context.Context, b *backends, proj *project, pins map[requirement.Identifier]*requirement.Requirement) (*lockGraph, bool, error) {
	if b.depcache == nil {
		return nil, false, nil
	}
	list := make([]*requirement.Requirement, 0, len(pins))
	for _, id := range requirement.Keys(pins) {
		pin := pins[id]
		if _, hit, err := b.depcache.Get(ctx, pin); err != nil || !hit {
			return nil, false, err
		}
		list = append(list, pin)
	}
	rev, err := b.depcache.ReverseDependencies(ctx, list)
	if err != nil {
		return nil, false, err
	}

	lg := &lockGraph{graph: dag.New(), info: map[string]pio.NodeInfo{}, tops: map[string]bool{}}
	locked := map[string]bool{}
	for _, pin := range list {
		locked[pin.Name] = true
		lg.graph.AddNode(pin.Name)
		lg.info[pin.Name] = pio.NodeInfo{Version: pin.Version(), Markers: pin.Markers}
	}
	for _, dev := range []bool{false, true} {
		for _, r := range proj.pipfile.Requirements(dev) {
			if locked[r.Name] {
				lg.graph.AddEdge(dag.Root, r.Name)
				lg.tops[r.Name] = true
			}
		}
	}
	for child, parents := range rev {
		if !locked[child] {
			continue
		}
		for _, parent := range parents {
			if parent != child {
				lg.graph.AddEdge(parent, child)
			}
		}
	}
	return lg, true, nil
}

// nodesOf returns the graph nodes of a package: its name and every
// identifier with extras.
func (lg *lockGraph) nodesOf(name string) []string {
	name = requirement.New(name, "").Name
	var out []string
	for _, id := range lg.graph.Nodes() {
		if n, _ := requirement.SplitIdentifier(id); n == name {
			out = append(out, id)
		}
	}
	return out
}
