// Package metadata computes the environment markers of resolved packages.
//
// A package needed by several dependants is needed whenever any of the
// routes leading to it applies. Each route contributes the conjunction of
// the markers along its edges, and the package's marker is the disjunction
// of its routes. An unconditional route makes the package unconditional.
package metadata

import (
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pylock/pkg/dag"
	"github.com/matzehuels/pylock/pkg/markers"
	"github.com/matzehuels/pylock/pkg/pyspec"
	"github.com/matzehuels/pylock/pkg/requirement"
	"github.com/matzehuels/pylock/pkg/trace"
)

// Dependencies maps a parent identifier to the requirement it declared for
// each child. [dag.Root] holds the top-level requirements.
type Dependencies = map[requirement.Identifier]map[requirement.Identifier]*requirement.Requirement

// Propagate sets the Markers of every candidate from its traces. A
// candidate whose parents never settle, which happens only when the graph
// has a cycle not broken by a top-level entry, is left unconditional and
// its identifier is returned.
func Propagate(candidates map[requirement.Identifier]*requirement.Requirement, traces map[string][]trace.Path, deps Dependencies) []requirement.Identifier {
	return PropagateWithLogger(candidates, traces, deps, nil)
}

// PropagateWithLogger is [Propagate] with debug output for every settled
// identifier. A nil logger discards output.
func PropagateWithLogger(candidates map[requirement.Identifier]*requirement.Requirement, traces map[string][]trace.Path, deps Dependencies, logger *log.Logger) []requirement.Identifier {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	sets := settle(traces, deps, logger)

	var unresolved []requirement.Identifier
	for id, c := range candidates {
		ms, ok := sets[id]
		if !ok {
			unresolved = append(unresolved, id)
			c.Markers = ""
			continue
		}
		c.Markers = Format(ms)
	}
	slices.Sort(unresolved)
	return unresolved
}

// settle runs the fixed point: a node is computed once all parents of
// all of its paths are.
func settle(traces map[string][]trace.Path, deps Dependencies, logger *log.Logger) map[string][]markers.MetaSet {
	sets := map[string][]markers.MetaSet{dag.Root: {{}}}
	pending := make(map[string][]trace.Path, len(traces))
	for id, paths := range traces {
		if id != dag.Root {
			pending[id] = paths
		}
	}
	for len(pending) > 0 {
		progress := map[string][]markers.MetaSet{}
		for id, paths := range pending {
			if ms, ok := build(id, paths, sets, deps); ok {
				progress[id] = ms
			}
		}
		if len(progress) == 0 {
			logger.Debug("marker propagation stalled", "pending", len(pending))
			break
		}
		for id, ms := range progress {
			sets[id] = ms
			delete(pending, id)
			logger.Debug("markers settled", "package", id, "routes", len(ms))
		}
	}
	return sets
}

func build(id string, paths []trace.Path, sets map[string][]markers.MetaSet, deps Dependencies) ([]markers.MetaSet, bool) {
	if len(paths) == 0 {
		return nil, false
	}
	for _, p := range paths {
		if _, ok := sets[p.Parent()]; !ok {
			return nil, false
		}
	}
	var out []markers.MetaSet
	for _, p := range paths {
		parent := p.Parent()
		e := edge(deps[parent][id])
		for _, ms := range sets[parent] {
			out = appendUnique(out, ms.And(e))
		}
	}
	return out, true
}

// edge is the condition a dependency line puts on its child. Extra
// clauses only select the line and never constrain the environment.
func edge(r *requirement.Requirement) markers.MetaSet {
	if r == nil || r.Markers == "" {
		return markers.MetaSet{}
	}
	m, err := markers.Parse(r.Markers)
	if err != nil {
		return markers.MetaSet{}
	}
	return markers.FromMarker(m.StripExtra(), pyspec.PySpecs{})
}

func appendUnique(list []markers.MetaSet, ms markers.MetaSet) []markers.MetaSet {
	for _, have := range list {
		if have.String() == ms.String() {
			return list
		}
	}
	return append(list, ms)
}

// Format renders the disjunction of metasets as one marker string. Any
// unconditional metaset, or none at all, yields "".
func Format(metasets []markers.MetaSet) string {
	if len(metasets) == 0 {
		return ""
	}
	var merged []markers.MetaSet
	for _, ms := range metasets {
		if ms.IsEmpty() {
			return ""
		}
		i := slices.IndexFunc(merged, ms.SameMarkers)
		if i < 0 {
			merged = append(merged, ms)
			continue
		}
		merged[i] = merged[i].Or(ms)
		if merged[i].IsEmpty() {
			return ""
		}
	}
	parts := make([]string, 0, len(merged))
	for _, ms := range merged {
		parts = append(parts, ms.String())
	}
	slices.Sort(parts)
	parts = slices.Compact(parts)
	if len(parts) > 1 {
		for i, p := range parts {
			if strings.Contains(p, " and ") || strings.Contains(p, " or ") {
				parts[i] = "(" + p + ")"
			}
		}
	}
	return strings.Join(parts, " or ")
}

// Or combines two marker strings into one that holds when either does.
// An empty marker is unconditional and absorbs the other.
func Or(a, b string) string {
	if a == "" || b == "" {
		return ""
	}
	ma, errA := markers.NewMetaSet(a, pyspec.PySpecs{})
	mb, errB := markers.NewMetaSet(b, pyspec.PySpecs{})
	if errA != nil || errB != nil {
		if a == b {
			return a
		}
		return "(" + a + ") or (" + b + ")"
	}
	return Format([]markers.MetaSet{ma, mb})
}
