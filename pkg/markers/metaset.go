package markers

import (
	"slices"
	"strings"

	"github.com/matzehuels/pylock/pkg/pyspec"
)

// MetaSet is the condition under which one dependency path applies: every
// marker clause must hold and the Python version must be in the PySpecs.
// The zero value is unconditional.
type MetaSet struct {
	markers []string
	python  pyspec.PySpecs
}

// NewMetaSet builds a MetaSet from a marker string and extra Python
// constraints. Python-version clauses found in the marker are folded into
// the PySpecs.
func NewMetaSet(marker string, python pyspec.PySpecs) (MetaSet, error) {
	m, err := Parse(marker)
	if err != nil {
		return MetaSet{}, err
	}
	return FromMarker(m, python), nil
}

// FromMarker is NewMetaSet for an already parsed marker.
func FromMarker(m Marker, python pyspec.PySpecs) MetaSet {
	specs, rest := m.SplitPython()
	var items []string
	for _, c := range rest.clauses() {
		items = append(items, Marker{root: c}.String())
	}
	slices.Sort(items)
	return MetaSet{markers: slices.Compact(items), python: python.And(specs)}
}

// Markers returns the non-Python marker clauses, sorted.
func (m MetaSet) Markers() []string { return slices.Clone(m.markers) }

// Python returns the Python-version part.
func (m MetaSet) Python() pyspec.PySpecs { return m.python }

// IsEmpty reports whether m is unconditional.
func (m MetaSet) IsEmpty() bool {
	return len(m.markers) == 0 && m.python.IsEmpty()
}

// SameMarkers reports whether m and o differ at most in their Python part.
func (m MetaSet) SameMarkers(o MetaSet) bool {
	return slices.Equal(m.markers, o.markers)
}

// And requires both m and o.
func (m MetaSet) And(o MetaSet) MetaSet {
	items := append(slices.Clone(m.markers), o.markers...)
	slices.Sort(items)
	return MetaSet{markers: slices.Compact(items), python: m.python.And(o.python)}
}

// Or accepts either m or o. When the marker clauses agree the Python parts
// are unioned; otherwise the disjunction is kept as a single clause.
func (m MetaSet) Or(o MetaSet) MetaSet {
	switch {
	case m.IsEmpty() || o.IsEmpty():
		return MetaSet{}
	case m.SameMarkers(o):
		return MetaSet{markers: m.markers, python: m.python.Or(o.python)}
	case m.python.Equal(o.python):
		left, right := m.markerString(), o.markerString()
		if left == "" || right == "" {
			return MetaSet{python: m.python}
		}
		return MetaSet{markers: []string{disjoin(left, right)}, python: m.python}
	}
	return MetaSet{markers: []string{disjoin(m.String(), o.String())}}
}

func disjoin(a, b string) string {
	if a == b {
		return a
	}
	sides := []string{a, b}
	slices.Sort(sides)
	for i, s := range sides {
		if strings.Contains(s, " and ") {
			sides[i] = "(" + s + ")"
		}
	}
	return strings.Join(sides, " or ")
}

func (m MetaSet) markerString() string {
	return joinClauses(m.markers, len(m.markers))
}

// String renders every clause of m joined with " and ", sorted and
// deduplicated. Clauses that are themselves disjunctions are parenthesized
// when they are not alone.
func (m MetaSet) String() string {
	parts := append(slices.Clone(m.markers), m.python.Clauses()...)
	slices.Sort(parts)
	parts = slices.Compact(parts)
	return joinClauses(parts, len(parts))
}

func joinClauses(parts []string, n int) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		if n > 1 && strings.Contains(p, " or ") {
			p = "(" + p + ")"
		}
		out[i] = p
	}
	return strings.Join(out, " and ")
}
