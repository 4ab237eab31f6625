// Package markers parses PEP 508 environment markers and combines them with
// Python-version constraints into [MetaSet] values.
//
// Markers are rendered canonically: single-quoted literals, flattened and/or
// chains, and parentheses only where an "or" group sits inside an "and".
// The extra variable is a resolution-time concept; [Marker.StripExtra]
// removes it so that the remaining expression describes only the
// environment.
package markers

import (
	"slices"
	"strings"

	"deps.dev/util/pypi"

	"github.com/matzehuels/pylock/pkg/pyspec"
)

// Marker is a parsed environment marker. The zero value is the empty
// marker, which always applies.
type Marker struct {
	root node
}

// Parse parses a marker expression. An empty or blank string yields the
// empty marker.
func Parse(s string) (Marker, error) {
	n, err := parse(s)
	if err != nil {
		return Marker{}, err
	}
	return Marker{root: n}, nil
}

// MustParse is like Parse but panics on error. It is meant for literals.
func MustParse(s string) Marker {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// IsEmpty reports whether the marker places no condition.
func (m Marker) IsEmpty() bool { return m.root == nil }

func (m Marker) String() string {
	if m.root == nil {
		return ""
	}
	var b strings.Builder
	m.root.render(&b, false)
	return b.String()
}

// StripExtra removes every comparison against the extra variable. Groups
// left empty disappear with it.
func (m Marker) StripExtra() Marker {
	if m.root == nil {
		return m
	}
	return Marker{root: m.root.strip(expr.isExtra)}
}

// ContainsExtra reports whether any clause compares against extra.
func (m Marker) ContainsExtra() bool {
	found := false
	m.walk(func(e expr) {
		if e.isExtra() {
			found = true
		}
	})
	return found
}

// Extras lists the normalized extra names the marker mentions.
func (m Marker) Extras() []string {
	var out []string
	m.walk(func(e expr) {
		if e.isExtra() {
			_, lit, _ := e.variable()
			out = append(out, pypi.CanonPackageName(lit))
		}
	})
	slices.Sort(out)
	return slices.Compact(out)
}

// EvaluateExtras decides whether a dependency guarded by m is wanted when
// the given extras are requested. Only extra clauses are evaluated; every
// other clause is assumed to hold, since lock files cover all environments.
func (m Marker) EvaluateExtras(extras []string) bool {
	if m.root == nil {
		return true
	}
	want := make(map[string]bool, len(extras))
	for _, e := range extras {
		want[pypi.CanonPackageName(e)] = true
	}
	return eval(m.root, want)
}

func eval(n node, extras map[string]bool) bool {
	switch n := n.(type) {
	case andNode:
		for _, c := range n {
			if !eval(c, extras) {
				return false
			}
		}
		return true
	case orNode:
		for _, c := range n {
			if eval(c, extras) {
				return true
			}
		}
		return false
	case expr:
		if !n.isExtra() {
			return true
		}
		_, lit, _ := n.variable()
		hit := extras[pypi.CanonPackageName(lit)]
		if n.op == "!=" {
			return !hit
		}
		return hit
	}
	return true
}

func (m Marker) walk(fn func(expr)) {
	if m.root != nil {
		m.root.walk(fn)
	}
}

// clauses returns the top-level conjuncts of m.
func (m Marker) clauses() []node {
	switch n := m.root.(type) {
	case nil:
		return nil
	case andNode:
		return n
	default:
		return []node{n}
	}
}

// SplitPython moves top-level python_version and python_full_version
// comparisons into a PySpecs and returns the rest of the marker. Markers
// whose top level is an "or" are returned unchanged.
func (m Marker) SplitPython() (pyspec.PySpecs, Marker) {
	var (
		specs []pyspec.Spec
		rest  andNode
	)
	for _, c := range m.clauses() {
		if s, ok := pythonSpec(c); ok {
			specs = append(specs, s)
			continue
		}
		rest = rest.add(c)
	}
	var root node
	switch len(rest) {
	case 0:
	case 1:
		root = rest[0]
	default:
		root = rest
	}
	return pyspec.New(specs...), Marker{root: root}
}

var flippedOps = map[string]string{
	"<": ">", ">": "<", "<=": ">=", ">=": "<=", "==": "==", "!=": "!=",
}

func pythonSpec(n node) (pyspec.Spec, bool) {
	e, ok := n.(expr)
	if !ok {
		return pyspec.Spec{}, false
	}
	name, lit, flipped := e.variable()
	if name != "python_version" && name != "python_full_version" {
		return pyspec.Spec{}, false
	}
	op := e.op
	if flipped {
		if op, ok = flippedOps[op]; !ok {
			return pyspec.Spec{}, false
		}
	}
	return pyspec.Spec{Op: op, Version: lit}, true
}

// StripExtra parses s and returns it without extra clauses, rendered
// canonically.
func StripExtra(s string) (string, error) {
	m, err := Parse(s)
	if err != nil {
		return "", err
	}
	return m.StripExtra().String(), nil
}

// ContainsExtra reports whether s compares against extra. Unparseable
// markers are searched textually.
func ContainsExtra(s string) bool {
	m, err := Parse(s)
	if err != nil {
		return strings.Contains(s, "extra")
	}
	return m.ContainsExtra()
}

// Normalize renders s canonically.
func Normalize(s string) (string, error) {
	m, err := Parse(s)
	if err != nil {
		return "", err
	}
	return m.String(), nil
}
