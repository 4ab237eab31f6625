package pyspec

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
)

// Operators understood by [Spec]. OpIn and OpNotIn are pseudo-operators whose
// version is a comma separated list ("3.0, 3.1").
const (
	OpGE     = ">="
	OpGT     = ">"
	OpLT     = "<"
	OpLE     = "<="
	OpEQ     = "=="
	OpNE     = "!="
	OpCompat = "~="
	OpArb    = "==="
	OpIn     = "in"
	OpNotIn  = "not in"
)

const (
	listSep   = ", "
	cacheSize = 512
)

// operators is ordered so that longer tokens are tried first.
var operators = []string{OpArb, OpCompat, OpEQ, OpNE, OpLE, OpGE, OpLT, OpGT}

// Spec is a single (operator, version) clause.
type Spec struct {
	Op      string
	Version string
}

func (s Spec) String() string { return s.Op + s.Version }

// PySpecs is an immutable, cleaned set of Python-version clauses combined
// with AND. The zero value is the empty set and places no constraint.
type PySpecs struct {
	specs []Spec
}

var parsed = struct {
	sync.Mutex
	cache *lru.Cache
}{cache: lru.New(cacheSize)}

// Parse reads a PEP 440 specifier set such as ">=2.7,!=3.0.*,!=3.1.*".
// Wildcard suffixes are dropped and a bare version is read as "==".
// Versions that are not purely numeric are kept verbatim.
func Parse(s string) PySpecs {
	s = strings.TrimSpace(s)
	if s == "" {
		return PySpecs{}
	}

	parsed.Lock()
	if v, ok := parsed.cache.Get(s); ok {
		parsed.Unlock()
		return v.(PySpecs)
	}
	parsed.Unlock()

	var raw []Spec
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			raw = append(raw, parseClause(part))
		}
	}
	p := New(raw...)

	parsed.Lock()
	parsed.cache.Add(s, p)
	parsed.Unlock()
	return p
}

func parseClause(s string) Spec {
	for _, op := range operators {
		if rest, ok := strings.CutPrefix(s, op); ok {
			v := strings.TrimSpace(rest)
			if op != OpArb {
				v = strings.TrimSuffix(v, ".*")
			}
			return Spec{Op: op, Version: v}
		}
	}
	return Spec{Op: OpEQ, Version: strings.TrimSuffix(s, ".*")}
}

// New builds a cleaned PySpecs from raw clauses.
func New(specs ...Spec) PySpecs {
	if len(specs) == 0 {
		return PySpecs{}
	}
	return PySpecs{specs: clean(specs)}
}

type bound struct {
	spec Spec
	ver  version
}

func clean(in []Spec) []Spec {
	var (
		lower, upper *bound
		excluded     = map[string]version{}
		others       []Spec
	)
	for _, s := range expand(in) {
		s = normalize(s)
		v, ok := parseVersion(s.Version)
		if !ok {
			others = append(others, s)
			continue
		}
		switch s.Op {
		case OpGE, OpGT:
			if lower == nil || tighterLower(s, v, lower) {
				lower = &bound{s, v}
			}
		case OpLT, OpLE:
			if upper == nil || tighterUpper(s, v, upper) {
				upper = &bound{s, v}
			}
		case OpNE:
			excluded[v.String()] = v
		default:
			others = append(others, s)
		}
	}

	out := slices.Clone(others)
	if lower != nil {
		out = append(out, lower.spec)
	}
	if upper != nil {
		out = append(out, upper.spec)
	}
	out = append(out, groupExclusions(excluded)...)

	slices.SortFunc(out, func(a, b Spec) int {
		return cmp.Or(cmp.Compare(a.Op, b.Op), cmp.Compare(a.Version, b.Version))
	})
	return slices.Compact(out)
}

// expand turns list pseudo-operators back into plain clauses where possible.
func expand(in []Spec) []Spec {
	out := make([]Spec, 0, len(in))
	for _, s := range in {
		switch s.Op {
		case OpNotIn:
			for _, v := range splitList(s.Version) {
				out = append(out, Spec{Op: OpNE, Version: v})
			}
		case OpIn:
			items := splitList(s.Version)
			if len(items) == 1 {
				out = append(out, Spec{Op: OpEQ, Version: items[0]})
				continue
			}
			slices.SortFunc(items, compareText)
			out = append(out, Spec{Op: OpIn, Version: strings.Join(items, listSep)})
		default:
			out = append(out, s)
		}
	}
	return out
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}

func compareText(a, b string) int {
	va, oka := parseVersion(a)
	vb, okb := parseVersion(b)
	if oka && okb {
		return va.compare(vb)
	}
	return cmp.Compare(a, b)
}

// normalize canonicalizes the version text and prefers half-open bounds.
func normalize(s Spec) Spec {
	if s.Op == OpArb {
		return s
	}
	v, ok := parseVersion(s.Version)
	if !ok {
		return s
	}
	s.Version = v.String()
	if len(v) > 2 {
		return s
	}
	switch s.Op {
	case OpGT:
		if next, ok := v.nextMinor(); ok {
			return Spec{Op: OpGE, Version: next.String()}
		}
	case OpLE:
		if next, ok := v.nextMinor(); ok {
			return Spec{Op: OpLT, Version: next.String()}
		}
	}
	return s
}

func tighterLower(s Spec, v version, cur *bound) bool {
	switch c := v.compare(cur.ver); {
	case c > 0:
		return true
	case c == 0:
		return s.Op == OpGT && cur.spec.Op == OpGE
	}
	return false
}

func tighterUpper(s Spec, v version, cur *bound) bool {
	switch c := v.compare(cur.ver); {
	case c < 0:
		return true
	case c == 0:
		return s.Op == OpLT && cur.spec.Op == OpLE
	}
	return false
}

func groupExclusions(excluded map[string]version) []Spec {
	byMajor := map[int][]version{}
	for _, v := range excluded {
		byMajor[v.at(0)] = append(byMajor[v.at(0)], v)
	}
	var out []Spec
	for _, vs := range byMajor {
		slices.SortFunc(vs, version.compare)
		if len(vs) == 1 {
			out = append(out, Spec{Op: OpNE, Version: vs[0].String()})
			continue
		}
		names := make([]string, len(vs))
		for i, v := range vs {
			names[i] = v.String()
		}
		out = append(out, Spec{Op: OpNotIn, Version: strings.Join(names, listSep)})
	}
	return out
}

// Specs returns a copy of the cleaned clauses.
func (p PySpecs) Specs() []Spec { return slices.Clone(p.specs) }

// IsEmpty reports whether p places no constraint at all.
func (p PySpecs) IsEmpty() bool { return len(p.specs) == 0 }

// Equal reports whether p and o hold the same clauses.
func (p PySpecs) Equal(o PySpecs) bool { return slices.Equal(p.specs, o.specs) }

// And returns the intersection of p and o.
func (p PySpecs) And(o PySpecs) PySpecs {
	if p.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return p
	}
	return New(append(slices.Clone(p.specs), o.specs...)...)
}

// Or returns the union of p and o, re-derived over the known minor releases
// and the release boundaries named by either operand.
func (p PySpecs) Or(o PySpecs) PySpecs {
	if p.IsEmpty() || o.IsEmpty() {
		return PySpecs{}
	}
	if p.Equal(o) {
		return p
	}
	points := samplePoints(p, o)
	allowed := make([]bool, len(points))
	for i, v := range points {
		allowed[i] = p.allows(v) || o.allows(v)
	}
	if !slices.Contains(allowed, true) {
		return p
	}
	return derive(points, allowed)
}

// samplePoints returns the sorted lower ends of the release intervals on
// which every clause of sets is constant: the universe, the sentinels
// around it, and each clause version with its successor.
func samplePoints(sets ...PySpecs) []version {
	points := append([]version{below}, universe()...)
	points = append(points, upcoming(), beyond())
	for _, set := range sets {
		for _, s := range expand(set.specs) {
			items := []string{s.Version}
			if s.Op == OpIn {
				items = splitList(s.Version)
			}
			for _, item := range items {
				if v, ok := parseVersion(item); ok {
					points = append(points, v, successor(v))
				}
			}
		}
	}
	slices.SortFunc(points, func(a, b version) int {
		return cmp.Or(a.compare(b), cmp.Compare(len(a), len(b)))
	})
	return slices.CompactFunc(points, func(a, b version) bool { return a.compare(b) == 0 })
}

// derive rebuilds a minimal range plus exclusions from an allowed mask.
// points[i] allowed means the whole interval up to points[i+1] is. Gaps
// that no single "!=" clause can describe are left allowed.
func derive(points []version, allowed []bool) PySpecs {
	first := slices.Index(allowed, true)
	last := len(allowed) - 1 - slices.Index(reversed(allowed), true)

	var specs []Spec
	if first > 0 {
		specs = append(specs, Spec{Op: OpGE, Version: points[first].String()})
	}
	if last < len(points)-1 {
		specs = append(specs, Spec{Op: OpLT, Version: points[last+1].String()})
	}
	for i := first + 1; i < last; i++ {
		if allowed[i] {
			continue
		}
		if q, ok := exclusion(points[i], points[i+1]); ok {
			specs = append(specs, Spec{Op: OpNE, Version: q.String()})
		}
	}
	return New(specs...)
}

// exclusion finds the release prefix whose releases are exactly [lo, hi).
func exclusion(lo, hi version) (version, bool) {
	for n := 1; n <= max(len(lo), 3); n++ {
		q := lo.resize(n)
		if q.compare(lo) == 0 && successor(q).compare(hi) == 0 {
			return q, true
		}
	}
	return nil, false
}

func reversed(in []bool) []bool {
	out := slices.Clone(in)
	slices.Reverse(out)
	return out
}

// Contains reports whether the Python release ver satisfies every clause.
func (p PySpecs) Contains(ver string) bool {
	v, ok := parseVersion(ver)
	if !ok {
		return false
	}
	return p.allows(v)
}

func (p PySpecs) allows(v version) bool {
	for _, s := range p.specs {
		if !s.allows(v) {
			return false
		}
	}
	return true
}

func (s Spec) allows(v version) bool {
	switch s.Op {
	case OpIn, OpNotIn:
		hit := false
		for _, item := range splitList(s.Version) {
			if iv, ok := parseVersion(item); ok && v.hasPrefix(iv) {
				hit = true
				break
			}
		}
		return hit == (s.Op == OpIn)
	case OpArb:
		return s.Version == v.String()
	}

	sv, ok := parseVersion(s.Version)
	if !ok {
		return true
	}
	switch s.Op {
	case OpGE:
		return v.compare(sv) >= 0
	case OpGT:
		return v.compare(sv) > 0
	case OpLT:
		return v.compare(sv) < 0
	case OpLE:
		return v.compare(sv) <= 0
	case OpEQ:
		return v.hasPrefix(sv)
	case OpNE:
		return !v.hasPrefix(sv)
	case OpCompat:
		if len(sv) < 2 {
			return v.compare(sv) >= 0
		}
		return v.compare(sv) >= 0 && v.hasPrefix(sv[:len(sv)-1])
	}
	return true
}

// Clauses renders each clause as a marker expression, sorted.
func (p PySpecs) Clauses() []string {
	out := make([]string, 0, len(p.specs))
	for _, s := range p.specs {
		out = append(out, markerClause(s))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func markerClause(s Spec) string {
	name := "python_version"
	if v, ok := parseVersion(s.Version); ok && len(v) > 2 {
		name = "python_full_version"
	}
	return fmt.Sprintf("%s %s '%s'", name, s.Op, s.Version)
}

// String renders p as a marker ("python_version >= '3.6' and ..."). The
// empty set renders as "".
func (p PySpecs) String() string {
	return strings.Join(p.Clauses(), " and ")
}

// SpecString renders p as a PEP 440 specifier set with sorted clauses.
func (p PySpecs) SpecString() string {
	specs := p.specs
	if slices.ContainsFunc(specs, func(s Spec) bool { return s.Op == OpIn }) {
		points := samplePoints(p)
		allowed := make([]bool, len(points))
		for i, v := range points {
			allowed[i] = p.allows(v)
		}
		if slices.Contains(allowed, true) {
			specs = derive(points, allowed).specs
		}
	}
	var out []string
	for _, s := range expand(specs) {
		if s.Op != OpIn {
			out = append(out, s.String())
			continue
		}
		for _, item := range splitList(s.Version) {
			out = append(out, OpEQ+item)
		}
	}
	slices.Sort(out)
	return strings.Join(slices.Compact(out), ",")
}
