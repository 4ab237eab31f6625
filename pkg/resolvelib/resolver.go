package resolvelib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pylock/pkg/dag"
	"github.com/matzehuels/pylock/pkg/observability"
	"github.com/matzehuels/pylock/pkg/requirement"
)

// DefaultMaxRounds bounds the number of pinning rounds.
const DefaultMaxRounds = 2000

// State is a snapshot of the resolution. The state returned by
// [Resolver.Resolve] maps every identifier reachable from the top-level
// requirements to its pinned candidate.
type State struct {
	Mapping map[requirement.Identifier]*Candidate
	Graph   *dag.DAG

	criteria map[requirement.Identifier]*criterion
	order    []requirement.Identifier // pin order, most recent last
}

func (s *State) clone() *State {
	return &State{
		Mapping:  maps.Clone(s.Mapping),
		criteria: maps.Clone(s.criteria),
		order:    slices.Clone(s.order),
	}
}

func (s *State) pin(id requirement.Identifier, c *Candidate) {
	s.order = slices.DeleteFunc(s.order, func(x string) bool { return x == id })
	s.order = append(s.order, id)
	s.Mapping[id] = c
}

// Information returns the requirements recorded for id and the candidates
// that introduced them.
func (s *State) Information(id requirement.Identifier) []RequirementInformation {
	if c, ok := s.criteria[id]; ok {
		return slices.Clone(c.information)
	}
	return nil
}

// Resolver is the default [Engine].
type Resolver struct {
	MaxRounds int
	Logger    *log.Logger
}

// NewResolver returns a resolver with [DefaultMaxRounds].
func NewResolver() *Resolver {
	return &Resolver{MaxRounds: DefaultMaxRounds}
}

// Resolve pins a candidate for every requirement and, transitively, for
// every dependency. It returns a *[ResolutionImpossible] when the
// requirements cannot be satisfied together. Provider errors abort the
// resolution unchanged.
func (r *Resolver) Resolve(ctx context.Context, p Provider, rep Reporter, requirements []*requirement.Requirement) (*State, error) {
	if rep == nil {
		rep = NoopReporter{}
	}
	logger := r.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	maxRounds := r.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	res := &resolution{ctx: ctx, p: p, rep: rep, logger: logger}
	return res.resolve(requirements, maxRounds)
}

type resolution struct {
	ctx    context.Context
	p      Provider
	rep    Reporter
	logger *log.Logger
	states []*State
}

func (r *resolution) state() *State { return r.states[len(r.states)-1] }

// pushState starts a new round from a copy of the current state.
func (r *resolution) pushState() {
	r.states = append(r.states, r.state().clone())
}

func (r *resolution) resolve(requirements []*requirement.Requirement, maxRounds int) (*State, error) {
	r.rep.Starting()
	root := &State{
		Mapping:  make(map[requirement.Identifier]*Candidate),
		criteria: make(map[requirement.Identifier]*criterion),
	}
	r.states = []*State{root}
	for _, req := range requirements {
		if err := r.mergeInto(root.criteria, req, nil); err != nil {
			var conflict *requirementsConflicted
			if errors.As(err, &conflict) {
				return nil, &ResolutionImpossible{Causes: conflict.criterion.information}
			}
			return nil, err
		}
	}
	r.pushState()

	for round := 0; round < maxRounds; round++ {
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}
		r.rep.StartingRound(round)
		observability.Resolver().OnRound(r.ctx, round)

		unsatisfied := r.unsatisfied()
		if len(unsatisfied) == 0 {
			result := buildResult(r.state())
			r.rep.Ending(result)
			r.logger.Debug("resolution complete", "rounds", round, "pins", len(result.Mapping))
			return result, nil
		}

		name := r.choose(unsatisfied)
		causes, err := r.attemptToPin(name)
		if err != nil {
			return nil, err
		}
		if len(causes) > 0 {
			if !r.backtrack() {
				return nil, &ResolutionImpossible{Causes: flatten(causes)}
			}
		} else {
			r.pushState()
		}
		r.rep.EndingRound(round, r.state())
	}
	return nil, fmt.Errorf("%w: gave up after %d rounds", ErrResolutionTooDeep, maxRounds)
}

func flatten(causes []*criterion) []RequirementInformation {
	var out []RequirementInformation
	for _, c := range causes {
		out = append(out, c.information...)
	}
	return out
}

func (r *resolution) mergeInto(criteria map[requirement.Identifier]*criterion, req *requirement.Requirement, parent *Candidate) error {
	r.rep.AddingRequirement(req, parent)
	id := r.p.Identify(req)
	var (
		crit *criterion
		err  error
	)
	if existing, ok := criteria[id]; ok {
		crit, err = existing.mergedWith(r.p, req, parent)
	} else {
		crit, err = newCriterion(r.ctx, r.p, req, parent)
	}
	if err != nil {
		return err
	}
	criteria[id] = crit
	return nil
}

func (r *resolution) isPinSatisfying(id requirement.Identifier, crit *criterion) bool {
	cand, ok := r.state().Mapping[id]
	return ok && r.satisfiesAll(crit, cand)
}

func (r *resolution) unsatisfied() []requirement.Identifier {
	var out []requirement.Identifier
	for _, id := range slices.Sorted(maps.Keys(r.state().criteria)) {
		if !r.isPinSatisfying(id, r.state().criteria[id]) {
			out = append(out, id)
		}
	}
	return out
}

// choose returns the identifier with the lowest preference. Ties go to
// the identifier that sorts first.
func (r *resolution) choose(ids []requirement.Identifier) requirement.Identifier {
	best, bestPref := "", 0
	for i, id := range ids {
		crit := r.state().criteria[id]
		pref := r.p.GetPreference(id, crit.candidates, crit.information)
		if i == 0 || pref < bestPref {
			best, bestPref = id, pref
		}
	}
	return best
}

// attemptToPin tries the candidates of name from most to least preferred,
// skipping those that no longer satisfy its requirements. It returns the
// criteria that conflicted when no candidate fits.
func (r *resolution) attemptToPin(name requirement.Identifier) ([]*criterion, error) {
	st := r.state()
	crit := st.criteria[name]
	var causes []*criterion
	for i := len(crit.candidates) - 1; i >= 0; i-- {
		cand := crit.candidates[i]
		if !r.satisfiesAll(crit, cand) {
			r.logger.Debug("candidate no longer satisfies", "package", name, "candidate", cand.Line())
			continue
		}
		updates := maps.Clone(st.criteria)
		deps, err := r.p.GetDependencies(r.ctx, cand)
		if err != nil {
			return nil, err
		}
		conflicted := false
		for _, dep := range deps {
			err := r.mergeInto(updates, dep, cand)
			var conflict *requirementsConflicted
			if errors.As(err, &conflict) {
				causes = append(causes, conflict.criterion)
				conflicted = true
				break
			}
			if err != nil {
				return nil, err
			}
		}
		if conflicted {
			r.logger.Debug("candidate conflicts", "candidate", cand.Line())
			continue
		}
		r.rep.Pinning(cand)
		r.logger.Debug("pinning", "package", name, "candidate", cand.Line())
		st.criteria = updates
		st.pin(name, cand)
		return nil, nil
	}
	if len(causes) == 0 {
		causes = append(causes, crit)
	}
	return causes, nil
}

func (r *resolution) satisfiesAll(crit *criterion, cand *Candidate) bool {
	for _, req := range crit.requirements() {
		if !r.p.IsSatisfiedBy(req, cand) {
			return false
		}
	}
	return true
}

// backtrack discards the most recent pin and retries with that candidate
// marked incompatible, going further back while that leaves an identifier
// without candidates.
func (r *resolution) backtrack() bool {
	for len(r.states) >= 3 {
		// Drop the state that failed, then the one holding the last pin.
		r.states = r.states[:len(r.states)-1]
		broken := r.states[len(r.states)-1]
		r.states = r.states[:len(r.states)-1]
		if len(broken.order) == 0 {
			continue
		}
		name := broken.order[len(broken.order)-1]
		cand := broken.Mapping[name]

		incompatible := map[requirement.Identifier][]*Candidate{}
		for id, c := range broken.criteria {
			incompatible[id] = slices.Clone(c.incompatibilities)
		}
		incompatible[name] = append(incompatible[name], cand)

		r.rep.Backtracking(cand)
		observability.Resolver().OnBacktrack(r.ctx, name)
		r.logger.Debug("backtracking", "package", name, "candidate", cand.Line())

		r.pushState()
		if r.patchCriteria(incompatible) {
			return true
		}
	}
	return false
}

func (r *resolution) patchCriteria(incompatible map[requirement.Identifier][]*Candidate) bool {
	st := r.state()
	for _, id := range slices.Sorted(maps.Keys(incompatible)) {
		excluded := incompatible[id]
		if len(excluded) == 0 {
			continue
		}
		crit, ok := st.criteria[id]
		if !ok {
			continue
		}
		patched := crit.excludedOf(r.p, excluded)
		if patched == nil {
			return false
		}
		st.criteria[id] = patched
	}
	return true
}

// buildResult keeps the pins reachable from the top-level requirements
// through current pins and records the edges between them.
func buildResult(st *State) *State {
	keys := make(map[*Candidate]requirement.Identifier, len(st.Mapping))
	for id, c := range st.Mapping {
		keys[c] = id
	}
	connected := map[requirement.Identifier]bool{dag.Root: true}
	g := dag.New()
	for _, id := range slices.Sorted(maps.Keys(st.criteria)) {
		if !hasRouteToRoot(st.criteria, id, keys, connected, map[string]bool{}) {
			continue
		}
		g.AddNode(id)
		for _, info := range st.criteria[id].information {
			if info.Parent == nil {
				g.AddEdge(dag.Root, id)
				continue
			}
			pkey, ok := keys[info.Parent]
			if !ok || !hasRouteToRoot(st.criteria, pkey, keys, connected, map[string]bool{}) {
				continue
			}
			g.AddEdge(pkey, id)
		}
	}
	mapping := make(map[requirement.Identifier]*Candidate)
	for id, c := range st.Mapping {
		if connected[id] {
			mapping[id] = c
		}
	}
	return &State{Mapping: mapping, Graph: g, criteria: st.criteria, order: st.order}
}

func hasRouteToRoot(criteria map[requirement.Identifier]*criterion, key requirement.Identifier,
	keys map[*Candidate]requirement.Identifier, connected, visiting map[string]bool) bool {
	if connected[key] {
		return true
	}
	crit, ok := criteria[key]
	if !ok || visiting[key] {
		return false
	}
	visiting[key] = true
	for _, info := range crit.information {
		if info.Parent == nil {
			connected[key] = true
			return true
		}
		pkey, ok := keys[info.Parent]
		if !ok {
			continue
		}
		if hasRouteToRoot(criteria, pkey, keys, connected, visiting) {
			connected[key] = true
			return true
		}
	}
	return false
}
