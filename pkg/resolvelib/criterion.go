package resolvelib

import (
	"context"
	"slices"

	"github.com/matzehuels/pylock/pkg/requirement"
)

// criterion holds everything known about one identifier: the remaining
// candidates, the requirements that apply to it and the candidates ruled
// out by backtracking. A criterion is never modified once built.
type criterion struct {
	candidates        []*Candidate
	information       []RequirementInformation
	incompatibilities []*Candidate
}

func newCriterion(ctx context.Context, p Provider, r *requirement.Requirement, parent *Candidate) (*criterion, error) {
	cands, err := p.FindMatches(ctx, r)
	if err != nil {
		return nil, err
	}
	c := &criterion{
		candidates:  cands,
		information: []RequirementInformation{{Requirement: r, Parent: parent}},
	}
	if len(cands) == 0 {
		return nil, &requirementsConflicted{criterion: c}
	}
	return c, nil
}

func (c *criterion) mergedWith(p Provider, r *requirement.Requirement, parent *Candidate) (*criterion, error) {
	merged := &criterion{
		information:       append(slices.Clone(c.information), RequirementInformation{Requirement: r, Parent: parent}),
		incompatibilities: slices.Clone(c.incompatibilities),
	}
	for _, cand := range c.candidates {
		if p.IsSatisfiedBy(r, cand) {
			merged.candidates = append(merged.candidates, cand)
		}
	}
	if len(merged.candidates) == 0 {
		return nil, &requirementsConflicted{criterion: merged}
	}
	return merged, nil
}

// excludedOf returns c without the given candidates, or nil when none
// remain.
func (c *criterion) excludedOf(p Provider, excluded []*Candidate) *criterion {
	out := &criterion{
		information:       c.information,
		incompatibilities: append(slices.Clone(c.incompatibilities), excluded...),
	}
	for _, cand := range c.candidates {
		if !containsCandidate(excluded, cand) {
			out.candidates = append(out.candidates, cand)
		}
	}
	if len(out.candidates) == 0 {
		return nil
	}
	return out
}

func containsCandidate(list []*Candidate, c *Candidate) bool {
	for _, x := range list {
		if x == c || x.Line() == c.Line() {
			return true
		}
	}
	return false
}

func (c *criterion) requirements() []*requirement.Requirement {
	out := make([]*requirement.Requirement, len(c.information))
	for i, info := range c.information {
		out[i] = info.Requirement
	}
	return out
}
