package resolvelib

import (
	"context"

	"github.com/matzehuels/pylock/pkg/requirement"
)

// Candidate is a requirement pinned to a single version.
type Candidate = requirement.Requirement

// RequirementInformation records a requirement together with the candidate
// that introduced it. Parent is nil for top-level requirements.
type RequirementInformation struct {
	Requirement *requirement.Requirement
	Parent      *Candidate
}

// Provider is the resolver's view of a package ecosystem.
type Provider interface {
	// Identify returns the key of a requirement or candidate.
	Identify(r *requirement.Requirement) requirement.Identifier

	// GetPreference orders unsatisfied identifiers: lower values are
	// resolved first.
	GetPreference(id requirement.Identifier, candidates []*Candidate, information []RequirementInformation) int

	// FindMatches returns the candidates that satisfy r, sorted so the most
	// preferred candidate comes last.
	FindMatches(ctx context.Context, r *requirement.Requirement) ([]*Candidate, error)

	// IsSatisfiedBy reports whether c satisfies r.
	IsSatisfiedBy(r *requirement.Requirement, c *Candidate) bool

	// GetDependencies returns the requirements c depends on.
	GetDependencies(ctx context.Context, c *Candidate) ([]*requirement.Requirement, error)
}

// Reporter receives progress events during resolution.
type Reporter interface {
	Starting()
	StartingRound(index int)
	EndingRound(index int, state *State)
	Ending(state *State)
	AddingRequirement(r *requirement.Requirement, parent *Candidate)
	Backtracking(c *Candidate)
	Pinning(c *Candidate)
}

// NoopReporter ignores every event.
type NoopReporter struct{}

func (NoopReporter) Starting()                                              {}
func (NoopReporter) StartingRound(int)                                      {}
func (NoopReporter) EndingRound(int, *State)                                {}
func (NoopReporter) Ending(*State)                                          {}
func (NoopReporter) AddingRequirement(*requirement.Requirement, *Candidate) {}
func (NoopReporter) Backtracking(*Candidate)                                {}
func (NoopReporter) Pinning(*Candidate)                                     {}

// Engine resolves requirements with a provider.
type Engine interface {
	Resolve(ctx context.Context, p Provider, rep Reporter, requirements []*requirement.Requirement) (*State, error)
}
