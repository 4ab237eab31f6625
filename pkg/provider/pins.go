package provider

import (
	"context"
	"slices"

	"github.com/matzehuels/pylock/pkg/requirement"
	"github.com/matzehuels/pylock/pkg/resolvelib"
)

// PinReuseProvider prefers the pins of a previous lock. A pin that still
// satisfies a requirement becomes its most preferred candidate.
type PinReuseProvider struct {
	*Provider
	pins      map[requirement.Identifier]*requirement.Requirement
	preferred map[*resolvelib.Candidate]bool
	pinned    map[requirement.Identifier]*resolvelib.Candidate
}

// NewPinReuse creates a provider that prefers pins, keyed by identifier.
func NewPinReuse(requirements []*requirement.Requirement, pins map[requirement.Identifier]*requirement.Requirement, opts Options) *PinReuseProvider {
	return &PinReuseProvider{
		Provider:  New(requirements, opts),
		pins:      pins,
		preferred: make(map[*resolvelib.Candidate]bool),
		pinned:    make(map[requirement.Identifier]*resolvelib.Candidate),
	}
}

// FindMatches moves the pin of r to the end of the candidates when it
// satisfies r and the index still offers that version.
func (p *PinReuseProvider) FindMatches(ctx context.Context, r *requirement.Requirement) ([]*resolvelib.Candidate, error) {
	cands, err := p.Provider.FindMatches(ctx, r)
	if err != nil || !r.IsNamed() {
		return cands, err
	}
	id := p.Identify(r)
	pin := p.pinCandidate(id)
	if pin == nil || !p.Provider.IsSatisfiedBy(r, pin) {
		return cands, nil
	}
	version := pin.Version()
	i := slices.IndexFunc(cands, func(c *resolvelib.Candidate) bool {
		return requirement.CompareVersions(c.Version(), version) == 0
	})
	if i >= 0 {
		pin.RequiresPython = cands[i].RequiresPython
		cands = slices.Delete(cands, i, i+1)
	} else if !p.available(ctx, r, version) {
		return cands, nil
	}
	return append(cands, pin), nil
}

// pinCandidate returns one stable candidate per pinned identifier, so the
// resolver can recognise it across rounds.
func (p *PinReuseProvider) pinCandidate(id requirement.Identifier) *resolvelib.Candidate {
	if c, ok := p.pinned[id]; ok {
		return c
	}
	pin, ok := p.pins[id]
	if !ok || !pin.IsNamed() || pin.Version() == "" {
		return nil
	}
	c := pin.Pin(pin.Version())
	c.Index = pin.Index
	p.pinned[id] = c
	p.preferred[c] = true
	return c
}

// available reports whether the index lists version for r, ignoring
// Requires-Python and wheel compatibility.
func (p *PinReuseProvider) available(ctx context.Context, r *requirement.Requirement, version string) bool {
	releases, err := p.releasesOf(ctx, r)
	if err != nil {
		return false
	}
	for v := range releases {
		if requirement.CompareVersions(v, version) == 0 {
			return true
		}
	}
	return false
}

// isPreferred reports whether c came from a previous lock.
func (p *PinReuseProvider) isPreferred(c *resolvelib.Candidate) bool {
	return p.preferred[c]
}

// EagerUpgradeProvider re-resolves tracked packages and everything they
// depend on from scratch, reusing the pins of all other packages.
type EagerUpgradeProvider struct {
	*PinReuseProvider
	tracked map[requirement.Identifier]bool
}

// NewEagerUpgrade creates a provider that upgrades the tracked
// identifiers eagerly.
func NewEagerUpgrade(tracked []requirement.Identifier, requirements []*requirement.Requirement, pins map[requirement.Identifier]*requirement.Requirement, opts Options) *EagerUpgradeProvider {
	kept := make(map[requirement.Identifier]*requirement.Requirement, len(pins))
	for id, pin := range pins {
		kept[id] = pin
	}
	t := make(map[requirement.Identifier]bool, len(tracked))
	for _, id := range tracked {
		t[id] = true
		delete(kept, id)
	}
	return &EagerUpgradeProvider{
		PinReuseProvider: NewPinReuse(requirements, kept, opts),
		tracked:          t,
	}
}

// Tracked reports whether id is being upgraded.
func (p *EagerUpgradeProvider) Tracked(id requirement.Identifier) bool {
	return p.tracked[id]
}

// GetPreference resolves tracked identifiers first so their pins are
// dropped before anything depends on them.
func (p *EagerUpgradeProvider) GetPreference(id requirement.Identifier, candidates []*resolvelib.Candidate, information []resolvelib.RequirementInformation) int {
	if p.tracked[id] {
		return -1
	}
	return p.PinReuseProvider.GetPreference(id, candidates, information)
}

// IsSatisfiedBy never accepts a previous pin for a tracked identifier.
func (p *EagerUpgradeProvider) IsSatisfiedBy(r *requirement.Requirement, c *resolvelib.Candidate) bool {
	if p.tracked[p.Identify(r)] && p.isPreferred(c) {
		return false
	}
	return p.PinReuseProvider.IsSatisfiedBy(r, c)
}

// GetDependencies tracks the dependencies of tracked candidates and drops
// their pins.
func (p *EagerUpgradeProvider) GetDependencies(ctx context.Context, c *resolvelib.Candidate) ([]*requirement.Requirement, error) {
	deps, err := p.PinReuseProvider.GetDependencies(ctx, c)
	if err != nil {
		return nil, err
	}
	if p.tracked[p.Identify(c)] {
		for _, d := range deps {
			id := p.Identify(d)
			p.tracked[id] = true
			delete(p.pins, id)
			delete(p.pinned, id)
		}
	}
	return deps, nil
}
