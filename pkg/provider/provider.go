package provider

import (
	"context"
	"fmt"
	"io"
	"maps"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pylock/pkg/builder"
	"github.com/matzehuels/pylock/pkg/cache"
	"github.com/matzehuels/pylock/pkg/dag"
	"github.com/matzehuels/pylock/pkg/integrations/pypi"
	"github.com/matzehuels/pylock/pkg/markers"
	"github.com/matzehuels/pylock/pkg/requirement"
	"github.com/matzehuels/pylock/pkg/resolvelib"
	"github.com/matzehuels/pylock/pkg/vcs"
)

// Index is the package index access the provider needs.
// [pypi.Client] implements it.
type Index interface {
	Project(ctx context.Context, src pypi.Source, name string, refresh bool) (*pypi.Project, error)
	Release(ctx context.Context, src pypi.Source, name, version string, refresh bool) (*pypi.Release, error)
}

// Options configures a [Provider].
type Options struct {
	// Sources are the indexes to search, in order.
	Sources []pypi.Source

	// Environment is the target interpreter.
	Environment Environment

	// AllowPrereleases admits pre-releases for every requirement.
	AllowPrereleases bool

	Index   Index
	Builder builder.ArtifactBuilder
	VCS     vcs.Resolver

	// DependencyCache persists dependency lists across runs. Nil skips
	// the cache tier.
	DependencyCache *cache.DependencyCache

	Logger *log.Logger
}

// WithDefaults returns a copy of o with defaults applied for unset fields:
// the public PyPI source, an uncached index client, a pip builder and the
// default VCS resolver.
func (o Options) WithDefaults() Options {
	if len(o.Sources) == 0 {
		o.Sources = []pypi.Source{pypi.DefaultSource}
	}
	if o.Index == nil {
		o.Index = pypi.NewClient(nil, 0, pypi.TrustedHosts(o.Sources)...)
	}
	if o.Builder == nil {
		o.Builder = &builder.PipBuilder{Logger: o.Logger}
	}
	if o.VCS == nil {
		o.VCS = vcs.Default{}
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}

// Provider finds and inspects candidates for the resolver.
//
// A Provider serves a single resolution and is not safe for concurrent
// use.
type Provider struct {
	opts   Options
	logger *log.Logger

	// nonNamed holds top-level path, URL and VCS requirements by name.
	// Any requirement for such a name resolves to it.
	nonNamed map[string]*requirement.Requirement

	releases map[string]map[string]*release // memo by source key and name
	commits  map[string]string              // VCS url@ref -> commit
	invalid  map[string]bool                // candidate lines with bad versions

	fetched map[string]map[requirement.Identifier]*requirement.Requirement // by candidate line
	latest  map[requirement.Identifier]string                              // identifier -> candidate line
	pythons map[requirement.Identifier]string
	roots   map[requirement.Identifier]*requirement.Requirement
}

var _ resolvelib.Provider = (*Provider)(nil)

// New creates a provider for one resolution of the given top-level
// requirements.
func New(requirements []*requirement.Requirement, opts Options) *Provider {
	opts = opts.WithDefaults()
	p := &Provider{
		opts:     opts,
		logger:   opts.Logger,
		nonNamed: make(map[string]*requirement.Requirement),
		releases: make(map[string]map[string]*release),
		commits:  make(map[string]string),
		invalid:  make(map[string]bool),
		fetched:  make(map[string]map[requirement.Identifier]*requirement.Requirement),
		latest:   make(map[requirement.Identifier]string),
		pythons:  make(map[requirement.Identifier]string),
		roots:    make(map[requirement.Identifier]*requirement.Requirement),
	}
	for _, r := range requirements {
		if !r.IsNamed() {
			p.nonNamed[r.Name] = r
		}
		addDependency(p.roots, r.Identify(), r)
	}
	return p
}

// Sources returns the configured sources.
func (p *Provider) Sources() []pypi.Source { return p.opts.Sources }

// Identify returns the identifier of r.
func (p *Provider) Identify(r *requirement.Requirement) requirement.Identifier {
	return r.Identify()
}

// GetPreference prefers identifiers with fewer remaining candidates.
func (p *Provider) GetPreference(_ requirement.Identifier, candidates []*resolvelib.Candidate, _ []resolvelib.RequirementInformation) int {
	return len(candidates)
}

// IsSatisfiedBy reports whether c satisfies r. Candidates with versions
// that do not parse never satisfy a requirement with a specifier.
func (p *Provider) IsSatisfiedBy(r *requirement.Requirement, c *resolvelib.Candidate) bool {
	if root, ok := p.nonNamed[r.Name]; ok {
		return requirement.SameSource(root, c)
	}
	if !r.IsNamed() {
		return requirement.SameSource(r, c)
	}
	if r.Specifier == "" {
		return true
	}
	line := c.Line()
	if p.invalid[line] {
		return false
	}
	ok, err := r.Contains(c.Version(), true)
	if err != nil {
		p.logger.Warn("ignoring candidate with invalid version", "candidate", line, "err", err)
		p.invalid[line] = true
		return false
	}
	return ok
}

// Dependencies returns, for every identifier whose dependencies were
// fetched, the requirement recorded for each child. The top-level
// requirements are listed under [dag.Root]. When several versions of an
// identifier were inspected, the most recent fetch wins; use
// [Provider.DependenciesFor] to select the pinned ones.
func (p *Provider) Dependencies() map[requirement.Identifier]map[requirement.Identifier]*requirement.Requirement {
	out := map[requirement.Identifier]map[requirement.Identifier]*requirement.Requirement{
		dag.Root: maps.Clone(p.roots),
	}
	for id, line := range p.latest {
		out[id] = maps.Clone(p.fetched[line])
	}
	return out
}

// DependenciesFor is [Provider.Dependencies] restricted to the candidates
// of a resolution result.
func (p *Provider) DependenciesFor(mapping map[requirement.Identifier]*resolvelib.Candidate) map[requirement.Identifier]map[requirement.Identifier]*requirement.Requirement {
	out := map[requirement.Identifier]map[requirement.Identifier]*requirement.Requirement{
		dag.Root: maps.Clone(p.roots),
	}
	for id, c := range mapping {
		if deps, ok := p.fetched[c.Line()]; ok {
			out[id] = maps.Clone(deps)
		}
	}
	return out
}

// RequiresPythons returns the Requires-Python of every candidate whose
// dependencies were fetched, by identifier.
func (p *Provider) RequiresPythons() map[requirement.Identifier]string {
	return maps.Clone(p.pythons)
}

func (p *Provider) record(c *resolvelib.Candidate, deps []*requirement.Requirement) {
	line := c.Line()
	byChild := make(map[requirement.Identifier]*requirement.Requirement, len(deps))
	for _, d := range deps {
		addDependency(byChild, d.Identify(), d)
	}
	id := c.Identify()
	p.fetched[line] = byChild
	p.latest[id] = line
	p.pythons[id] = c.RequiresPython
}

// addDependency records r under id. Two requirement lines for the same
// child apply when either marker holds.
func addDependency(m map[requirement.Identifier]*requirement.Requirement, id requirement.Identifier, r *requirement.Requirement) {
	prev, ok := m[id]
	if !ok {
		m[id] = r
		return
	}
	merged := prev.Clone()
	merged.Markers = orMarkers(prev.Markers, r.Markers)
	m[id] = merged
}

func orMarkers(a, b string) string {
	if a == "" || b == "" {
		return ""
	}
	if a == b {
		return a
	}
	joined := fmt.Sprintf("(%s) or (%s)", a, b)
	if n, err := markers.Normalize(joined); err == nil {
		return n
	}
	return joined
}
