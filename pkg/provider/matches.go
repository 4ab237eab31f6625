package provider

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/pylock/pkg/integrations"
	"github.com/matzehuels/pylock/pkg/integrations/pypi"
	"github.com/matzehuels/pylock/pkg/requirement"
	"github.com/matzehuels/pylock/pkg/resolvelib"
	"github.com/matzehuels/pylock/pkg/vcs"
)

// ErrUnknownIndex is returned for requirements naming a source that is not
// configured.
var ErrUnknownIndex = errors.New("unknown index")

// release is one version of a project across all searched sources.
type release struct {
	version        string
	requiresPython string
	files          []pypi.File
}

// FindMatches returns the candidates for r, oldest first. Non-named
// requirements yield exactly themselves, with VCS refs pinned to commits.
func (p *Provider) FindMatches(ctx context.Context, r *requirement.Requirement) ([]*resolvelib.Candidate, error) {
	if root, ok := p.nonNamed[r.Name]; ok {
		r = root
	}
	if !r.IsNamed() {
		c, err := p.pinLocator(ctx, r)
		if err != nil {
			return nil, err
		}
		return []*resolvelib.Candidate{c}, nil
	}

	releases, err := p.releasesOf(ctx, r)
	if err != nil {
		return nil, err
	}
	versions := p.supported(releases)
	versions = r.Filter(versions, p.opts.AllowPrereleases)

	out := make([]*resolvelib.Candidate, 0, len(versions))
	for _, v := range versions {
		rel := releases[v]
		if len(p.compatibleFiles(rel.files, true)) == 0 {
			continue
		}
		c := r.Pin(v)
		c.RequiresPython = rel.requiresPython
		out = append(out, c)
	}
	return out, nil
}

// supported returns the versions whose Requires-Python admits the target
// interpreter, sorted ascending. When no version qualifies every version
// is returned, since a stale Requires-Python is more likely than a
// package that installs nowhere.
func (p *Provider) supported(releases map[string]*release) []string {
	all := slices.Collect(maps.Keys(releases))
	requirement.SortVersions(all)
	var ok []string
	for _, v := range all {
		if p.opts.Environment.SupportsPython(releases[v].requiresPython) {
			ok = append(ok, v)
		}
	}
	if len(ok) == 0 {
		return all
	}
	return ok
}

// compatibleFiles keeps sdists and, in strict mode, only the wheels the
// target environment can install.
func (p *Provider) compatibleFiles(files []pypi.File, strict bool) []pypi.File {
	if !strict {
		return files
	}
	var out []pypi.File
	for _, f := range files {
		if !f.IsWheel() {
			out = append(out, f)
			continue
		}
		w, err := f.Wheel()
		if err == nil && p.opts.Environment.Compatible(w) {
			out = append(out, f)
		}
	}
	return out
}

// Artifacts returns the index files published for the version of c. With
// strict set only files installable in the target environment are
// returned; hash collection passes false to cover every platform.
func (p *Provider) Artifacts(ctx context.Context, c *resolvelib.Candidate, strict bool) ([]pypi.File, error) {
	if !c.IsNamed() {
		return nil, nil
	}
	releases, err := p.releasesOf(ctx, c)
	if err != nil {
		return nil, err
	}
	rel, ok := releases[c.Version()]
	if !ok {
		return nil, nil
	}
	return p.compatibleFiles(rel.files, strict), nil
}

// sourcesFor returns the sources to search for r: its named index, or all
// configured sources.
func (p *Provider) sourcesFor(r *requirement.Requirement) ([]pypi.Source, error) {
	if r.Index == "" {
		return p.opts.Sources, nil
	}
	for _, s := range p.opts.Sources {
		if s.Name == r.Index {
			return []pypi.Source{s}, nil
		}
	}
	return nil, fmt.Errorf("%w %q for %s", ErrUnknownIndex, r.Index, r.Name)
}

// releasesOf collects the non-yanked files of r's project by version.
func (p *Provider) releasesOf(ctx context.Context, r *requirement.Requirement) (map[string]*release, error) {
	key := r.Index + "|" + r.Name
	if rel, ok := p.releases[key]; ok {
		return rel, nil
	}
	sources, err := p.sourcesFor(r)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*release)
	found := false
	for _, src := range sources {
		project, err := p.opts.Index.Project(ctx, src, r.Name, false)
		if errors.Is(err, integrations.ErrNotFound) {
			p.logger.Debug("package not on source", "package", r.Name, "source", src.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("find %s on %s: %w", r.Name, src.Name, err)
		}
		found = true
		for _, f := range project.Files {
			if f.Yanked {
				continue
			}
			v := f.Version(r.Name)
			if v == "" {
				continue
			}
			rel, ok := out[v]
			if !ok {
				rel = &release{version: v}
				out[v] = rel
			}
			if rel.requiresPython == "" {
				rel.requiresPython = strings.TrimSpace(f.RequiresPython)
			}
			rel.files = append(rel.files, f)
		}
	}
	if !found {
		p.logger.Debug("package not found on any source", "package", r.Name)
	}
	p.releases[key] = out
	return out, nil
}

// pinLocator returns the candidate of a path, URL or VCS requirement.
func (p *Provider) pinLocator(ctx context.Context, r *requirement.Requirement) (*resolvelib.Candidate, error) {
	c := r.Clone()
	c.Markers = ""
	c.Hashes = nil
	if !r.IsVCS() || vcs.IsCommit(r.Ref) {
		return c, nil
	}
	key := r.VCS + "+" + r.URL + "@" + r.Ref
	commit, ok := p.commits[key]
	if !ok {
		var err error
		commit, err = p.opts.VCS.Resolve(ctx, r.VCS, r.URL, r.Ref)
		if err != nil {
			return nil, fmt.Errorf("pin %s: %w", r.Line(), err)
		}
		p.commits[key] = commit
		p.logger.Debug("pinned vcs ref", "package", r.Name, "ref", r.Ref, "commit", commit)
	}
	c.Ref = commit
	return c, nil
}
