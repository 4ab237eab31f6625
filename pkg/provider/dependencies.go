package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/matzehuels/pylock/pkg/builder"
	perrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/integrations/pypi"
	"github.com/matzehuels/pylock/pkg/markers"
	"github.com/matzehuels/pylock/pkg/observability"
	"github.com/matzehuels/pylock/pkg/requirement"
	"github.com/matzehuels/pylock/pkg/resolvelib"
)

// Discovery tiers, as reported to [observability.ResolverHooks].
const (
	TierCache = "cache"
	TierJSON  = "json"
	TierBuild = "build"
)

// ErrUntrustedRelease is returned by the JSON tier for releases without a
// wheel, whose published dependencies are unreliable.
var ErrUntrustedRelease = errors.New("release ships no wheel")

// GetDependencies returns the requirements of c. The dependency cache, the
// JSON release API and an artifact build are tried in turn; the error
// lists every tier's failure when none succeeds.
func (p *Provider) GetDependencies(ctx context.Context, c *resolvelib.Candidate) ([]*requirement.Requirement, error) {
	start := time.Now()
	lines, tier, err := p.discover(ctx, c)
	observability.Resolver().OnDependencies(ctx, c.Identify(), tier, time.Since(start))
	if err != nil {
		return nil, err
	}

	id := c.Identify()
	var deps []*requirement.Requirement
	for _, line := range lines {
		d, err := requirement.ParseLine(line)
		if err != nil {
			p.logger.Warn("skipping unparseable dependency", "package", id, "line", line, "err", err)
			continue
		}
		if d.Identify() == id {
			continue
		}
		deps = append(deps, d)
	}
	if len(c.Extras) > 0 && c.IsNamed() {
		// Tie the extras variant to the plain package at the same version.
		deps = append(deps, requirement.New(c.Name, "=="+c.Version()))
	}
	p.record(c, deps)
	p.logger.Debug("dependencies", "package", id, "tier", tier, "count", len(deps))
	return deps, nil
}

func (p *Provider) discover(ctx context.Context, c *resolvelib.Candidate) ([]string, string, error) {
	var errs []error
	cacheable := p.opts.DependencyCache != nil && !c.Editable

	if cacheable {
		lines, ok, err := p.opts.DependencyCache.Get(ctx, c)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", TierCache, err))
		case ok:
			return lines, TierCache, nil
		}
	}

	if c.IsNamed() && len(c.Extras) == 0 && !c.Editable {
		lines, err := p.fromJSONAPI(ctx, c)
		if err == nil {
			p.store(ctx, c, lines, cacheable)
			return lines, TierJSON, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", TierJSON, err))
	}

	lines, err := p.fromArtifact(ctx, c)
	if err == nil {
		p.store(ctx, c, lines, cacheable)
		return lines, TierBuild, nil
	}
	errs = append(errs, fmt.Errorf("%s: %w", TierBuild, err))

	details := make([]string, len(errs))
	for i, e := range errs {
		details[i] = e.Error()
	}
	return nil, "", perrors.Wrap(perrors.ErrCodeDependencyDiscovery, errors.Join(errs...),
		"failed to get dependencies for %s", c.Line()).WithDetails(details...)
}

func (p *Provider) store(ctx context.Context, c *resolvelib.Candidate, lines []string, cacheable bool) {
	if !cacheable {
		return
	}
	if err := p.opts.DependencyCache.Set(ctx, c, lines); err != nil {
		p.logger.Warn("cannot write dependency cache", "package", c.Identify(), "err", err)
	}
}

// fromJSONAPI reads requires_dist from the first source with a JSON API
// that publishes a wheel for the version. Lines guarded by an extra are
// dropped.
func (p *Provider) fromJSONAPI(ctx context.Context, c *resolvelib.Candidate) ([]string, error) {
	sources, err := p.sourcesFor(c)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, src := range sources {
		if _, ok := src.JSONAPI(); !ok {
			continue
		}
		rel, err := p.opts.Index.Release(ctx, src, c.Name, c.Version(), false)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !rel.HasWheel() {
			errs = append(errs, fmt.Errorf("%w: %s %s", ErrUntrustedRelease, c.Name, c.Version()))
			continue
		}
		lines := make([]string, 0, len(rel.Info.RequiresDist))
		for _, line := range rel.Info.RequiresDist {
			d, err := requirement.ParseLine(line)
			if err != nil {
				return nil, err
			}
			if d.Markers != "" && markers.ContainsExtra(d.Markers) {
				continue
			}
			lines = append(lines, d.Line())
		}
		return lines, nil
	}
	if len(errs) == 0 {
		return nil, pypi.ErrNoJSONAPI
	}
	return nil, errors.Join(errs...)
}

// fromArtifact reads the metadata of a local archive directly, or builds
// the candidate first. Dependencies guarded by an extra are kept when c
// requests that extra, with the extra clause removed.
func (p *Provider) fromArtifact(ctx context.Context, c *resolvelib.Candidate) ([]string, error) {
	path := ""
	if isArchive(c.Path) && !c.Editable {
		if fi, err := os.Stat(c.Path); err == nil && !fi.IsDir() {
			path = c.Path
		}
	}
	if path == "" {
		sources, err := p.sourcesFor(c)
		if err != nil {
			return nil, err
		}
		built, err := p.opts.Builder.BuildWheel(ctx, c, sources)
		if err != nil {
			return nil, err
		}
		defer builder.Cleanup(built)
		path = built
	}

	md, err := builder.ReadMetadata(ctx, path)
	if err != nil {
		return nil, err
	}
	return selectExtras(md.Requires, c.Extras)
}

func selectExtras(lines, extras []string) ([]string, error) {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		d, err := requirement.ParseLine(line)
		if err != nil {
			return nil, err
		}
		if d.Markers != "" {
			m, err := markers.Parse(d.Markers)
			if err != nil {
				return nil, fmt.Errorf("marker of %q: %w", line, err)
			}
			if m.ContainsExtra() {
				if !m.EvaluateExtras(extras) {
					continue
				}
				d.Markers = m.StripExtra().String()
			}
		}
		out = append(out, d.Line())
	}
	return out, nil
}

func isArchive(path string) bool {
	for _, ext := range []string{".whl", ".tar.gz", ".zip", ".tar.bz2", ".tgz"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
