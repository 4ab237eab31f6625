package lock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pylock/pkg/cache"
	perrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/integrations/pypi"
	"github.com/matzehuels/pylock/pkg/lockfile"
	"github.com/matzehuels/pylock/pkg/metadata"
	"github.com/matzehuels/pylock/pkg/observability"
	"github.com/matzehuels/pylock/pkg/pipfile"
	"github.com/matzehuels/pylock/pkg/provider"
	"github.com/matzehuels/pylock/pkg/requirement"
	"github.com/matzehuels/pylock/pkg/resolvelib"
	"github.com/matzehuels/pylock/pkg/trace"
)

// ErrHashMismatch is returned when a downloaded artifact does not match
// the digest its index declared.
var ErrHashMismatch = errors.New("artifact hash mismatch")

// Options configures a [Locker].
type Options struct {
	Mode Mode

	// Previous is the existing lock whose pins PinReuse and EagerUpgrade
	// keep. Nil behaves like an empty lock.
	Previous *lockfile.Lockfile

	// Upgrade names the packages EagerUpgrade re-resolves.
	Upgrade []string

	// Provider configures candidate lookup. Sources, the target Python
	// and pre-release policy default to the Pipfile's settings.
	Provider provider.Options

	// Engine resolves requirements; nil uses [resolvelib.NewResolver].
	Engine   resolvelib.Engine
	Reporter resolvelib.Reporter

	// Hashes computes artifact digests; nil uses an in-memory cache.
	Hashes *cache.HashCache

	Logger *log.Logger
}

// Result is the outcome of a successful lock.
type Result struct {
	Lockfile *lockfile.Lockfile
	State    *resolvelib.State
	Traces   map[string][]trace.Path

	// Unresolved lists packages whose markers could not be derived; they
	// are locked unconditionally.
	Unresolved []requirement.Identifier

	Stats Stats
}

// Stats records the duration of each stage.
type Stats struct {
	ResolveTime   time.Duration
	TraceTime     time.Duration
	HashTime      time.Duration
	PropagateTime time.Duration
	Packages      int
}

// lockProvider is what the Locker needs beyond the resolver contract.
type lockProvider interface {
	resolvelib.Provider
	DependenciesFor(map[requirement.Identifier]*resolvelib.Candidate) metadata.Dependencies
	Artifacts(ctx context.Context, c *resolvelib.Candidate, strict bool) ([]pypi.File, error)
}

// Locker produces a lock file for one Pipfile. A Locker is single-use.
type Locker struct {
	pipfile *pipfile.Pipfile
	opts    Options
	logger  *log.Logger

	defaults map[requirement.Identifier]*requirement.Requirement
	develop  map[requirement.Identifier]*requirement.Requirement

	mu    sync.Mutex
	stage Stage
}

// New creates a Locker for p.
func New(p *pipfile.Pipfile, opts Options) *Locker {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Engine == nil {
		opts.Engine = &resolvelib.Resolver{MaxRounds: resolvelib.DefaultMaxRounds, Logger: logger}
	}
	if opts.Reporter == nil {
		opts.Reporter = resolvelib.NoopReporter{}
	}
	if opts.Hashes == nil {
		opts.Hashes = cache.NewHashCache(cache.NewMemoryCache(), nil)
	}
	po := opts.Provider
	if len(po.Sources) == 0 {
		po.Sources = p.Sources
	}
	if po.Environment.PythonVersion == "" {
		po.Environment.PythonVersion = p.Requires.Python()
	}
	po.AllowPrereleases = po.AllowPrereleases || p.AllowPrereleases
	if po.Logger == nil {
		po.Logger = logger
	}
	opts.Provider = po.WithDefaults()

	return &Locker{
		pipfile:  p,
		opts:     opts,
		logger:   logger,
		defaults: byIdentifier(p.Requirements(false)),
		develop:  byIdentifier(p.Requirements(true)),
	}
}

func byIdentifier(reqs []*requirement.Requirement) map[requirement.Identifier]*requirement.Requirement {
	out := make(map[requirement.Identifier]*requirement.Requirement, len(reqs))
	for _, r := range reqs {
		out[r.Identify()] = r
	}
	return out
}

// Stage returns the current stage.
func (l *Locker) Stage() Stage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stage
}

func (l *Locker) setStage(s Stage) {
	l.mu.Lock()
	l.stage = s
	l.mu.Unlock()
}

// Requirements returns the merged requirement set: develop first, then
// default, a default entry replacing a develop entry of the same
// identifier. The result is ordered by identifier.
func (l *Locker) Requirements() []*requirement.Requirement {
	merged := make(map[requirement.Identifier]*requirement.Requirement, len(l.defaults)+len(l.develop))
	for id, r := range l.develop {
		merged[id] = r
	}
	for id, r := range l.defaults {
		merged[id] = r
	}
	out := make([]*requirement.Requirement, 0, len(merged))
	for _, id := range requirement.Keys(merged) {
		out = append(out, merged[id])
	}
	return out
}

// runStage moves to s, runs fn and reports the stage to the lock hooks.
func (l *Locker) runStage(ctx context.Context, s Stage, elapsed *time.Duration, fn func() error) error {
	l.setStage(s)
	hooks := observability.Lock()
	hooks.OnStageStart(ctx, s.String())
	start := time.Now()
	err := fn()
	*elapsed = time.Since(start)
	hooks.OnStageComplete(ctx, s.String(), *elapsed, err)
	if err != nil {
		l.setStage(Failed)
		l.logger.Debug("lock stage failed", "stage", s, "err", err)
	}
	return err
}

// Lock runs every stage and returns the new lock file.
func (l *Locker) Lock(ctx context.Context) (*Result, error) {
	if st := l.Stage(); st != Idle {
		return nil, perrors.New(perrors.ErrCodeInternal, "locker already used (stage %s)", st)
	}
	prov, err := l.provider()
	if err != nil {
		l.setStage(Failed)
		return nil, err
	}
	res := &Result{}

	if err := l.runStage(ctx, Resolving, &res.Stats.ResolveTime, func() error {
		st, err := l.opts.Engine.Resolve(ctx, prov, l.opts.Reporter, l.Requirements())
		if err != nil {
			return resolveError(err)
		}
		res.State = st
		return nil
	}); err != nil {
		return nil, err
	}
	res.Stats.Packages = len(res.State.Mapping)
	l.logger.Info("resolved dependencies", "packages", res.Stats.Packages, "duration", res.Stats.ResolveTime)

	_ = l.runStage(ctx, Tracing, &res.Stats.TraceTime, func() error {
		res.Traces = trace.Trace(res.State.Graph)
		return nil
	})

	if err := l.runStage(ctx, Hashing, &res.Stats.HashTime, func() error {
		return l.collectHashes(ctx, prov, res.State.Mapping)
	}); err != nil {
		return nil, err
	}
	l.logger.Info("collected hashes", "duration", res.Stats.HashTime)

	_ = l.runStage(ctx, Propagating, &res.Stats.PropagateTime, func() error {
		deps := prov.DependenciesFor(res.State.Mapping)
		res.Unresolved = metadata.PropagateWithLogger(res.State.Mapping, res.Traces, deps, l.logger)
		return nil
	})
	if len(res.Unresolved) > 0 {
		l.logger.Debug("markers not derived", "packages", res.Unresolved)
	}

	res.Lockfile = l.render(res.State, res.Traces)
	l.setStage(Done)
	return res, nil
}

// provider builds the candidate provider for the configured mode.
func (l *Locker) provider() (lockProvider, error) {
	reqs := l.Requirements()
	switch l.opts.Mode {
	case Basic:
		return provider.New(reqs, l.opts.Provider), nil
	case PinReuse, EagerUpgrade:
	default:
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "unknown lock mode %d", l.opts.Mode)
	}
	pins, err := l.opts.Previous.Pins()
	if err != nil {
		return nil, err
	}
	if l.opts.Mode == PinReuse {
		return provider.NewPinReuse(reqs, pins, l.opts.Provider), nil
	}
	return provider.NewEagerUpgrade(upgradeIdentifiers(l.opts.Upgrade, pins), reqs, pins, l.opts.Provider), nil
}

// upgradeIdentifiers maps package names to every pinned identifier of
// that package, extras included.
func upgradeIdentifiers(names []string, pins map[requirement.Identifier]*requirement.Requirement) []requirement.Identifier {
	var out []requirement.Identifier
	for _, n := range names {
		name := requirement.New(n, "").Name
		out = append(out, name)
		for id := range pins {
			if pinName, _ := requirement.SplitIdentifier(id); pinName == name && id != name {
				out = append(out, id)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// resolveError turns an engine failure into a coded error listing the
// conflicting requirements.
func resolveError(err error) error {
	var impossible *resolvelib.ResolutionImpossible
	switch {
	case errors.As(err, &impossible):
		e := perrors.Wrap(perrors.ErrCodeUnresolvable, err, "cannot find a set of versions that satisfies every requirement")
		for _, c := range impossible.Causes {
			e.WithDetails(describeCause(c))
		}
		return e
	case errors.Is(err, resolvelib.ErrResolutionTooDeep):
		return perrors.Wrap(perrors.ErrCodeUnresolvable, err, "resolution did not finish")
	case perrors.GetCode(err) != "", errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return perrors.Wrap(perrors.ErrCodeInternal, err, "resolution failed")
}

func describeCause(c resolvelib.RequirementInformation) string {
	if c.Parent == nil {
		return c.Requirement.Line() + " (from Pipfile)"
	}
	return fmt.Sprintf("%s (from %s)", c.Requirement.Line(), c.Parent.Line())
}

// collectHashes sets the Hashes of every named pinned candidate from all
// artifacts of its version, regardless of platform.
func (l *Locker) collectHashes(ctx context.Context, prov lockProvider, mapping map[requirement.Identifier]*resolvelib.Candidate) error {
	seen := map[string][]string{}
	for _, id := range requirement.Keys(mapping) {
		c := mapping[id]
		if !c.IsNamed() || c.Editable || !c.IsPinned() {
			continue
		}
		key := c.Name + "==" + c.Version() + "@" + c.Index
		if hashes, ok := seen[key]; ok {
			c.Hashes = slices.Clone(hashes)
			continue
		}
		files, err := prov.Artifacts(ctx, c, false)
		if err != nil {
			return perrors.Wrap(perrors.ErrCodeNetwork, err, "list artifacts of %s", c.Line())
		}
		var hashes []string
		for _, f := range files {
			h, err := l.hash(ctx, f)
			if err != nil {
				return err
			}
			hashes = append(hashes, h)
		}
		slices.Sort(hashes)
		hashes = slices.Compact(hashes)
		c.Hashes = hashes
		seen[key] = hashes
		l.logger.Debug("hashed artifacts", "package", id, "files", len(files))
	}
	return nil
}

func (l *Locker) hash(ctx context.Context, f pypi.File) (string, error) {
	link := f.URL
	declared := f.Hashes["sha256"]
	if declared != "" && !strings.Contains(link, "#") {
		link += "#sha256=" + declared
	}
	h, err := l.opts.Hashes.GetHash(ctx, link)
	if err != nil {
		return "", perrors.Wrap(perrors.ErrCodeNetwork, err, "hash %s", f.Filename)
	}
	if declared != "" && h != "sha256:"+declared {
		return "", perrors.Wrap(perrors.ErrCodeNetwork, ErrHashMismatch, "%s: index declares sha256:%s, got %s", f.Filename, declared, h)
	}
	return h, nil
}

// render builds the lock file sections from the resolved state.
func (l *Locker) render(st *resolvelib.State, traces map[string][]trace.Path) *lockfile.Lockfile {
	lf := lockfile.New(l.pipfile)
	lf.Default = sectionEntries(st, traces, l.defaults)
	lf.Develop = sectionEntries(st, traces, l.develop)
	return lf
}

// sectionEntries selects the candidates required by a section directly or
// through one of its requirements. Identifiers of the same package merge
// into one entry keyed by package name.
func sectionEntries(st *resolvelib.State, traces map[string][]trace.Path, section map[requirement.Identifier]*requirement.Requirement) map[string]requirement.Entry {
	out := map[string]requirement.Entry{}
	if len(section) == 0 {
		return out
	}
	tops := make(map[string]bool, len(section))
	for id := range section {
		tops[id] = true
	}
	for _, id := range requirement.Keys(st.Mapping) {
		if !tops[id] && !trace.EntersThrough(traces[id], tops) {
			continue
		}
		c := st.Mapping[id]
		entry := c.Entry()
		if prev, ok := out[c.Name]; ok {
			entry = mergeEntries(prev, entry)
		}
		out[c.Name] = entry
	}
	return out
}

func mergeEntries(a, b requirement.Entry) requirement.Entry {
	extras := append(slices.Clone(a.Extras), b.Extras...)
	slices.Sort(extras)
	a.Extras = slices.Compact(extras)
	if len(a.Extras) == 0 {
		a.Extras = nil
	}
	a.Markers = metadata.Or(a.Markers, b.Markers)
	hashes := append(slices.Clone(a.Hashes), b.Hashes...)
	slices.Sort(hashes)
	a.Hashes = slices.Compact(hashes)
	a.Editable = a.Editable || b.Editable
	return a
}
