package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pylock/pkg/builder"
	"github.com/matzehuels/pylock/pkg/cache"
	"github.com/matzehuels/pylock/pkg/integrations/pypi"
	"github.com/matzehuels/pylock/pkg/lock"
	"github.com/matzehuels/pylock/pkg/lockfile"
	"github.com/matzehuels/pylock/pkg/pipfile"
	"github.com/matzehuels/pylock/pkg/provider"
)

// indexCacheTTL is how long index responses are reused.
const indexCacheTTL = 24 * time.Hour

// backends are the caches and clients one lock works with.
type backends struct {
	http     cache.Cache
	hashes   *cache.HashCache
	depcache *cache.DependencyCache
	index    *pypi.Client
	python   string
}

// pythonVersion returns the target interpreter: $PYLOCK_PYTHON_VERSION,
// else the Pipfile's requirement. Empty means every version.
func pythonVersion(p *pipfile.Pipfile) string {
	if v := os.Getenv(envPythonVersion); v != "" {
		return v
	}
	return p.Requires.Python()
}

// openBackends opens the caches selected by the environment. The HTTP
// cache may live in a shared Redis or MongoDB backend; hashes and the
// dependency cache stay on local disk.
func (c *CLI) openBackends(ctx context.Context, p *pipfile.Pipfile, refresh bool) (*backends, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, fmt.Errorf("get cache dir: %w", err)
	}
	b := &backends{python: pythonVersion(p)}

	backend := os.Getenv(envCacheBackend)
	if refresh {
		backend = cache.BackendNull
	}
	b.http, err = cache.Open(ctx, cache.Options{
		Backend:  backend,
		Dir:      filepath.Join(dir, "http"),
		RedisURL: os.Getenv(envRedisURL),
		MongoURI: os.Getenv(envMongoURI),
		Prefix:   appName + ":",
	})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	b.index = pypi.NewClient(b.http, indexCacheTTL, pypi.TrustedHosts(p.Sources)...)

	hashes, err := cache.NewFileCache(filepath.Join(dir, cache.HashCacheDir))
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("open hash cache: %w", err)
	}
	b.hashes = cache.NewHashCache(hashes, b.index)

	if !envBool(envNoDepcache) {
		doc := cache.FileDocument{Path: cache.DependencyCacheFile(dir, depcacheVersion(b.python))}
		b.depcache = cache.NewDependencyCache(doc, c.Logger)
	}
	return b, nil
}

func depcacheVersion(python string) string {
	if python == "" || python == provider.AllPythons {
		return "all"
	}
	return python
}

// Close releases the HTTP cache backend.
func (b *backends) Close() error {
	if b.http == nil {
		return nil
	}
	return b.http.Close()
}

// lockOptions configures a Locker for the project.
func (b *backends) lockOptions(logger *log.Logger, mode lock.Mode, previous *lockfile.Lockfile, upgrade []string) lock.Options {
	return lock.Options{
		Mode:     mode,
		Previous: previous,
		Upgrade:  upgrade,
		Provider: provider.Options{
			Environment:     provider.Environment{PythonVersion: b.python},
			Index:           b.index,
			Builder:         &builder.PipBuilder{Logger: logger},
			DependencyCache: b.depcache,
			Logger:          logger,
		},
		Hashes: b.hashes,
		Logger: logger,
	}
}

// resolveProject resolves the project and replaces its lock file in
// memory. Nothing is written to disk.
func (c *CLI) resolveProject(ctx context.Context, proj *project, mode lock.Mode, upgrade []string, refresh bool) (*lock.Result, error) {
	logger := loggerFromContext(ctx)
	b, err := c.openBackends(ctx, proj.pipfile, refresh)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Debug("close cache", "err", err)
		}
	}()

	opts := b.lockOptions(logger, mode, proj.lockfile, upgrade)
	spinner := newSpinnerWithContext(ctx, "Resolving dependencies...")
	opts.Reporter = &spinnerReporter{spinner: spinner}
	prog := newProgress(logger)

	spinner.Start()
	res, err := lock.New(proj.pipfile, opts).Lock(ctx)
	spinner.Stop()
	if err != nil {
		return nil, err
	}
	prog.done("Locked", "packages", res.Stats.Packages)
	prog.stages(res.Stats)

	for _, id := range res.Unresolved {
		printWarning("markers of %s could not be derived; it is locked unconditionally", id)
	}
	proj.lockfile = res.Lockfile
	return res, nil
}
