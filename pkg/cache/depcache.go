package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pylock/pkg/markers"
	"github.com/matzehuels/pylock/pkg/observability"
	"github.com/matzehuels/pylock/pkg/requirement"
)

const depcacheFormat = 1

// DependencyCacheFile returns the path of the dependency cache for a target
// Python version ("3.11") inside dir.
func DependencyCacheFile(dir, pythonVersion string) string {
	return filepath.Join(dir, "depcache-py"+pythonVersion+".json")
}

// DependencyCache maps exactly pinned requirements to the requirement lines
// of their dependencies. It is loaded lazily on first use and written back
// after every mutation.
type DependencyCache struct {
	doc    Document
	logger *log.Logger

	mu   sync.Mutex
	deps map[string]map[string][]string
}

type depcacheDoc struct {
	Format       int                            `json:"__format__"`
	Dependencies map[string]map[string][]string `json:"dependencies"`
}

// NewDependencyCache creates a dependency cache stored in doc. A nil
// logger discards output.
func NewDependencyCache(doc Document, logger *log.Logger) *DependencyCache {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &DependencyCache{doc: doc, logger: logger}
}

// DependencyKey returns the cache key of r: its canonical name and its
// version followed by the sorted extras in brackets. ok is false when r is
// not cacheable because it is editable or not pinned with "==".
func DependencyKey(r *requirement.Requirement) (name, versionExtras string, ok bool) {
	v := r.Version()
	if r.Editable || v == "" {
		return "", "", false
	}
	if len(r.Extras) > 0 {
		v += "[" + strings.Join(r.Extras, ",") + "]"
	}
	return r.Name, v, true
}

func (c *DependencyCache) load(ctx context.Context) error {
	if c.deps != nil {
		return nil
	}
	data, ok, err := c.doc.Load(ctx)
	if err != nil {
		return err
	}
	c.deps = make(map[string]map[string][]string)
	if !ok {
		return nil
	}
	var doc depcacheDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		c.logger.Debug("dependency cache is corrupt, starting empty", "err", err)
		observability.Cache().OnCacheEvict(ctx, "depcache")
		return nil
	}
	if doc.Format != depcacheFormat {
		c.logger.Debug("unknown dependency cache format, starting empty", "format", doc.Format)
		observability.Cache().OnCacheEvict(ctx, "depcache")
		return nil
	}
	if doc.Dependencies != nil {
		c.deps = doc.Dependencies
	}
	return nil
}

func (c *DependencyCache) save(ctx context.Context) error {
	data, err := json.Marshal(depcacheDoc{Format: depcacheFormat, Dependencies: c.deps})
	if err != nil {
		return err
	}
	if err := c.doc.Save(ctx, data); err != nil {
		return fmt.Errorf("write dependency cache: %w", err)
	}
	observability.Cache().OnCacheSet(ctx, "depcache", len(data))
	return nil
}

// Get returns the cached dependency lines of r. An entry that names r
// itself or carries an extra marker is stale: it is evicted and reported
// as a miss.
func (c *DependencyCache) Get(ctx context.Context, r *requirement.Requirement) ([]string, bool, error) {
	name, key, ok := DependencyKey(r)
	if !ok {
		return nil, false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, false, err
	}
	lines, ok := c.deps[name][key]
	if !ok {
		observability.Cache().OnCacheMiss(ctx, "depcache")
		return nil, false, nil
	}
	if reason := invalidEntry(name, lines); reason != "" {
		c.logger.Debug("evicting dependency cache entry", "package", name, "version", key, "reason", reason)
		observability.Cache().OnCacheEvict(ctx, "depcache")
		c.remove(name, key)
		return nil, false, c.save(ctx)
	}
	observability.Cache().OnCacheHit(ctx, "depcache")
	return slices.Clone(lines), true, nil
}

func invalidEntry(name string, lines []string) string {
	for _, line := range lines {
		dep, err := requirement.ParseLine(line)
		if err != nil {
			return "unparseable line " + line
		}
		if dep.Name == name {
			return "self-dependency"
		}
		if dep.Markers != "" && markers.ContainsExtra(dep.Markers) {
			return "extra marker in " + line
		}
	}
	return ""
}

// Set stores the dependency lines of r. Requirements that are not
// cacheable are ignored.
func (c *DependencyCache) Set(ctx context.Context, r *requirement.Requirement, lines []string) error {
	name, key, ok := DependencyKey(r)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return err
	}
	if c.deps[name] == nil {
		c.deps[name] = make(map[string][]string)
	}
	c.deps[name][key] = append([]string{}, lines...)
	return c.save(ctx)
}

// Delete removes the entry of r.
func (c *DependencyCache) Delete(ctx context.Context, r *requirement.Requirement) error {
	name, key, ok := DependencyKey(r)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return err
	}
	if _, ok := c.deps[name][key]; !ok {
		return nil
	}
	c.remove(name, key)
	return c.save(ctx)
}

func (c *DependencyCache) remove(name, key string) {
	delete(c.deps[name], key)
	if len(c.deps[name]) == 0 {
		delete(c.deps, name)
	}
}

// Clear empties the cache.
func (c *DependencyCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deps = make(map[string]map[string][]string)
	return c.save(ctx)
}

// ReverseDependencies builds a lookup table from dependency name to the
// names of the given pins that depend on it, using cached entries only.
// The result is partial when some pins are not cached.
func (c *DependencyCache) ReverseDependencies(ctx context.Context, pins []*requirement.Requirement) (map[string][]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, pin := range pins {
		name, key, ok := DependencyKey(pin)
		if !ok {
			continue
		}
		for _, line := range c.deps[name][key] {
			dep, err := requirement.ParseLine(line)
			if err != nil {
				continue
			}
			if !slices.Contains(out[dep.Name], name) {
				out[dep.Name] = append(out[dep.Name], name)
			}
		}
	}
	for _, parents := range out {
		slices.Sort(parents)
	}
	return out, nil
}
