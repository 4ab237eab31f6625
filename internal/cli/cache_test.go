package cli

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/pylock/pkg/cache"
)

func TestCacheDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		name     string
		override string
		xdg      string
		want     string
	}{
		{"default", "", "", filepath.Join(home, ".cache", "pylock")},
		{"xdg", "", "/tmp/xdg", filepath.Join("/tmp/xdg", "pylock")},
		{"override wins", "/srv/pylock-cache", "/tmp/xdg", "/srv/pylock-cache"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(envCacheDir, tt.override)
			t.Setenv("XDG_CACHE_HOME", tt.xdg)
			got, err := cacheDir()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("cacheDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnvBool(t *testing.T) {
	for value, want := range map[string]bool{"": false, "0": false, "no": false, "1": true, "TRUE": true, "on": true} {
		t.Setenv(envNoDepcache, value)
		if got := envBool(envNoDepcache); got != want {
			t.Errorf("envBool(%q) = %v, want %v", value, got, want)
		}
	}
}

// populate creates a cache directory with one file per cache kind.
func populate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := []string{
		filepath.Join(dir, "http", "ab", "abcdef"),
		filepath.Join(dir, "http", "cd", "cdef01"),
		filepath.Join(dir, cache.HashCacheDir, "12", "123456"),
		cache.DependencyCacheFile(dir, "3.11"),
		cache.DependencyCacheFile(dir, "all"),
	}
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(f, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestCacheTargets(t *testing.T) {
	dir := populate(t)
	rel := func(paths []string) []string {
		out := make([]string, len(paths))
		for i, p := range paths {
			out[i], _ = filepath.Rel(dir, p)
		}
		slices.Sort(out)
		return out
	}

	tests := []struct {
		name               string
		http, hashes, deps bool
		want               []string
	}{
		{"all", false, false, false, []string{"depcache-py3.11.json", "depcache-pyall.json", "hash-cache", "http"}},
		{"http only", true, false, false, []string{"http"}},
		{"hashes and deps", false, true, true, []string{"depcache-py3.11.json", "depcache-pyall.json", "hash-cache"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rel(cacheTargets(dir, tt.http, tt.hashes, tt.deps))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("cacheTargets() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClearPath(t *testing.T) {
	dir := populate(t)

	n, err := clearPath(filepath.Join(dir, "http"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("cleared %d files, want 2", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "http")); !os.IsNotExist(err) {
		t.Error("http directory still exists")
	}

	n, err = clearPath(cache.DependencyCacheFile(dir, "3.11"))
	if err != nil || n != 1 {
		t.Errorf("clear depcache file: n=%d err=%v", n, err)
	}
	if n, err := clearPath(filepath.Join(dir, "missing")); err != nil || n != 0 {
		t.Errorf("clear missing path: n=%d err=%v", n, err)
	}
	if _, err := os.Stat(filepath.Join(dir, cache.HashCacheDir, "12", "123456")); err != nil {
		t.Errorf("hash cache touched: %v", err)
	}
}

func TestCacheCommands(t *testing.T) {
	dir := populate(t)
	t.Setenv(envCacheDir, dir)
	p := &testProject{dir: t.TempDir()}

	out, err := p.run("cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	if out != dir+"\n" {
		t.Errorf("cache path = %q, want %q", out, dir)
	}

	if _, err := p.run("cache", "clear", "--dependencies"); err != nil {
		t.Fatal(err)
	}
	matches, _ := filepath.Glob(cache.DependencyCacheFile(dir, "*"))
	if len(matches) != 0 {
		t.Errorf("dependency caches left: %v", matches)
	}
	if _, err := os.Stat(filepath.Join(dir, "http")); err != nil {
		t.Errorf("http cache removed by --dependencies: %v", err)
	}
}
