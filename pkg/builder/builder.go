// Package builder turns requirements into artifacts whose metadata can be
// read: built wheels, or source distributions when building fails.
//
// [ArtifactBuilder] is the single seam between dependency discovery and
// the Python packaging toolchain. [PipBuilder] shells out to
// "python -m pip wheel"; tests substitute their own builder.
//
// [ReadMetadata] extracts the requirement lines from the resulting file:
// METADATA for wheels, PKG-INFO for sdists, and the requires.txt of the
// matching *.egg-info directory for legacy sdists whose PKG-INFO lists no
// dependencies.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/pylock/pkg/integrations/pypi"
	"github.com/matzehuels/pylock/pkg/requirement"
)

// ErrNoArtifact is returned when a build finishes without producing a file.
var ErrNoArtifact = errors.New("no artifact produced")

// ArtifactBuilder produces a wheel (or, failing that, an sdist) for a
// pinned requirement and returns its path.
type ArtifactBuilder interface {
	BuildWheel(ctx context.Context, req *requirement.Requirement, sources []pypi.Source) (string, error)
}

// BuilderFunc adapts a function to [ArtifactBuilder].
type BuilderFunc func(ctx context.Context, req *requirement.Requirement, sources []pypi.Source) (string, error)

func (f BuilderFunc) BuildWheel(ctx context.Context, req *requirement.Requirement, sources []pypi.Source) (string, error) {
	return f(ctx, req, sources)
}

// PipBuilder builds wheels with pip in ephemeral directories below Dir.
type PipBuilder struct {
	// Python is the interpreter; empty means "python3".
	Python string
	// Dir holds the build directories; empty means the system temp dir.
	Dir    string
	Logger *log.Logger
}

// BuildWheel runs "pip wheel --no-deps" for req. If building fails, the
// source distribution is downloaded instead so its metadata can still be
// read. The returned file lives in a fresh directory the caller may
// remove with [Cleanup].
func (b *PipBuilder) BuildWheel(ctx context.Context, req *requirement.Requirement, sources []pypi.Source) (string, error) {
	logger := b.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	base := b.Dir
	if base == "" {
		base = os.TempDir()
	}
	id := uuid.NewString()
	dir := filepath.Join(base, "pylock-build-"+id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	target := pipTarget(req)
	args := append([]string{"-m", "pip", "wheel", "--no-deps", "--disable-pip-version-check", "--wheel-dir", dir},
		indexArgs(sources)...)
	logger.Debug("building wheel", "requirement", target, "build", id)
	out, buildErr := b.run(ctx, append(args, target)...)
	if buildErr == nil {
		if path, err := findArtifact(dir, ".whl"); err == nil {
			return path, nil
		}
	}
	logger.Debug("wheel build failed, downloading sdist", "requirement", target, "output", string(out))

	if req.IsNamed() {
		args := append([]string{"-m", "pip", "download", "--no-deps", "--no-binary", ":all:",
			"--disable-pip-version-check", "--dest", dir}, indexArgs(sources)...)
		if _, err := b.run(ctx, append(args, target)...); err == nil {
			if path, err := findArtifact(dir, ".tar.gz", ".zip", ".tgz"); err == nil {
				return path, nil
			}
		}
	}
	os.RemoveAll(dir)
	if buildErr == nil {
		buildErr = ErrNoArtifact
	}
	return "", fmt.Errorf("build %s: %w: %s", target, buildErr, strings.TrimSpace(string(out)))
}

func (b *PipBuilder) run(ctx context.Context, args ...string) ([]byte, error) {
	python := b.Python
	if python == "" {
		python = "python3"
	}
	cmd := exec.CommandContext(ctx, python, args...)
	cmd.Env = append(os.Environ(), "PIP_NO_INPUT=1")
	return cmd.CombinedOutput()
}

// Cleanup removes the build directory of an artifact returned by
// [PipBuilder.BuildWheel].
func Cleanup(artifact string) error {
	dir := filepath.Dir(artifact)
	if !strings.HasPrefix(filepath.Base(dir), "pylock-build-") {
		return nil
	}
	return os.RemoveAll(dir)
}

// pipTarget is the requirement as pip understands it, without markers.
func pipTarget(req *requirement.Requirement) string {
	if req.Editable && req.Path != "" && req.VCS == "" {
		return req.Path
	}
	r := req.Clone()
	r.Markers = ""
	r.Editable = false
	return r.Line()
}

func indexArgs(sources []pypi.Source) []string {
	var args []string
	for i, s := range sources {
		if i == 0 {
			args = append(args, "--index-url", s.URL)
		} else {
			args = append(args, "--extra-index-url", s.URL)
		}
		if !s.VerifySSL {
			if h := s.Host(); h != "" {
				args = append(args, "--trusted-host", h)
			}
		}
	}
	return args
}

func findArtifact(dir string, exts ...string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		for _, ext := range exts {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
				return filepath.Join(dir, e.Name()), nil
			}
		}
	}
	return "", ErrNoArtifact
}
