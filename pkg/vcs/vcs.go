// Package vcs pins version control requirements to exact commits.
//
// A requirement such as "git+https://github.com/psf/requests.git@main"
// names a moving ref. Before it becomes a candidate the ref is resolved to
// the commit it currently points at, so the lock file records something
// reproducible.
//
// Git repositories are queried with go-git, which lists remote refs over
// any supported transport without a local clone or a git binary. Mercurial
// refs are resolved with the hg command when it is installed.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// ErrUnsupported is returned for version control systems that cannot be
// pinned.
var ErrUnsupported = errors.New("unsupported version control system")

// ErrRefNotFound is returned when a repository has no such ref.
var ErrRefNotFound = errors.New("ref not found")

// Resolver resolves a ref of a repository to a commit id.
type Resolver interface {
	// Resolve returns the commit ref points at in the repository at url.
	// An empty ref means the default branch.
	Resolve(ctx context.Context, vcs, url, ref string) (string, error)
}

var commitRE = regexp.MustCompile(`^[0-9a-f]{40}$`)

// IsCommit reports whether ref is already a full git commit id.
func IsCommit(ref string) bool { return commitRE.MatchString(ref) }

// Default dispatches to a [GitResolver] for git and an [HgResolver] for
// Mercurial.
type Default struct {
	Git GitResolver
	Hg  HgResolver
}

func (d Default) Resolve(ctx context.Context, vcs, url, ref string) (string, error) {
	switch vcs {
	case "git":
		return d.Git.Resolve(ctx, vcs, url, ref)
	case "hg":
		return d.Hg.Resolve(ctx, vcs, url, ref)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, vcs)
	}
}

// HgResolver resolves Mercurial refs with "hg identify".
type HgResolver struct {
	// Command is the hg executable; empty means "hg" from PATH.
	Command string
}

func (h HgResolver) Resolve(ctx context.Context, _, url, ref string) (string, error) {
	bin := h.Command
	if bin == "" {
		bin = "hg"
	}
	args := []string{"identify", "--debug", "--id"}
	if ref != "" {
		args = append(args, "--rev", ref)
	}
	out, err := exec.CommandContext(ctx, bin, append(args, url)...).Output()
	if err != nil {
		return "", fmt.Errorf("hg identify %s: %w", url, err)
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		return "", fmt.Errorf("%w: %s@%s", ErrRefNotFound, url, ref)
	}
	return id, nil
}
