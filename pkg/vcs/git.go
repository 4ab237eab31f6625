package vcs

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
)

// ListFunc lists the refs advertised by a remote repository.
type ListFunc func(ctx context.Context, url string) ([]*plumbing.Reference, error)

// GitResolver resolves git refs by listing the remote, like
// "git ls-remote".
type GitResolver struct {
	// List overrides how remote refs are listed; nil uses go-git.
	List ListFunc
}

func (g GitResolver) Resolve(ctx context.Context, _, url, ref string) (string, error) {
	if IsCommit(ref) {
		return ref, nil
	}
	list := g.List
	if list == nil {
		list = listRemote
	}
	refs, err := list(ctx, url)
	if err != nil {
		return "", fmt.Errorf("list refs of %s: %w", url, err)
	}
	hash, ok := matchRef(refs, ref)
	if !ok {
		return "", fmt.Errorf("%w: %s@%s", ErrRefNotFound, url, ref)
	}
	return hash, nil
}

func listRemote(ctx context.Context, url string) ([]*plumbing.Reference, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	return remote.ListContext(ctx, &git.ListOptions{PeelingOption: git.AppendPeeled})
}

// matchRef finds the commit of ref among refs. An empty ref selects HEAD.
// Annotated tags resolve to the commit they point at. A unique
// abbreviated commit id matches too.
func matchRef(refs []*plumbing.Reference, ref string) (string, bool) {
	byName := make(map[plumbing.ReferenceName]*plumbing.Reference, len(refs))
	for _, r := range refs {
		byName[r.Name()] = r
	}
	resolve := func(name plumbing.ReferenceName) (string, bool) {
		for range 5 {
			r, ok := byName[name]
			if !ok {
				return "", false
			}
			if r.Type() == plumbing.SymbolicReference {
				name = r.Target()
				continue
			}
			if peeled, ok := byName[name+"^{}"]; ok {
				return peeled.Hash().String(), true
			}
			return r.Hash().String(), true
		}
		return "", false
	}

	if ref == "" {
		return resolve(plumbing.HEAD)
	}
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewTagReferenceName(ref),
		plumbing.NewBranchReferenceName(ref),
		plumbing.ReferenceName(ref),
	} {
		if h, ok := resolve(name); ok {
			return h, true
		}
	}

	if len(ref) >= 7 {
		var found string
		for _, r := range refs {
			if h := r.Hash().String(); r.Type() == plumbing.HashReference && strings.HasPrefix(h, ref) {
				if found != "" && found != h {
					return "", false
				}
				found = h
			}
		}
		return found, found != ""
	}
	return "", false
}
