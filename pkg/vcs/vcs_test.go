package vcs

import (
	"context"
	"errors"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
)

const (
	mainSHA   = "1111111111111111111111111111111111111111"
	devSHA    = "2222222222222222222222222222222222222222"
	tagObject = "3333333333333333333333333333333333333333"
	tagCommit = "4444444444444444444444444444444444444444"
	lightTag  = "5555555555555555555555555555555555555555"
)

func fakeRefs() []*plumbing.Reference {
	return []*plumbing.Reference{
		plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main")),
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), plumbing.NewHash(mainSHA)),
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("dev"), plumbing.NewHash(devSHA)),
		plumbing.NewHashReference(plumbing.NewTagReferenceName("v1.0"), plumbing.NewHash(tagObject)),
		plumbing.NewHashReference(plumbing.NewTagReferenceName("v1.0")+"^{}", plumbing.NewHash(tagCommit)),
		plumbing.NewHashReference(plumbing.NewTagReferenceName("v0.9"), plumbing.NewHash(lightTag)),
	}
}

func TestGitResolver(t *testing.T) {
	calls := 0
	g := GitResolver{List: func(context.Context, string) ([]*plumbing.Reference, error) {
		calls++
		return fakeRefs(), nil
	}}

	tests := []struct {
		ref  string
		want string
	}{
		{"", mainSHA},
		{"main", mainSHA},
		{"dev", devSHA},
		{"v1.0", tagCommit},
		{"v0.9", lightTag},
		{"refs/heads/dev", devSHA},
		{"2222222", devSHA},
	}
	for _, tt := range tests {
		got, err := g.Resolve(context.Background(), "git", "https://example.com/repo.git", tt.ref)
		if err != nil {
			t.Errorf("Resolve(%q) error: %v", tt.ref, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %s, want %s", tt.ref, got, tt.want)
		}
	}

	before := calls
	if got, _ := g.Resolve(context.Background(), "git", "x", devSHA); got != devSHA || calls != before {
		t.Error("a full commit id should resolve to itself without listing the remote")
	}

	if _, err := g.Resolve(context.Background(), "git", "x", "nope"); !errors.Is(err, ErrRefNotFound) {
		t.Errorf("unknown ref: got %v, want ErrRefNotFound", err)
	}
}

func TestDefaultUnsupported(t *testing.T) {
	_, err := Default{}.Resolve(context.Background(), "svn", "svn://example.com/repo", "")
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("svn: got %v, want ErrUnsupported", err)
	}
}

func TestIsCommit(t *testing.T) {
	for ref, want := range map[string]bool{
		mainSHA:   true,
		"main":    false,
		"1111111": false,
		"ABCDEF1111111111111111111111111111111111": false,
	} {
		if got := IsCommit(ref); got != want {
			t.Errorf("IsCommit(%q) = %v, want %v", ref, got, want)
		}
	}
}
