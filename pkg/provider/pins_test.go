package provider

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/pylock/pkg/integrations/pypi/pypitest"
	"github.com/matzehuels/pylock/pkg/requirement"
	"github.com/matzehuels/pylock/pkg/resolvelib"
)

func pinsIndex() *pypitest.Index {
	return pypitest.New().
		Add("a", "1.0", "b").
		Add("a", "2.0", "b").
		Add("b", "1.0").
		Add("b", "2.0").
		Add("c", "1.0").
		Add("c", "2.0")
}

func lockPins(t *testing.T, lines ...string) map[requirement.Identifier]*requirement.Requirement {
	out := map[requirement.Identifier]*requirement.Requirement{}
	for _, l := range lines {
		r := parse(t, l)
		r.Hashes = []string{"sha256:00"}
		out[r.Identify()] = r
	}
	return out
}

func TestPinReuseFindMatches(t *testing.T) {
	f := newFixture(t, pinsIndex())
	p := NewPinReuse(nil, lockPins(t, "a==1.0", "c==3.0"), f.options(t))
	ctx := context.Background()

	tests := []struct {
		line string
		want []string
	}{
		{"a", []string{"2.0", "1.0"}},
		{"a>=2", []string{"2.0"}},
		{"b", []string{"1.0", "2.0"}},
		{"c", []string{"1.0", "2.0"}}, // pin no longer published
	}
	for _, tt := range tests {
		got, err := p.FindMatches(ctx, parse(t, tt.line))
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(tt.want, versions(got)); diff != "" {
			t.Errorf("FindMatches(%q) mismatch (-want +got):\n%s", tt.line, diff)
		}
	}

	first, _ := p.FindMatches(ctx, parse(t, "a"))
	again, _ := p.FindMatches(ctx, parse(t, "a"))
	pin := first[len(first)-1]
	if pin != again[len(again)-1] {
		t.Error("pin candidate is not stable across calls")
	}
	if pin.Hashes != nil || pin.Markers != "" {
		t.Errorf("pin candidate carries lock data: %+v", pin)
	}
}

func resolve(t *testing.T, p resolvelib.Provider, lines ...string) map[string]string {
	t.Helper()
	var reqs []*requirement.Requirement
	for _, l := range lines {
		reqs = append(reqs, parse(t, l))
	}
	state, err := resolvelib.NewResolver().Resolve(context.Background(), p, nil, reqs)
	if err != nil {
		t.Fatal(err)
	}
	out := map[string]string{}
	for id, c := range state.Mapping {
		out[id] = c.Version()
	}
	return out
}

func TestPinReuseResolve(t *testing.T) {
	f := newFixture(t, pinsIndex())
	pins := lockPins(t, "a==1.0", "b==1.0", "c==1.0")
	got := resolve(t, NewPinReuse(nil, pins, f.options(t)), "a", "c")
	want := map[string]string{"a": "1.0", "b": "1.0", "c": "1.0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pins mismatch (-want +got):\n%s", diff)
	}
}

func TestEagerUpgradeResolve(t *testing.T) {
	f := newFixture(t, pinsIndex())
	pins := lockPins(t, "a==1.0", "b==1.0", "c==1.0")
	p := NewEagerUpgrade([]requirement.Identifier{"a"}, nil, pins, f.options(t))
	got := resolve(t, p, "a", "c")
	want := map[string]string{"a": "2.0", "b": "2.0", "c": "1.0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pins mismatch (-want +got):\n%s", diff)
	}
	if !p.Tracked("b") || p.Tracked("c") {
		t.Error("dependencies of a tracked package must become tracked")
	}
	if _, ok := pins["a"]; !ok {
		t.Error("NewEagerUpgrade modified the caller's pins")
	}
}

func TestEagerUpgradePreference(t *testing.T) {
	f := newFixture(t, pinsIndex())
	p := NewEagerUpgrade([]requirement.Identifier{"a"}, nil, nil, f.options(t))
	if got := p.GetPreference("a", nil, nil); got != -1 {
		t.Errorf("GetPreference(tracked) = %d, want -1", got)
	}
}
