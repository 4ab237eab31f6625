package resolvelib

import (
	"context"
	"errors"
	"maps"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/pylock/pkg/dag"
	"github.com/matzehuels/pylock/pkg/requirement"
)

// stubProvider serves an in-memory index: name -> version -> dependency lines.
type stubProvider struct {
	index   map[string]map[string][]string
	depErr  error
	fetched []string
}

func (p *stubProvider) Identify(r *requirement.Requirement) requirement.Identifier {
	return r.Identify()
}

func (p *stubProvider) GetPreference(_ requirement.Identifier, candidates []*Candidate, _ []RequirementInformation) int {
	return len(candidates)
}

func (p *stubProvider) FindMatches(_ context.Context, r *requirement.Requirement) ([]*Candidate, error) {
	versions := slices.Collect(maps.Keys(p.index[r.Name]))
	requirement.SortVersions(versions)
	var out []*Candidate
	for _, v := range r.Filter(versions, false) {
		out = append(out, r.Pin(v))
	}
	return out, nil
}

func (p *stubProvider) IsSatisfiedBy(r *requirement.Requirement, c *Candidate) bool {
	if r.Specifier == "" {
		return true
	}
	ok, err := r.Contains(c.Version(), false)
	return err == nil && ok
}

func (p *stubProvider) GetDependencies(_ context.Context, c *Candidate) ([]*requirement.Requirement, error) {
	if p.depErr != nil {
		return nil, p.depErr
	}
	p.fetched = append(p.fetched, c.Line())
	var out []*requirement.Requirement
	for _, line := range p.index[c.Name][c.Version()] {
		r, err := requirement.ParseLine(line)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func reqs(t *testing.T, lines ...string) []*requirement.Requirement {
	t.Helper()
	var out []*requirement.Requirement
	for _, l := range lines {
		r, err := requirement.ParseLine(l)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, r)
	}
	return out
}

func pins(s *State) map[string]string {
	out := map[string]string{}
	for id, c := range s.Mapping {
		out[id] = c.Version()
	}
	return out
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		index map[string]map[string][]string
		reqs  []string
		want  map[string]string
		edges []dag.Edge
	}{
		{
			name: "latest versions",
			index: map[string]map[string][]string{
				"a": {"1.0": nil, "2.0": {"b>=1"}},
				"b": {"0.5": nil, "1.0": nil, "1.1": nil},
			},
			reqs:  []string{"a"},
			want:  map[string]string{"a": "2.0", "b": "1.1"},
			edges: []dag.Edge{{From: dag.Root, To: "a"}, {From: "a", To: "b"}},
		},
		{
			name: "diamond",
			index: map[string]map[string][]string{
				"a": {"1.0": {"c"}},
				"b": {"1.0": {"c<2"}},
				"c": {"1.0": {"d"}, "2.0": {"d"}},
				"d": {"1.0": nil},
			},
			reqs: []string{"a", "b"},
			want: map[string]string{"a": "1.0", "b": "1.0", "c": "1.0", "d": "1.0"},
			edges: []dag.Edge{
				{From: dag.Root, To: "a"}, {From: dag.Root, To: "b"},
				{From: "a", To: "c"}, {From: "b", To: "c"}, {From: "c", To: "d"},
			},
		},
		{
			name: "backtracks over an incompatible pin",
			index: map[string]map[string][]string{
				"a": {"1.0": {"c==1.0"}, "2.0": {"c==2.0"}},
				"b": {"1.0": {"c==1.0"}, "2.0": {"c==1.0"}},
				"c": {"1.0": nil, "2.0": nil},
			},
			reqs: []string{"a", "b"},
			want: map[string]string{"a": "1.0", "b": "2.0", "c": "1.0"},
		},
		{
			name: "prunes dependencies of replaced pins",
			index: map[string]map[string][]string{
				"a": {"1.0": nil, "2.0": {"x"}},
				"b": {"1.0": nil, "2.0": {"a==1.0"}},
				"x": {"1.0": nil},
			},
			reqs: []string{"a", "b"},
			want: map[string]string{"a": "1.0", "b": "2.0"},
			edges: []dag.Edge{
				{From: dag.Root, To: "a"}, {From: dag.Root, To: "b"}, {From: "b", To: "a"},
			},
		},
		{
			name: "extras are distinct identifiers",
			index: map[string]map[string][]string{
				"a": {"1.0": {"b[fast]"}},
				"b": {"1.0": nil},
			},
			reqs: []string{"a", "b"},
			want: map[string]string{"a": "1.0", "b": "1.0", "b[fast]": "1.0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubProvider{index: tt.index}
			state, err := NewResolver().Resolve(context.Background(), p, nil, reqs(t, tt.reqs...))
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, pins(state)); diff != "" {
				t.Errorf("pins mismatch (-want +got):\n%s", diff)
			}
			if tt.edges != nil {
				if diff := cmp.Diff(tt.edges, state.Graph.Edges()); diff != "" {
					t.Errorf("edges mismatch (-want +got):\n%s", diff)
				}
			}
			if err := state.Graph.Validate(); err != nil {
				t.Errorf("graph: %v", err)
			}
		})
	}
}

func TestResolveImpossible(t *testing.T) {
	tests := []struct {
		name      string
		index     map[string]map[string][]string
		reqs      []string
		wantCause string
	}{
		{
			name:      "no matching version",
			index:     map[string]map[string][]string{"a": {"1.0": nil}},
			reqs:      []string{"a==3.0"},
			wantCause: "a==3.0",
		},
		{
			name: "conflicting dependencies",
			index: map[string]map[string][]string{
				"a": {"1.0": {"c==1.0"}},
				"b": {"1.0": {"c==2.0"}},
				"c": {"1.0": nil, "2.0": nil},
			},
			reqs:      []string{"a", "b"},
			wantCause: "c==2.0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubProvider{index: tt.index}
			_, err := NewResolver().Resolve(context.Background(), p, nil, reqs(t, tt.reqs...))
			if !errors.Is(err, ErrResolutionImpossible) {
				t.Fatalf("Resolve() error = %v, want ErrResolutionImpossible", err)
			}
			var impossible *ResolutionImpossible
			if !errors.As(err, &impossible) {
				t.Fatal("error is not *ResolutionImpossible")
			}
			found := false
			for _, c := range impossible.Causes {
				if c.Requirement.Line() == tt.wantCause {
					found = true
				}
			}
			if !found {
				t.Errorf("causes %v do not mention %q", err, tt.wantCause)
			}
		})
	}
}

func TestResolveProviderError(t *testing.T) {
	boom := errors.New("index down")
	p := &stubProvider{index: map[string]map[string][]string{"a": {"1.0": nil}}, depErr: boom}
	_, err := NewResolver().Resolve(context.Background(), p, nil, reqs(t, "a"))
	if !errors.Is(err, boom) {
		t.Errorf("Resolve() error = %v, want %v", err, boom)
	}
}

func TestResolveTooDeep(t *testing.T) {
	p := &stubProvider{index: map[string]map[string][]string{
		"a": {"1.0": {"b"}},
		"b": {"1.0": nil},
	}}
	r := &Resolver{MaxRounds: 1}
	_, err := r.Resolve(context.Background(), p, nil, reqs(t, "a"))
	if !errors.Is(err, ErrResolutionTooDeep) {
		t.Errorf("Resolve() error = %v, want ErrResolutionTooDeep", err)
	}
}

func TestResolveCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &stubProvider{index: map[string]map[string][]string{"a": {"1.0": nil}}}
	_, err := NewResolver().Resolve(ctx, p, nil, reqs(t, "a"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
}

type countingReporter struct {
	NoopReporter
	pins, backtracks, ended int
}

func (r *countingReporter) Pinning(*Candidate)      { r.pins++ }
func (r *countingReporter) Backtracking(*Candidate) { r.backtracks++ }
func (r *countingReporter) Ending(*State)           { r.ended++ }

func TestReporter(t *testing.T) {
	p := &stubProvider{index: map[string]map[string][]string{
		"a": {"1.0": {"c==1.0"}, "2.0": {"c==2.0"}},
		"b": {"1.0": {"c==1.0"}, "2.0": {"c==1.0"}},
		"c": {"1.0": nil, "2.0": nil},
	}}
	rep := &countingReporter{}
	if _, err := NewResolver().Resolve(context.Background(), p, rep, reqs(t, "a", "b")); err != nil {
		t.Fatal(err)
	}
	if rep.ended != 1 || rep.backtracks == 0 || rep.pins < 3 {
		t.Errorf("reporter = %+v", rep)
	}
}

func TestStateInformation(t *testing.T) {
	p := &stubProvider{index: map[string]map[string][]string{
		"a": {"1.0": {"b"}},
		"b": {"1.0": nil},
	}}
	state, err := NewResolver().Resolve(context.Background(), p, nil, reqs(t, "a"))
	if err != nil {
		t.Fatal(err)
	}
	info := state.Information("b")
	if len(info) != 1 || info[0].Parent == nil || info[0].Parent.Name != "a" {
		t.Errorf("Information(b) = %+v", info)
	}
}
