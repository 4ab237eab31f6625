package lock

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/pylock/pkg/builder"
	"github.com/matzehuels/pylock/pkg/cache"
	"github.com/matzehuels/pylock/pkg/dag"
	perrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/integrations/pypi"
	"github.com/matzehuels/pylock/pkg/integrations/pypi/pypitest"
	"github.com/matzehuels/pylock/pkg/lockfile"
	"github.com/matzehuels/pylock/pkg/observability"
	"github.com/matzehuels/pylock/pkg/pipfile"
	"github.com/matzehuels/pylock/pkg/provider"
	"github.com/matzehuels/pylock/pkg/requirement"
	"github.com/matzehuels/pylock/pkg/resolvelib"
)

func requestsIndex() *pypitest.Index {
	return pypitest.New().
		Add("requests", "2.19.1",
			"chardet<3.1.0,>=3.0.2",
			"idna<2.8,>=2.5",
			"urllib3<1.24,>=1.21.1",
			"certifi>=2017.4.17",
			`PySocks!=1.5.7,>=1.5.6; extra == "socks"`).
		Add("chardet", "3.0.4").
		Add("idna", "2.7").
		Add("idna", "3.0").
		Add("urllib3", "1.22").
		Add("urllib3", "1.23").
		Add("certifi", "2018.8.24").
		Add("pysocks", "1.6.8").
		Add("six", "1.16.0")
}

type fixture struct {
	ix  *pypitest.Index
	srv *httptest.Server
	src pypi.Source
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ix := requestsIndex()
	srv := httptest.NewServer(ix)
	t.Cleanup(srv.Close)
	return &fixture{ix: ix, srv: srv, src: pypi.Source{Name: "test", URL: srv.URL + "/simple", VerifySSL: true}}
}

func (f *fixture) pipfile(t *testing.T, packages, devPackages []string) *pipfile.Pipfile {
	t.Helper()
	p := pipfile.New("3.11", f.src)
	for _, line := range packages {
		if _, err := p.AddLine(line, false); err != nil {
			t.Fatal(err)
		}
	}
	for _, line := range devPackages {
		if _, err := p.AddLine(line, true); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

// builder downloads the published wheel instead of building one.
func (f *fixture) builder() builder.ArtifactBuilder {
	return builder.BuilderFunc(func(ctx context.Context, req *requirement.Requirement, _ []pypi.Source) (string, error) {
		name := req.Name + "-" + req.Version() + "-py3-none-any.whl"
		resp, err := f.srv.Client().Get(f.srv.URL + "/files/" + name)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", builder.ErrNoArtifact
		}
		dir, err := os.MkdirTemp("", "pylock-build-")
		if err != nil {
			return "", err
		}
		path := filepath.Join(dir, name)
		out, err := os.Create(path)
		if err != nil {
			return "", err
		}
		defer out.Close()
		_, err = io.Copy(out, resp.Body)
		return path, err
	})
}

func (f *fixture) options(mode Mode) Options {
	client := pypi.NewClient(cache.NewMemoryCache(), time.Hour)
	client.Client = client.WithHTTPClient(f.srv.Client())
	return Options{
		Mode: mode,
		Provider: provider.Options{
			Index:   client,
			Builder: f.builder(),
		},
	}
}

func versions(section map[string]requirement.Entry) map[string]string {
	out := map[string]string{}
	for name, e := range section {
		out[name] = e.Version
	}
	return out
}

func TestLockRequests(t *testing.T) {
	f := newFixture(t)
	p := f.pipfile(t, []string{"requests"}, nil)
	l := New(p, f.options(Basic))
	res, err := l.Lock(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if l.Stage() != Done {
		t.Errorf("Stage() = %v, want done", l.Stage())
	}
	want := map[string]string{
		"requests": "==2.19.1",
		"chardet":  "==3.0.4",
		"idna":     "==2.7",
		"urllib3":  "==1.23",
		"certifi":  "==2018.8.24",
	}
	if diff := cmp.Diff(want, versions(res.Lockfile.Default)); diff != "" {
		t.Errorf("default mismatch (-want +got):\n%s", diff)
	}
	for name, e := range res.Lockfile.Default {
		if e.Markers != "" {
			t.Errorf("%s has markers %q", name, e.Markers)
		}
	}
	wantHashes := []string{
		f.ix.Hash("requests-2.19.1-py3-none-any.whl"),
		f.ix.Hash("requests-2.19.1.tar.gz"),
	}
	slices.Sort(wantHashes)
	if diff := cmp.Diff(wantHashes, res.Lockfile.Default["requests"].Hashes); diff != "" {
		t.Errorf("requests hashes mismatch (-want +got):\n%s", diff)
	}
	if len(res.Lockfile.Develop) != 0 {
		t.Errorf("develop = %v, want empty", res.Lockfile.Develop)
	}
	if !res.Lockfile.IsUpToDate(p) {
		t.Error("new lock is stale")
	}
	if res.Stats.Packages != 5 {
		t.Errorf("Stats.Packages = %d", res.Stats.Packages)
	}
}

func TestLockMarkers(t *testing.T) {
	f := newFixture(t)
	p := f.pipfile(t, []string{`requests; os_name == "nt"`, "six"}, nil)
	res, err := New(p, f.options(Basic)).Lock(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"requests", "chardet", "idna", "urllib3", "certifi"} {
		if got := res.Lockfile.Default[name].Markers; got != "os_name == 'nt'" {
			t.Errorf("%s markers = %q, want os_name == 'nt'", name, got)
		}
	}
	if got := res.Lockfile.Default["six"].Markers; got != "" {
		t.Errorf("six markers = %q, want none", got)
	}
}

func TestLockExtras(t *testing.T) {
	f := newFixture(t)
	p := f.pipfile(t, []string{"requests[socks]"}, nil)
	res, err := New(p, f.options(Basic)).Lock(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	req := res.Lockfile.Default["requests"]
	if diff := cmp.Diff([]string{"socks"}, req.Extras); diff != "" {
		t.Errorf("requests extras mismatch (-want +got):\n%s", diff)
	}
	if got := res.Lockfile.Default["pysocks"].Version; got != "==1.6.8" {
		t.Errorf("pysocks = %q", got)
	}
}

func TestLockSections(t *testing.T) {
	f := newFixture(t)
	p := f.pipfile(t, []string{"requests"}, []string{"six", "idna"})
	res, err := New(p, f.options(Basic)).Lock(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]string{"six": "==1.16.0", "idna": "==2.7"}, versions(res.Lockfile.Develop)); diff != "" {
		t.Errorf("develop mismatch (-want +got):\n%s", diff)
	}
	if _, ok := res.Lockfile.Default["six"]; ok {
		t.Error("develop-only package in default")
	}
	if _, ok := res.Lockfile.Default["idna"]; !ok {
		t.Error("idna missing from default")
	}
}

func TestLockDeterministic(t *testing.T) {
	f := newFixture(t)
	var outputs [][]byte
	for range 2 {
		p := f.pipfile(t, []string{"requests", "six"}, nil)
		res, err := New(p, f.options(Basic)).Lock(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		data, err := res.Lockfile.Bytes()
		if err != nil {
			t.Fatal(err)
		}
		outputs = append(outputs, data)
	}
	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Errorf("lock output differs between runs:\n%s\n%s", outputs[0], outputs[1])
	}
}

func TestLockModes(t *testing.T) {
	f := newFixture(t)
	p := f.pipfile(t, []string{"requests", "six"}, nil)
	prev := lockfile.New(p)
	prev.Default["requests"] = requirement.Entry{Version: "==2.19.1"}
	prev.Default["urllib3"] = requirement.Entry{Version: "==1.22"}
	prev.Default["six"] = requirement.Entry{Version: "==1.16.0"}

	tests := []struct {
		mode    Mode
		upgrade []string
		urllib3 string
	}{
		{Basic, nil, "==1.23"},
		{PinReuse, nil, "==1.22"},
		{EagerUpgrade, []string{"requests"}, "==1.23"},
		{EagerUpgrade, []string{"six"}, "==1.22"},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String()+strings.Join(tt.upgrade, ","), func(t *testing.T) {
			opts := f.options(tt.mode)
			opts.Previous = prev
			opts.Upgrade = tt.upgrade
			res, err := New(p, opts).Lock(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if got := res.Lockfile.Default["urllib3"].Version; got != tt.urllib3 {
				t.Errorf("urllib3 = %q, want %q", got, tt.urllib3)
			}
		})
	}
}

func TestLockUnresolvable(t *testing.T) {
	f := newFixture(t)
	p := f.pipfile(t, []string{"requests", "idna>=3"}, nil)
	l := New(p, f.options(Basic))
	_, err := l.Lock(context.Background())
	if perrors.GetCode(err) != perrors.ErrCodeUnresolvable {
		t.Fatalf("Lock() error = %v, want UNRESOLVABLE", err)
	}
	if !errors.Is(err, resolvelib.ErrResolutionImpossible) {
		t.Error("cause is not ResolutionImpossible")
	}
	msg := perrors.UserMessage(err)
	if !strings.Contains(msg, "idna>=3 (from Pipfile)") || !strings.Contains(msg, "(from requests==2.19.1)") {
		t.Errorf("UserMessage() = %q", msg)
	}
	if l.Stage() != Failed {
		t.Errorf("Stage() = %v, want failed", l.Stage())
	}
	if _, err := l.Lock(context.Background()); perrors.GetCode(err) != perrors.ErrCodeInternal {
		t.Errorf("second Lock() error = %v", err)
	}
}

type stubEngine struct {
	state *resolvelib.State
	err   error
}

func (e stubEngine) Resolve(context.Context, resolvelib.Provider, resolvelib.Reporter, []*requirement.Requirement) (*resolvelib.State, error) {
	return e.state, e.err
}

type stageHooks struct {
	observability.NoopLockHooks
	mu     sync.Mutex
	stages []string
}

func (h *stageHooks) OnStageStart(_ context.Context, stage string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stages = append(h.stages, stage)
}

func TestLockStubEngine(t *testing.T) {
	hooks := &stageHooks{}
	observability.SetLockHooks(hooks)
	t.Cleanup(observability.Reset)

	f := newFixture(t)
	p := f.pipfile(t, []string{"six; sys_platform == 'win32'"}, nil)
	g := dag.New()
	g.AddEdge(dag.Root, "six")
	six := requirement.New("six", "==1.16.0")
	opts := f.options(Basic)
	opts.Engine = stubEngine{state: &resolvelib.State{
		Mapping: map[requirement.Identifier]*resolvelib.Candidate{"six": six},
		Graph:   g,
	}}
	res, err := New(p, opts).Lock(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	entry := res.Lockfile.Default["six"]
	if entry.Markers != "sys_platform == 'win32'" || len(entry.Hashes) != 2 {
		t.Errorf("six entry = %+v", entry)
	}
	want := []string{"resolving", "tracing", "hashing", "propagating"}
	if diff := cmp.Diff(want, hooks.stages); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
}

func TestLockEngineErrors(t *testing.T) {
	f := newFixture(t)
	p := f.pipfile(t, []string{"six"}, nil)
	tests := []struct {
		err  error
		code perrors.Code
	}{
		{resolvelib.ErrResolutionTooDeep, perrors.ErrCodeUnresolvable},
		{perrors.New(perrors.ErrCodeNetwork, "offline"), perrors.ErrCodeNetwork},
		{errors.New("boom"), perrors.ErrCodeInternal},
		{context.Canceled, ""},
	}
	for _, tt := range tests {
		opts := f.options(Basic)
		opts.Engine = stubEngine{err: tt.err}
		_, err := New(p, opts).Lock(context.Background())
		if !errors.Is(err, tt.err) || perrors.GetCode(err) != tt.code {
			t.Errorf("Lock() with engine error %v = %v (code %q)", tt.err, err, perrors.GetCode(err))
		}
	}
}

type tamperedOpener struct{}

func (tamperedOpener) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("tampered")), nil
}

func TestLockHashMismatch(t *testing.T) {
	f := newFixture(t)
	p := f.pipfile(t, []string{"six"}, nil)
	opts := f.options(Basic)
	opts.Hashes = cache.NewHashCache(cache.NewMemoryCache(), tamperedOpener{})
	_, err := New(p, opts).Lock(context.Background())
	if !errors.Is(err, ErrHashMismatch) {
		t.Errorf("Lock() error = %v, want ErrHashMismatch", err)
	}
}

func TestUpgradeIdentifiers(t *testing.T) {
	pins := map[requirement.Identifier]*requirement.Requirement{
		"requests":        requirement.New("requests", "==2.19.1"),
		"requests[socks]": requirement.New("requests", "==2.19.1", "socks"),
		"six":             requirement.New("six", "==1.16.0"),
	}
	got := upgradeIdentifiers([]string{"Requests"}, pins)
	if diff := cmp.Diff([]string{"requests", "requests[socks]"}, got); diff != "" {
		t.Errorf("upgradeIdentifiers() mismatch (-want +got):\n%s", diff)
	}
}
