package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/pylock/pkg/requirement"
)

func newTestDepcache(t *testing.T, seed string) (*DependencyCache, Document) {
	t.Helper()
	doc := FileDocument{Path: DependencyCacheFile(t.TempDir(), "3.11")}
	if seed != "" {
		if err := doc.Save(context.Background(), []byte(seed)); err != nil {
			t.Fatal(err)
		}
	}
	return NewDependencyCache(doc, nil), doc
}

func TestDependencyCacheFile(t *testing.T) {
	got := DependencyCacheFile("/c", "3.11")
	if want := filepath.Join("/c", "depcache-py3.11.json"); got != want {
		t.Errorf("DependencyCacheFile = %q, want %q", got, want)
	}
}

func TestDependencyKey(t *testing.T) {
	tests := []struct {
		req    *requirement.Requirement
		name   string
		key    string
		wantOK bool
	}{
		{requirement.New("Requests", "==2.19.1"), "requests", "2.19.1", true},
		{requirement.New("requests", "==2.19.1", "socks", "Security"), "requests", "2.19.1[security,socks]", true},
		{requirement.New("requests", ">=2.0"), "", "", false},
		{&requirement.Requirement{Name: "pkg", Specifier: "==1.0", Editable: true}, "", "", false},
	}
	for _, tt := range tests {
		name, key, ok := DependencyKey(tt.req)
		if name != tt.name || key != tt.key || ok != tt.wantOK {
			t.Errorf("DependencyKey(%s) = %q, %q, %v; want %q, %q, %v",
				tt.req, name, key, ok, tt.name, tt.key, tt.wantOK)
		}
	}
}

func TestDependencyCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	dc, doc := newTestDepcache(t, "")
	req := requirement.New("requests", "==2.19.1")
	lines := []string{"chardet<3.1.0,>=3.0.2", "idna<2.8,>=2.5", "urllib3<1.24,>=1.21.1", "certifi>=2017.4.17"}

	if _, ok, _ := dc.Get(ctx, req); ok {
		t.Fatal("empty cache reported a hit")
	}
	if err := dc.Set(ctx, req, lines); err != nil {
		t.Fatal(err)
	}
	// Setting the same entry twice leaves the cache unchanged.
	if err := dc.Set(ctx, req, lines); err != nil {
		t.Fatal(err)
	}

	// A fresh instance reads what the first one wrote.
	fresh := NewDependencyCache(doc, nil)
	got, ok, err := fresh.Get(ctx, req)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if diff := cmp.Diff(lines, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}

	raw, _, _ := doc.Load(ctx)
	var stored map[string]any
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatal(err)
	}
	if stored["__format__"] != float64(1) {
		t.Errorf("__format__ = %v, want 1", stored["__format__"])
	}

	if err := fresh.Delete(ctx, req); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := fresh.Get(ctx, req); ok {
		t.Error("deleted entry still present")
	}
}

func TestDependencyCacheEvictsOneEntry(t *testing.T) {
	ctx := context.Background()
	seed := `{"__format__": 1, "dependencies": {
		"foo": {
			"1.0": ["bar>=1", "baz; extra == 'test'"],
			"2.0": ["bar>=2"]
		},
		"loop": {"1.0": ["loop>=1"]},
		"ok": {"1.0": ["bar"]}
	}}`
	dc, doc := newTestDepcache(t, seed)

	if _, ok, err := dc.Get(ctx, requirement.New("foo", "==1.0")); ok || err != nil {
		t.Fatalf("entry with extra marker: ok=%v err=%v, want eviction", ok, err)
	}
	if _, ok, err := dc.Get(ctx, requirement.New("loop", "==1.0")); ok || err != nil {
		t.Fatalf("self-dependency: ok=%v err=%v, want eviction", ok, err)
	}

	fresh := NewDependencyCache(doc, nil)
	if _, ok, _ := fresh.Get(ctx, requirement.New("foo", "==1.0")); ok {
		t.Error("evicted entry was persisted")
	}
	got, ok, _ := fresh.Get(ctx, requirement.New("foo", "==2.0"))
	if !ok || !cmp.Equal(got, []string{"bar>=2"}) {
		t.Errorf("sibling entry = %v, %v; want kept", got, ok)
	}
	if _, ok, _ := fresh.Get(ctx, requirement.New("ok", "==1.0")); !ok {
		t.Error("unrelated entry was evicted")
	}
}

// flakyDocument fails the first failures loads.
type flakyDocument struct {
	Document
	failures int
}

func (d *flakyDocument) Load(ctx context.Context) ([]byte, bool, error) {
	if d.failures > 0 {
		d.failures--
		return nil, false, errors.New("connection reset")
	}
	return d.Document.Load(ctx)
}

func TestDependencyCacheLoadFailureKeepsEntries(t *testing.T) {
	ctx := context.Background()
	_, file := newTestDepcache(t, `{"__format__": 1, "dependencies": {"foo": {"1.0": ["bar>=1"]}}}`)
	dc := NewDependencyCache(&flakyDocument{Document: file, failures: 1}, nil)

	if _, _, err := dc.Get(ctx, requirement.New("foo", "==1.0")); err == nil {
		t.Fatal("Get: expected load error")
	}
	if err := dc.Set(ctx, requirement.New("baz", "==2.0"), []string{"qux"}); err != nil {
		t.Fatal(err)
	}

	fresh := NewDependencyCache(file, nil)
	for _, r := range []*requirement.Requirement{requirement.New("foo", "==1.0"), requirement.New("baz", "==2.0")} {
		if _, ok, err := fresh.Get(ctx, r); !ok || err != nil {
			t.Errorf("Get(%s) = %v, %v; want persisted", r, ok, err)
		}
	}
}

func TestDependencyCacheFormatMismatch(t *testing.T) {
	ctx := context.Background()
	for name, seed := range map[string]string{
		"old format": `{"__format__": 0, "dependencies": {"foo": {"1.0": ["bar"]}}}`,
		"corrupt":    `{"dependencies": `,
	} {
		t.Run(name, func(t *testing.T) {
			dc, _ := newTestDepcache(t, seed)
			_, ok, err := dc.Get(ctx, requirement.New("foo", "==1.0"))
			if ok || err != nil {
				t.Errorf("Get = %v, %v; want empty cache", ok, err)
			}
		})
	}
}

func TestDependencyCacheClear(t *testing.T) {
	ctx := context.Background()
	dc, doc := newTestDepcache(t, "")
	dc.Set(ctx, requirement.New("foo", "==1.0"), []string{"bar"})
	if err := dc.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := NewDependencyCache(doc, nil).Get(ctx, requirement.New("foo", "==1.0")); ok {
		t.Error("entry survived Clear")
	}
}

func TestReverseDependencies(t *testing.T) {
	ctx := context.Background()
	dc, _ := newTestDepcache(t, "")
	dc.Set(ctx, requirement.New("requests", "==2.19.1"), []string{"idna<2.8,>=2.5", "urllib3<1.24"})
	dc.Set(ctx, requirement.New("httpx", "==0.27.0"), []string{"idna", "certifi"})

	pins := []*requirement.Requirement{
		requirement.New("requests", "==2.19.1"),
		requirement.New("httpx", "==0.27.0"),
		requirement.New("idna", "==2.7"),
	}
	got, err := dc.ReverseDependencies(ctx, pins)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string][]string{
		"idna":    {"httpx", "requests"},
		"urllib3": {"requests"},
		"certifi": {"httpx"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReverseDependencies mismatch (-want +got):\n%s", diff)
	}
}

type countingOpener struct {
	inner Opener
	calls int
}

func (o *countingOpener) Open(ctx context.Context, url string) (r io.ReadCloser, err error) {
	o.calls++
	return o.inner.Open(ctx, url)
}

func TestHashCacheFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pkg-1.0.tar.gz")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	hc := NewHashCache(NewMemoryCache(), nil)
	got, err := hc.GetHash(ctx, "file://"+path)
	if err != nil {
		t.Fatal(err)
	}
	const want = "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got != want {
		t.Errorf("GetHash = %q, want %q", got, want)
	}

	if _, err := hc.GetHash(ctx, "file://"+filepath.Dir(path)); err == nil {
		t.Error("hashing a directory should fail")
	}
}

func TestHashCacheRemote(t *testing.T) {
	ctx := context.Background()
	var encodings []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encodings = append(encodings, r.Header.Get("Accept-Encoding"))
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	mem := NewMemoryCache()
	opener := &countingOpener{inner: httpOpener{client: srv.Client()}}
	hc := NewHashCache(mem, opener)

	withFragment := srv.URL + "/pkg-1.0.tar.gz#sha256=abc"
	for i := 0; i < 2; i++ {
		if _, err := hc.GetHash(ctx, withFragment); err != nil {
			t.Fatal(err)
		}
	}
	if opener.calls != 1 {
		t.Errorf("fragment URL downloaded %d times, want 1", opener.calls)
	}
	if _, ok, _ := mem.Get(ctx, withFragment); !ok {
		t.Error("fragment URL not cached under its full URL")
	}

	bare := srv.URL + "/pkg-1.0.tar.gz"
	for i := 0; i < 2; i++ {
		if _, err := hc.GetHash(ctx, "git+"+bare); err != nil {
			t.Fatal(err)
		}
	}
	if opener.calls != 3 {
		t.Errorf("URL without fragment downloaded %d times in total, want 3", opener.calls)
	}
	if mem.Len() != 1 {
		t.Errorf("cache holds %d entries, want 1", mem.Len())
	}
	for _, enc := range encodings {
		if enc != "identity" {
			t.Errorf("Accept-Encoding = %q, want identity", enc)
		}
	}
}

func TestStripVCSScheme(t *testing.T) {
	tests := map[string]string{
		"git+https://github.com/a/b.git": "https://github.com/a/b.git",
		"hg+ssh://hg.example.com/repo":   "ssh://hg.example.com/repo",
		"https://x.org/a+b.tar.gz":       "https://x.org/a+b.tar.gz",
		"file:///tmp/pkg.whl":            "file:///tmp/pkg.whl",
	}
	for in, want := range tests {
		if got := stripVCSScheme(in); got != want {
			t.Errorf("stripVCSScheme(%q) = %q, want %q", in, got, want)
		}
	}
}
