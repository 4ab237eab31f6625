package lockfile

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	perrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/pipfile"
	"github.com/matzehuels/pylock/pkg/requirement"
)

func project(t *testing.T) *pipfile.Pipfile {
	t.Helper()
	p := pipfile.New("3.11")
	if _, err := p.AddLine("requests>=2", false); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestWrite(t *testing.T) {
	p := project(t)
	l := New(p)
	l.Default["requests"] = requirement.Entry{
		Version: "==2.19.1",
		Hashes:  []string{"sha256:aaa", "sha256:bbb"},
		Index:   "pypi",
	}
	l.Default["win-inet-pton"] = requirement.Entry{Version: "==1.0.1", Markers: "os_name == 'nt' and python_version < '3'"}
	got, err := l.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	want := `{
    "_meta": {
        "hash": {
            "sha256": "` + p.Hash() + `"
        },
        "pipfile-spec": 6,
        "requires": {
            "python_version": "3.11"
        },
        "sources": [
            {
                "name": "pypi",
                "url": "https://pypi.org/simple",
                "verify_ssl": true
            }
        ]
    },
    "default": {
        "requests": {
            "hashes": [
                "sha256:aaa",
                "sha256:bbb"
            ],
            "index": "pypi",
            "version": "==2.19.1"
        },
        "win-inet-pton": {
            "markers": "os_name == 'nt' and python_version < '3'",
            "version": "==1.0.1"
        }
    },
    "develop": {}
}
`
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("Bytes() mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoad(t *testing.T) {
	p := project(t)
	l := New(p)
	l.Develop["pytest"] = requirement.Entry{Version: "==3.8.0"}
	path := filepath.Join(t.TempDir(), FileName)
	if err := l.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(l, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if !loaded.IsUpToDate(p) {
		t.Error("fresh lock reported stale")
	}
	p.AddLine("six", true)
	if loaded.IsUpToDate(p) {
		t.Error("lock not stale after Pipfile change")
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	if !errors.Is(err, ErrNotFound) || perrors.GetCode(err) != perrors.ErrCodeLockfile {
		t.Errorf("Load(missing) error = %v", err)
	}
	if _, err := Parse([]byte("{")); err == nil {
		t.Error("Parse() accepted malformed JSON")
	}
	var nilLock *Lockfile
	if nilLock.IsUpToDate(project(t)) {
		t.Error("nil lock reported up to date")
	}
}

func TestPins(t *testing.T) {
	l, err := Parse([]byte(`{
		"default": {"six": {"version": "==1.16.0"}, "requests": {"version": "==2.19.1", "extras": ["socks"]}},
		"develop": {"six": {"version": "==1.10.0"}, "pytest": {"version": "==3.8.0"}}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	pins, err := l.Pins()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]string{}
	for id, r := range pins {
		got[id] = r.Specifier
	}
	want := map[string]string{
		"six":             "==1.16.0",
		"requests[socks]": "==2.19.1",
		"pytest":          "==3.8.0",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Pins() mismatch (-want +got):\n%s", diff)
	}
}

func TestRemove(t *testing.T) {
	l, err := Parse([]byte(`{"default": {"Six": {"version": "==1.16.0"}}, "develop": {"six": {}, "idna": {}}}`))
	if err != nil {
		t.Fatal(err)
	}
	removed := l.Remove("six", "missing")
	if diff := cmp.Diff([]string{"six"}, removed); diff != "" {
		t.Errorf("Remove() mismatch (-want +got):\n%s", diff)
	}
	if len(l.Default) != 0 || len(l.Develop) != 1 {
		t.Errorf("sections after Remove: %v %v", l.Default, l.Develop)
	}
	data, _ := l.Bytes()
	if !strings.HasSuffix(string(data), "}\n") {
		t.Error("missing trailing newline")
	}
}
