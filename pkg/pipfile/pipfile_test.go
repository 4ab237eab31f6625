package pipfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	perrors "github.com/matzehuels/pylock/pkg/errors"
	integrationspypi "github.com/matzehuels/pylock/pkg/integrations/pypi"
)

const sample = `
[[source]]
name = "pypi"
url = "https://pypi.org/simple"
verify_ssl = true

[[source]]
name = "internal"
url = "https://pkgs.example.com/simple"
verify_ssl = false

[packages]
requests = {version = ">=2.19", extras = ["socks"]}
Django = "*"
tool = {git = "https://github.com/org/tool.git", ref = "v1.0", editable = true}
pywin32 = {version = "*", sys_platform = "== 'win32'"}

[dev-packages]
pytest = ">=3.0"

[requires]
python_version = "3.11"

[pipenv]
allow_prereleases = true

[scripts]
test = "pytest"
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	wantSources := []integrationspypi.Source{
		{Name: "pypi", URL: "https://pypi.org/simple", VerifySSL: true},
		{Name: "internal", URL: "https://pkgs.example.com/simple", VerifySSL: false},
	}
	if diff := cmp.Diff(wantSources, p.Sources); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
	var lines []string
	for _, r := range p.Requirements(false) {
		lines = append(lines, r.Line())
	}
	want := []string{
		"django",
		`pywin32; sys_platform == 'win32'`,
		"requests[socks]>=2.19",
		"-e git+https://github.com/org/tool.git@v1.0#egg=tool",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("packages mismatch (-want +got):\n%s", diff)
	}
	if got := p.Requirements(true); len(got) != 1 || got[0].Name != "pytest" {
		t.Errorf("dev-packages = %v", got)
	}
	if p.Requires.Python() != "3.11" {
		t.Errorf("Requires.Python() = %q", p.Requires.Python())
	}
	if !p.AllowPrereleases {
		t.Error("allow_prereleases not read")
	}
}

func TestParseDefaults(t *testing.T) {
	p, err := Parse([]byte("[packages]\nsix = \"*\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]integrationspypi.Source{integrationspypi.DefaultSource}, p.Sources); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
	if len(p.DevPackages) != 0 || p.AllowPrereleases {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"[packages",
		"[[source]]\nname = \"x\"\n",
		"packages = 3\n",
	}
	for _, in := range tests {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("Parse(%q) succeeded", in)
		}
	}
}

func TestWriteRoundTrip(t *testing.T) {
	p, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := p.Write(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "[scripts]") {
		t.Errorf("unknown table dropped:\n%s", buf.String())
	}
	again, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("re-parse: %v\n%s", err, buf.String())
	}
	if p.Hash() != again.Hash() {
		t.Errorf("hash changed after round trip:\n%s", buf.String())
	}
	if !again.AllowPrereleases {
		t.Error("allow_prereleases lost")
	}
}

func TestHash(t *testing.T) {
	p := New("3.11")
	base := p.Hash()
	if len(base) != 64 {
		t.Fatalf("Hash() = %q", base)
	}
	if New("3.11").Hash() != base {
		t.Error("hash is not deterministic")
	}
	if _, err := p.AddLine("requests>=2", false); err != nil {
		t.Fatal(err)
	}
	if p.Hash() == base {
		t.Error("hash ignores packages")
	}
	q := New("3.12")
	if q.Hash() == base {
		t.Error("hash ignores requires")
	}
}

func TestAddRemove(t *testing.T) {
	p, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.AddLine("django>=4", false); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Packages["Django"]; ok {
		t.Error("old spelling kept next to the new entry")
	}
	if got := p.Packages["django"].Specifier; got != ">=4" {
		t.Errorf("django specifier = %q", got)
	}
	if _, err := p.AddLine("-e ./local", true); err != nil {
		t.Fatal(err)
	}
	if !p.Contains("local") {
		t.Error("editable not added")
	}
	if _, err := p.AddLine("not a requirement!!", false); perrors.GetCode(err) != perrors.ErrCodeInvalidInput {
		t.Errorf("AddLine(invalid) error = %v", err)
	}

	removed := p.Remove([]string{"Requests", "pytest", "missing"}, true, false)
	if diff := cmp.Diff([]string{"requests"}, removed); diff != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", diff)
	}
	if !p.Contains("pytest") {
		t.Error("dev package removed from packages-only removal")
	}
	p.Remove([]string{"pytest"}, false, true)
	if p.Contains("pytest") {
		t.Error("pytest still present")
	}
}

func TestCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	p, err := Create(path, "3.11")
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Hash() != p.Hash() {
		t.Error("created Pipfile does not load back identically")
	}
	_, err = Create(path, "3.11")
	if !errors.Is(err, ErrExists) || perrors.GetCode(err) != perrors.ErrCodePipfile {
		t.Errorf("Create() over existing = %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v", err)
	}
}
