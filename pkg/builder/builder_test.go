package builder

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/pylock/pkg/integrations/pypi"
	"github.com/matzehuels/pylock/pkg/requirement"
)

func writeWheel(t *testing.T, dir, filename string, files map[string]string) string {
	t.Helper()
	p := filepath.Join(dir, filename)
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, _ := zw.Create(name)
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

func writeSdist(t *testing.T, dir, filename string, files map[string]string) string {
	t.Helper()
	p := filepath.Join(dir, filename)
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg})
		tw.Write([]byte(content))
	}
	tw.Close()
	gz.Close()
	return p
}

func TestReadMetadataWheel(t *testing.T) {
	p := writeWheel(t, t.TempDir(), "requests-2.19.1-py2.py3-none-any.whl", map[string]string{
		"requests-2.19.1.dist-info/METADATA": "Metadata-Version: 2.1\nName: requests\nVersion: 2.19.1\n" +
			"Requires-Dist: idna (<2.8,>=2.5)\n" +
			"Requires-Dist: PySocks (!=1.5.7,>=1.5.6) ; extra == 'socks'\n",
	})
	md, err := ReadMetadata(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	want := &Metadata{
		Name:     "requests",
		Version:  "2.19.1",
		Requires: []string{"idna<2.8,>=2.5", "pysocks!=1.5.7,>=1.5.6; extra == 'socks'"},
	}
	if diff := cmp.Diff(want, md); diff != "" {
		t.Errorf("ReadMetadata mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMetadataSdistPKGInfo(t *testing.T) {
	p := writeSdist(t, t.TempDir(), "demo-1.0.tar.gz", map[string]string{
		"demo-1.0/PKG-INFO": "Metadata-Version: 2.1\nName: demo\nVersion: 1.0\nRequires-Dist: six\n",
	})
	md, err := ReadMetadata(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"six"}, md.Requires); diff != "" {
		t.Errorf("Requires mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMetadataEggInfo(t *testing.T) {
	p := writeSdist(t, t.TempDir(), "legacy-0.3.tar.gz", map[string]string{
		"legacy-0.3/PKG-INFO":                            "Metadata-Version: 1.1\nName: legacy\nVersion: 0.3\n",
		"legacy-0.3/setup.py":                            "setup(install_requires=['six'])",
		"legacy-0.3/tests/fixture.egg-info/PKG-INFO":     "Metadata-Version: 1.1\nName: fixture\nVersion: 9.9\n",
		"legacy-0.3/tests/fixture.egg-info/requires.txt": "wrong\n",
		"legacy-0.3/legacy.egg-info/PKG-INFO":            "Metadata-Version: 1.1\nName: legacy\nVersion: 0.3\n",
		"legacy-0.3/legacy.egg-info/requires.txt":        "six>=1.10\n\n[security]\npyopenssl\n\n[:python_version < \"3\"]\nenum34\n",
	})
	md, err := ReadMetadata(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"six>=1.10",
		"pyopenssl; extra == 'security'",
		`enum34; python_version < "3"`,
	}
	if diff := cmp.Diff(want, md.Requires); diff != "" {
		t.Errorf("Requires mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRequiresTxt(t *testing.T) {
	got := parseRequiresTxt("a\n# comment\n[test:sys_platform == 'win32']\nb\n")
	want := []string{"a", "b; (sys_platform == 'win32') and extra == 'test'"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseRequiresTxt mismatch (-want +got):\n%s", diff)
	}
}

func TestPipTarget(t *testing.T) {
	tests := []struct {
		req  *requirement.Requirement
		want string
	}{
		{&requirement.Requirement{Name: "requests", Specifier: "==2.19.1", Markers: "os_name == 'nt'"}, "requests==2.19.1"},
		{&requirement.Requirement{Name: "mypkg", Path: "./src/mypkg", Editable: true}, "./src/mypkg"},
	}
	for _, tt := range tests {
		if got := pipTarget(tt.req); got != tt.want {
			t.Errorf("pipTarget(%+v) = %q, want %q", tt.req, got, tt.want)
		}
	}
}

func TestIndexArgs(t *testing.T) {
	got := indexArgs([]pypi.Source{
		pypi.DefaultSource,
		{Name: "internal", URL: "http://internal.local/simple", VerifySSL: false},
	})
	want := []string{
		"--index-url", "https://pypi.org/simple",
		"--extra-index-url", "http://internal.local/simple",
		"--trusted-host", "internal.local",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("indexArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestPipBuilder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as the interpreter")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-python")
	// Writes an empty wheel into the directory following --wheel-dir.
	err := os.WriteFile(script, []byte(`#!/bin/sh
while [ $# -gt 0 ]; do
  if [ "$1" = "--wheel-dir" ]; then touch "$2/demo-1.0-py3-none-any.whl"; fi
  shift
done
`), 0o755)
	if err != nil {
		t.Fatal(err)
	}

	b := &PipBuilder{Python: script, Dir: dir}
	got, err := b.BuildWheel(context.Background(), requirement.New("demo", "==1.0"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(got, "demo-1.0-py3-none-any.whl") {
		t.Errorf("BuildWheel = %q", got)
	}
	if err := Cleanup(got); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Dir(got)); !os.IsNotExist(err) {
		t.Error("Cleanup left the build directory behind")
	}
}

func TestPipBuilderFailure(t *testing.T) {
	b := &PipBuilder{Python: filepath.Join(t.TempDir(), "missing-python"), Dir: t.TempDir()}
	if _, err := b.BuildWheel(context.Background(), requirement.New("demo", "==1.0"), nil); err == nil {
		t.Error("BuildWheel with a missing interpreter should fail")
	}
}
