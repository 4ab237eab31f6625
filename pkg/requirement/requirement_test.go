package requirement

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want Requirement
	}{
		{
			line: `Requests[Socks,security] >= 2.0 ; os_name == "nt"`,
			want: Requirement{Name: "requests", Extras: []string{"security", "socks"}, Specifier: ">=2.0", Markers: "os_name == 'nt'"},
		},
		{
			line: `six`,
			want: Requirement{Name: "six"},
		},
		{
			line: `-e git+https://github.com/psf/requests.git@v2.31.0#egg=requests[socks]`,
			want: Requirement{Name: "requests", Extras: []string{"socks"}, Editable: true, VCS: "git", URL: "https://github.com/psf/requests.git", Ref: "v2.31.0"},
		},
		{
			line: `git+ssh://git@github.com/org/tool.git#egg=tool&subdirectory=src`,
			want: Requirement{Name: "tool", VCS: "git", URL: "ssh://git@github.com/org/tool.git", Subdirectory: "src"},
		},
		{
			line: `pip @ https://example.com/pip-23.0.tar.gz ; python_version < "3"`,
			want: Requirement{Name: "pip", URL: "https://example.com/pip-23.0.tar.gz", Markers: "python_version < '3'"},
		},
		{
			line: `-e ./vendor/my_pkg`,
			want: Requirement{Name: "my-pkg", Editable: true, Path: "./vendor/my_pkg"},
		},
		{
			line: `https://example.com/packages/Flask-2.0.0-py3-none-any.whl`,
			want: Requirement{Name: "flask", URL: "https://example.com/packages/Flask-2.0.0-py3-none-any.whl"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if err != nil {
				t.Fatalf("ParseLine error: %v", err)
			}
			if diff := cmp.Diff(&tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	for _, line := range []string{"", "   ", "-e requests", "./"} {
		if _, err := ParseLine(line); !errors.Is(err, ErrInvalidLine) {
			t.Errorf("ParseLine(%q) = %v, want ErrInvalidLine", line, err)
		}
	}
}

func TestLine(t *testing.T) {
	tests := []string{
		"requests[socks]>=2.0; os_name == 'nt'",
		"-e git+https://github.com/psf/requests.git@v2.31.0#egg=requests",
		"pip @ https://example.com/pip-23.0.tar.gz ; python_version < '3'",
	}
	for _, line := range tests {
		r, err := ParseLine(line)
		if err != nil {
			t.Fatalf("ParseLine(%q): %v", line, err)
		}
		if got := r.Line(); got != line {
			t.Errorf("Line() = %q, want %q", got, line)
		}
	}
}

func TestIdentify(t *testing.T) {
	r := New("Foo_Bar", "", "Zed", "alpha", "zed")
	if got := r.Identify(); got != "foo-bar[alpha,zed]" {
		t.Errorf("Identify() = %q", got)
	}
	name, extras := SplitIdentifier(r.Identify())
	if name != "foo-bar" || !cmp.Equal(extras, []string{"alpha", "zed"}) {
		t.Errorf("SplitIdentifier = %q %v", name, extras)
	}
	if got := Identify("six", nil); got != "six" {
		t.Errorf("Identify(six) = %q", got)
	}
}

func TestVersion(t *testing.T) {
	tests := []struct {
		spec, want string
	}{
		{"==1.0", "1.0"},
		{"=== 2.0.post1", "2.0.post1"},
		{"==1.*", ""},
		{">=1.0", ""},
		{"==1.0,!=1.1", ""},
		{"", ""},
	}
	for _, tt := range tests {
		r := New("x", tt.spec)
		if got := r.Version(); got != tt.want {
			t.Errorf("Version(%q) = %q, want %q", tt.spec, got, tt.want)
		}
		if r.IsPinned() != (tt.want != "") {
			t.Errorf("IsPinned(%q) = %v", tt.spec, r.IsPinned())
		}
	}
}

func TestPin(t *testing.T) {
	r := New("requests", ">=2", "socks")
	r.Markers = "os_name == 'nt'"
	c := r.Pin("2.31.0")
	if c.Specifier != "==2.31.0" || c.Markers != "" {
		t.Errorf("Pin = %+v", c)
	}
	if r.Specifier != ">=2" {
		t.Error("Pin must not modify the receiver")
	}
}

func TestFilter(t *testing.T) {
	versions := []string{"1.0", "1.1", "2.0a1", "2.0", "3.0b2"}
	tests := []struct {
		spec        string
		prereleases bool
		want        []string
	}{
		{">=1.1", false, []string{"1.1", "2.0"}},
		{">=1.1", true, []string{"1.1", "2.0a1", "2.0", "3.0b2"}},
		{">2.0", false, []string{"3.0b2"}},
		{"<1.0", false, nil},
	}
	for _, tt := range tests {
		got := New("x", tt.spec).Filter(versions, tt.prereleases)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Filter(%q, %v) mismatch (-want +got):\n%s", tt.spec, tt.prereleases, diff)
		}
	}
}

func TestCompareVersions(t *testing.T) {
	vs := []string{"1.10", "1.2", "1.2rc1", "bogus", "1.2.post1"}
	SortVersions(vs)
	want := []string{"bogus", "1.2rc1", "1.2", "1.2.post1", "1.10"}
	if diff := cmp.Diff(want, vs); diff != "" {
		t.Errorf("SortVersions mismatch (-want +got):\n%s", diff)
	}
}

func TestFromPipfile(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  Requirement
	}{
		{"Django", "*", Requirement{Name: "django"}},
		{"six", ">=1.10", Requirement{Name: "six", Specifier: ">=1.10"}},
		{
			"requests",
			map[string]any{"version": "*", "extras": []any{"socks"}, "os_name": "== 'nt'"},
			Requirement{Name: "requests", Extras: []string{"socks"}, Markers: "os_name == 'nt'"},
		},
		{
			"pywin32",
			map[string]any{"markers": "python_version < '3' or os_name == 'nt'", "sys_platform": "== 'win32'"},
			Requirement{Name: "pywin32", Markers: "(python_version < '3' or os_name == 'nt') and sys_platform == 'win32'"},
		},
		{
			"tool",
			map[string]any{"git": "https://github.com/org/tool.git", "ref": "main", "editable": true},
			Requirement{Name: "tool", VCS: "git", URL: "https://github.com/org/tool.git", Ref: "main", Editable: true},
		},
		{
			"local",
			map[string]any{"path": ".", "editable": true},
			Requirement{Name: "local", Path: ".", Editable: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromPipfile(tt.name, tt.value)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(&tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
	if _, err := FromPipfile("x", 42); err == nil {
		t.Error("expected error for non-string, non-table value")
	}
}

func TestPipfileValue(t *testing.T) {
	if got := New("six", "").PipfileValue(); got != "*" {
		t.Errorf("bare requirement = %v", got)
	}
	r := New("requests", ">=2", "socks")
	want := map[string]any{"version": ">=2", "extras": []string{"socks"}}
	if diff := cmp.Diff(want, r.PipfileValue()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEntry(t *testing.T) {
	r := &Requirement{Name: "tool", VCS: "git", URL: "https://github.com/org/tool.git", Ref: "abc123", Markers: "os_name == 'nt'"}
	e := r.Entry()
	want := Entry{Git: "https://github.com/org/tool.git", Ref: "abc123", Markers: "os_name == 'nt'"}
	if diff := cmp.Diff(want, e); diff != "" {
		t.Errorf("Entry mismatch (-want +got):\n%s", diff)
	}
	back, err := FromEntry("tool", e)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(r, back); diff != "" {
		t.Errorf("FromEntry mismatch (-want +got):\n%s", diff)
	}

	named := New("six", "==1.16.0")
	named.Hashes = []string{"sha256:abc"}
	if e := named.Entry(); e.Version != "==1.16.0" || len(e.Hashes) != 1 {
		t.Errorf("named Entry = %+v", e)
	}
}
