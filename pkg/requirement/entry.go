package requirement

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"deps.dev/util/pypi"
)

// Entry is the table form of a requirement used by Pipfile and
// Pipfile.lock sections.
type Entry struct {
	Version      string   `json:"version,omitempty" toml:"version,omitempty"`
	Extras       []string `json:"extras,omitempty" toml:"extras,omitempty"`
	Markers      string   `json:"markers,omitempty" toml:"markers,omitempty"`
	Index        string   `json:"index,omitempty" toml:"index,omitempty"`
	Editable     bool     `json:"editable,omitempty" toml:"editable,omitempty"`
	Path         string   `json:"path,omitempty" toml:"path,omitempty"`
	File         string   `json:"file,omitempty" toml:"file,omitempty"`
	Git          string   `json:"git,omitempty" toml:"git,omitempty"`
	Hg           string   `json:"hg,omitempty" toml:"hg,omitempty"`
	Svn          string   `json:"svn,omitempty" toml:"svn,omitempty"`
	Bzr          string   `json:"bzr,omitempty" toml:"bzr,omitempty"`
	Ref          string   `json:"ref,omitempty" toml:"ref,omitempty"`
	Subdirectory string   `json:"subdirectory,omitempty" toml:"subdirectory,omitempty"`
	Hashes       []string `json:"hashes,omitempty" toml:"-"`
}

// envKeys are PEP 508 variables Pipfile accepts as entry keys, e.g.
// sys_platform = "== 'win32'".
var envKeys = []string{
	"implementation_name", "implementation_version", "os_name",
	"platform_machine", "platform_python_implementation", "platform_release",
	"platform_system", "platform_version", "python_full_version",
	"python_version", "sys_platform",
}

// Entry renders r in its lock file form.
func (r *Requirement) Entry() Entry {
	e := Entry{
		Extras:   slices.Clone(r.Extras),
		Markers:  r.Markers,
		Index:    r.Index,
		Editable: r.Editable,
		Hashes:   slices.Clone(r.Hashes),
	}
	switch {
	case r.VCS != "":
		*e.vcsField(r.VCS) = r.URL
		e.Ref = r.Ref
		e.Subdirectory = r.Subdirectory
	case r.Path != "":
		e.Path = r.Path
		e.Subdirectory = r.Subdirectory
	case r.URL != "":
		e.File = r.URL
	default:
		e.Version = r.Specifier
		if e.Version == "" {
			e.Version = "*"
		}
	}
	return e
}

func (e *Entry) vcsField(vcs string) *string {
	switch vcs {
	case "hg":
		return &e.Hg
	case "svn":
		return &e.Svn
	case "bzr":
		return &e.Bzr
	}
	return &e.Git
}

// FromEntry builds a requirement from a Pipfile or lock entry.
func FromEntry(name string, e Entry) (*Requirement, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty package name", ErrInvalidLine)
	}
	r := &Requirement{
		Name:         pypi.CanonPackageName(name),
		Extras:       canonExtras(e.Extras),
		Markers:      normalizeMarker(e.Markers),
		Index:        e.Index,
		Editable:     e.Editable,
		Path:         e.Path,
		Ref:          e.Ref,
		Subdirectory: e.Subdirectory,
		Hashes:       slices.Clone(e.Hashes),
	}
	for _, vcs := range VCSSchemes {
		if u := *e.vcsField(vcs); u != "" {
			r.VCS, r.URL = vcs, u
		}
	}
	if r.VCS == "" && e.File != "" {
		r.URL = e.File
	}
	if r.IsNamed() && e.Version != "*" {
		r.Specifier = normalizeSpecifier(e.Version)
	}
	return r, nil
}

// FromPipfile converts a decoded Pipfile value, either a specifier string
// or a table, into a requirement.
func FromPipfile(name string, value any) (*Requirement, error) {
	switch v := value.(type) {
	case string:
		return FromEntry(name, Entry{Version: v})
	case map[string]any:
		return fromTable(name, v)
	}
	return nil, fmt.Errorf("%w: %s: unsupported Pipfile value %T", ErrInvalidLine, name, value)
}

func fromTable(name string, t map[string]any) (*Requirement, error) {
	str := func(key string) string {
		s, _ := t[key].(string)
		return s
	}
	e := Entry{
		Version:      str("version"),
		Markers:      str("markers"),
		Index:        str("index"),
		Path:         str("path"),
		File:         str("file"),
		Git:          str("git"),
		Hg:           str("hg"),
		Svn:          str("svn"),
		Bzr:          str("bzr"),
		Ref:          str("ref"),
		Subdirectory: str("subdirectory"),
	}
	if e.File == "" {
		e.File = str("uri")
	}
	e.Editable, _ = t["editable"].(bool)
	switch extras := t["extras"].(type) {
	case []any:
		for _, x := range extras {
			if s, ok := x.(string); ok {
				e.Extras = append(e.Extras, s)
			}
		}
	case []string:
		e.Extras = extras
	}

	var clauses []string
	if e.Markers != "" {
		clauses = append(clauses, e.Markers)
	}
	for _, key := range envKeys {
		if cond := str(key); cond != "" {
			clauses = append(clauses, key+" "+strings.TrimSpace(cond))
		}
	}
	switch len(clauses) {
	case 0:
	case 1:
		e.Markers = clauses[0]
	default:
		for i, c := range clauses {
			if strings.Contains(c, " or ") {
				clauses[i] = "(" + c + ")"
			}
		}
		e.Markers = strings.Join(clauses, " and ")
	}
	return FromEntry(name, e)
}

// PipfileValue renders r for a Pipfile: a bare specifier when that is all
// r carries, a table otherwise.
func (r *Requirement) PipfileValue() any {
	e := r.Entry()
	e.Hashes = nil
	if r.IsNamed() && len(e.Extras) == 0 && e.Markers == "" && e.Index == "" && !e.Editable {
		return e.Version
	}
	t := map[string]any{}
	set := func(k, v string) {
		if v != "" {
			t[k] = v
		}
	}
	if r.IsNamed() {
		set("version", e.Version)
	}
	set("markers", e.Markers)
	set("index", e.Index)
	set("path", e.Path)
	set("file", e.File)
	set("git", e.Git)
	set("hg", e.Hg)
	set("svn", e.Svn)
	set("bzr", e.Bzr)
	set("ref", e.Ref)
	set("subdirectory", e.Subdirectory)
	if len(e.Extras) > 0 {
		t["extras"] = e.Extras
	}
	if e.Editable {
		t["editable"] = true
	}
	return t
}

// Keys returns the sorted keys of a requirement map.
func Keys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
