// Package requirement models Python requirements and the pinned candidates
// a resolver produces from them.
//
// A [Requirement] is either named (resolved through a package index) or
// non-named (a local path, a direct URL or a VCS checkout that resolves to
// exactly itself). Candidates use the same type: a candidate is a
// requirement pinned to one version with "==", carrying hashes and markers
// once locking completes.
//
// Names are canonicalized following PEP 503 on construction, so two
// requirements for "Foo_Bar" and "foo-bar" share an [Identifier].
package requirement

import (
	"slices"
	"strings"

	"deps.dev/util/pypi"
)

// Identifier is the resolver's key for a requirement: the canonical name,
// followed by the sorted extras in brackets when there are any.
type Identifier = string

// Requirement is a single dependency declaration or a resolved candidate.
type Requirement struct {
	Name      string   // canonical name
	Extras    []string // canonical, sorted, unique
	Specifier string   // PEP 440 specifier set; empty means any version
	Markers   string   // PEP 508 marker, rendered canonically
	Index     string   // name of the source to resolve against
	Editable  bool

	Path         string // local directory or archive
	URL          string // direct URL, or repository URL for VCS requirements
	VCS          string // git, hg, svn or bzr
	Ref          string // VCS ref; a commit id once pinned
	Subdirectory string

	// Populated on candidates.
	Hashes         []string
	RequiresPython string
}

// New returns a named requirement with a canonical name and extras.
func New(name, specifier string, extras ...string) *Requirement {
	return &Requirement{
		Name:      pypi.CanonPackageName(name),
		Specifier: normalizeSpecifier(specifier),
		Extras:    canonExtras(extras),
	}
}

// normalizeSpecifier drops all whitespace from a specifier set.
func normalizeSpecifier(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func canonExtras(extras []string) []string {
	var out []string
	for _, e := range extras {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, pypi.CanonPackageName(e))
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Identify returns the resolver identifier of r.
func (r *Requirement) Identify() Identifier {
	return Identify(r.Name, r.Extras)
}

// Identify builds an identifier from a name and extras.
func Identify(name string, extras []string) Identifier {
	name = pypi.CanonPackageName(name)
	extras = canonExtras(extras)
	if len(extras) == 0 {
		return name
	}
	return name + "[" + strings.Join(extras, ",") + "]"
}

// SplitIdentifier is the inverse of Identify.
func SplitIdentifier(id Identifier) (name string, extras []string) {
	name, rest, ok := strings.Cut(id, "[")
	if !ok {
		return name, nil
	}
	return name, strings.Split(strings.TrimSuffix(rest, "]"), ",")
}

// IsNamed reports whether r is resolved through a package index.
func (r *Requirement) IsNamed() bool {
	return r.Path == "" && r.URL == ""
}

// IsVCS reports whether r points at a version control repository.
func (r *Requirement) IsVCS() bool { return r.VCS != "" }

// IsPinned reports whether r selects exactly one version with "==" or "===".
func (r *Requirement) IsPinned() bool {
	return r.Version() != ""
}

// Version returns the pinned version of r, or "" when r is not pinned.
func (r *Requirement) Version() string {
	spec := strings.TrimSpace(r.Specifier)
	if strings.Contains(spec, ",") {
		return ""
	}
	for _, op := range []string{"===", "=="} {
		if v, ok := strings.CutPrefix(spec, op); ok {
			v = strings.TrimSpace(v)
			if v == "" || strings.HasSuffix(v, "*") {
				return ""
			}
			return v
		}
	}
	return ""
}

// Clone returns a deep copy of r.
func (r *Requirement) Clone() *Requirement {
	c := *r
	c.Extras = slices.Clone(r.Extras)
	c.Hashes = slices.Clone(r.Hashes)
	return &c
}

// Pin returns a candidate for r at version. Markers and hashes are cleared:
// they are reconstructed after resolution.
func (r *Requirement) Pin(version string) *Requirement {
	c := r.Clone()
	c.Specifier = "==" + version
	c.Markers = ""
	c.Hashes = nil
	return c
}

// SameSource reports whether a and b point at the same non-named location.
// VCS refs are ignored, so a pinned checkout matches its requirement.
func SameSource(a, b *Requirement) bool {
	return a.Path == b.Path && a.URL == b.URL && a.VCS == b.VCS &&
		a.Subdirectory == b.Subdirectory
}

func (r *Requirement) String() string { return r.Line() }
