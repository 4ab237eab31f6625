package requirement

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"deps.dev/util/pypi"

	"github.com/matzehuels/pylock/pkg/markers"
)

// ErrInvalidLine is returned by ParseLine for lines it cannot interpret.
var ErrInvalidLine = errors.New("invalid requirement line")

// VCSSchemes lists the version control systems a URL may be prefixed with.
var VCSSchemes = []string{"git", "hg", "svn", "bzr"}

// ParseLine parses a pip-style requirement line. Supported forms:
//
//	requests[socks]>=2.0; os_name == "nt"
//	-e git+https://github.com/org/repo.git@v1.0#egg=name[extra]
//	name @ https://example.com/name-1.0.tar.gz ; python_version < "3"
//	-e ./path/to/project
func ParseLine(line string) (*Requirement, error) {
	raw := line
	line = strings.TrimSpace(line)
	editable := false
	for _, flag := range []string{"-e ", "--editable ", "--editable="} {
		if rest, ok := strings.CutPrefix(line, flag); ok {
			editable, line = true, strings.TrimSpace(rest)
			break
		}
	}
	if line == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLine, raw)
	}

	var (
		r   *Requirement
		err error
	)
	switch {
	case isNamedURL(line):
		r, err = parseNamedURL(line)
	case isLocator(line):
		r, err = parseLocator(line)
	default:
		if editable {
			return nil, fmt.Errorf("%w: editable requirement %q must be a path or URL", ErrInvalidLine, raw)
		}
		r, err = parseNamed(line)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidLine, raw, err)
	}
	r.Editable = editable
	return r, nil
}

func parseNamed(line string) (*Requirement, error) {
	dep, err := pypi.ParseDependency(line)
	if err != nil {
		return nil, err
	}
	r := New(dep.Name, dep.Constraint, strings.Split(dep.Extras, ",")...)
	r.Markers = normalizeMarker(dep.Environment)
	return r, nil
}

// normalizeMarker renders m canonically, keeping it verbatim when it does
// not parse.
func normalizeMarker(m string) string {
	if n, err := markers.Normalize(m); err == nil {
		return n
	}
	return strings.TrimSpace(m)
}

// isNamedURL reports whether line has the PEP 508 "name @ url" form.
func isNamedURL(line string) bool {
	before, _, ok := strings.Cut(line, "@")
	return ok && !strings.ContainsAny(before, "/:") && strings.TrimSpace(before) != ""
}

func isLocator(line string) bool {
	if strings.Contains(line, "://") {
		return true
	}
	for _, p := range []string{".", "/", "~", "file:"} {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

func parseNamedURL(line string) (*Requirement, error) {
	head, rest, _ := strings.Cut(line, "@")
	link, marker := splitURLMarker(strings.TrimSpace(rest))

	dep, err := pypi.ParseDependency(strings.TrimSpace(head))
	if err != nil {
		return nil, err
	}
	r, err := parseLocator(link)
	if err != nil {
		return nil, err
	}
	r.Name = dep.Name
	r.Extras = canonExtras(strings.Split(dep.Extras, ","))
	r.Markers = normalizeMarker(marker)
	return r, nil
}

// splitURLMarker separates a trailing marker; URL forms need whitespace
// before the semicolon.
func splitURLMarker(s string) (link, marker string) {
	if i := strings.Index(s, " ;"); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+2:])
	}
	if i := strings.Index(s, "; "); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

func parseLocator(line string) (*Requirement, error) {
	line, marker := splitURLMarker(line)
	r := &Requirement{Markers: normalizeMarker(marker)}

	link, fragment, _ := strings.Cut(line, "#")
	params, err := url.ParseQuery(fragment)
	if err != nil {
		return nil, err
	}

	for _, vcs := range VCSSchemes {
		if rest, ok := strings.CutPrefix(link, vcs+"+"); ok {
			r.VCS = vcs
			link = rest
			break
		}
	}

	switch {
	case r.VCS != "":
		r.URL, r.Ref = splitRef(link)
	case strings.HasPrefix(link, "file:"):
		r.Path = strings.TrimPrefix(strings.TrimPrefix(link, "file:"), "//")
	case strings.Contains(link, "://"):
		r.URL = line
	default:
		r.Path = link
	}
	r.Subdirectory = params.Get("subdirectory")

	if egg := params.Get("egg"); egg != "" {
		dep, err := pypi.ParseDependency(egg)
		if err != nil {
			return nil, err
		}
		r.Name = dep.Name
		r.Extras = canonExtras(strings.Split(dep.Extras, ","))
	} else {
		r.Name = guessName(link)
	}
	if r.Name == "" {
		return nil, errors.New("cannot determine project name, add #egg=<name>")
	}
	return r, nil
}

// splitRef cuts an "@ref" suffix off a repository URL. The '@' of a
// user-info section is left alone.
func splitRef(link string) (repo, ref string) {
	start := 0
	if i := strings.Index(link, "://"); i >= 0 {
		start = i + 3
	}
	slash := strings.Index(link[start:], "/")
	if slash < 0 {
		return link, ""
	}
	at := strings.LastIndex(link, "@")
	if at <= start+slash {
		return link, ""
	}
	return link[:at], link[at+1:]
}

// guessName derives a project name from the last path element of a
// location, dropping archive suffixes and versions.
func guessName(link string) string {
	base := path.Base(strings.TrimSuffix(link, "/"))
	for _, ext := range []string{".git", ".tar.gz", ".tar.bz2", ".zip", ".whl", ".tgz"} {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "." || base == "/" || base == "" {
		return ""
	}
	if info, err := pypi.ParseWheelName(path.Base(link)); err == nil {
		return pypi.CanonPackageName(info.Name)
	}
	name, _, _ := strings.Cut(base, "-")
	return pypi.CanonPackageName(name)
}

// Line renders r as a pip requirement line.
func (r *Requirement) Line() string {
	var b strings.Builder
	if r.Editable {
		b.WriteString("-e ")
	}
	extras := ""
	if len(r.Extras) > 0 {
		extras = "[" + strings.Join(r.Extras, ",") + "]"
	}
	switch {
	case r.VCS != "":
		b.WriteString(r.VCS + "+" + r.URL)
		if r.Ref != "" {
			b.WriteString("@" + r.Ref)
		}
		b.WriteString("#egg=" + r.Name + extras)
		if r.Subdirectory != "" {
			b.WriteString("&subdirectory=" + r.Subdirectory)
		}
	case r.Path != "" && r.Editable:
		b.WriteString(r.Path)
	case r.Path != "" || r.URL != "":
		loc := r.URL
		if loc == "" {
			loc = "file://" + r.Path
		}
		b.WriteString(r.Name + extras + " @ " + loc)
	default:
		b.WriteString(r.Name + extras + r.Specifier)
	}
	if r.Markers != "" {
		if r.IsNamed() {
			b.WriteString("; " + r.Markers)
		} else {
			b.WriteString(" ; " + r.Markers)
		}
	}
	return b.String()
}
