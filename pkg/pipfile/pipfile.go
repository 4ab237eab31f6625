// Package pipfile reads and writes Pipfiles.
//
// A Pipfile is a TOML document with [[source]] tables, the [packages] and
// [dev-packages] sections, an optional [requires] table naming the target
// Python and a [pipenv] settings table. Tables this package does not know
// about, such as [scripts], are kept and written back unchanged.
package pipfile

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"deps.dev/util/pypi"
	"github.com/BurntSushi/toml"

	perrors "github.com/matzehuels/pylock/pkg/errors"
	integrationspypi "github.com/matzehuels/pylock/pkg/integrations/pypi"
	pio "github.com/matzehuels/pylock/pkg/io"
	"github.com/matzehuels/pylock/pkg/requirement"
)

// FileName is the conventional Pipfile name.
const FileName = "Pipfile"

// ErrExists is returned by [Create] when a Pipfile is already present.
var ErrExists = errors.New("pipfile already exists")

// Section names as they appear in the Pipfile.
const (
	Packages    = "packages"
	DevPackages = "dev-packages"
)

// Requires is the [requires] table.
type Requires struct {
	PythonVersion     string `toml:"python_version,omitempty" json:"python_version,omitempty"`
	PythonFullVersion string `toml:"python_full_version,omitempty" json:"python_full_version,omitempty"`
}

// Python returns the "major.minor" target version, or "".
func (r Requires) Python() string {
	if r.PythonVersion != "" {
		return r.PythonVersion
	}
	if r.PythonFullVersion == "" {
		return ""
	}
	parts := strings.SplitN(r.PythonFullVersion, ".", 3)
	if len(parts) < 2 {
		return r.PythonFullVersion
	}
	return parts[0] + "." + parts[1]
}

func (r Requires) asMap() map[string]string {
	m := map[string]string{}
	if r.PythonVersion != "" {
		m["python_version"] = r.PythonVersion
	}
	if r.PythonFullVersion != "" {
		m["python_full_version"] = r.PythonFullVersion
	}
	return m
}

// Pipfile is a decoded Pipfile. Package sections are keyed by the name
// written in the file.
type Pipfile struct {
	Sources          []integrationspypi.Source
	Packages         map[string]*requirement.Requirement
	DevPackages      map[string]*requirement.Requirement
	Requires         Requires
	AllowPrereleases bool

	pipenv map[string]any
	extra  map[string]any
}

// New returns an empty Pipfile using sources, or the default index when
// none are given.
func New(python string, sources ...integrationspypi.Source) *Pipfile {
	if len(sources) == 0 {
		sources = []integrationspypi.Source{integrationspypi.DefaultSource}
	}
	return &Pipfile{
		Sources:     slices.Clone(sources),
		Packages:    map[string]*requirement.Requirement{},
		DevPackages: map[string]*requirement.Requirement{},
		Requires:    Requires{PythonVersion: python},
	}
}

// Load reads the Pipfile at path.
func Load(path string) (*Pipfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodePipfile, err, "read %s", path)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodePipfile, err, "parse %s", path)
	}
	return p, nil
}

// Read decodes a Pipfile from r.
func Read(r io.Reader) (*Pipfile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a Pipfile document.
func Parse(data []byte) (*Pipfile, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	p := New("")
	p.Sources = nil

	if v, ok := raw["source"]; ok {
		sources, err := decodeSources(v)
		if err != nil {
			return nil, err
		}
		p.Sources = sources
	}
	if len(p.Sources) == 0 {
		p.Sources = []integrationspypi.Source{integrationspypi.DefaultSource}
	}
	var err error
	if p.Packages, err = decodeSection(raw[Packages]); err != nil {
		return nil, fmt.Errorf("[%s]: %w", Packages, err)
	}
	if p.DevPackages, err = decodeSection(raw[DevPackages]); err != nil {
		return nil, fmt.Errorf("[%s]: %w", DevPackages, err)
	}
	if t, ok := raw["requires"].(map[string]any); ok {
		p.Requires.PythonVersion, _ = t["python_version"].(string)
		p.Requires.PythonFullVersion, _ = t["python_full_version"].(string)
	}
	if t, ok := raw["pipenv"].(map[string]any); ok {
		p.AllowPrereleases, _ = t["allow_prereleases"].(bool)
		delete(t, "allow_prereleases")
		if len(t) > 0 {
			p.pipenv = t
		}
	}
	for _, k := range []string{"source", Packages, DevPackages, "requires", "pipenv"} {
		delete(raw, k)
	}
	if len(raw) > 0 {
		p.extra = raw
	}
	return p, nil
}

func decodeSources(v any) ([]integrationspypi.Source, error) {
	tables, ok := v.([]map[string]any)
	if !ok {
		if list, isList := v.([]any); isList {
			for _, item := range list {
				t, isTable := item.(map[string]any)
				if !isTable {
					return nil, fmt.Errorf("[[source]]: unexpected %T", item)
				}
				tables = append(tables, t)
			}
		} else {
			return nil, fmt.Errorf("[[source]]: unexpected %T", v)
		}
	}
	var out []integrationspypi.Source
	for _, t := range tables {
		s := integrationspypi.Source{VerifySSL: true}
		s.Name, _ = t["name"].(string)
		s.URL, _ = t["url"].(string)
		if verify, ok := t["verify_ssl"].(bool); ok {
			s.VerifySSL = verify
		}
		if s.URL == "" {
			return nil, fmt.Errorf("[[source]] %q has no url", s.Name)
		}
		if s.Name == "" {
			s.Name = integrationspypi.SourceFromURL(s.URL).Name
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeSection(v any) (map[string]*requirement.Requirement, error) {
	out := map[string]*requirement.Requirement{}
	if v == nil {
		return out, nil
	}
	t, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected %T", v)
	}
	for key, value := range t {
		r, err := requirement.FromPipfile(key, value)
		if err != nil {
			return nil, err
		}
		out[key] = r
	}
	return out, nil
}

// Section returns the packages of one section.
func (p *Pipfile) Section(dev bool) map[string]*requirement.Requirement {
	if dev {
		return p.DevPackages
	}
	return p.Packages
}

// Requirements returns the requirements of one section, ordered by key.
func (p *Pipfile) Requirements(dev bool) []*requirement.Requirement {
	section := p.Section(dev)
	out := make([]*requirement.Requirement, 0, len(section))
	for _, k := range requirement.Keys(section) {
		out = append(out, section[k])
	}
	return out
}

// Add puts r into a section under its canonical name, replacing any entry
// of the same package written under another spelling.
func (p *Pipfile) Add(r *requirement.Requirement, dev bool) {
	section := p.Section(dev)
	for k := range section {
		if pypi.CanonPackageName(k) == r.Name {
			delete(section, k)
		}
	}
	section[r.Name] = r
}

// AddLine parses a requirement line (including "-e <path>") and adds it.
func (p *Pipfile) AddLine(line string, dev bool) (*requirement.Requirement, error) {
	r, err := requirement.ParseLine(line)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "cannot add %q to Pipfile", line)
	}
	p.Add(r, dev)
	return r, nil
}

// Remove deletes the named packages from the selected sections and
// returns the canonical names that were found.
func (p *Pipfile) Remove(names []string, packages, devPackages bool) []string {
	want := map[string]bool{}
	for _, n := range names {
		want[pypi.CanonPackageName(n)] = true
	}
	found := map[string]bool{}
	drop := func(section map[string]*requirement.Requirement) {
		for k := range section {
			if c := pypi.CanonPackageName(k); want[c] {
				delete(section, k)
				found[c] = true
			}
		}
	}
	if packages {
		drop(p.Packages)
	}
	if devPackages {
		drop(p.DevPackages)
	}
	return requirement.Keys(found)
}

// Contains reports whether either section lists the package.
func (p *Pipfile) Contains(name string) bool {
	name = pypi.CanonPackageName(name)
	for _, section := range []map[string]*requirement.Requirement{p.Packages, p.DevPackages} {
		for k := range section {
			if pypi.CanonPackageName(k) == name {
				return true
			}
		}
	}
	return false
}

func sectionData(section map[string]*requirement.Requirement) map[string]any {
	out := make(map[string]any, len(section))
	for k, r := range section {
		out[k] = r.PipfileValue()
	}
	return out
}

func sourceData(sources []integrationspypi.Source) []map[string]any {
	out := make([]map[string]any, 0, len(sources))
	for _, s := range sources {
		out = append(out, map[string]any{"name": s.Name, "url": s.URL, "verify_ssl": s.VerifySSL})
	}
	return out
}

// Hash returns the hex SHA-256 that lock files record to detect a changed
// Pipfile. It covers the sources, the requirements and both sections.
func (p *Pipfile) Hash() string {
	doc := map[string]any{
		"_meta": map[string]any{
			"requires": p.Requires.asMap(),
			"sources":  sourceData(p.Sources),
		},
		"default": sectionData(p.Packages),
		"develop": sectionData(p.DevPackages),
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Maps marshal with sorted keys and no insignificant whitespace.
	_ = enc.Encode(doc)
	sum := sha256.Sum256(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return hex.EncodeToString(sum[:])
}

type document struct {
	Source      []map[string]any  `toml:"source"`
	Packages    map[string]any    `toml:"packages"`
	DevPackages map[string]any    `toml:"dev-packages"`
	Requires    map[string]string `toml:"requires,omitempty"`
	Pipenv      map[string]any    `toml:"pipenv,omitempty"`
}

// Write encodes p as TOML.
func (p *Pipfile) Write(w io.Writer) error {
	doc := document{
		Source:      sourceData(p.Sources),
		Packages:    sectionData(p.Packages),
		DevPackages: sectionData(p.DevPackages),
		Requires:    p.Requires.asMap(),
	}
	if len(p.pipenv) > 0 || p.AllowPrereleases {
		doc.Pipenv = map[string]any{}
		for k, v := range p.pipenv {
			doc.Pipenv[k] = v
		}
		if p.AllowPrereleases {
			doc.Pipenv["allow_prereleases"] = true
		}
	}
	enc := toml.NewEncoder(w)
	enc.Indent = ""
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if len(p.extra) == 0 {
		return nil
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	return enc.Encode(p.extra)
}

// Save writes p to path atomically.
func (p *Pipfile) Save(path string) error {
	var buf bytes.Buffer
	if err := p.Write(&buf); err != nil {
		return perrors.Wrap(perrors.ErrCodePipfile, err, "encode Pipfile")
	}
	if err := pio.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return perrors.Wrap(perrors.ErrCodePipfile, err, "write %s", path)
	}
	return nil
}

// Create writes a new Pipfile at path and fails when one exists.
func Create(path, python string, sources ...integrationspypi.Source) (*Pipfile, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, perrors.Wrap(perrors.ErrCodePipfile, ErrExists, "%s", path)
	}
	p := New(python, sources...)
	if err := p.Save(path); err != nil {
		return nil, err
	}
	return p, nil
}
