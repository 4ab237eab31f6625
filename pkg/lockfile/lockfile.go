// Package lockfile reads and writes Pipfile.lock documents.
//
// The document is JSON with a "_meta" object and the "default" and
// "develop" sections, each mapping a package name to its pinned entry.
// Output uses four-space indentation, sorted keys and a trailing newline,
// so locking the same project twice yields identical bytes.
package lockfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"slices"

	"deps.dev/util/pypi"

	perrors "github.com/matzehuels/pylock/pkg/errors"
	integrationspypi "github.com/matzehuels/pylock/pkg/integrations/pypi"
	pio "github.com/matzehuels/pylock/pkg/io"
	"github.com/matzehuels/pylock/pkg/pipfile"
	"github.com/matzehuels/pylock/pkg/requirement"
)

// FileName is the conventional lock file name.
const FileName = "Pipfile.lock"

// PipfileSpec is the lock format version written to _meta.
const PipfileSpec = 6

// ErrNotFound is returned by [Load] when no lock file exists.
var ErrNotFound = errors.New("lock file not found")

// Meta is the "_meta" object.
type Meta struct {
	Hash        map[string]string         `json:"hash"`
	PipfileSpec int                       `json:"pipfile-spec"`
	Requires    pipfile.Requires          `json:"requires"`
	Sources     []integrationspypi.Source `json:"sources"`
}

// Lockfile is a decoded lock file.
type Lockfile struct {
	Meta    Meta                         `json:"_meta"`
	Default map[string]requirement.Entry `json:"default"`
	Develop map[string]requirement.Entry `json:"develop"`
}

// New returns an empty lock file for p.
func New(p *pipfile.Pipfile) *Lockfile {
	return &Lockfile{
		Meta: Meta{
			Hash:        map[string]string{"sha256": p.Hash()},
			PipfileSpec: PipfileSpec,
			Requires:    p.Requires,
			Sources:     slices.Clone(p.Sources),
		},
		Default: map[string]requirement.Entry{},
		Develop: map[string]requirement.Entry{},
	}
}

// Load reads the lock file at path. A missing file yields [ErrNotFound].
func Load(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, perrors.Wrap(perrors.ErrCodeLockfile, ErrNotFound, "%s", path)
	}
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeLockfile, err, "read %s", path)
	}
	l, err := Parse(data)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeLockfile, err, "parse %s", path)
	}
	return l, nil
}

// Parse decodes a lock file document.
func Parse(data []byte) (*Lockfile, error) {
	var l Lockfile
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	if l.Default == nil {
		l.Default = map[string]requirement.Entry{}
	}
	if l.Develop == nil {
		l.Develop = map[string]requirement.Entry{}
	}
	return &l, nil
}

// IsUpToDate reports whether l was produced from the current content of p.
func (l *Lockfile) IsUpToDate(p *pipfile.Pipfile) bool {
	return l != nil && l.Meta.Hash["sha256"] == p.Hash()
}

// Section returns the entries of one section.
func (l *Lockfile) Section(dev bool) map[string]requirement.Entry {
	if dev {
		return l.Develop
	}
	return l.Default
}

// Requirements converts the entries of one section, keyed by identifier.
func (l *Lockfile) Requirements(dev bool) (map[requirement.Identifier]*requirement.Requirement, error) {
	out := map[requirement.Identifier]*requirement.Requirement{}
	section := l.Section(dev)
	for _, name := range requirement.Keys(section) {
		r, err := requirement.FromEntry(name, section[name])
		if err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeLockfile, err, "entry %s", name)
		}
		out[r.Identify()] = r
	}
	return out, nil
}

// Pins returns the pins of both sections, default entries winning over
// develop entries of the same identifier.
func (l *Lockfile) Pins() (map[requirement.Identifier]*requirement.Requirement, error) {
	if l == nil {
		return nil, nil
	}
	pins, err := l.Requirements(true)
	if err != nil {
		return nil, err
	}
	def, err := l.Requirements(false)
	if err != nil {
		return nil, err
	}
	for id, r := range def {
		pins[id] = r
	}
	return pins, nil
}

// Remove deletes the named packages from both sections and returns the
// canonical names that were present.
func (l *Lockfile) Remove(names ...string) []string {
	want := map[string]bool{}
	for _, n := range names {
		want[pypi.CanonPackageName(n)] = true
	}
	found := map[string]bool{}
	for _, section := range []map[string]requirement.Entry{l.Default, l.Develop} {
		for k := range section {
			if c := pypi.CanonPackageName(k); want[c] {
				delete(section, k)
				found[c] = true
			}
		}
	}
	return requirement.Keys(found)
}

// Write encodes l with sorted keys, four-space indentation and a trailing
// newline.
func (l *Lockfile) Write(w io.Writer) error {
	raw, err := json.Marshal(l)
	if err != nil {
		return err
	}
	// Struct fields marshal in declaration order; a generic value sorts
	// every object's keys.
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(generic)
}

// Bytes returns the encoded lock file.
func (l *Lockfile) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := l.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes l to path atomically.
func (l *Lockfile) Save(path string) error {
	data, err := l.Bytes()
	if err != nil {
		return perrors.Wrap(perrors.ErrCodeLockfile, err, "encode lock file")
	}
	if err := pio.WriteFileAtomic(path, data); err != nil {
		return perrors.Wrap(perrors.ErrCodeLockfile, err, "write %s", path)
	}
	return nil
}
