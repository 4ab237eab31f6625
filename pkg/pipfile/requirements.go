package pipfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	perrors "github.com/matzehuels/pylock/pkg/errors"
	integrationspypi "github.com/matzehuels/pylock/pkg/integrations/pypi"
	"github.com/matzehuels/pylock/pkg/requirement"
)

// Imported is the content of a requirements file.
type Imported struct {
	Requirements []*requirement.Requirement
	Sources      []integrationspypi.Source
	// Skipped lists option lines that have no Pipfile equivalent.
	Skipped []string
}

// ImportRequirements reads a requirements.txt file. Nested "-r" files are
// resolved relative to the including file.
func ImportRequirements(path string) (*Imported, error) {
	out := &Imported{}
	if err := importFile(path, out, map[string]bool{}); err != nil {
		return nil, err
	}
	return out, nil
}

func importFile(path string, out *Imported, seen map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if seen[abs] {
		return nil
	}
	seen[abs] = true
	f, err := os.Open(path)
	if err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "open %s", path)
	}
	defer f.Close()
	return readRequirements(f, filepath.Dir(path), out, seen)
}

// ReadRequirements parses requirements.txt content. Nested "-r" files are
// resolved relative to dir.
func ReadRequirements(r io.Reader, dir string) (*Imported, error) {
	out := &Imported{}
	if err := readRequirements(r, dir, out, map[string]bool{}); err != nil {
		return nil, err
	}
	return out, nil
}

func readRequirements(r io.Reader, dir string, out *Imported, seen map[string]bool) error {
	var trusted []string
	var indexes []string
	lines, err := logicalLines(r)
	if err != nil {
		return err
	}
	for n, line := range lines {
		opt, arg := splitOption(line)
		switch opt {
		case "":
		case "-r", "--requirement":
			if !filepath.IsAbs(arg) {
				arg = filepath.Join(dir, arg)
			}
			if err := importFile(arg, out, seen); err != nil {
				return err
			}
			continue
		case "-i", "--index-url", "--extra-index-url":
			indexes = append(indexes, arg)
			continue
		case "--trusted-host":
			trusted = append(trusted, arg)
			continue
		case "-e", "--editable":
			line = "-e " + arg
		default:
			out.Skipped = append(out.Skipped, line)
			continue
		}
		req, err := requirement.ParseLine(stripHashes(line))
		if err != nil {
			return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "line %d", n+1)
		}
		out.Requirements = append(out.Requirements, req)
	}
	for _, idx := range indexes {
		out.Sources = append(out.Sources, integrationspypi.SourceFromURL(idx, trusted...))
	}
	return nil
}

// logicalLines joins backslash continuations and drops comments and blank
// lines.
func logicalLines(r io.Reader) ([]string, error) {
	var (
		out  []string
		cur  strings.Builder
		scan = bufio.NewScanner(r)
	)
	for scan.Scan() {
		line := scan.Text()
		if i := strings.Index(line, " #"); i >= 0 {
			line = line[:i]
		}
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			line = ""
		}
		if rest, ok := strings.CutSuffix(strings.TrimRight(line, " \t"), `\`); ok {
			cur.WriteString(rest)
			cur.WriteByte(' ')
			continue
		}
		cur.WriteString(line)
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("read requirements: %w", err)
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out, nil
}

// splitOption returns the option and argument of a line starting with
// "-", or empty strings for a requirement line.
func splitOption(line string) (opt, arg string) {
	if !strings.HasPrefix(line, "-") {
		return "", ""
	}
	if o, a, ok := strings.Cut(line, "="); ok && !strings.ContainsAny(o, " \t") {
		return o, strings.TrimSpace(a)
	}
	o, a, _ := strings.Cut(line, " ")
	return o, strings.TrimSpace(a)
}

// stripHashes drops pip's per-line --hash options.
func stripHashes(line string) string {
	fields := strings.Fields(line)
	kept := fields[:0]
	for _, f := range fields {
		if strings.HasPrefix(f, "--hash") {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// Import adds the requirements of im to a section and appends its sources
// whose URL is not configured yet. It returns the number of added sources.
func (p *Pipfile) Import(im *Imported, dev bool) int {
	for _, r := range im.Requirements {
		p.Add(r, dev)
	}
	added := 0
	for _, s := range im.Sources {
		known := false
		for _, have := range p.Sources {
			if strings.TrimSuffix(have.URL, "/") == strings.TrimSuffix(s.URL, "/") {
				known = true
				break
			}
		}
		if !known {
			p.Sources = append(p.Sources, s)
			added++
		}
	}
	return added
}
