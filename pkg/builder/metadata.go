package builder

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"deps.dev/util/pypi"
)

// Metadata is the part of a distribution's core metadata that locking
// needs.
type Metadata struct {
	Name     string
	Version  string
	Requires []string // PEP 508 requirement lines, markers included
}

// ReadMetadata reads the metadata of the wheel or sdist at path.
func ReadMetadata(ctx context.Context, path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(path, ".whl") {
		md, err := pypi.WheelMetadata(ctx, f, fi.Size())
		if err != nil {
			return nil, fmt.Errorf("read wheel metadata: %w", err)
		}
		return fromPyPI(md), nil
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	md, sdistErr := pypi.SdistMetadata(ctx, path, bytes.NewReader(data))
	if sdistErr == nil && len(md.Dependencies) > 0 {
		return fromPyPI(md), nil
	}
	egg, err := eggInfo(path, data)
	if err != nil {
		if sdistErr != nil {
			return nil, fmt.Errorf("read sdist metadata: %w", sdistErr)
		}
		return fromPyPI(md), nil
	}
	return egg, nil
}

func fromPyPI(md *pypi.Metadata) *Metadata {
	out := &Metadata{Name: pypi.CanonPackageName(md.Name), Version: md.Version}
	for _, d := range md.Dependencies {
		out.Requires = append(out.Requires, dependencyLine(d))
	}
	return out
}

func dependencyLine(d pypi.Dependency) string {
	var b strings.Builder
	b.WriteString(d.Name)
	if d.Extras != "" {
		b.WriteString("[" + d.Extras + "]")
	}
	b.WriteString(d.Constraint)
	if d.Environment != "" {
		b.WriteString("; " + d.Environment)
	}
	return b.String()
}

// eggInfo reads requires.txt from the *.egg-info directory whose PKG-INFO
// names the same distribution as the sdist's top-level PKG-INFO. Sdists
// often carry several egg-info directories (vendored or test projects),
// so the first one found is not necessarily the right one.
func eggInfo(filename string, data []byte) (*Metadata, error) {
	files := make(map[string][]byte)
	keep := func(name string) bool {
		base := path.Base(name)
		return base == "PKG-INFO" || base == "requires.txt"
	}
	if err := walkArchive(filename, data, func(name string, r io.Reader) error {
		if !keep(name) {
			return nil
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		files[name] = content
		return nil
	}); err != nil {
		return nil, err
	}

	var top *Metadata
	for name, content := range files {
		if strings.Count(name, "/") == 1 && path.Base(name) == "PKG-INFO" {
			top = headerMetadata(content)
		}
	}
	if top == nil {
		return nil, fmt.Errorf("%s: no top-level PKG-INFO", filename)
	}

	for name, content := range files {
		dir := path.Dir(name)
		if path.Base(name) != "PKG-INFO" || !strings.HasSuffix(dir, ".egg-info") {
			continue
		}
		candidate := headerMetadata(content)
		if candidate.Name != top.Name || candidate.Version != top.Version {
			continue
		}
		top.Requires = parseRequiresTxt(string(files[dir+"/requires.txt"]))
		return top, nil
	}
	return nil, fmt.Errorf("%s: no egg-info for %s %s", filename, top.Name, top.Version)
}

func headerMetadata(content []byte) *Metadata {
	md := &Metadata{}
	sc := bufio.NewScanner(bytes.NewReader(content))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "Name:"); ok {
			md.Name = pypi.CanonPackageName(strings.TrimSpace(v))
		} else if v, ok := strings.CutPrefix(line, "Version:"); ok {
			md.Version = strings.TrimSpace(v)
		}
	}
	return md
}

// parseRequiresTxt converts setuptools' requires.txt into requirement
// lines. Sections are "[extra]", "[extra:marker]" or "[:marker]".
func parseRequiresTxt(s string) []string {
	var out []string
	var cond string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			extra, marker, _ := strings.Cut(line[1:len(line)-1], ":")
			var parts []string
			if marker = strings.TrimSpace(marker); marker != "" {
				if extra != "" {
					marker = "(" + marker + ")"
				}
				parts = append(parts, marker)
			}
			if extra = strings.TrimSpace(extra); extra != "" {
				parts = append(parts, "extra == '"+extra+"'")
			}
			cond = strings.Join(parts, " and ")
			continue
		}
		if cond != "" {
			line += "; " + cond
		}
		out = append(out, line)
	}
	return out
}

func walkArchive(filename string, data []byte, fn func(string, io.Reader) error) error {
	switch {
	case strings.HasSuffix(filename, ".zip"):
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return err
		}
		for _, f := range zr.File {
			rc, err := f.Open()
			if err != nil {
				return err
			}
			err = fn(f.Name, rc)
			rc.Close()
			if err != nil {
				return err
			}
		}
		return nil
	case strings.HasSuffix(filename, ".tar.gz"), strings.HasSuffix(filename, ".tgz"):
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return err
		}
		defer gz.Close()
		tr := tar.NewReader(gz)
		for {
			h, err := tr.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if h.Typeflag != tar.TypeReg {
				continue
			}
			if err := fn(h.Name, tr); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported archive: %s", filename)
	}
}
