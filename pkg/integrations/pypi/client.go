package pypi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"deps.dev/util/pypi"

	"github.com/matzehuels/pylock/pkg/cache"
	"github.com/matzehuels/pylock/pkg/integrations"
)

const simpleJSON = "application/vnd.pypi.simple.v1+json"

// ErrNoJSONAPI is returned by [Client.Release] for sources without the
// JSON release endpoint.
var ErrNoJSONAPI = errors.New("index has no JSON release API")

// Client provides access to Python package indexes.
// It handles HTTP requests with caching and automatic retries.
type Client struct {
	*integrations.Client
}

// NewClient creates an index client with the given cache backend.
//
// Parameters:
//   - backend: Cache backend for HTTP response caching (nil disables caching)
//   - cacheTTL: How long responses are cached
//   - trustedHosts: hosts reached without TLS verification
func NewClient(backend cache.Cache, cacheTTL time.Duration, trustedHosts ...string) *Client {
	c := integrations.NewClient(backend, "pypi:", cacheTTL, nil)
	if len(trustedHosts) > 0 {
		c = c.WithTrustedHosts(trustedHosts...)
	}
	return &Client{Client: c}
}

// Project lists the files a source publishes for a package.
//
// Returns [integrations.ErrNotFound] if the source does not know the
// package. File URLs are absolute.
func (c *Client) Project(ctx context.Context, src Source, name string, refresh bool) (*Project, error) {
	name = pypi.CanonPackageName(name)
	page := strings.TrimSuffix(src.URL, "/") + "/" + name + "/"

	var p Project
	err := c.Cached(ctx, cache.Key("simple", page), refresh, &p, func() error {
		return c.fetchProject(ctx, page, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) fetchProject(ctx context.Context, page string, p *Project) error {
	var data simpleResponse
	err := c.GetWithHeaders(ctx, page, map[string]string{"Accept": simpleJSON}, &data)
	if err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: %s", err, page)
		}
		return err
	}
	base, err := url.Parse(page)
	if err != nil {
		return err
	}
	files := make([]File, 0, len(data.Files))
	for _, f := range data.Files {
		ref, err := url.Parse(f.URL)
		if err != nil {
			continue
		}
		f.URL = base.ResolveReference(ref).String()
		files = append(files, f)
	}
	*p = Project{Name: pypi.CanonPackageName(data.Name), Files: files}
	return nil
}

// Release fetches the JSON metadata of one release.
func (c *Client) Release(ctx context.Context, src Source, name, version string, refresh bool) (*Release, error) {
	prefix, ok := src.JSONAPI()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoJSONAPI, src.URL)
	}
	name = pypi.CanonPackageName(name)
	endpoint := fmt.Sprintf("%s/pypi/%s/%s/json", prefix, name, url.PathEscape(version))

	var r Release
	err := c.Cached(ctx, cache.Key("release", endpoint), refresh, &r, func() error {
		return c.Get(ctx, endpoint, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type simpleResponse struct {
	Name  string `json:"name"`
	Files []File `json:"files"`
}

// Project is the file listing of one package on one source.
type Project struct {
	Name  string `json:"name"`
	Files []File `json:"files"`
}

// Versions returns every version with at least one file, in no
// particular order.
func (p *Project) Versions() []string {
	var out []string
	for _, f := range p.Files {
		if v := f.Version(p.Name); v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// File is one published artifact.
type File struct {
	Filename       string            `json:"filename"`
	URL            string            `json:"url"`
	Hashes         map[string]string `json:"hashes"`
	RequiresPython string            `json:"requires-python,omitempty"`
	Yanked         Yanked            `json:"yanked,omitempty"`
}

// IsWheel reports whether f is a wheel.
func (f File) IsWheel() bool { return strings.HasSuffix(f.Filename, ".whl") }

// Wheel parses the wheel file name of f.
func (f File) Wheel() (*pypi.WheelInfo, error) { return pypi.ParseWheelName(f.Filename) }

// Version returns the version encoded in the file name, or "" when the
// name cannot be parsed for the package name.
func (f File) Version(name string) string {
	if f.IsWheel() {
		w, err := f.Wheel()
		if err != nil {
			return ""
		}
		return w.Version
	}
	if !isSdist(f.Filename) {
		return ""
	}
	_, v, err := pypi.SdistVersion(pypi.CanonPackageName(name), f.Filename)
	if err != nil {
		return ""
	}
	return v
}

// Hash returns the preferred digest of f as "algorithm:hex", sha256 when
// available. It returns "" when the index publishes no hash.
func (f File) Hash() string {
	if h, ok := f.Hashes["sha256"]; ok {
		return "sha256:" + h
	}
	algos := make([]string, 0, len(f.Hashes))
	for a := range f.Hashes {
		algos = append(algos, a)
	}
	slices.Sort(algos)
	if len(algos) == 0 {
		return ""
	}
	return algos[0] + ":" + f.Hashes[algos[0]]
}

func isSdist(filename string) bool {
	for _, ext := range []string{".tar.gz", ".zip", ".tar.bz2", ".tgz", ".tar"} {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}

// Yanked is the PEP 592 yank status, published either as a boolean or as
// the yank reason.
type Yanked bool

func (y *Yanked) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*y = Yanked(b)
		return nil
	}
	var reason string
	if err := json.Unmarshal(data, &reason); err != nil {
		return err
	}
	*y = true
	return nil
}

// Release is the JSON metadata of one release.
type Release struct {
	Info ReleaseInfo   `json:"info"`
	URLs []ReleaseFile `json:"urls"`
}

// ReleaseInfo holds the core metadata of a release.
type ReleaseInfo struct {
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	RequiresPython string   `json:"requires_python"`
	RequiresDist   []string `json:"requires_dist"`
}

// ReleaseFile is an artifact listed by the release endpoint.
type ReleaseFile struct {
	Filename    string            `json:"filename"`
	URL         string            `json:"url"`
	PackageType string            `json:"packagetype"`
	Digests     map[string]string `json:"digests"`
	Yanked      bool              `json:"yanked"`
}

// HasWheel reports whether the release ships at least one wheel. Only then
// are its requires_dist read from the wheel metadata.
func (r *Release) HasWheel() bool {
	return slices.ContainsFunc(r.URLs, func(f ReleaseFile) bool {
		return f.PackageType == "bdist_wheel"
	})
}
