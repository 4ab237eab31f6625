// Package pypitest serves an in-memory Python package index for tests.
//
// The index answers the PEP 691 JSON simple API, the JSON release API and
// artifact downloads. Wheels are real zip archives whose METADATA lists
// the declared requirements, so code that reads wheel metadata works
// against it unchanged.
//
//	ix := pypitest.New()
//	ix.Add("requests", "2.19.1", "idna<2.8,>=2.5", "certifi>=2017.4.17")
//	srv := httptest.NewServer(ix)
//	defer srv.Close()
//	src := pypi.Source{Name: "test", URL: srv.URL + "/simple", VerifySSL: true}
package pypitest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"deps.dev/util/pypi"
	"github.com/go-chi/chi/v5"
)

// Release describes one published version.
type Release struct {
	Version        string
	Requires       []string // Requires-Dist lines
	RequiresPython string
	Yanked         bool

	// NoWheel publishes only an sdist.
	NoWheel bool
	// NoSdist publishes only the wheel.
	NoSdist bool
	// WheelTag overrides the py3-none-any tag of the wheel.
	WheelTag string
}

// Index is a fixture package index. It implements http.Handler.
type Index struct {
	mu       sync.Mutex
	projects map[string][]Release
	files    map[string][]byte
	hits     map[string]int
	noJSON   bool
	router   chi.Router
}

// New returns an empty index.
func New() *Index {
	ix := &Index{
		projects: make(map[string][]Release),
		files:    make(map[string][]byte),
		hits:     make(map[string]int),
	}
	r := chi.NewRouter()
	r.Use(ix.count)
	r.Get("/simple/{name}/", ix.simple)
	r.Get("/pypi/{name}/{version}/json", ix.release)
	r.Get("/files/{filename}", ix.file)
	ix.router = r
	return ix
}

// Add publishes a wheel and an sdist of name at version.
func (ix *Index) Add(name, version string, requires ...string) *Index {
	return ix.AddRelease(name, Release{Version: version, Requires: requires})
}

// AddRelease publishes r.
func (ix *Index) AddRelease(name string, r Release) *Index {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	name = pypi.CanonPackageName(name)
	ix.projects[name] = append(ix.projects[name], r)
	for _, f := range filenames(name, r) {
		ix.files[f] = artifact(name, r, f)
	}
	return ix
}

// DisableJSONAPI makes the release endpoint answer 404, as on indexes
// that only implement the simple API.
func (ix *Index) DisableJSONAPI() *Index {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.noJSON = true
	return ix
}

// Hits returns how often path was requested.
func (ix *Index) Hits(path string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.hits[path]
}

// Hash returns the sha256 digest of an artifact as "sha256:<hex>".
func (ix *Index) Hash(filename string) string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	sum := sha256.Sum256(ix.files[filename])
	return "sha256:" + hex.EncodeToString(sum[:])
}

func (ix *Index) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ix.router.ServeHTTP(w, r)
}

func (ix *Index) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ix.mu.Lock()
		ix.hits[r.URL.Path]++
		ix.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type simpleFile struct {
	Filename       string            `json:"filename"`
	URL            string            `json:"url"`
	Hashes         map[string]string `json:"hashes"`
	RequiresPython string            `json:"requires-python,omitempty"`
	Yanked         bool              `json:"yanked"`
}

func (ix *Index) simple(w http.ResponseWriter, r *http.Request) {
	name := pypi.CanonPackageName(chi.URLParam(r, "name"))
	ix.mu.Lock()
	releases, ok := ix.projects[name]
	var files []simpleFile
	for _, rel := range releases {
		for _, f := range filenames(name, rel) {
			files = append(files, simpleFile{
				Filename:       f,
				URL:            "../../files/" + f,
				Hashes:         map[string]string{"sha256": digest(ix.files[f])},
				RequiresPython: rel.RequiresPython,
				Yanked:         rel.Yanked,
			})
		}
	}
	ix.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
	json.NewEncoder(w).Encode(map[string]any{
		"meta":  map[string]string{"api-version": "1.0"},
		"name":  name,
		"files": files,
	})
}

type releaseFile struct {
	Filename    string            `json:"filename"`
	URL         string            `json:"url"`
	PackageType string            `json:"packagetype"`
	Digests     map[string]string `json:"digests"`
	Yanked      bool              `json:"yanked"`
}

func (ix *Index) release(w http.ResponseWriter, r *http.Request) {
	name := pypi.CanonPackageName(chi.URLParam(r, "name"))
	version := chi.URLParam(r, "version")
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.noJSON {
		http.NotFound(w, r)
		return
	}
	i := slices.IndexFunc(ix.projects[name], func(rel Release) bool { return rel.Version == version })
	if i < 0 {
		http.NotFound(w, r)
		return
	}
	rel := ix.projects[name][i]
	var urls []releaseFile
	for _, f := range filenames(name, rel) {
		kind := "sdist"
		if strings.HasSuffix(f, ".whl") {
			kind = "bdist_wheel"
		}
		urls = append(urls, releaseFile{
			Filename:    f,
			URL:         "/files/" + f,
			PackageType: kind,
			Digests:     map[string]string{"sha256": digest(ix.files[f])},
			Yanked:      rel.Yanked,
		})
	}
	requires := rel.Requires
	if requires == nil {
		requires = []string{}
	}
	json.NewEncoder(w).Encode(map[string]any{
		"info": map[string]any{
			"name":            name,
			"version":         rel.Version,
			"requires_python": rel.RequiresPython,
			"requires_dist":   requires,
		},
		"urls": urls,
	})
}

func (ix *Index) file(w http.ResponseWriter, r *http.Request) {
	ix.mu.Lock()
	data, ok := ix.files[chi.URLParam(r, "filename")]
	ix.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Write(data)
}

func distName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func filenames(name string, r Release) []string {
	base := distName(name) + "-" + r.Version
	var out []string
	if !r.NoSdist {
		out = append(out, base+".tar.gz")
	}
	if !r.NoWheel {
		tag := r.WheelTag
		if tag == "" {
			tag = "py3-none-any"
		}
		out = append(out, base+"-"+tag+".whl")
	}
	return out
}

func metadata(name string, r Release) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Metadata-Version: 2.1\nName: %s\nVersion: %s\n", name, r.Version)
	if r.RequiresPython != "" {
		fmt.Fprintf(&b, "Requires-Python: %s\n", r.RequiresPython)
	}
	for _, req := range r.Requires {
		fmt.Fprintf(&b, "Requires-Dist: %s\n", req)
	}
	return b.String()
}

func artifact(name string, r Release, filename string) []byte {
	var buf bytes.Buffer
	meta := metadata(name, r)
	base := distName(name) + "-" + r.Version
	if strings.HasSuffix(filename, ".whl") {
		zw := zip.NewWriter(&buf)
		f, _ := zw.Create(base + ".dist-info/METADATA")
		f.Write([]byte(meta))
		zw.Close()
		return buf.Bytes()
	}
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	tw.WriteHeader(&tar.Header{Name: base + "/PKG-INFO", Mode: 0o644, Size: int64(len(meta))})
	tw.Write([]byte(meta))
	tw.Close()
	gz.Close()
	return buf.Bytes()
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
