package pypi

import (
	"net/url"
	"strings"
)

// DefaultIndexURL is the simple API of the public Python Package Index.
const DefaultIndexURL = "https://pypi.org/simple"

// DefaultSource is the source written into new Pipfiles.
var DefaultSource = Source{Name: "pypi", URL: DefaultIndexURL, VerifySSL: true}

// Source is a package index declared in a Pipfile.
type Source struct {
	Name      string `json:"name" toml:"name"`
	URL       string `json:"url" toml:"url"`
	VerifySSL bool   `json:"verify_ssl" toml:"verify_ssl"`
}

// SourceFromURL builds a source for an index URL, named after the first
// DNS label of its host. Hosts in trusted skip TLS verification.
func SourceFromURL(index string, trusted ...string) Source {
	src := Source{Name: "index", URL: strings.TrimSuffix(index, "/"), VerifySSL: true}
	u, err := url.Parse(index)
	if err != nil || u.Hostname() == "" {
		return src
	}
	src.Name, _, _ = strings.Cut(u.Hostname(), ".")
	for _, h := range trusted {
		if strings.EqualFold(h, u.Host) || strings.EqualFold(h, u.Hostname()) {
			src.VerifySSL = false
		}
	}
	return src
}

// Host returns the host (with port) of the source URL.
func (s Source) Host() string {
	u, err := url.Parse(s.URL)
	if err != nil {
		return ""
	}
	return u.Host
}

// JSONAPI returns the prefix of the JSON release API of s, which exists
// only when the simple URL ends in /simple.
func (s Source) JSONAPI() (string, bool) {
	prefix, ok := strings.CutSuffix(strings.TrimSuffix(s.URL, "/"), "/simple")
	return prefix, ok
}

// TrustedHosts returns the hosts of sources that disable TLS verification,
// followed by extra.
func TrustedHosts(sources []Source, extra ...string) []string {
	var hosts []string
	for _, s := range sources {
		if !s.VerifySSL {
			if h := s.Host(); h != "" {
				hosts = append(hosts, h)
			}
		}
	}
	return append(hosts, extra...)
}
