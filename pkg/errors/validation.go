package errors

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// pythonPackageNameRegex matches valid Python package names (PEP 508).
var pythonPackageNameRegex = regexp.MustCompile(`^([A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9._-]*[A-Za-z0-9])$`)

// ValidatePackageName validates a Python package name per PEP 508.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - Maximum length of 256 characters
//   - Letters, digits, '.', '_' and '-' only, starting and ending
//     alphanumerically
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "package name cannot be empty")
	}
	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "package name too long (max 256 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "package name contains invalid control characters")
		}
	}
	if !pythonPackageNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid Python package name: %q", name)
	}
	return nil
}

// ValidateIndexURL validates a package index URL. Only http and https
// indexes with a host are accepted.
func ValidateIndexURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "index URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid index URL %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return New(ErrCodeInvalidInput, "index URL must use http or https scheme")
	}
	if u.Host == "" {
		return New(ErrCodeInvalidInput, "index URL %q has no host", rawURL)
	}
	return nil
}

// ValidateHost validates a bare host name as accepted by --trusted-host,
// optionally with a port.
func ValidateHost(host string) error {
	if host == "" {
		return New(ErrCodeInvalidInput, "host cannot be empty")
	}
	if strings.ContainsAny(host, "/\\ @") {
		return New(ErrCodeInvalidInput, "invalid host %q", host)
	}
	return nil
}
