// Package pypi provides an HTTP client for Python package indexes.
//
// # Overview
//
// Two endpoints are used:
//
//   - the PEP 691 JSON simple API at <source>/<name>/, listing every
//     published file with its hashes, Requires-Python and yank status
//   - the JSON release endpoint at <prefix>/pypi/<name>/<version>/json,
//     which reports the dependencies of one release without downloading it
//
// The release endpoint only exists on indexes whose simple URL ends in
// /simple, such as https://pypi.org/simple; [Source.JSONAPI] derives its
// prefix.
//
// # Usage
//
//	client := pypi.NewClient(backend, time.Hour)
//	project, err := client.Project(ctx, pypi.DefaultSource, "requests", false)
//	for _, f := range project.Files {
//	    fmt.Println(f.Filename, f.Hash())
//	}
//
// # Caching
//
// Responses are cached in the backend passed to [NewClient] under the
// "pypi:" namespace. Pass refresh=true to bypass the cache.
//
// Package names are normalized following PEP 503.
package pypi
