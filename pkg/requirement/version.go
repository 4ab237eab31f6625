package requirement

import (
	"slices"
	"sync"

	"deps.dev/util/semver"
	"github.com/golang/groupcache/lru"
)

var constraints = struct {
	sync.Mutex
	cache *lru.Cache
}{cache: lru.New(1024)}

// constraint parses a specifier set, memoizing the result.
func constraint(spec string) (*semver.Constraint, error) {
	constraints.Lock()
	defer constraints.Unlock()
	if c, ok := constraints.cache.Get(spec); ok {
		return c.(*semver.Constraint), nil
	}
	c, err := semver.PyPI.ParseConstraint(spec)
	if err != nil {
		return nil, err
	}
	constraints.cache.Add(spec, c)
	return c, nil
}

// ParseVersion parses a PEP 440 version.
func ParseVersion(v string) (*semver.Version, error) {
	return semver.PyPI.Parse(v)
}

// CompareVersions orders two PEP 440 versions. Unparseable versions sort
// before parseable ones and textually among themselves.
func CompareVersions(a, b string) int {
	va, errA := semver.PyPI.Parse(a)
	vb, errB := semver.PyPI.Parse(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA != nil && errB != nil:
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	case errA != nil:
		return -1
	}
	return 1
}

// SortVersions sorts versions ascending in place.
func SortVersions(versions []string) {
	slices.SortStableFunc(versions, CompareVersions)
}

// IsPrerelease reports whether v is a pre-release or development version.
func IsPrerelease(v string) bool {
	pv, err := semver.PyPI.Parse(v)
	if err != nil {
		return false
	}
	return pv.IsPrerelease()
}

// Contains reports whether version satisfies the specifier set of r.
// Pre-releases only match when prereleases is set or the specifier names
// one itself. An invalid specifier or version returns an error.
func (r *Requirement) Contains(version string, prereleases bool) (bool, error) {
	v, err := semver.PyPI.Parse(version)
	if err != nil {
		return false, err
	}
	c, err := constraint(r.Specifier)
	if err != nil {
		return false, err
	}
	if v.IsPrerelease() && prereleases {
		return c.MatchVersionPrerelease(v), nil
	}
	return c.MatchVersion(v), nil
}

// Filter returns the versions that satisfy r, keeping their order. When no
// final release matches but pre-releases do, the pre-releases are returned.
func (r *Requirement) Filter(versions []string, prereleases bool) []string {
	var final, pre []string
	for _, v := range versions {
		ok, err := r.Contains(v, true)
		if err != nil || !ok {
			continue
		}
		if IsPrerelease(v) {
			pre = append(pre, v)
			continue
		}
		final = append(final, v)
	}
	if prereleases {
		out := append(final, pre...)
		SortVersions(out)
		return out
	}
	if len(final) == 0 {
		return pre
	}
	return final
}
