package pyspec

import (
	"slices"
	"strconv"
	"strings"
)

// MaxMinor is the highest known minor release for each Python major version.
// Rewrites that would step past it keep their exclusive form.
var MaxMinor = map[int]int{2: 7, 3: 13}

// version is a purely numeric release (major, minor, micro...).
type version []int

func parseVersion(s string) (version, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	parts := strings.Split(s, ".")
	v := make(version, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, false
		}
		v = append(v, n)
	}
	return v, true
}

func (v version) at(i int) int {
	if i < len(v) {
		return v[i]
	}
	return 0
}

func (v version) compare(o version) int {
	n := max(len(v), len(o))
	for i := range n {
		if a, b := v.at(i), o.at(i); a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}

// hasPrefix reports whether v, padded with zeros, starts with p.
func (v version) hasPrefix(p version) bool {
	for i := range p {
		if v.at(i) != p[i] {
			return false
		}
	}
	return true
}

func (v version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// nextMinor returns X.(minor+1) and whether that release is known.
func (v version) nextMinor() (version, bool) {
	major := v.at(0)
	limit, ok := MaxMinor[major]
	next := version{major, v.at(1) + 1}
	return next, ok && next[1] <= limit
}

func lastMajor() int {
	return slices.Max(majors())
}

func majors() []int {
	out := make([]int, 0, len(MaxMinor))
	for m := range MaxMinor {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// universe lists every known minor release in ascending order.
func universe() []version {
	var out []version
	for _, major := range majors() {
		for minor := 0; minor <= MaxMinor[major]; minor++ {
			out = append(out, version{major, minor})
		}
	}
	return out
}

// below stands for every release older than the universe.
var below = version{0}

// upcoming is the first minor past the universe, e.g. 3.14.
func upcoming() version {
	m := lastMajor()
	return version{m, MaxMinor[m] + 1}
}

// beyond is the first release of the next unreleased major.
func beyond() version {
	return version{lastMajor() + 1, 0}
}

// successor returns the smallest release that does not start with v. The
// last known minor of an older major is followed by the next major.
func successor(v version) version {
	switch len(v) {
	case 0:
		return v
	case 1:
		return version{v[0] + 1}
	case 2:
		major, minor := v[0], v[1]
		if limit, ok := MaxMinor[major]; ok && minor == limit && major != lastMajor() {
			return version{major + 1, 0}
		}
		return version{major, minor + 1}
	}
	next := slices.Clone(v)
	next[len(next)-1]++
	return next
}

// resize truncates v or pads it with zeros to n components.
func (v version) resize(n int) version {
	out := make(version, n)
	for i := range out {
		out[i] = v.at(i)
	}
	return out
}
