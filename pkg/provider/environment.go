package provider

import (
	"slices"
	"strconv"
	"strings"

	"deps.dev/util/pypi"

	"github.com/matzehuels/pylock/pkg/pyspec"
)

// AllPythons disables Requires-Python filtering when used as the target
// Python version.
const AllPythons = ":all:"

// Environment describes the interpreter a lock targets.
type Environment struct {
	// PythonVersion is the target "major.minor" version. Empty or
	// [AllPythons] accepts every release and every wheel.
	PythonVersion string

	// Platforms lists accepted wheel platform tags. Empty accepts all.
	Platforms []string
}

func (e Environment) allPythons() bool {
	return e.PythonVersion == "" || e.PythonVersion == AllPythons
}

// SupportsPython reports whether a release declaring requiresPython can be
// installed on the target interpreter. A bare major version N means
// ">=N,<N+1".
func (e Environment) SupportsPython(requiresPython string) bool {
	requiresPython = strings.TrimSpace(requiresPython)
	if e.allPythons() || requiresPython == "" {
		return true
	}
	if n, err := strconv.Atoi(requiresPython); err == nil {
		requiresPython = ">=" + strconv.Itoa(n) + ",<" + strconv.Itoa(n+1)
	}
	return pyspec.Parse(requiresPython).Contains(e.PythonVersion)
}

// Compatible reports whether any tag of the wheel can be installed in e.
func (e Environment) Compatible(w *pypi.WheelInfo) bool {
	for _, tag := range w.Platforms {
		if e.compatibleTag(tag) {
			return true
		}
	}
	return false
}

func (e Environment) compatibleTag(tag pypi.PEP425Tag) bool {
	if len(e.Platforms) > 0 && tag.Platform != "any" && !slices.Contains(e.Platforms, tag.Platform) {
		return false
	}
	if e.allPythons() {
		return true
	}
	major, minor, _ := strings.Cut(e.PythonVersion, ".")
	py := strings.ToLower(tag.Python)
	abi := strings.ToLower(tag.ABI)

	switch py {
	case "py" + major, "py" + major + minor, "cp" + major + minor, "pp" + major + minor:
	default:
		// cp36-abi3 wheels install on every later CPython 3.
		if abi == "abi3" && strings.HasPrefix(py, "cp"+major) {
			want, _ := strconv.Atoi(minor)
			got, err := strconv.Atoi(strings.TrimPrefix(py, "cp"+major))
			return err == nil && got <= want
		}
		return false
	}
	switch {
	case abi == "none", abi == "abi3":
		return true
	case strings.HasPrefix(abi, "cp"+major+minor), strings.HasPrefix(abi, "pypy"):
		return true
	}
	return false
}
