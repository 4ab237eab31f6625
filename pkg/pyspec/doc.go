// Package pyspec implements a small algebra over Python-version constraints.
//
// # Overview
//
// Lock files describe when a package is needed with PEP 508 markers such as
// python_version >= '3.6'. When a package is reachable through several
// dependency paths, the conditions of each path have to be intersected along
// the path and unioned across paths. [PySpecs] is the value type that makes
// this possible for the python_version part of a marker.
//
// A PySpecs is an immutable, canonical list of (operator, version) clauses.
// Every constructor cleans its input:
//
//   - >X is rewritten as >=X.(minor+1) and <=X as <X.(minor+1), unless the
//     next minor is past [MaxMinor] for that major
//   - only the tightest lower and upper bound survive
//   - != clauses of the same major collapse into one "not in" clause
//
// # Algebra
//
// [PySpecs.And] intersects two constraint sets. [PySpecs.Or] unions them by
// materializing both sides against the universe of known minor versions,
// then re-deriving a range plus explicit exclusions that allows exactly the
// union. An empty PySpecs means "any Python", so it is the identity for And
// and absorbs Or.
//
//	a := pyspec.Parse(">=2.6,<3.0")
//	b := pyspec.Parse(">=3.3,<3.6")
//	fmt.Println(a.Or(b).SpecString())
//	// !=3.0,!=3.1,!=3.2,<3.6,>=2.6
//
// [PySpecs.String] renders marker clauses (python_version < '3.6' and ...),
// [PySpecs.SpecString] renders a PEP 440 specifier set.
package pyspec
