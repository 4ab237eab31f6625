// Package resolvelib implements a round-based backtracking dependency
// resolver.
//
// # Overview
//
// The resolver knows nothing about package indexes. It drives a [Provider]
// that finds candidates for a requirement, checks whether a candidate
// satisfies a requirement and lists a candidate's dependencies. Each round
// picks the unsatisfied identifier with the lowest preference and pins its
// most preferred candidate whose dependencies are consistent with everything
// pinned so far. When no candidate fits, the resolver backtracks: it
// discards the most recent pin and marks that candidate incompatible.
//
// The result is a [State] holding the pinned candidate of every identifier
// and the dependency graph between them. Identifiers only reachable through
// candidates that were later replaced are pruned from the result.
//
// # Usage
//
//	r := resolvelib.NewResolver()
//	state, err := r.Resolve(ctx, provider, reporter, requirements)
//	var impossible *resolvelib.ResolutionImpossible
//	if errors.As(err, &impossible) {
//	    for _, c := range impossible.Causes {
//	        fmt.Println(c.Requirement, "required by", c.Parent)
//	    }
//	}
//
// [Engine] abstracts the resolver so callers can substitute a stub in
// tests.
package resolvelib
