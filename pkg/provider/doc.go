// Package provider connects the resolver to Python package indexes.
//
// # Overview
//
// [Provider] implements [resolvelib.Provider]. It finds candidate versions
// on the configured sources, decides whether a candidate satisfies a
// requirement, and discovers each candidate's dependencies through a chain
// of increasingly expensive strategies:
//
//  1. the persistent dependency cache,
//  2. the index's JSON release API (only for releases that ship a wheel),
//  3. building the artifact and reading its metadata.
//
// Every dependency list the provider fetches is also kept in memory. After
// resolution the locker reads it back through [Provider.DependenciesFor] to
// compute environment markers.
//
// # Pins
//
// [PinReuseProvider] prefers the versions of a previous lock file, so
// re-locking after an edit changes as little as possible.
// [EagerUpgradeProvider] drops the pins of selected packages and of
// everything they depend on, so exactly that part of the graph moves to
// the newest versions.
//
// [resolvelib.Provider]: github.com/matzehuels/pylock/pkg/resolvelib.Provider
package provider
