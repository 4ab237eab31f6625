// Package pkg provides the libraries behind pylock, a lock engine for
// Pipfile-managed Python projects.
//
// # Overview
//
// pylock reads a Pipfile, resolves every requirement against one or more
// package indexes, derives the environment markers under which each
// resolved package is needed and writes a Pipfile.lock with pinned
// versions and artifact hashes. The pkg directory is organized into four
// areas:
//
//  1. Project files - [pipfile], [lockfile], [requirement]
//  2. Resolution - [resolvelib], [provider], [pyspec], [markers]
//  3. Post-processing - [trace], [metadata], [lock]
//  4. Infrastructure - [cache], [integrations], [httputil], [builder],
//     [vcs], [observability]
//
// # Architecture
//
// The data flow of one lock:
//
//	Pipfile
//	   ↓
//	[provider] package (candidates from the index, dependencies from metadata)
//	   ↓
//	[resolvelib] package (round-based backtracking resolution)
//	   ↓
//	[trace] package (paths from the top-level requirements)
//	   ↓
//	[metadata] package (markers and Python constraints per package)
//	   ↓
//	[lock] package (hashes, sections, Pipfile.lock)
//
// # Quick Start
//
//	p, _ := pipfile.Load("Pipfile")
//	res, err := lock.New(p, lock.Options{
//	    Mode: lock.Basic,
//	    Provider: provider.Options{
//	        Index:   pypi.NewClient(cache.NullCache{}, 0),
//	        Builder: &builder.PipBuilder{},
//	    },
//	}).Lock(ctx)
//	if err != nil {
//	    return err
//	}
//	_ = res.Lockfile.Save("Pipfile.lock")
//
// # Testing
//
//	go test ./pkg/...                    # All tests
//	go test -tags integration ./pkg/...  # Include Redis and MongoDB tests
package pkg
