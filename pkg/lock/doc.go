// Package lock turns a Pipfile into a lock file.
//
// A [Locker] runs the stages of one lock in order:
//
//	Idle → Resolving → Tracing → Hashing → Propagating → Done
//
// Any stage may end in Failed instead. Resolving drives a
// [resolvelib.Engine] with a candidate provider; Tracing records how each
// pinned package is reached from the Pipfile; Hashing collects artifact
// digests through a [cache.HashCache]; Propagating derives environment
// markers from the traces. The result is a [lockfile.Lockfile] that the
// caller writes. A Locker never writes files itself.
//
// # Variants
//
// [Basic] resolves from scratch. [PinReuse] keeps the versions of a
// previous lock where they still satisfy the Pipfile. [EagerUpgrade]
// keeps previous pins except for the named packages and everything
// reached through them.
//
//	l := lock.New(pf, lock.Options{Mode: lock.PinReuse, Previous: prev})
//	res, err := l.Lock(ctx)
//	if err != nil {
//	    return err
//	}
//	return res.Lockfile.Save("Pipfile.lock")
package lock
