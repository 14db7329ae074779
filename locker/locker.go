package locker

import "context"

// Locker grants exclusive ownership of a resource identifier.
//
// Release must be called exactly once for every successful Acquire.
type Locker interface {
	// Acquire blocks until the identifier is owned by the caller.
	Acquire(ctx context.Context, id string) error

	// Release relinquishes ownership of the identifier.
	// Returns ErrLockNotHeld if the identifier is not held.
	Release(ctx context.Context, id string) error
}
