package authz

import "context"

// CallerStore persists the registered caller set.
//
// CreateIfAbsent must be atomic: when two registrations of the same ID race,
// exactly one succeeds and the other returns sentinel.ErrConflict.
type CallerStore interface {
	CreateIfAbsent(ctx context.Context, caller RegisteredCaller) error
	Exists(ctx context.Context, id string) (bool, error)
	// List returns callers ordered by registration time.
	List(ctx context.Context) ([]RegisteredCaller, error)
}
