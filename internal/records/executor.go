package records

import "context"

// Executor is the narrow mutation surface the audit interceptor decorates.
// Implementations must execute read operations without side effects so a
// wrapped executor can pass them through untouched.
type Executor interface {
	Execute(ctx context.Context, m Mutation) (Result, error)
}

// Snapshotter is the isolated read path used for audit before-images. It
// bypasses interception (no recursion, no duplicate entries) and must use a
// single short-lived connection per call, released after use.
type Snapshotter interface {
	Snapshot(ctx context.Context, kind string, selector Record) (Record, bool, error)
}
