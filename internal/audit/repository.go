package audit

import (
	"context"
	"time"
)

// Filter selects audit entries on the read path. Zero values mean "any".
type Filter struct {
	ActorUserID    string
	EntityKind     string
	EntityID       string
	Action         Action
	OrganisationID string
	From           time.Time
	To             time.Time

	// Page is 1-based.
	Page     int
	PageSize int
}

// Stats are the aggregate counters exposed by the query service.
type Stats struct {
	TotalLogs      int64         `json:"total_logs"`
	TodayLogs      int64         `json:"today_logs"`
	DistinctActors int64         `json:"distinct_actors"`
	TopActions     []ActionCount `json:"top_actions"`
}

type ActionCount struct {
	Action Action `json:"action"`
	Count  int64  `json:"count"`
}

// Repository is the persistence contract for audit entries.
// It is append-only: there are no Update or Delete methods.
type Repository interface {
	Append(ctx context.Context, e Entry) error

	// List returns a page of entries sorted by created_at descending, plus
	// the total match count.
	List(ctx context.Context, f Filter) ([]Entry, int64, error)

	// Stats aggregates over all entries; since is the boundary for the
	// "today" counter.
	Stats(ctx context.Context, since time.Time) (Stats, error)
}
