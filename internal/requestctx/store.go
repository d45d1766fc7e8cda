package requestctx

import (
	"context"

	"github.com/google/uuid"
)

// Context carries per-request attribution data from the moment an inbound
// request is received until its response finishes. The audit interceptor
// reads it to attribute writes to a user/request; it never creates it.
type Context struct {
	ActorUserID    string         `json:"actor_user_id,omitempty"`
	OrganisationID string         `json:"organisation_id,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
	UserAgent      string         `json:"user_agent,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Store associates a request id with its Context for the lifetime of one
// inbound request.
//
// Contract:
// - Begin overwrites: last write for a given id wins.
// - Get is a pure lookup; it does not consume the entry.
// - End is idempotent; removing an absent id is not an error.
// - Each request id is an isolated slot; concurrent calls for distinct ids
//   must never cross-contaminate.
type Store interface {
	Begin(ctx context.Context, requestID string, rc Context) error
	Get(ctx context.Context, requestID string) (Context, bool, error)
	End(ctx context.Context, requestID string) error
}

// NewRequestID generates a globally-unique request identifier.
func NewRequestID() string {
	return uuid.NewString()
}
