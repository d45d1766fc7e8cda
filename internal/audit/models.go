package audit

import (
	"time"

	"remit-backoffice/internal/records"

	"github.com/google/uuid"
)

// Entry is one durable record per intercepted mutation.
//
// Invariants:
// - Entries are immutable once created; this subsystem never updates or
//   deletes them.
// - Changes is present only for UPDATE when at least one tracked field
//   actually changed.
// - Payload never contains raw values for sensitive fields; those carry the
//   redaction marker instead.
//
// Storage recommendation (Postgres):
// - Table audit_entries with an INSERT-only policy.
// - Indexes on (entity_kind, entity_id), (actor_user_id), created_at DESC.
type Entry struct {
	ID string `json:"id" db:"id"`

	// ActorUserID is empty for anonymous or system-initiated operations.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	EntityKind string `json:"entity_kind" db:"entity_kind"`

	// EntityID is the primary identifier of the affected record; bulk
	// operations carry a synthetic bulk_<operation>_<epoch-millis> token.
	EntityID string `json:"entity_id" db:"entity_id"`

	Action Action `json:"action" db:"action"`

	// OrganisationID resolution order: request context, post-mutation
	// result, pre-mutation snapshot, absent.
	OrganisationID string `json:"organisation_id,omitempty" db:"organisation_id"`

	// Payload is the redacted submitted data; CREATE only.
	Payload records.Record `json:"payload,omitempty" db:"payload"`

	// Changes maps tracked field names to their old/new values; UPDATE only.
	Changes map[string]FieldChange `json:"changes,omitempty" db:"changes"`

	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`
	RequestID string `json:"request_id,omitempty" db:"request_id"`

	Metadata map[string]any `json:"metadata" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Display fields joined on the read path; never persisted on the entry.
	ActorName        string `json:"actor_name,omitempty" db:"-"`
	ActorEmail       string `json:"actor_email,omitempty" db:"-"`
	OrganisationName string `json:"organisation_name,omitempty" db:"-"`
}

// FieldChange records one tracked field's transition.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

type Action string

const (
	ActionCreate     Action = "CREATE"
	ActionUpdate     Action = "UPDATE"
	ActionDelete     Action = "DELETE"
	ActionCreateMany Action = "CREATE_MANY"
	ActionUpdateMany Action = "UPDATE_MANY"
	ActionDeleteMany Action = "DELETE_MANY"
)

// ActionForOp classifies a record-store operation. Reads and unrecognized
// operations are not audited.
func ActionForOp(op records.Op) (Action, bool) {
	switch op {
	case records.OpCreate:
		return ActionCreate, true
	case records.OpUpdate:
		return ActionUpdate, true
	case records.OpDelete:
		return ActionDelete, true
	case records.OpCreateMany:
		return ActionCreateMany, true
	case records.OpUpdateMany:
		return ActionUpdateMany, true
	case records.OpDeleteMany:
		return ActionDeleteMany, true
	default:
		return "", false
	}
}

// stampEntry assigns persistence-time fields. Repositories call it so the id
// is generated where the entry becomes durable.
func stampEntry(e Entry, now time.Time) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return e
}
