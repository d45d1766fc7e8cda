package records

import "errors"

// Record is the loosely-shaped row representation shared by the generic CRUD
// surface and the audit interceptor. Field names are validated against the
// Schema before any SQL is built from them.
type Record map[string]any

// Clone returns a shallow copy. Callers that hand a Record to the async audit
// path must not observe later mutations of the original map.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Op identifies a record-store operation. The audit interceptor classifies
// entries from this enum rather than matching operation-name strings.
type Op int

const (
	OpCreate Op = iota
	OpUpdate
	OpDelete
	OpCreateMany
	OpUpdateMany
	OpDeleteMany
	OpFindOne
	OpFindMany
)

// IsMutation reports whether the operation writes data. Read operations pass
// through interception untouched.
func (o Op) IsMutation() bool {
	switch o {
	case OpCreate, OpUpdate, OpDelete, OpCreateMany, OpUpdateMany, OpDeleteMany:
		return true
	default:
		return false
	}
}

// IsBulk reports whether the operation may affect multiple rows.
func (o Op) IsBulk() bool {
	switch o {
	case OpCreateMany, OpUpdateMany, OpDeleteMany:
		return true
	default:
		return false
	}
}

// WireName is the operation's stable external name, used in synthetic bulk
// entity ids (bulk_<op>_<millis>) and log lines.
func (o Op) WireName() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpCreateMany:
		return "createMany"
	case OpUpdateMany:
		return "updateMany"
	case OpDeleteMany:
		return "deleteMany"
	case OpFindOne:
		return "findOne"
	case OpFindMany:
		return "findMany"
	default:
		return "unknown"
	}
}

// Mutation is one call against the record store.
type Mutation struct {
	Op   Op
	Kind string

	// Selector filters the affected rows (update/delete/find). All fields
	// are matched by equality.
	Selector Record

	// Data carries the submitted fields for create/update.
	Data Record

	// Batch carries the rows for createMany.
	Batch []Record

	// RequestID links the call to its request context entry. Empty for
	// system-initiated mutations.
	RequestID string
}

// Result is the outcome of an executed operation.
type Result struct {
	// Record is the post-operation row for single-row operations
	// (create/update: the stored state; delete/findOne: the row).
	Record Record

	// Rows is populated for findMany.
	Rows []Record

	// Affected is the row count for bulk mutations.
	Affected int64
}

var (
	ErrNotFound      = errors.New("records: not found")
	ErrUnknownKind   = errors.New("records: unknown entity kind")
	ErrInvalidField  = errors.New("records: field not in schema")
	ErrEmptyMutation = errors.New("records: empty mutation")
)
