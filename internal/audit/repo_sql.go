package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"remit-backoffice/internal/records"
)

// SQLRepo persists audit entries in Postgres.
//
// Assumed table (INSERT-only; optional trigger to prevent UPDATE/DELETE):
//
//	audit_entries (
//	  id              uuid primary key,
//	  actor_user_id   text not null default '',
//	  entity_kind     text not null,
//	  entity_id       text not null,
//	  action          text not null,
//	  organisation_id text not null default '',
//	  payload         jsonb,
//	  changes         jsonb,
//	  ip_address      text not null default '',
//	  request_id      text not null default '',
//	  metadata        jsonb not null default '{}',
//	  created_at      timestamptz not null
//	)
//
// with indexes on (entity_kind, entity_id), (actor_user_id), created_at desc.
type SQLRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewSQLRepo(db *sql.DB) *SQLRepo {
	return &SQLRepo{db: db, clock: time.Now}
}

func (r *SQLRepo) Append(ctx context.Context, e Entry) error {
	e = stampEntry(e, r.clock().UTC())

	payload, err := marshalOrNil(e.Payload)
	if err != nil {
		return fmt.Errorf("audit: encode payload: %w", err)
	}
	changes, err := marshalOrNil(e.Changes)
	if err != nil {
		return fmt.Errorf("audit: encode changes: %w", err)
	}
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metadata, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("audit: encode metadata: %w", err)
	}

	const q = `
INSERT INTO audit_entries (
  id, actor_user_id, entity_kind, entity_id, action, organisation_id,
  payload, changes, ip_address, request_id, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
`
	_, err = r.db.ExecContext(ctx, q,
		e.ID,
		e.ActorUserID,
		e.EntityKind,
		e.EntityID,
		string(e.Action),
		e.OrganisationID,
		payload,
		changes,
		e.IPAddress,
		e.RequestID,
		metadata,
		e.CreatedAt,
	)
	return err
}

func (r *SQLRepo) List(ctx context.Context, f Filter) ([]Entry, int64, error) {
	where, args := listWhere(f)

	countQ := "SELECT COUNT(*) FROM audit_entries a" + where
	var total int64
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.PageSize
	offset := (f.Page - 1) * f.PageSize
	args = append(args, limit, offset)

	q := `
SELECT a.id, a.actor_user_id, a.entity_kind, a.entity_id, a.action, a.organisation_id,
       a.payload, a.changes, a.ip_address, a.request_id, a.metadata, a.created_at,
       u.name, u.email, o.name
FROM audit_entries a
LEFT JOIN users u ON u.id = a.actor_user_id
LEFT JOIN organisations o ON o.id = a.organisation_id` +
		where +
		fmt.Sprintf("\nORDER BY a.created_at DESC\nLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var action string
		var payload, changes, metadata []byte
		var actorName, actorEmail, orgName sql.NullString
		if err := rows.Scan(
			&e.ID,
			&e.ActorUserID,
			&e.EntityKind,
			&e.EntityID,
			&action,
			&e.OrganisationID,
			&payload,
			&changes,
			&e.IPAddress,
			&e.RequestID,
			&metadata,
			&e.CreatedAt,
			&actorName,
			&actorEmail,
			&orgName,
		); err != nil {
			return nil, 0, err
		}
		e.Action = Action(action)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, 0, fmt.Errorf("audit: decode payload: %w", err)
			}
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.Changes); err != nil {
				return nil, 0, fmt.Errorf("audit: decode changes: %w", err)
			}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, 0, fmt.Errorf("audit: decode metadata: %w", err)
			}
		}
		e.ActorName = actorName.String
		e.ActorEmail = actorEmail.String
		e.OrganisationName = orgName.String
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *SQLRepo) Stats(ctx context.Context, since time.Time) (Stats, error) {
	var s Stats

	const countsQ = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE created_at >= $1),
       COUNT(DISTINCT actor_user_id) FILTER (WHERE actor_user_id <> '')
FROM audit_entries
`
	if err := r.db.QueryRowContext(ctx, countsQ, since).Scan(&s.TotalLogs, &s.TodayLogs, &s.DistinctActors); err != nil {
		return Stats{}, err
	}

	const topQ = `
SELECT action, COUNT(*) AS n
FROM audit_entries
GROUP BY action
ORDER BY n DESC, action ASC
LIMIT 5
`
	rows, err := r.db.QueryContext(ctx, topQ)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var ac ActionCount
		var action string
		if err := rows.Scan(&action, &ac.Count); err != nil {
			return Stats{}, err
		}
		ac.Action = Action(action)
		s.TopActions = append(s.TopActions, ac)
	}
	return s, rows.Err()
}

func listWhere(f Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.ActorUserID != "" {
		add("a.actor_user_id = $%d", f.ActorUserID)
	}
	if f.EntityKind != "" {
		add("a.entity_kind = $%d", f.EntityKind)
	}
	if f.EntityID != "" {
		add("a.entity_id = $%d", f.EntityID)
	}
	if f.Action != "" {
		add("a.action = $%d", string(f.Action))
	}
	if f.OrganisationID != "" {
		add("a.organisation_id = $%d", f.OrganisationID)
	}
	if !f.From.IsZero() {
		add("a.created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("a.created_at < $%d", f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(conds, " AND "), args
}

func marshalOrNil(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case records.Record:
		if len(x) == 0 {
			return nil, nil
		}
	case map[string]FieldChange:
		if len(x) == 0 {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
