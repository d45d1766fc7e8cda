package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"remit-backoffice/internal/records"
	"remit-backoffice/internal/requestctx"
)

// InterceptorConfig wires the interceptor's collaborators.
type InterceptorConfig struct {
	// Inner is the real record store; every call is forwarded to it
	// unmodified.
	Inner records.Executor

	// Snapshots is the isolated read path for before-images. It must bypass
	// this interceptor.
	Snapshots records.Snapshotter

	// Contexts is the request context store owned by the HTTP layer.
	Contexts requestctx.Store

	Repo   Repository
	Rules  *Rules
	Logger *slog.Logger

	// PersistTimeout bounds each deferred audit write. Defaults to 10s.
	PersistTimeout time.Duration
}

// Interceptor decorates a records.Executor with change auditing. It is
// strictly additive: removing it changes nothing but the presence of audit
// entries. Exactly one failure domain (the inner mutation) surfaces to the
// caller; every audit-path failure is logged and discarded.
type Interceptor struct {
	inner          records.Executor
	snapshots      records.Snapshotter
	contexts       requestctx.Store
	repo           Repository
	rules          *Rules
	log            *slog.Logger
	persistTimeout time.Duration

	wg sync.WaitGroup

	// now is a test seam for synthetic bulk entity ids.
	now func() time.Time
}

func NewInterceptor(cfg InterceptorConfig) (*Interceptor, error) {
	if cfg.Inner == nil {
		return nil, errors.New("audit: inner executor required")
	}
	if cfg.Snapshots == nil {
		return nil, errors.New("audit: snapshotter required")
	}
	if cfg.Contexts == nil {
		return nil, errors.New("audit: request context store required")
	}
	if cfg.Repo == nil {
		return nil, errors.New("audit: repository required")
	}
	if cfg.Rules == nil {
		return nil, errors.New("audit: rules required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 10 * time.Second
	}
	return &Interceptor{
		inner:          cfg.Inner,
		snapshots:      cfg.Snapshots,
		contexts:       cfg.Contexts,
		repo:           cfg.Repo,
		rules:          cfg.Rules,
		log:            cfg.Logger,
		persistTimeout: cfg.PersistTimeout,
		now:            time.Now,
	}, nil
}

// Execute forwards the mutation to the inner store and, for audited entity
// kinds, records exactly one audit entry per mutating call.
func (i *Interceptor) Execute(ctx context.Context, m records.Mutation) (records.Result, error) {
	action, audited := ActionForOp(m.Op)
	if !audited || !i.rules.IsAudited(m.Kind) {
		// Out of scope: no entry, no context access, only the map lookup.
		return i.inner.Execute(ctx, m)
	}

	rid := m.RequestID
	if rid == "" {
		rid = requestctx.NewRequestID()
	}

	rc, found, err := i.contexts.Get(ctx, rid)
	if err != nil {
		i.log.Warn("audit: context lookup failed", "request_id", rid, "err", err)
	}
	if !found {
		// Synthesize an empty context so the rest of the pipeline behaves
		// uniformly for system-initiated mutations.
		rc = requestctx.Context{}
	}

	before := i.beforeSnapshot(ctx, m)

	res, execErr := i.inner.Execute(ctx, m)

	// The context entry is consumed by this mutation whatever its outcome;
	// it must never leak into another request.
	if err := i.contexts.End(ctx, rid); err != nil {
		i.log.Warn("audit: context release failed", "request_id", rid, "err", err)
	}

	if execErr != nil {
		return records.Result{}, execErr
	}

	entry, ok := i.buildEntry(m, action, rid, rc, before, res)
	if ok {
		i.persistDetached(ctx, entry)
	}
	return res, nil
}

// Drain waits for in-flight audit writes, bounded by ctx. Call it during
// shutdown; entries still unwritten when the process dies are lost, which is
// acceptable for a best-effort trail.
func (i *Interceptor) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// beforeSnapshot fetches the pre-mutation state for update/delete when the
// selector resolves to a single-record lookup (id or the email natural key).
// Any failure is logged and treated as "no before-state": it must never
// abort the mutation.
func (i *Interceptor) beforeSnapshot(ctx context.Context, m records.Mutation) records.Record {
	if m.Op != records.OpUpdate && m.Op != records.OpDelete {
		return nil
	}
	sel, ok := snapshotSelector(m.Selector)
	if !ok {
		return nil
	}
	snap, found, err := i.snapshots.Snapshot(ctx, m.Kind, sel)
	if err != nil {
		i.log.Warn("audit: before-snapshot failed",
			"op", m.Op.WireName(), "entity_kind", m.Kind, "err", err)
		return nil
	}
	if !found {
		return nil
	}
	return snap
}

// buildEntry assembles the audit entry. It runs inside the request but is
// isolated: a panic here is logged and suppresses only the entry, never the
// caller's result.
func (i *Interceptor) buildEntry(
	m records.Mutation,
	action Action,
	rid string,
	rc requestctx.Context,
	before records.Record,
	res records.Result,
) (entry Entry, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			i.log.Error("audit: entry build failed",
				"op", m.Op.WireName(), "entity_kind", m.Kind, "panic", fmt.Sprint(p))
			entry, ok = Entry{}, false
		}
	}()

	entry = Entry{
		ActorUserID:    rc.ActorUserID,
		EntityKind:     m.Kind,
		EntityID:       i.resolveEntityID(m, res),
		Action:         action,
		OrganisationID: resolveOrganisationID(rc, res.Record, before),
		IPAddress:      rc.IPAddress,
		RequestID:      rid,
		Metadata:       buildMetadata(m.Kind, action, rc, i.now()),
	}

	if action == ActionCreate {
		entry.Payload = i.rules.RedactPayload(m.Data)
	}
	if action == ActionUpdate {
		entry.Changes = i.rules.Diff(before, res.Record)
	}
	return entry, true
}

func (i *Interceptor) persistDetached(ctx context.Context, entry Entry) {
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				i.log.Error("audit: persist panicked",
					"entity_kind", entry.EntityKind, "entity_id", entry.EntityID, "panic", fmt.Sprint(p))
			}
		}()

		// Detach from the request's cancellation: the caller has its result
		// already and must not be able to cancel the trail write.
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.persistTimeout)
		defer cancel()

		if err := i.repo.Append(pctx, entry); err != nil {
			i.log.Error("audit: append failed",
				"entity_kind", entry.EntityKind, "entity_id", entry.EntityID,
				"action", string(entry.Action), "err", err)
		}
	}()
}

// resolveEntityID: result id, else selector id, else selector email, else a
// synthetic bulk token, else "unknown".
func (i *Interceptor) resolveEntityID(m records.Mutation, res records.Result) string {
	if res.Record != nil {
		if id := asString(res.Record["id"]); id != "" {
			return id
		}
	}
	if id := asString(m.Selector["id"]); id != "" {
		return id
	}
	if email := asString(m.Selector["email"]); email != "" {
		return email
	}
	if m.Op.IsBulk() {
		return fmt.Sprintf("bulk_%s_%d", m.Op.WireName(), i.now().UnixMilli())
	}
	return "unknown"
}

func resolveOrganisationID(rc requestctx.Context, result, before records.Record) string {
	if rc.OrganisationID != "" {
		return rc.OrganisationID
	}
	if result != nil {
		if v := asString(result["organisation_id"]); v != "" {
			return v
		}
	}
	if before != nil {
		if v := asString(before["organisation_id"]); v != "" {
			return v
		}
	}
	// Kinds without an organisation_id field resolve to absent; known
	// coverage gap, preserved deliberately.
	return ""
}

func buildMetadata(kind string, action Action, rc requestctx.Context, now time.Time) map[string]any {
	meta := make(map[string]any, len(rc.Metadata)+5)
	for k, v := range rc.Metadata {
		meta[k] = v
	}
	meta["entity_kind"] = kind
	meta["action"] = string(action)
	meta["timestamp"] = now.UTC().Format(time.RFC3339Nano)
	meta["user_agent"] = rc.UserAgent
	if _, ok := meta["integration_mode"]; !ok {
		meta["integration_mode"] = ""
	}
	return meta
}

// snapshotSelector reduces a mutation selector to a single-record lookup.
// Only id and the email natural key qualify; other selector shapes skip the
// before-image (and therefore the diff) entirely.
func snapshotSelector(sel records.Record) (records.Record, bool) {
	if v := asString(sel["id"]); v != "" {
		return records.Record{"id": v}, true
	}
	if v := asString(sel["email"]); v != "" {
		return records.Record{"email": v}, true
	}
	return nil, false
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
