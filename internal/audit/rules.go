package audit

import (
	"reflect"

	"remit-backoffice/internal/config"
	"remit-backoffice/internal/records"
)

// Rules are the configured audit lists: which entity kinds are audited,
// which fields are diffed, and which field values are redacted.
//
// The lists are validated against the record schema when constructed, so a
// typo in configuration fails startup instead of silently skipping a field.
type Rules struct {
	auditedKinds map[string]struct{}
	tracked      []string
	sensitive    map[string]struct{}
	marker       string
}

func NewRules(cfg config.AuditConfig, schema records.Schema) (*Rules, error) {
	if err := schema.ValidateKinds(cfg.AuditedKinds); err != nil {
		return nil, err
	}
	if err := schema.ValidateFieldsAny(cfg.AuditedKinds, cfg.TrackedFields); err != nil {
		return nil, err
	}
	// Sensitive fields are not schema-checked: a field worth redacting in a
	// payload may arrive from a client without being a stored column.

	r := &Rules{
		auditedKinds: make(map[string]struct{}, len(cfg.AuditedKinds)),
		tracked:      append([]string(nil), cfg.TrackedFields...),
		sensitive:    make(map[string]struct{}, len(cfg.SensitiveFields)),
		marker:       cfg.RedactionMarker,
	}
	for _, k := range cfg.AuditedKinds {
		r.auditedKinds[k] = struct{}{}
	}
	for _, f := range cfg.SensitiveFields {
		r.sensitive[f] = struct{}{}
	}
	return r, nil
}

// IsAudited is the interceptor's scope check; it must stay a plain map
// lookup so pass-through calls pay nothing beyond it.
func (r *Rules) IsAudited(kind string) bool {
	_, ok := r.auditedKinds[kind]
	return ok
}

// RedactPayload returns a copy of data with every non-empty sensitive field
// replaced by the redaction marker. Other fields pass through unchanged.
func (r *Rules) RedactPayload(data records.Record) records.Record {
	if data == nil {
		return nil
	}
	out := data.Clone()
	for f := range r.sensitive {
		if v, ok := out[f]; ok && !isEmptyValue(v) {
			out[f] = r.marker
		}
	}
	return out
}

// Diff compares every tracked field between before- and after-states and
// returns old/new pairs for the ones that differ. Fields absent from either
// side are omitted. A nil return means no tracked field changed.
func (r *Rules) Diff(before, after records.Record) map[string]FieldChange {
	if before == nil || after == nil {
		return nil
	}
	var out map[string]FieldChange
	for _, f := range r.tracked {
		oldV, oldOK := before[f]
		newV, newOK := after[f]
		if !oldOK || !newOK {
			continue
		}
		if valuesEqual(oldV, newV) {
			continue
		}
		if out == nil {
			out = make(map[string]FieldChange)
		}
		out[f] = FieldChange{Old: oldV, New: newV}
	}
	return out
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

// valuesEqual avoids the runtime panic of comparing uncomparable dynamic
// types with ==.
func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
