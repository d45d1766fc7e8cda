package records

import (
	"fmt"
	"sort"
)

// Table maps an entity kind to its physical table and column set.
type Table struct {
	Name    string
	Columns []string
}

func (t Table) hasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Schema is the per-entity-kind field table. Every field name that reaches
// SQL construction is checked against it, which both prevents identifier
// injection and catches rule-list typos at startup instead of silently
// no-opping a diff.
type Schema map[string]Table

// DefaultSchema covers the back-office entity kinds.
func DefaultSchema() Schema {
	return Schema{
		"User": {
			Name:    "users",
			Columns: []string{"id", "organisation_id", "name", "email", "phone", "password", "role", "status", "created_at", "updated_at"},
		},
		"Organisation": {
			Name:    "organisations",
			Columns: []string{"id", "name", "email", "phone", "address", "country_code", "status", "webhook_secret", "created_at", "updated_at"},
		},
		// Currencies and countries are platform-global; they carry no
		// organisation_id, so audit organisation resolution falls back to
		// the request context or stays absent.
		"Currency": {
			Name:    "currencies",
			Columns: []string{"id", "name", "code", "symbol", "status", "created_at", "updated_at"},
		},
		"Country": {
			Name:    "countries",
			Columns: []string{"id", "name", "code", "country_code", "status", "created_at", "updated_at"},
		},
		"Integration": {
			Name:    "integrations",
			Columns: []string{"id", "organisation_id", "name", "mode", "status", "api_key", "api_secret", "webhook_secret", "token", "created_at", "updated_at"},
		},
		"Customer": {
			Name:    "customers",
			Columns: []string{"id", "organisation_id", "name", "email", "phone", "address", "status", "created_at", "updated_at"},
		},
		"Beneficiary": {
			Name:    "beneficiaries",
			Columns: []string{"id", "organisation_id", "customer_id", "name", "phone", "address", "country_code", "status", "created_at", "updated_at"},
		},
		"Branch": {
			Name:    "branches",
			Columns: []string{"id", "organisation_id", "name", "code", "address", "status", "created_at", "updated_at"},
		},
	}
}

func (s Schema) Table(kind string) (Table, bool) {
	t, ok := s[kind]
	return t, ok
}

// Kinds returns the known entity kinds in stable order.
func (s Schema) Kinds() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ValidateKinds rejects kinds absent from the schema.
func (s Schema) ValidateKinds(kinds []string) error {
	for _, k := range kinds {
		if _, ok := s[k]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownKind, k)
		}
	}
	return nil
}

// ValidateFieldsAny rejects field names that exist on none of the given
// kinds. Rule lists (tracked/sensitive) span kinds, so a field is valid as
// long as one audited kind carries it.
func (s Schema) ValidateFieldsAny(kinds, fields []string) error {
	for _, f := range fields {
		found := false
		for _, k := range kinds {
			if t, ok := s[k]; ok && t.hasColumn(f) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %q not present on any of %v", ErrInvalidField, f, kinds)
		}
	}
	return nil
}

// checkFields rejects any record/selector field not declared for the kind.
func (s Schema) checkFields(kind string, r Record) error {
	t, ok := s[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	for f := range r {
		if !t.hasColumn(f) {
			return fmt.Errorf("%w: %s.%s", ErrInvalidField, kind, f)
		}
	}
	return nil
}

// sortedFields returns the record's field names in deterministic order so
// generated SQL is stable.
func sortedFields(r Record) []string {
	out := make([]string, 0, len(r))
	for f := range r {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
