package audit

import (
	"reflect"
	"testing"

	"remit-backoffice/internal/config"
	"remit-backoffice/internal/records"
)

func testAuditConfig() config.AuditConfig {
	return config.AuditConfig{
		AuditedKinds:    []string{"User", "Organisation", "Currency", "Country", "Integration"},
		TrackedFields:   []string{"name", "email", "status", "code", "mode"},
		SensitiveFields: []string{"password", "api_secret", "webhook_secret", "api_key", "token"},
		RedactionMarker: "[REDACTED]",
	}
}

func mustRules(t *testing.T) *Rules {
	t.Helper()
	r, err := NewRules(testAuditConfig(), records.DefaultSchema())
	if err != nil {
		t.Fatalf("NewRules: %v", err)
	}
	return r
}

func TestNewRules_AcceptsConfigDefaults(t *testing.T) {
	// The defaults installed by config.Validate must construct valid rules,
	// or the process cannot boot without env overrides.
	c := config.Config{
		App:   config.AppConfig{Env: "local", Port: 8080},
		DB:    config.DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "backoffice"},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
		Auth:  config.AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, err := NewRules(c.Audit, records.DefaultSchema()); err != nil {
		t.Fatalf("default audit config rejected: %v", err)
	}
}

func TestNewRules_RejectsUnknownKind(t *testing.T) {
	cfg := testAuditConfig()
	cfg.AuditedKinds = append(cfg.AuditedKinds, "Widget")
	if _, err := NewRules(cfg, records.DefaultSchema()); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestNewRules_RejectsUnknownTrackedField(t *testing.T) {
	cfg := testAuditConfig()
	cfg.TrackedFields = append(cfg.TrackedFields, "no_such_column")
	if _, err := NewRules(cfg, records.DefaultSchema()); err == nil {
		t.Fatal("expected error for unknown tracked field")
	}
}

func TestNewRules_SensitiveFieldsNotSchemaChecked(t *testing.T) {
	cfg := testAuditConfig()
	cfg.SensitiveFields = append(cfg.SensitiveFields, "client_secret")
	if _, err := NewRules(cfg, records.DefaultSchema()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsAudited(t *testing.T) {
	r := mustRules(t)
	if !r.IsAudited("User") {
		t.Error("User should be audited")
	}
	if r.IsAudited("Customer") {
		t.Error("Customer should not be audited")
	}
	if r.IsAudited("user") {
		t.Error("kind matching is case sensitive")
	}
}

func TestRedactPayload(t *testing.T) {
	r := mustRules(t)
	in := records.Record{
		"email":    "ops@example.com",
		"password": "hunter2",
		"api_key":  "sk_live_abc123",
	}
	out := r.RedactPayload(in)

	if out["email"] != "ops@example.com" {
		t.Errorf("email altered: %v", out["email"])
	}
	if out["password"] != "[REDACTED]" {
		t.Errorf("password not redacted: %v", out["password"])
	}
	if out["api_key"] != "[REDACTED]" {
		t.Errorf("api_key not redacted: %v", out["api_key"])
	}
	if in["password"] != "hunter2" {
		t.Error("input mutated")
	}
}

func TestRedactPayload_EmptyValuesPassThrough(t *testing.T) {
	r := mustRules(t)
	out := r.RedactPayload(records.Record{"password": "", "token": nil})
	if out["password"] != "" {
		t.Errorf("empty string should stay empty, got %v", out["password"])
	}
	if out["token"] != nil {
		t.Errorf("nil should stay nil, got %v", out["token"])
	}
}

func TestRedactPayload_Nil(t *testing.T) {
	r := mustRules(t)
	if out := r.RedactPayload(nil); out != nil {
		t.Errorf("expected nil, got %v", out)
	}
}

func TestDiff(t *testing.T) {
	r := mustRules(t)
	before := records.Record{"status": "ACTIVE", "name": "Acme", "email": "a@b.c"}
	after := records.Record{"status": "BLOCKED", "name": "Acme", "email": "a@b.c"}

	got := r.Diff(before, after)
	want := map[string]FieldChange{"status": {Old: "ACTIVE", New: "BLOCKED"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Diff = %v, want %v", got, want)
	}
}

func TestDiff_NoChangeReturnsNil(t *testing.T) {
	r := mustRules(t)
	rec := records.Record{"status": "ACTIVE", "name": "Acme"}
	if got := r.Diff(rec, rec.Clone()); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestDiff_FieldMissingOnEitherSideSkipped(t *testing.T) {
	r := mustRules(t)
	before := records.Record{"status": "ACTIVE"}
	after := records.Record{"status": "ACTIVE", "name": "Acme"}
	if got := r.Diff(before, after); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestDiff_NilSide(t *testing.T) {
	r := mustRules(t)
	if got := r.Diff(nil, records.Record{"status": "ACTIVE"}); got != nil {
		t.Fatalf("expected nil without before-state, got %v", got)
	}
}

func TestDiff_UntrackedFieldIgnored(t *testing.T) {
	r := mustRules(t)
	before := records.Record{"password": "old", "status": "ACTIVE"}
	after := records.Record{"password": "new", "status": "ACTIVE"}
	if got := r.Diff(before, after); got != nil {
		t.Fatalf("untracked field leaked into diff: %v", got)
	}
}
