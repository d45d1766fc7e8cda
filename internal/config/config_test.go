package config

import "testing"

func TestLoad_ReportsMissingRequired(t *testing.T) {
	// Ensure a clean env by not setting anything and calling validation directly.
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "production", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "backoffice", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret", JWTIssuer: "iss", JWTAudience: "aud"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "backoffice", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_AuditDefaults(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "backoffice"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(c.Audit.AuditedKinds) != 5 {
		t.Fatalf("expected 5 default audited kinds, got %v", c.Audit.AuditedKinds)
	}
	if c.Audit.RedactionMarker != "[REDACTED]" {
		t.Fatalf("expected default redaction marker, got %q", c.Audit.RedactionMarker)
	}
	if c.Audit.ContextStore != "memory" {
		t.Fatalf("expected memory context store default, got %q", c.Audit.ContextStore)
	}
}

func TestValidate_RejectsUnknownContextStore(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "backoffice"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Audit: AuditConfig{ContextStore: "etcd"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown context store backend")
	}
}

func TestDedup_PreservesOrder(t *testing.T) {
	out := dedup([]string{"password", "token", "password", "api_key"})
	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %v", out)
	}
	if out[0] != "password" || out[1] != "token" || out[2] != "api_key" {
		t.Fatalf("unexpected order: %v", out)
	}
}
