package config

import "testing"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "BASE_URL", "APP_NAME",
		"PG_HOST", "PG_PORT", "PG_USERNAME", "PG_PASSWORD", "PG_DATABASE",
		"STORAGE_BACKEND", "PUBLIC_DIR",
		"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL", "MINIO_PUBLIC_URL",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASSWORD", "SMTP_FROM", "NOTIFY_EMAIL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Port)
	}
	if cfg.BaseURL != "http://localhost:3000" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Storage.Backend != "local" {
		t.Errorf("Backend = %q, want local", cfg.Storage.Backend)
	}
	if cfg.Mail.Enabled() {
		t.Error("Mail must be disabled without SMTP configuration")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "s3")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown storage backend")
	}
}

func TestLoadMinioRequiresEndpoint(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "minio")

	if _, err := Load(); err == nil {
		t.Error("Expected error for minio backend without endpoint")
	}
}

func TestMailEnabled(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_USER", "informes@example.com")
	t.Setenv("NOTIFY_EMAIL", "ops@example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Mail.Enabled() {
		t.Error("Mail should be enabled with host and user set")
	}
	if cfg.Mail.From != "informes@example.com" {
		t.Errorf("From should default to SMTP_USER, got %q", cfg.Mail.From)
	}
	if cfg.Mail.Port != 587 {
		t.Errorf("Port = %d, want 587", cfg.Mail.Port)
	}
}
