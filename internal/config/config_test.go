package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"ALEXANDRIA_CONFIG", "PORT", "EVENTSTORE_URL", "EVENTSTORE_API_KEY",
		"EVENTSTORE_RATE", "ALEXANDRIA_API_KEY", "WORKER_COUNT", "MAX_QUEUE_SIZE",
		"MAX_CONCURRENT_STORE", "MAX_CONCURRENT_FETCH", "MAX_UPLOAD_BYTES",
		"MAX_SECTION_TOKENS", "JOB_TTL", "PDF_FALLBACK_PDFTOTEXT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != Defaults() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alexandria.yaml")
	yaml := "port: \"9000\"\nworker_count: 2\njob_ttl: 30m\neventstore_api_key: from-file\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	clearEnv(t)
	t.Setenv("ALEXANDRIA_CONFIG", path)
	t.Setenv("WORKER_COUNT", "6")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("expected port from file, got %q", cfg.Port)
	}
	if cfg.WorkerCount != 6 {
		t.Errorf("expected env to win, got %d", cfg.WorkerCount)
	}
	if cfg.JobTTL != 30*time.Minute {
		t.Errorf("expected 30m ttl, got %s", cfg.JobTTL)
	}
	if cfg.EventstoreAPIKey != "from-file" {
		t.Errorf("expected key from file, got %q", cfg.EventstoreAPIKey)
	}
}

func TestLoad_BadFile(t *testing.T) {
	t.Setenv("ALEXANDRIA_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKER_COUNT", "-1")
	t.Setenv("MAX_SECTION_TOKENS", "nope")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected default worker count, got %d", cfg.WorkerCount)
	}
	if cfg.MaxSectionTokens != 2000 {
		t.Errorf("expected default section tokens, got %d", cfg.MaxSectionTokens)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without keys")
	}
	cfg.EventstoreAPIKey = "k"
	cfg.AlexandriaAPIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
