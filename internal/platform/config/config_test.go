package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DATA_DIR", "EVENT_PREFIX", "MAX_UPLOAD_MB", "STORAGE_BACKEND", "MANIFEST_WATCH", "WS_PING_INTERVAL"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Port)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want data", cfg.DataDir)
	}
	if cfg.EventPrefix != "mediaUpdate" {
		t.Errorf("EventPrefix = %q, want mediaUpdate", cfg.EventPrefix)
	}
	if cfg.MaxUploadMB != 512 {
		t.Errorf("MaxUploadMB = %d, want 512", cfg.MaxUploadMB)
	}
	if cfg.StorageBackend != "disk" {
		t.Errorf("StorageBackend = %q, want disk", cfg.StorageBackend)
	}
	if cfg.ManifestWatch {
		t.Error("ManifestWatch should default to false")
	}
	if cfg.WSPingInterval != 30*time.Second {
		t.Errorf("WSPingInterval = %v, want 30s", cfg.WSPingInterval)
	}
	if cfg.TLSEnabled() {
		t.Error("TLS should be disabled without cert and key")
	}
}

func TestFromEnv_overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_BACKEND", "MinIO")
	t.Setenv("MANIFEST_WATCH", "true")
	t.Setenv("WS_PING_INTERVAL", "5s")
	t.Setenv("MAX_UPLOAD_MB", "not-a-number")

	cfg := FromEnv()
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.StorageBackend != "minio" {
		t.Errorf("StorageBackend = %q, want lowercased minio", cfg.StorageBackend)
	}
	if !cfg.ManifestWatch {
		t.Error("ManifestWatch should be true")
	}
	if cfg.WSPingInterval != 5*time.Second {
		t.Errorf("WSPingInterval = %v", cfg.WSPingInterval)
	}
	if cfg.MaxUploadMB != 512 {
		t.Errorf("invalid int should fall back, got %d", cfg.MaxUploadMB)
	}
}

func TestLocation_invalid_falls_back_to_utc(t *testing.T) {
	cfg := Config{TimeZone: "Nowhere/Atlantis"}
	if cfg.Location() != time.UTC {
		t.Errorf("expected UTC fallback, got %v", cfg.Location())
	}
}

func TestLoad_dotenv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("SIGNAGE_TEST_KEY=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SIGNAGE_TEST_KEY", "")
	os.Unsetenv("SIGNAGE_TEST_KEY")

	if err := Load(p); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := GetEnv("SIGNAGE_TEST_KEY", "fallback"); got != "from-dotenv" {
		t.Errorf("GetEnv = %q, want from-dotenv", got)
	}
}

func TestLoad_missing_file(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for missing .env")
	}
}
