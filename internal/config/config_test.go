package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scanner.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
master_key: "`+testKey+`"
pairing:
  mode: qr
  code_ttl: 2m
  max_attempts: 5
session_ttl: 168h
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.Pairing.Mode != "qr" || cfg.Pairing.MaxAttempts != 5 {
		t.Errorf("pairing = %+v", cfg.Pairing)
	}
	if cfg.Pairing.CodeTTL.Std() != 2*time.Minute {
		t.Errorf("code_ttl = %v", cfg.Pairing.CodeTTL.Std())
	}
	if cfg.SessionTTL.Std() != 168*time.Hour {
		t.Errorf("session_ttl = %v", cfg.SessionTTL.Std())
	}
	// Unset fields keep their defaults.
	if cfg.CacheSize != 1024 {
		t.Errorf("cache_size = %d", cfg.CacheSize)
	}
}

func TestLoad_MissingMasterKeyIsFatal(t *testing.T) {
	path := writeConfig(t, `listen: ":9090"`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "master key") {
		t.Errorf("expected master key error, got %v", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `master_key: "deadbeef"`)
	t.Setenv(MasterKeyEnv, testKey)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MasterKey != testKey {
		t.Errorf("env override ignored, got %q", cfg.MasterKey)
	}
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	t.Setenv(MasterKeyEnv, testKey)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != ":8080" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoad_InvalidMode(t *testing.T) {
	path := writeConfig(t, `
master_key: "`+testKey+`"
pairing:
  mode: carrier-pigeon
  code_ttl: 2m
  max_attempts: 3
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid pairing mode")
	}
}
