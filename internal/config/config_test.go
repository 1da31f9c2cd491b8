// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set %s: %v", key, err)
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	setEnv(t, "MERIDIAN_SESSION_SECRET", "test-secret-key-32-bytes-long!!!")
	setEnv(t, "MERIDIAN_BACKEND_URL", "https://api.meridianhealth.example")
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "./data/meridian.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./data/meridian.db")
	}
	if cfg.ServerHost != "localhost" {
		t.Errorf("ServerHost = %q, want %q", cfg.ServerHost, "localhost")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want %q", cfg.Env, "development")
	}
	if cfg.BackendTimeout() != 10*time.Second {
		t.Errorf("BackendTimeout() = %v, want %v", cfg.BackendTimeout(), 10*time.Second)
	}
	if cfg.SectionCacheTTL() != 5*time.Minute {
		t.Errorf("SectionCacheTTL() = %v, want %v", cfg.SectionCacheTTL(), 5*time.Minute)
	}
	if cfg.IdentityCacheTTL() != time.Minute {
		t.Errorf("IdentityCacheTTL() = %v, want %v", cfg.IdentityCacheTTL(), time.Minute)
	}
	if cfg.UseRedisCache() {
		t.Error("UseRedisCache() = true, want false by default")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Clearenv()
	setRequired(t)
	setEnv(t, "MERIDIAN_DB_PATH", "/custom/path.db")
	setEnv(t, "MERIDIAN_SERVER_HOST", "0.0.0.0")
	setEnv(t, "MERIDIAN_SERVER_PORT", "3000")
	setEnv(t, "MERIDIAN_ENV", "production")
	setEnv(t, "MERIDIAN_REDIS_URL", "redis://localhost:6379/0")
	setEnv(t, "MERIDIAN_BACKEND_TIMEOUT", "2500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "/custom/path.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/custom/path.db")
	}
	if cfg.ServerAddr() != "0.0.0.0:3000" {
		t.Errorf("ServerAddr() = %q, want %q", cfg.ServerAddr(), "0.0.0.0:3000")
	}
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false for production")
	}
	if !cfg.UseRedisCache() {
		t.Error("UseRedisCache() = false, want true")
	}
	if cfg.BackendTimeout() != 2500*time.Millisecond {
		t.Errorf("BackendTimeout() = %v, want %v", cfg.BackendTimeout(), 2500*time.Millisecond)
	}
}

func TestLoad_RequiredSessionSecret(t *testing.T) {
	os.Clearenv()
	setEnv(t, "MERIDIAN_BACKEND_URL", "https://api.meridianhealth.example")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail when MERIDIAN_SESSION_SECRET is not set")
	}
}

func TestLoad_RequiredBackendURL(t *testing.T) {
	os.Clearenv()
	setEnv(t, "MERIDIAN_SESSION_SECRET", "test-secret-key-32-bytes-long!!!")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail when MERIDIAN_BACKEND_URL is not set")
	}
}

func TestLoad_SessionSecretTooShort(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{"empty", ""},
		{"short", "short"},
		{"31_bytes", "1234567890123456789012345678901"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			setEnv(t, "MERIDIAN_SESSION_SECRET", tt.secret)
			setEnv(t, "MERIDIAN_BACKEND_URL", "https://api.meridianhealth.example")

			_, err := Load()
			if err == nil {
				t.Fatalf("Load() should fail for secret %q", tt.secret)
			}
		})
	}
}

func TestLoad_RejectsWeakSecret(t *testing.T) {
	os.Clearenv()
	setEnv(t, "MERIDIAN_SESSION_SECRET", "change-me-to-32-byte-secret-key!")
	setEnv(t, "MERIDIAN_BACKEND_URL", "https://api.meridianhealth.example")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should reject a known default secret")
	}
}

func TestLoad_InvalidBackendURL(t *testing.T) {
	os.Clearenv()
	setEnv(t, "MERIDIAN_SESSION_SECRET", "test-secret-key-32-bytes-long!!!")
	setEnv(t, "MERIDIAN_BACKEND_URL", "api.meridianhealth.example")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should reject a backend URL without a scheme")
	}
}

func TestLoad_TrimsTrailingSlash(t *testing.T) {
	os.Clearenv()
	setEnv(t, "MERIDIAN_SESSION_SECRET", "test-secret-key-32-bytes-long!!!")
	setEnv(t, "MERIDIAN_BACKEND_URL", "https://api.meridianhealth.example/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.BackendURL != "https://api.meridianhealth.example" {
		t.Errorf("BackendURL = %q, want trailing slash trimmed", cfg.BackendURL)
	}
}
