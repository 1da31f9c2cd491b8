// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/meridianhealth/meridian-site/internal/cache"
	"github.com/meridianhealth/meridian-site/internal/content"
	"github.com/meridianhealth/meridian-site/internal/middleware"
	"github.com/meridianhealth/meridian-site/internal/store"
)

func newHealthHandler(t *testing.T) *HealthHandler {
	t.Helper()

	db, err := store.NewDB(filepath.Join(t.TempDir(), "health.db"))
	if err != nil {
		t.Fatalf("NewDB() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	return NewHealthHandler(db, cache.NewSimpleMemoryCache(time.Minute))
}

func TestHealth_Anonymous(t *testing.T) {
	h := newHealthHandler(t)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("body = %q", body)
	}
	// No dependency details for anonymous callers.
	if strings.Contains(body, "database") || strings.Contains(body, "uptime") {
		t.Errorf("anonymous body leaks check details: %q", body)
	}
}

func TestHealth_AuthenticatedChecks(t *testing.T) {
	h := newHealthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	identity := &content.Identity{ID: "user-1"}
	req = req.WithContext(context.WithValue(req.Context(), middleware.ContextKeyIdentity, identity))

	rec := httptest.NewRecorder()
	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{"database", "cache", "uptime", "cache_stats", "hit_rate"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q: %s", want, body)
		}
	}
}

func TestHealth_DegradedWhenDatabaseClosed(t *testing.T) {
	h := newHealthHandler(t)
	_ = h.db.Close()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	identity := &content.Identity{ID: "user-1"}
	req = req.WithContext(context.WithValue(req.Context(), middleware.ContextKeyIdentity, identity))

	rec := httptest.NewRecorder()
	h.Health(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"degraded"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}
