// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/meridianhealth/meridian-site/internal/cache"
	"github.com/meridianhealth/meridian-site/internal/middleware"
	"github.com/meridianhealth/meridian-site/internal/store"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	db        *sql.DB
	queries   *store.Queries
	cache     cache.Cacher
	startTime time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(db *sql.DB, cacher cache.Cacher) *HealthHandler {
	return &HealthHandler{
		db:        db,
		queries:   store.New(db),
		cache:     cacher,
		startTime: time.Now(),
	}
}

// healthCheck is a single health check result.
type healthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health handles GET /health. Unauthenticated callers get a minimal status;
// authenticated ones get per-dependency checks.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if middleware.GetIdentity(r) == nil {
		writeData(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	checks := map[string]healthCheck{
		"database": h.checkDatabase(r),
		"cache":    h.checkCache(r),
	}

	status := "ok"
	code := http.StatusOK
	for _, check := range checks {
		if check.Status != "ok" {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	body := map[string]any{
		"status": status,
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
		"checks": checks,
	}
	if provider, ok := h.cache.(cache.StatsProvider); ok {
		body["cache_stats"] = provider.Stats()
	}

	writeData(w, code, body)
}

func (h *HealthHandler) checkDatabase(r *http.Request) healthCheck {
	start := time.Now()
	if err := h.db.PingContext(r.Context()); err != nil {
		return healthCheck{Status: "error", Message: err.Error()}
	}
	if _, err := h.queries.CountSessions(r.Context()); err != nil {
		return healthCheck{Status: "error", Message: err.Error()}
	}
	return healthCheck{Status: "ok", Latency: time.Since(start).String()}
}

func (h *HealthHandler) checkCache(r *http.Request) healthCheck {
	start := time.Now()
	if _, err := h.cache.Has(r.Context(), "health:probe"); err != nil {
		return healthCheck{Status: "error", Message: err.Error()}
	}
	return healthCheck{Status: "ok", Latency: time.Since(start).String()}
}
