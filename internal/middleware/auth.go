// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, and request context handling.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/meridianhealth/meridian-site/internal/content"
	"github.com/meridianhealth/meridian-site/internal/editing"
	"github.com/meridianhealth/meridian-site/internal/session"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// Context keys for request-scoped data.
const (
	ContextKeyIdentity    ContextKey = "identity"
	ContextKeyEditMode    ContextKey = "edit_mode"
	ContextKeyRequestPath ContextKey = "request_path"
)

// LoadIdentity creates middleware that resolves the session's identity into
// the request context. Resolution failures are logged and the request
// continues anonymously; a failed identity lookup must never surface as an
// error page.
func LoadIdentity(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := store.Identity(r.Context())
			if err != nil {
				slog.Warn("identity resolution failed",
					"path", r.URL.Path, "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}
			if identity == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Auth creates middleware that requires a resolved identity. Unauthenticated
// requests are redirected to the login entry point. Use after LoadIdentity.
func Auth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetIdentity(r) == nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission creates middleware gating a route on one permission.
// An unauthenticated request redirects to login; an authenticated identity
// missing the permission gets an explicit 403 naming what was required, with
// no redirect, so the two cases stay distinguishable.
func RequirePermission(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r)
			if identity == nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			if !identity.Can(resource, action) {
				slog.Warn("access denied",
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					"identity_id", identity.ID,
					"resource", resource,
					"action", action,
					"remote_addr", r.RemoteAddr,
				)
				http.Error(w, "Access denied: missing permission "+resource+":"+action,
					http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// EditMode creates middleware that stores whether editing affordances should
// render for this request. The flag is true only when the session holds a
// resolved identity and has edit mode switched on.
func EditMode(store *session.Store, mode *editing.ModeController) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := store.Manager().Token(r.Context())
			active := mode.Active(sessionID, GetIdentity(r))
			ctx := context.WithValue(r.Context(), ContextKeyEditMode, active)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity retrieves the resolved identity from the request context.
// Returns nil for anonymous requests.
func GetIdentity(r *http.Request) *content.Identity {
	identity, ok := r.Context().Value(ContextKeyIdentity).(*content.Identity)
	if !ok {
		return nil
	}
	return identity
}

// IsEditMode reports whether editing affordances should render for this
// request.
func IsEditMode(r *http.Request) bool {
	active, ok := r.Context().Value(ContextKeyEditMode).(bool)
	return ok && active
}

// RequestPath creates middleware that stores the request path in the context
// so the logging handler can include the URL in persisted events.
func RequestPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ContextKeyRequestPath, r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestPath retrieves the request path from the context.
func GetRequestPath(ctx context.Context) string {
	path, ok := ctx.Value(ContextKeyRequestPath).(string)
	if !ok {
		return ""
	}
	return path
}
