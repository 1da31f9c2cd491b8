// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/meridianhealth/meridian-site/internal/cache"
	"github.com/meridianhealth/meridian-site/internal/content"
	"github.com/meridianhealth/meridian-site/internal/editing"
	"github.com/meridianhealth/meridian-site/internal/session"
)

func editorIdentity() *content.Identity {
	return &content.Identity{
		ID:    "user-1",
		Email: "editor@meridianhealth.example",
		Roles: []content.Role{{
			Name: "editor",
			Permissions: []content.Permission{
				{Resource: "sections", Actions: []string{"read", "update"}},
			},
		}},
	}
}

func withIdentity(r *http.Request, identity *content.Identity) *http.Request {
	ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
	return r.WithContext(ctx)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestAuth_RedirectsAnonymous(t *testing.T) {
	handler := Auth()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}

func TestAuth_PassesAuthenticated(t *testing.T) {
	handler := Auth()(okHandler())

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/admin", nil), editorIdentity())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequirePermission_RedirectsAnonymous(t *testing.T) {
	handler := RequirePermission("sections", "update")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Not authenticated at all: redirect to login, not a 403.
	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", rec.Code)
	}
}

func TestRequirePermission_DeniedNamesPermission(t *testing.T) {
	handler := RequirePermission("sections", "delete")(okHandler())

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/admin", nil), editorIdentity())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "" {
		t.Errorf("unexpected redirect to %q; denied must not redirect", loc)
	}
	if body := rec.Body.String(); !strings.Contains(body, "sections:delete") {
		t.Errorf("body = %q, want the missing permission named", body)
	}
}

func TestRequirePermission_Allows(t *testing.T) {
	handler := RequirePermission("sections", "update")(okHandler())

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/admin", nil), editorIdentity())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestEditMode_OffForAnonymous(t *testing.T) {
	store := session.NewStore(session.StoreOptions{
		Manager: scs.New(),
		Backing: cache.NewSimpleMemoryCache(time.Minute),
	})
	mode := editing.NewModeController()

	var active bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		active = IsEditMode(r)
	})
	handler := store.Manager().LoadAndSave(EditMode(store, mode)(inner))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if active {
		t.Error("edit mode must be off for anonymous sessions")
	}
}

func TestEditMode_ActiveAcrossRequests(t *testing.T) {
	store := session.NewStore(session.StoreOptions{
		Manager: scs.New(),
		Backing: cache.NewSimpleMemoryCache(time.Minute),
	})
	mode := editing.NewModeController()

	var active bool
	var perRequest func(r *http.Request)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		active = IsEditMode(r)
		if perRequest != nil {
			perRequest(r)
		}
	})

	// Inject an identity before EditMode so the session counts as admin.
	chain := store.Manager().LoadAndSave(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			EditMode(store, mode)(inner).ServeHTTP(w, withIdentity(r, editorIdentity()))
		}))

	// First request: touch the session so a cookie is issued.
	perRequest = func(r *http.Request) {
		store.Manager().Put(r.Context(), "seen", true)
	}
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}
	if active {
		t.Error("edit mode must start off")
	}

	// Second request: toggle edit mode for the session.
	perRequest = func(r *http.Request) {
		mode.Toggle(store.Manager().Token(r.Context()))
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	chain.ServeHTTP(httptest.NewRecorder(), req)

	// Third request: the flag is now visible at middleware time.
	perRequest = nil
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	chain.ServeHTTP(httptest.NewRecorder(), req)

	if !active {
		t.Error("expected edit mode active for the admin session")
	}
}

func TestGetIdentity_Nil(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if GetIdentity(req) != nil {
		t.Error("expected nil identity for bare request")
	}
}

func TestRequestPath(t *testing.T) {
	var got string
	handler := RequestPath(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestPath(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/pricing", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "/pricing" {
		t.Errorf("GetRequestPath = %q, want /pricing", got)
	}
}
