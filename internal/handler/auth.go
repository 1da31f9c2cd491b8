// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/meridianhealth/meridian-site/internal/editing"
	"github.com/meridianhealth/meridian-site/internal/render"
	"github.com/meridianhealth/meridian-site/internal/session"
)

// AuthHandler handles the login hand-off and logout. Token issuance lives in
// the external staff portal; this handler only consumes an already-issued
// token, validates it against the backend and binds it to the session.
type AuthHandler struct {
	store    *session.Store
	renderer *render.Renderer
	mode     *editing.ModeController
	editor   *editing.Editor
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(store *session.Store, renderer *render.Renderer, mode *editing.ModeController, editor *editing.Editor) *AuthHandler {
	return &AuthHandler{store: store, renderer: renderer, mode: mode, editor: editor}
}

// LoginForm handles GET /login.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	data := render.TemplateData{Title: "Staff sign in"}
	if err := h.renderer.Render(w, r, "login", data); err != nil {
		slog.Error("template render failed", "template", "login", "error", err.Error())
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// Login handles POST /login: accepts a token from the external login flow,
// resolves it to an identity and binds it to the session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	token := strings.TrimSpace(r.PostFormValue("token"))
	if token == "" {
		h.renderer.SetFlash(r, "An access token is required.", "error")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	identity, err := h.store.ResolveIdentity(r.Context(), token)
	if err != nil {
		slog.Warn("login identity resolution failed", "error", err.Error())
		h.renderer.SetFlash(r, "Sign in is unavailable right now. Please try again.", "error")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if identity == nil {
		h.renderer.SetFlash(r, "That token was not accepted.", "error")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := h.store.Login(r.Context(), token, identity); err != nil {
		slog.Error("login failed", "error", err.Error())
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	slog.Info("login", "identity_id", identity.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout handles POST /logout. Open drafts are discarded and edit mode
// cleared before the session is destroyed.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := h.store.Manager().Token(r.Context())
	h.editor.CancelAll(sessionID)
	h.mode.Disable(sessionID)

	if err := h.store.Logout(r.Context()); err != nil {
		slog.Error("logout failed", "error", err.Error())
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
