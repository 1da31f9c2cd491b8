// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/meridianhealth/meridian-site/internal/cache"
	"github.com/meridianhealth/meridian-site/internal/content"
	"github.com/meridianhealth/meridian-site/internal/editing"
	"github.com/meridianhealth/meridian-site/internal/middleware"
	"github.com/meridianhealth/meridian-site/internal/session"
)

// EditingHandler exposes the inline editing endpoints. All routes sit behind
// authentication; the per-request edit-mode check happens here because the
// mode can flip between requests.
type EditingHandler struct {
	store    *session.Store
	mode     *editing.ModeController
	editor   *editing.Editor
	notifier *editing.Notifier
	sections *cache.SectionCache
}

// NewEditingHandler creates an editing handler.
func NewEditingHandler(store *session.Store, mode *editing.ModeController, editor *editing.Editor, notifier *editing.Notifier, sections *cache.SectionCache) *EditingHandler {
	return &EditingHandler{store: store, mode: mode, editor: editor, notifier: notifier, sections: sections}
}

func (h *EditingHandler) sessionID(r *http.Request) string {
	return h.store.Manager().Token(r.Context())
}

// requireEditMode rejects the request unless the session has edit mode on.
func (h *EditingHandler) requireEditMode(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := h.sessionID(r)
	if !h.mode.Active(sessionID, middleware.GetIdentity(r)) {
		writeError(w, http.StatusConflict, "edit_mode_off", "Edit mode is not active")
		return "", false
	}
	return sessionID, true
}

// Toggle handles POST /admin/editing/toggle. It flips edit mode for the
// session and sends the user back where they came from. Leaving edit mode
// silently discards the session's open drafts.
func (h *EditingHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionID(r)
	if h.mode.Toggle(sessionID) {
		// Start the editing session against current backend content, not
		// entries cached up to a TTL ago.
		if err := h.sections.InvalidateAll(r.Context()); err != nil {
			slog.Warn("section cache flush failed", "category", "cache", "error", err.Error())
		}
	} else {
		h.editor.CancelAll(sessionID)
	}

	http.Redirect(w, r, safeReturnPath(r), http.StatusSeeOther)
}

type beginRequest struct {
	SectionID string `json:"sectionId"`
	PageID    string `json:"pageId"`
	Field     string `json:"field"`
	Value     string `json:"value"`
}

// Begin handles POST /admin/editing/begin: opens a draft for a field.
func (h *EditingHandler) Begin(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.requireEditMode(w, r)
	if !ok {
		return
	}

	var req beginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Malformed request body")
		return
	}

	draft, err := h.editor.Begin(sessionID, req.SectionID, req.PageID, req.Field, req.Value)
	if err != nil {
		h.writeEditingError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"state": draft.State.String(),
		"value": draft.DraftValue,
	})
}

type draftRequest struct {
	SectionID string `json:"sectionId"`
	Field     string `json:"field"`
	Value     string `json:"value"`
}

// Draft handles POST /admin/editing/draft: replaces the local draft value.
func (h *EditingHandler) Draft(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.requireEditMode(w, r)
	if !ok {
		return
	}

	var req draftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Malformed request body")
		return
	}

	if err := h.editor.UpdateDraft(sessionID, req.SectionID, req.Field, req.Value); err != nil {
		h.writeEditingError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"state": editing.StateEditing.String()})
}

type saveRequest struct {
	SectionID string  `json:"sectionId"`
	Field     string  `json:"field"`
	Value     *string `json:"value"`
}

// Save handles POST /admin/editing/save: persists the draft for a text
// field. A value in the body updates the draft before saving so the client
// does not need a separate draft round trip.
func (h *EditingHandler) Save(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.requireEditMode(w, r)
	if !ok {
		return
	}

	var req saveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Malformed request body")
		return
	}

	if req.Value != nil {
		if err := h.editor.UpdateDraft(sessionID, req.SectionID, req.Field, *req.Value); err != nil {
			h.writeEditingError(w, err)
			return
		}
	}

	token := h.store.Token(r.Context())
	result, err := h.editor.Save(r.Context(), token, sessionID, req.SectionID, req.Field)
	if err != nil {
		h.writeEditingError(w, err)
		return
	}

	h.writeSaveResult(w, result, req.Field)
}

type saveImageRequest struct {
	SectionID string `json:"sectionId"`
	ImageURL  string `json:"imageUrl"`
	ImageAlt  string `json:"imageAlt"`
}

// SaveImage handles POST /admin/editing/save-image: persists an image field,
// URL and alt text together.
func (h *EditingHandler) SaveImage(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.requireEditMode(w, r)
	if !ok {
		return
	}

	var req saveImageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Malformed request body")
		return
	}

	token := h.store.Token(r.Context())
	result, err := h.editor.SaveImage(r.Context(), token, sessionID, req.SectionID, req.ImageURL, req.ImageAlt)
	if err != nil {
		h.writeEditingError(w, err)
		return
	}

	h.writeSaveResult(w, result, content.FieldImageURL)
}

type cancelRequest struct {
	SectionID string `json:"sectionId"`
	Field     string `json:"field"`
}

// Cancel handles POST /admin/editing/cancel: discards the draft and returns
// the value the field should display again.
func (h *EditingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.requireEditMode(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Malformed request body")
		return
	}

	value, err := h.editor.Cancel(sessionID, req.SectionID, req.Field)
	if err != nil {
		h.writeEditingError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"value": value})
}

// Exit handles POST /admin/editing/exit: the global cancel. Edit mode turns
// off and every open draft for the session is silently discarded.
func (h *EditingHandler) Exit(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionID(r)
	h.mode.Disable(sessionID)
	discarded := h.editor.CancelAll(sessionID)
	writeData(w, http.StatusOK, map[string]any{"discarded": discarded})
}

// Notifications handles GET /admin/editing/notifications: drains the queued
// save notifications for the session.
func (h *EditingHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	notifications := h.notifier.Drain(h.sessionID(r))
	if notifications == nil {
		notifications = []editing.Notification{}
	}
	writeData(w, http.StatusOK, notifications)
}

// writeSaveResult maps an editor SaveResult onto the response envelope.
func (h *EditingHandler) writeSaveResult(w http.ResponseWriter, result editing.SaveResult, field string) {
	if result.Cancelled {
		writeData(w, http.StatusOK, map[string]any{"cancelled": true})
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"value":   result.Section.Field(field),
		"pageId":  result.Section.PageID,
		"section": result.Section,
	})
}

// writeEditingError maps editor errors onto status codes. Persistence
// failures come back as 502: this process could not get the backend to
// accept the write.
func (h *EditingHandler) writeEditingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, editing.ErrMissingSection):
		writeError(w, http.StatusUnprocessableEntity, "missing_section",
			"Cannot save, this content has no section")
	case errors.Is(err, editing.ErrNoDraft):
		writeError(w, http.StatusConflict, "no_draft", "No draft open for this field")
	case errors.Is(err, editing.ErrSaveInFlight):
		writeError(w, http.StatusConflict, "save_in_flight", "A save is already in progress")
	default:
		var apiErr *content.APIError
		if errors.As(err, &apiErr) {
			writeError(w, http.StatusBadGateway, "persistence_failed",
				"Failed to save changes: "+apiErr.Message)
			return
		}
		writeError(w, http.StatusBadGateway, "persistence_failed",
			"Failed to save changes: "+err.Error())
	}
}
