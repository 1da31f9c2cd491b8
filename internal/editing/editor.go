// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package editing

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/meridianhealth/meridian-site/internal/cache"
	"github.com/meridianhealth/meridian-site/internal/content"
)

// State describes where a field sits in its editing lifecycle.
type State int

const (
	// StateViewing means no draft exists for the field.
	StateViewing State = iota
	// StateEditing means a local draft exists and may be mutated freely.
	StateEditing
	// StateSaving means a persistence round trip is in flight. The draft is
	// frozen until it resolves.
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateSaving:
		return "saving"
	default:
		return "viewing"
	}
}

var (
	// ErrMissingSection is returned when a field has no section to persist to.
	ErrMissingSection = errors.New("editing: field has no section")
	// ErrNoDraft is returned when an operation expects an open draft and
	// finds none.
	ErrNoDraft = errors.New("editing: no draft for field")
	// ErrSaveInFlight is returned when a save or cancel races an in-flight
	// save for the same field.
	ErrSaveInFlight = errors.New("editing: save already in flight")
)

// FieldKey identifies one editable field within one session. Two sessions
// editing the same field hold independent drafts.
type FieldKey struct {
	SessionID string
	SectionID string
	Field     string
}

// Draft is the transient local state of a field being edited.
type Draft struct {
	SectionID     string
	PageID        string
	Field         string
	DraftValue    string
	OriginalValue string
	State         State
	StartedAt     time.Time
}

// SaveResult reports how a save resolved.
type SaveResult struct {
	// Cancelled is true when an empty trimmed draft was treated as an
	// implicit cancel and nothing was written.
	Cancelled bool
	// Section is the backend's view after a successful write.
	Section *content.Section
}

// Editor coordinates per-field drafts and the read-merge-write persistence
// flow. Writes always carry the full remote content with one field changed
// so fields unknown to this client survive the update.
type Editor struct {
	client   *content.Client
	sections *cache.SectionCache
	notifier *Notifier
	logger   *slog.Logger
	lifetime time.Duration

	mu     sync.Mutex
	drafts map[FieldKey]*Draft
}

// EditorOptions configures an Editor.
type EditorOptions struct {
	Client   *content.Client
	Sections *cache.SectionCache
	Notifier *Notifier
	Logger   *slog.Logger
	// DraftLifetime bounds how long an abandoned draft survives before the
	// pruning job discards it.
	DraftLifetime time.Duration
}

// NewEditor creates an editor.
func NewEditor(opts EditorOptions) *Editor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lifetime := opts.DraftLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NewNotifier()
	}
	return &Editor{
		client:   opts.Client,
		sections: opts.Sections,
		notifier: notifier,
		logger:   logger,
		lifetime: lifetime,
		drafts:   make(map[FieldKey]*Draft),
	}
}

// Begin opens a draft for the field, snapshotting currentValue for cancel.
// A field without a section is read-only and cannot enter editing. Beginning
// a field that is already editing resets its draft; beginning one that is
// saving fails.
func (e *Editor) Begin(sessionID, sectionID, pageID, field, currentValue string) (Draft, error) {
	if sectionID == "" {
		return Draft{}, ErrMissingSection
	}
	if field == "" {
		return Draft{}, errors.New("editing: field name required")
	}

	key := FieldKey{SessionID: sessionID, SectionID: sectionID, Field: field}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.drafts[key]; ok && existing.State == StateSaving {
		return Draft{}, ErrSaveInFlight
	}

	draft := &Draft{
		SectionID:     sectionID,
		PageID:        pageID,
		Field:         field,
		DraftValue:    currentValue,
		OriginalValue: currentValue,
		State:         StateEditing,
		StartedAt:     time.Now(),
	}
	e.drafts[key] = draft
	return *draft, nil
}

// UpdateDraft replaces the draft value for an open draft. No network
// activity happens here.
func (e *Editor) UpdateDraft(sessionID, sectionID, field, value string) error {
	key := FieldKey{SessionID: sessionID, SectionID: sectionID, Field: field}

	e.mu.Lock()
	defer e.mu.Unlock()

	draft, ok := e.drafts[key]
	if !ok {
		return ErrNoDraft
	}
	if draft.State == StateSaving {
		return ErrSaveInFlight
	}
	draft.DraftValue = value
	return nil
}

// Cancel discards the draft and returns the value the field should display
// again. Cancelling a field whose save is in flight fails; the save guard
// makes that race unreachable through the UI.
func (e *Editor) Cancel(sessionID, sectionID, field string) (string, error) {
	key := FieldKey{SessionID: sessionID, SectionID: sectionID, Field: field}

	e.mu.Lock()
	defer e.mu.Unlock()

	draft, ok := e.drafts[key]
	if !ok {
		return "", ErrNoDraft
	}
	if draft.State == StateSaving {
		return "", ErrSaveInFlight
	}
	delete(e.drafts, key)
	return draft.OriginalValue, nil
}

// CancelAll silently discards every open draft for the session. Drafts whose
// save is in flight are left to resolve on their own. Used by the global
// cancel and by logout.
func (e *Editor) CancelAll(sessionID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	discarded := 0
	for key, draft := range e.drafts {
		if key.SessionID != sessionID || draft.State == StateSaving {
			continue
		}
		delete(e.drafts, key)
		discarded++
	}
	return discarded
}

// Save persists the open draft for a text field. The trimmed draft value
// replaces the field within the current remote content; an empty trimmed
// draft is an implicit cancel and writes nothing.
func (e *Editor) Save(ctx context.Context, token, sessionID, sectionID, field string) (SaveResult, error) {
	if sectionID == "" {
		e.notifier.Push(sessionID, LevelError, "Cannot save, this content has no section")
		return SaveResult{}, ErrMissingSection
	}

	key := FieldKey{SessionID: sessionID, SectionID: sectionID, Field: field}

	e.mu.Lock()
	draft, ok := e.drafts[key]
	if !ok {
		e.mu.Unlock()
		return SaveResult{}, ErrNoDraft
	}
	if draft.State == StateSaving {
		e.mu.Unlock()
		return SaveResult{}, ErrSaveInFlight
	}

	value := strings.TrimSpace(draft.DraftValue)
	if value == "" {
		// Empty draft: treat as cancel, no write and no notification.
		delete(e.drafts, key)
		e.mu.Unlock()
		return SaveResult{Cancelled: true}, nil
	}

	draft.State = StateSaving
	pageID := draft.PageID
	e.mu.Unlock()

	return e.persist(ctx, token, key, pageID, map[string]string{field: value})
}

// SaveImage persists an image field. The image URL and its alt text always
// change together so a stale alt never outlives a replaced image. An empty
// trimmed URL is an implicit cancel.
func (e *Editor) SaveImage(ctx context.Context, token, sessionID, sectionID, imageURL, imageAlt string) (SaveResult, error) {
	if sectionID == "" {
		e.notifier.Push(sessionID, LevelError, "Cannot save, this content has no section")
		return SaveResult{}, ErrMissingSection
	}

	key := FieldKey{SessionID: sessionID, SectionID: sectionID, Field: content.FieldImageURL}

	e.mu.Lock()
	draft, ok := e.drafts[key]
	if !ok {
		e.mu.Unlock()
		return SaveResult{}, ErrNoDraft
	}
	if draft.State == StateSaving {
		e.mu.Unlock()
		return SaveResult{}, ErrSaveInFlight
	}

	url := strings.TrimSpace(imageURL)
	if url == "" {
		delete(e.drafts, key)
		e.mu.Unlock()
		return SaveResult{Cancelled: true}, nil
	}

	draft.State = StateSaving
	pageID := draft.PageID
	e.mu.Unlock()

	fields := map[string]string{
		content.FieldImageURL: url,
		content.FieldImageAlt: strings.TrimSpace(imageAlt),
	}
	return e.persist(ctx, token, key, pageID, fields)
}

// persist runs the read-merge-write round trip for a draft already moved to
// StateSaving. On success the draft is destroyed; on failure it returns to
// StateEditing with the draft value intact so the user may retry or cancel.
func (e *Editor) persist(ctx context.Context, token string, key FieldKey, pageID string, fields map[string]string) (SaveResult, error) {
	remote, err := e.client.GetSection(ctx, token, key.SectionID)
	if err != nil {
		e.failSave(key, err)
		return SaveResult{}, err
	}

	updated, err := e.client.UpdateSection(ctx, token, key.SectionID, remote.MergedContent(fields))
	if err != nil {
		e.failSave(key, err)
		return SaveResult{}, err
	}

	e.mu.Lock()
	delete(e.drafts, key)
	e.mu.Unlock()

	if pageID == "" {
		pageID = updated.PageID
	}
	if pageID != "" {
		if err := e.sections.InvalidatePage(ctx, pageID); err != nil {
			e.logger.Warn("section cache invalidation failed",
				"page_id", pageID, "error", err.Error())
		}
	}

	e.notifier.Push(key.SessionID, LevelSuccess, "Changes saved")
	return SaveResult{Section: updated}, nil
}

// failSave returns the field to StateEditing and surfaces the failure.
func (e *Editor) failSave(key FieldKey, cause error) {
	e.mu.Lock()
	if draft, ok := e.drafts[key]; ok {
		draft.State = StateEditing
	}
	e.mu.Unlock()

	e.notifier.Push(key.SessionID, LevelError, saveFailureMessage(cause))
	e.logger.Warn("section save failed",
		"section_id", key.SectionID, "field", key.Field, "error", cause.Error())
}

// saveFailureMessage builds the user-facing failure text, appending the
// underlying reason when one is available.
func saveFailureMessage(cause error) string {
	const generic = "Failed to save changes"

	var apiErr *content.APIError
	if errors.As(cause, &apiErr) && apiErr.Message != "" {
		return generic + ": " + apiErr.Message
	}
	if cause != nil {
		return generic + ": " + cause.Error()
	}
	return generic
}

// FieldState reports the state of a field, StateViewing when no draft exists.
func (e *Editor) FieldState(sessionID, sectionID, field string) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	draft, ok := e.drafts[FieldKey{SessionID: sessionID, SectionID: sectionID, Field: field}]
	if !ok {
		return StateViewing
	}
	return draft.State
}

// Draft returns a copy of the open draft for a field, if any.
func (e *Editor) Draft(sessionID, sectionID, field string) (Draft, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	draft, ok := e.drafts[FieldKey{SessionID: sessionID, SectionID: sectionID, Field: field}]
	if !ok {
		return Draft{}, false
	}
	return *draft, true
}

// OpenDrafts counts the session's drafts, in-flight saves included.
func (e *Editor) OpenDrafts(sessionID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for key := range e.drafts {
		if key.SessionID == sessionID {
			count++
		}
	}
	return count
}

// PruneExpired discards drafts older than the configured lifetime. Run
// periodically so abandoned sessions do not accumulate drafts.
func (e *Editor) PruneExpired(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	pruned := 0
	cutoff := now.Add(-e.lifetime)
	for key, draft := range e.drafts {
		if draft.State == StateSaving || draft.StartedAt.After(cutoff) {
			continue
		}
		delete(e.drafts, key)
		pruned++
	}
	return pruned
}
