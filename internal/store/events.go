// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event is a row in the local event log.
type Event struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	URL       string    `json:"url,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Queries provides access to the local database.
type Queries struct {
	db *sql.DB
}

// New creates a Queries instance for the given database.
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// CreateEventParams holds the fields for a new event log entry.
type CreateEventParams struct {
	Level    string
	Category string
	Message  string
	URL      string
	Metadata string
}

// CreateEvent inserts an event log entry.
func (q *Queries) CreateEvent(ctx context.Context, params CreateEventParams) (Event, error) {
	if params.Metadata == "" {
		params.Metadata = "{}"
	}
	now := time.Now().UTC()

	res, err := q.db.ExecContext(ctx,
		`INSERT INTO events (level, category, message, url, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		params.Level, params.Category, params.Message, params.URL, params.Metadata, now,
	)
	if err != nil {
		return Event{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Event{}, err
	}

	return Event{
		ID:        id,
		Level:     params.Level,
		Category:  params.Category,
		Message:   params.Message,
		URL:       params.URL,
		Metadata:  params.Metadata,
		CreatedAt: now,
	}, nil
}

// ListRecentEvents returns the newest events, most recent first.
func (q *Queries) ListRecentEvents(ctx context.Context, limit int64) ([]Event, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, level, category, message, url, metadata, created_at
		 FROM events ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.URL, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// PurgeEventsBefore deletes events older than the cutoff. Returns the number
// of rows removed.
func (q *Queries) PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountSessions returns the number of rows in the session table.
// Used by the health endpoint to verify local storage is reachable.
func (q *Queries) CountSessions(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count)
	return count, err
}

// ListSessionTokens returns the tokens of every stored session. The session
// store's own cleanup removes expired rows, so the result is the live set.
// Used by the maintenance sweep to drop in-memory per-session state whose
// session is gone.
func (q *Queries) ListSessionTokens(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT token FROM sessions`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}
