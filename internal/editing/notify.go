// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package editing

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level classifies a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// maxQueuedNotifications caps the per-session queue so an undrained session
// cannot grow without bound.
const maxQueuedNotifications = 32

// Notification is a one-shot message surfaced to the editing session after a
// save resolves.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notifier queues notifications per session until the client drains them.
type Notifier struct {
	mu     sync.Mutex
	queues map[string][]Notification
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{queues: make(map[string][]Notification)}
}

// Push appends a notification for the session, dropping the oldest entry
// when the queue is full.
func (n *Notifier) Push(sessionID string, level Level, message string) Notification {
	notification := Notification{
		ID:        uuid.New().String(),
		Level:     level,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	queue := n.queues[sessionID]
	if len(queue) >= maxQueuedNotifications {
		queue = queue[1:]
	}
	n.queues[sessionID] = append(queue, notification)
	return notification
}

// Drain returns and removes all queued notifications for the session, oldest
// first.
func (n *Notifier) Drain(sessionID string) []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	queue := n.queues[sessionID]
	delete(n.queues, sessionID)
	return queue
}

// Clear discards any queued notifications for the session.
func (n *Notifier) Clear(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.queues, sessionID)
}

// PruneExcept drops undrained queues for sessions that are no longer live
// and returns how many were dropped.
func (n *Notifier) PruneExcept(live map[string]struct{}) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	dropped := 0
	for sessionID := range n.queues {
		if _, ok := live[sessionID]; !ok {
			delete(n.queues, sessionID)
			dropped++
		}
	}
	return dropped
}
