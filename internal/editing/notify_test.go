package editing

import (
	"strconv"
	"testing"
)

func TestNotifier_PushAndDrain(t *testing.T) {
	n := NewNotifier()

	n.Push("sess-1", LevelSuccess, "Changes saved")
	n.Push("sess-1", LevelError, "Failed to save changes")

	notifications := n.Drain("sess-1")
	if len(notifications) != 2 {
		t.Fatalf("got %d notifications, want 2", len(notifications))
	}
	if notifications[0].Level != LevelSuccess || notifications[1].Level != LevelError {
		t.Error("expected oldest-first order")
	}
	if notifications[0].ID == notifications[1].ID {
		t.Error("notification IDs must be unique")
	}

	if again := n.Drain("sess-1"); len(again) != 0 {
		t.Errorf("second drain returned %d notifications, want 0", len(again))
	}
}

func TestNotifier_SessionsIsolated(t *testing.T) {
	n := NewNotifier()

	n.Push("sess-1", LevelSuccess, "Changes saved")

	if got := n.Drain("sess-2"); len(got) != 0 {
		t.Errorf("got %d notifications for another session, want 0", len(got))
	}
}

func TestNotifier_QueueCapped(t *testing.T) {
	n := NewNotifier()

	for i := 0; i < maxQueuedNotifications+5; i++ {
		n.Push("sess-1", LevelSuccess, strconv.Itoa(i))
	}

	notifications := n.Drain("sess-1")
	if len(notifications) != maxQueuedNotifications {
		t.Fatalf("got %d notifications, want %d", len(notifications), maxQueuedNotifications)
	}
	// Oldest entries were dropped.
	if notifications[0].Message != "5" {
		t.Errorf("first message = %q, want 5", notifications[0].Message)
	}
}

func TestNotifier_Clear(t *testing.T) {
	n := NewNotifier()

	n.Push("sess-1", LevelError, "Failed to save changes")
	n.Clear("sess-1")

	if got := n.Drain("sess-1"); len(got) != 0 {
		t.Errorf("got %d notifications after Clear, want 0", len(got))
	}
}

func TestNotifier_PruneExcept(t *testing.T) {
	n := NewNotifier()

	n.Push("sess-live", LevelSuccess, "Changes saved")
	n.Push("sess-gone", LevelError, "Failed to save changes")

	dropped := n.PruneExcept(map[string]struct{}{"sess-live": {}})
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	if got := n.Drain("sess-live"); len(got) != 1 {
		t.Errorf("got %d notifications for the live session, want 1", len(got))
	}
	if got := n.Drain("sess-gone"); len(got) != 0 {
		t.Errorf("got %d notifications for the stale session, want 0", len(got))
	}
}
