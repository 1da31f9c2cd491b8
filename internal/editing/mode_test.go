package editing

import (
	"testing"

	"github.com/meridianhealth/meridian-site/internal/content"
)

func TestModeController_Toggle(t *testing.T) {
	m := NewModeController()

	if m.Enabled("sess-1") {
		t.Error("edit mode must start off")
	}
	if !m.Toggle("sess-1") {
		t.Error("first toggle should enable")
	}
	if m.Toggle("sess-1") {
		t.Error("second toggle should disable")
	}
	if m.Enabled("sess-1") {
		t.Error("expected edit mode off after two toggles")
	}
}

func TestModeController_SessionsIndependent(t *testing.T) {
	m := NewModeController()

	m.Toggle("sess-1")

	if m.Enabled("sess-2") {
		t.Error("toggling one session must not affect another")
	}
}

func TestModeController_ActiveRequiresIdentity(t *testing.T) {
	m := NewModeController()
	m.Toggle("sess-1")

	// The stored flag is ignored for anonymous sessions.
	if m.Active("sess-1", nil) {
		t.Error("Active must be false without an identity")
	}

	identity := &content.Identity{ID: "user-1"}
	if !m.Active("sess-1", identity) {
		t.Error("Active should be true with identity and flag set")
	}
	if m.Active("sess-2", identity) {
		t.Error("Active should be false when the flag is off")
	}
}

func TestModeController_Disable(t *testing.T) {
	m := NewModeController()

	m.Toggle("sess-1")
	m.Disable("sess-1")

	if m.Enabled("sess-1") {
		t.Error("expected edit mode off after Disable")
	}

	// Disable on an untouched session is a no-op.
	m.Disable("sess-2")
	if m.Enabled("sess-2") {
		t.Error("expected edit mode off")
	}
}

func TestModeController_PruneExcept(t *testing.T) {
	m := NewModeController()

	m.Toggle("sess-live")
	m.Toggle("sess-gone")
	m.Toggle("sess-also-gone")

	dropped := m.PruneExcept(map[string]struct{}{"sess-live": {}})
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	if !m.Enabled("sess-live") {
		t.Error("live session flag should survive the sweep")
	}
	if m.Enabled("sess-gone") || m.Enabled("sess-also-gone") {
		t.Error("stale session flags should be dropped")
	}
}
