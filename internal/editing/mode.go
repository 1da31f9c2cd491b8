package editing

import (
	"sync"

	"github.com/meridianhealth/meridian-site/internal/content"
)

// ModeController tracks which sessions have inline editing switched on.
// The flag lives in memory only; a fresh session always starts with edit
// mode off.
type ModeController struct {
	mu      sync.Mutex
	enabled map[string]bool
}

// NewModeController creates an empty mode controller.
func NewModeController() *ModeController {
	return &ModeController{enabled: make(map[string]bool)}
}

// Toggle flips edit mode for the session and returns the new state. It does
// not check permissions; callers expose the toggle to admin identities only.
func (m *ModeController) Toggle(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enabled[sessionID] {
		delete(m.enabled, sessionID)
		return false
	}
	m.enabled[sessionID] = true
	return true
}

// Enabled reports the raw stored flag for a session.
func (m *ModeController) Enabled(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[sessionID]
}

// Active reports whether editing affordances should render for the session.
// Without a resolved identity the stored flag is ignored and editing is off.
func (m *ModeController) Active(sessionID string, identity *content.Identity) bool {
	if identity == nil {
		return false
	}
	return m.Enabled(sessionID)
}

// Disable switches edit mode off for the session.
func (m *ModeController) Disable(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.enabled, sessionID)
}

// PruneExcept drops stored flags for sessions that are no longer live and
// returns how many were dropped. The flag is process-local state, so it
// would otherwise outlive the session that set it.
func (m *ModeController) PruneExcept(live map[string]struct{}) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for sessionID := range m.enabled {
		if _, ok := live[sessionID]; !ok {
			delete(m.enabled, sessionID)
			dropped++
		}
	}
	return dropped
}
