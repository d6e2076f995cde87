package session

import (
	"errors"
	"sync"

	"emergency-escalation-service/internal/models"
)

// ErrSessionActive is returned when a new session is requested while a
// non-terminal one exists. Concurrent detections do not spawn parallel
// confirmation flows.
var ErrSessionActive = errors.New("an escalation session is already active")

// Manager enforces the single-active-session rule for one user session.
type Manager struct {
	mu     sync.Mutex
	active *Session
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// Begin creates a new session in DETECTED state. It fails with
// ErrSessionActive if a non-terminal session exists; callers treat that
// as "ignore this detection", not as a fault.
func (m *Manager) Begin(detection *models.EmergencyDetection, trigger Trigger) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && !m.active.State().IsTerminal() {
		return nil, ErrSessionActive
	}

	s := newSession(detection, trigger)
	m.active = s
	return s, nil
}

// Active returns the current session, or nil if none exists or the last
// one ended.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.State().IsTerminal() {
		return nil
	}
	return m.active
}

// Release detaches the given session if it is the active one. Used when
// the user leaves the emergency flow before a terminal state.
func (m *Manager) Release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == s {
		m.active = nil
	}
}
