package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"emergency-escalation-service/internal/models"
)

// Trigger identifies what created a session.
type Trigger string

const (
	TriggerVoice  Trigger = "voice"
	TriggerFall   Trigger = "fall"
	TriggerManual Trigger = "manual"
)

// Session is one active emergency workflow instance. All transitions go
// through methods; fields are never mutated from outside.
//
// State transitions:
//
//	DETECTED → AWAITING_CONFIRMATION → {CONFIRMED, DISMISSED, SILENTLY_ESCALATED}
//	DETECTED → CONFIRMED                      (manual triggers skip the countdown)
//	CONFIRMED | SILENTLY_ESCALATED → {NOTIFIED, FAILED}
//	FAILED → {NOTIFIED, FAILED}               (user-initiated retry)
//	NOTIFIED → ACKNOWLEDGED                   (append-only from NOTIFIED on)
type Session struct {
	mu        sync.RWMutex
	id        string
	state     State
	countdown int
	detection *models.EmergencyDetection
	trigger   Trigger
	silent    bool
	payload   *models.EscalationPayload
	recordID  string
	response  *models.Acknowledgment
	lastErr   error
	createdAt time.Time
}

// newSession creates a session in DETECTED state. detection is nil for
// manually triggered sessions (fall detection, manual button).
func newSession(detection *models.EmergencyDetection, trigger Trigger) *Session {
	return &Session{
		id:        uuid.New().String(),
		state:     StateDetected,
		detection: detection,
		trigger:   trigger,
		createdAt: time.Now().UTC(),
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Trigger returns what created the session.
func (s *Session) Trigger() Trigger {
	return s.trigger
}

// Detection returns the originating detection, nil for manual sessions.
func (s *Session) Detection() *models.EmergencyDetection {
	return s.detection
}

// Silent reports whether the session escalated without human
// confirmation.
func (s *Session) Silent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.silent
}

// CountdownRemaining returns the countdown value. Only meaningful while
// AWAITING_CONFIRMATION; zero otherwise.
func (s *Session) CountdownRemaining() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateAwaitingConfirmation {
		return 0
	}
	return s.countdown
}

// Payload returns the submitted notification payload, nil before
// NOTIFIED.
func (s *Session) Payload() *models.EscalationPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.payload
}

// RecordID returns the emergency record id assigned by the notification
// endpoint, empty before NOTIFIED.
func (s *Session) RecordID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recordID
}

// Response returns the responder acknowledgment, nil before
// ACKNOWLEDGED.
func (s *Session) Response() *models.Acknowledgment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.response
}

// LastError returns the most recent escalation failure, nil unless the
// session is or was FAILED.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// BeginConfirmation transitions DETECTED → AWAITING_CONFIRMATION and
// arms the countdown.
func (s *Session) BeginConfirmation(ticks int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateDetected:
		s.state = StateAwaitingConfirmation
		s.countdown = ticks
		return nil
	case StateAwaitingConfirmation:
		return ErrConfirmationStarted
	default:
		return transitionError(s.state, StateAwaitingConfirmation)
	}
}

// SetCountdown records the current countdown value. Valid only while
// AWAITING_CONFIRMATION.
func (s *Session) SetCountdown(remaining int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingConfirmation {
		return ErrNotAwaiting
	}
	s.countdown = remaining
	return nil
}

// Confirm transitions to CONFIRMED on explicit user confirmation.
// Allowed from DETECTED (manual triggers) and AWAITING_CONFIRMATION.
func (s *Session) Confirm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateDetected, StateAwaitingConfirmation:
		s.state = StateConfirmed
		s.countdown = 0
		return nil
	default:
		return transitionError(s.state, StateConfirmed)
	}
}

// Dismiss ends the flow with no network call ("I'm OK").
func (s *Session) Dismiss() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateDetected, StateAwaitingConfirmation:
		s.state = StateDismissed
		s.countdown = 0
		return nil
	default:
		return transitionError(s.state, StateDismissed)
	}
}

// SilentlyEscalate transitions AWAITING_CONFIRMATION →
// SILENTLY_ESCALATED when the countdown reaches zero with no user
// action.
func (s *Session) SilentlyEscalate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingConfirmation {
		return ErrNotAwaiting
	}
	s.state = StateSilentlyEscalated
	s.silent = true
	s.countdown = 0
	return nil
}

// MarkNotified records acceptance by the notification endpoint. Allowed
// from CONFIRMED, SILENTLY_ESCALATED and FAILED (retry).
func (s *Session) MarkNotified(payload *models.EscalationPayload, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateNotified || s.state == StateAcknowledged {
		return ErrAlreadyNotified
	}
	if !s.state.Escalatable() {
		return transitionError(s.state, StateNotified)
	}
	s.state = StateNotified
	s.payload = payload
	s.recordID = recordID
	s.lastErr = nil
	return nil
}

// MarkFailed records a notification failure. The session stays
// retryable.
func (s *Session) MarkFailed(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateNotified || s.state == StateAcknowledged {
		return ErrAlreadyNotified
	}
	if !s.state.Escalatable() {
		return transitionError(s.state, StateFailed)
	}
	s.state = StateFailed
	s.lastErr = err
	return nil
}

// Acknowledge attaches the responder acknowledgment, NOTIFIED →
// ACKNOWLEDGED.
func (s *Session) Acknowledge(ack models.Acknowledgment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateNotified {
		return ErrNotNotified
	}
	s.state = StateAcknowledged
	s.response = &ack
	return nil
}

func transitionError(from, to State) error {
	if from.IsTerminal() {
		return ErrSessionTerminal
	}
	return fmt.Errorf("invalid transition %s -> %s", from, to)
}
