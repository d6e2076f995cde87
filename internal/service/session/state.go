// Package session provides the escalation session state machine and the
// single-active-session manager.
package session

import (
	"errors"
	"fmt"
)

// State represents the lifecycle state of an escalation session.
type State int

const (
	// StateDetected - Emergency detected, confirmation not started yet.
	StateDetected State = iota
	// StateAwaitingConfirmation - Countdown running, waiting for the user.
	StateAwaitingConfirmation
	// StateConfirmed - User explicitly confirmed the emergency.
	StateConfirmed
	// StateSilentlyEscalated - Countdown expired with no user action.
	// Behaves like Confirmed but the payload is tagged as silent.
	StateSilentlyEscalated
	// StateDismissed - User declared a false alarm. Terminal; no network
	// call happens.
	StateDismissed
	// StateNotified - Payload accepted by the notification endpoint.
	// From here the session is append-only.
	StateNotified
	// StateAcknowledged - Responder acknowledgment attached. Terminal.
	StateAcknowledged
	// StateFailed - Notification submission failed. The user may retry.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDetected:
		return "DETECTED"
	case StateAwaitingConfirmation:
		return "AWAITING_CONFIRMATION"
	case StateConfirmed:
		return "CONFIRMED"
	case StateSilentlyEscalated:
		return "SILENTLY_ESCALATED"
	case StateDismissed:
		return "DISMISSED"
	case StateNotified:
		return "NOTIFIED"
	case StateAcknowledged:
		return "ACKNOWLEDGED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the session has reached an end state.
func (s State) IsTerminal() bool {
	return s == StateDismissed || s == StateAcknowledged
}

// Escalatable returns true if the session may be submitted to the
// notification endpoint from this state. Failed is included so a user
// retry can resubmit.
func (s State) Escalatable() bool {
	return s == StateConfirmed || s == StateSilentlyEscalated || s == StateFailed
}

// Errors for invalid state transitions.
var (
	ErrAlreadyNotified     = errors.New("session already notified")
	ErrSessionTerminal     = errors.New("session is in a terminal state")
	ErrNotAwaiting         = errors.New("session is not awaiting confirmation")
	ErrNotEscalatable      = errors.New("session is not in an escalatable state")
	ErrNotNotified         = errors.New("session has not been notified")
	ErrConfirmationStarted = errors.New("confirmation already started")
)
