// Package recognizer defines the interface to the host speech-to-text
// capability. The core does not implement recognition itself; it starts
// and stops an opaque transcription session and consumes its events.
package recognizer

import "context"

// Error codes reported through Callback.OnError. These mirror the codes
// speech platforms commonly emit; the listener keys its error taxonomy
// off them.
const (
	ErrCodeNoSpeech     = "no-speech"
	ErrCodeAborted      = "aborted"
	ErrCodeNetwork      = "network"
	ErrCodeAudioCapture = "audio-capture"
)

// Callback receives transcript and lifecycle events from a recognizer.
type Callback interface {
	// OnResult is called for every transcript. isFinal marks results
	// that will not be revised further.
	OnResult(text string, isFinal bool)

	// OnError reports a recognizer error by code. The session may or
	// may not end afterwards; OnEnd is the authoritative end signal.
	OnError(code string)

	// OnEnd is called exactly once when the session terminates, whether
	// deliberately or not.
	OnEnd()
}

// Recognizer is one continuous transcription session provider. Only one
// session is active per instance; Start while running and Stop while
// idle are no-ops.
type Recognizer interface {
	Start(ctx context.Context, cb Callback) error
	Stop() error
}
