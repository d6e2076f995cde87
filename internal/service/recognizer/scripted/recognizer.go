// Package scripted provides a recognizer that replays a fixed script of
// utterances. It exists for tests and for running the service without
// cloud credentials, simulating progressive partials followed by exactly
// one final per utterance.
package scripted

import (
	"context"
	"sync"
	"time"

	"emergency-escalation-service/internal/service/recognizer"
)

// Utterance is one scripted speech turn.
type Utterance struct {
	Partials []string
	Final    string
}

// DefaultScript simulates ordinary patient speech followed by a distress
// utterance, which is the scenario the demo service exercises.
var DefaultScript = []Utterance{
	{
		Partials: []string{"I have been", "I have been feeling"},
		Final:    "I have been feeling dizzy since morning",
	},
	{
		Partials: []string{"my head", "my head hurts"},
		Final:    "my head hurts a little",
	},
	{
		Partials: []string{"hey med ai", "hey med ai help"},
		Final:    "hey med ai help I have severe pain and blood in my cough",
	},
}

// Recognizer implements recognizer.Recognizer with scripted results.
// Tests drive it synchronously through the Emit methods; the demo mode
// plays the script on an interval.
type Recognizer struct {
	mu       sync.Mutex
	cb       recognizer.Callback
	script   []Utterance
	interval time.Duration
	running  bool
	stop     chan struct{}
}

// New creates a scripted recognizer. A nil script disables playback;
// results are then only produced via the Emit methods.
func New(script []Utterance, interval time.Duration) *Recognizer {
	return &Recognizer{script: script, interval: interval}
}

// Start begins a session. If a script is configured it is played back on
// the configured interval in a separate goroutine.
func (r *Recognizer) Start(ctx context.Context, cb recognizer.Callback) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.cb = cb
	r.running = true
	r.stop = make(chan struct{})
	stop := r.stop
	r.mu.Unlock()

	if len(r.script) > 0 {
		go r.play(ctx, stop)
	}
	return nil
}

// Stop ends the session and emits OnEnd, like a platform recognizer
// tearing down asynchronously after stop().
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stop)
	cb := r.cb
	r.mu.Unlock()

	if cb != nil {
		cb.OnEnd()
	}
	return nil
}

// EmitResult delivers a transcript to the session callback.
func (r *Recognizer) EmitResult(text string, isFinal bool) {
	if cb := r.callback(); cb != nil {
		cb.OnResult(text, isFinal)
	}
}

// EmitError delivers an error code to the session callback.
func (r *Recognizer) EmitError(code string) {
	if cb := r.callback(); cb != nil {
		cb.OnError(code)
	}
}

// EmitEnd signals an unexpected session end (not caused by Stop).
func (r *Recognizer) EmitEnd() {
	r.mu.Lock()
	r.running = false
	cb := r.cb
	r.mu.Unlock()
	if cb != nil {
		cb.OnEnd()
	}
}

// Running reports whether a session is active.
func (r *Recognizer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Recognizer) callback() recognizer.Callback {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil
	}
	return r.cb
}

func (r *Recognizer) play(ctx context.Context, stop chan struct{}) {
	for _, utt := range r.script {
		for _, p := range utt.Partials {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-time.After(r.interval):
			}
			r.EmitResult(p, false)
		}
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-time.After(r.interval):
		}
		r.EmitResult(utt.Final, true)
	}
}
