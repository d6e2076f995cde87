// Package listener runs the always-on transcription loop, classifies
// finalized transcripts and hands detections to the confirmation flow.
package listener

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"emergency-escalation-service/internal/models"
	"emergency-escalation-service/internal/observability/metrics"
	"emergency-escalation-service/internal/service/detect"
	"emergency-escalation-service/internal/service/recognizer"
)

// State describes the listener lifecycle.
type State int

const (
	StateIdle State = iota
	StateListening
)

func (s State) String() string {
	if s == StateListening {
		return "LISTENING"
	}
	return "IDLE"
}

// Config holds listener settings.
type Config struct {
	// Language is the BCP-47 code passed through to detections.
	Language string
	// RestartDelay is the pause before re-arming after an unexpected
	// session end. Platform recognizers terminate sessions on silence;
	// restarting immediately can spin on some of them.
	RestartDelay time.Duration
}

// Listener drives one recognizer session at a time and restarts it
// whenever it ends for any reason other than a deliberate Stop or an
// emergency detection.
type Listener struct {
	rec     recognizer.Recognizer
	spotter *detect.Spotter
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex
	state       State
	stopping    bool
	suppressed  bool // restart suppressed after a detection
	ctx         context.Context
	onDetection func(models.EmergencyDetection)
}

// New creates a listener. The detection handler is invoked from the
// recognizer's callback goroutine once per emergency-classified final
// transcript; the listener is already stopped when it runs.
func New(rec recognizer.Recognizer, spotter *detect.Spotter, cfg Config, log zerolog.Logger) *Listener {
	return &Listener{
		rec:     rec,
		spotter: spotter,
		cfg:     cfg,
		log:     log.With().Str("component", "listener").Logger(),
		metrics: metrics.DefaultMetrics,
	}
}

// SetDetectionHandler registers the emergency detection callback. Must
// be called before Start.
func (l *Listener) SetDetectionHandler(h func(models.EmergencyDetection)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onDetection = h
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start begins continuous listening. Starting an already listening
// instance is a no-op.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.state == StateListening {
		l.mu.Unlock()
		return nil
	}
	l.state = StateListening
	l.stopping = false
	l.suppressed = false
	l.ctx = ctx
	l.mu.Unlock()

	l.log.Info().Str("language", l.cfg.Language).Msg("Continuous listening started")
	return l.rec.Start(ctx, &callback{l: l})
}

// Stop ends listening deliberately. Recognizer errors raised by the
// teardown ("aborted") are expected and not logged as problems.
func (l *Listener) Stop() error {
	l.mu.Lock()
	if l.state == StateIdle {
		l.mu.Unlock()
		return nil
	}
	l.stopping = true
	l.mu.Unlock()

	err := l.rec.Stop()

	l.mu.Lock()
	l.state = StateIdle
	l.mu.Unlock()

	l.log.Info().Msg("Continuous listening stopped")
	return err
}

// callback adapts recognizer events onto the listener without exporting
// the handler methods on Listener itself.
type callback struct {
	l *Listener
}

func (c *callback) OnResult(text string, isFinal bool) {
	l := c.l
	if !isFinal {
		l.log.Debug().Str("partial", text).Msg("Interim transcript")
		return
	}

	l.metrics.RecordFinalTranscript()
	detection := l.spotter.Classify(text, l.cfg.Language)
	l.log.Debug().
		Str("transcript", text).
		Str("confidence", string(detection.Confidence)).
		Bool("emergency", detection.IsEmergency).
		Msg("Final transcript classified")

	if !detection.IsEmergency {
		return
	}

	l.metrics.RecordDetection(string(detection.Confidence))
	l.log.Info().
		Str("confidence", string(detection.Confidence)).
		Strs("keywords", detection.DetectedKeywords).
		Msg("Emergency speech detected")

	l.mu.Lock()
	l.suppressed = true
	l.stopping = true
	handler := l.onDetection
	l.mu.Unlock()

	// Listening halts during the confirmation flow; the flow restarts
	// the listener when it resolves.
	if err := l.rec.Stop(); err != nil {
		l.log.Warn().Err(err).Msg("Recognizer stop after detection")
	}
	l.mu.Lock()
	l.state = StateIdle
	l.mu.Unlock()

	if handler != nil {
		handler(detection)
	}
}

// OnError applies the error taxonomy. no-speech is routine silence,
// aborted is expected during a deliberate stop; everything else is a
// warning. None of them end the session here; OnEnd decides restarts.
func (c *callback) OnError(code string) {
	l := c.l

	switch code {
	case recognizer.ErrCodeNoSpeech:
		l.metrics.RecordListenerError(code, true)
		l.log.Debug().Msg("No speech detected, session will recycle")
	case recognizer.ErrCodeAborted:
		l.mu.Lock()
		stopping := l.stopping
		l.mu.Unlock()
		if stopping {
			l.metrics.RecordListenerError(code, true)
			return
		}
		l.metrics.RecordListenerError(code, false)
		l.log.Warn().Str("code", code).Msg("Recognizer aborted unexpectedly")
	default:
		l.metrics.RecordListenerError(code, false)
		l.log.Warn().Str("code", code).Msg("Recognizer error")
	}
}

func (c *callback) OnEnd() {
	l := c.l

	l.mu.Lock()
	restart := !l.stopping && !l.suppressed
	ctx := l.ctx
	if !restart {
		l.state = StateIdle
	}
	l.mu.Unlock()

	if !restart {
		return
	}

	l.log.Debug().Dur("delay", l.cfg.RestartDelay).Msg("Recognizer session ended, scheduling restart")
	time.AfterFunc(l.cfg.RestartDelay, func() {
		l.mu.Lock()
		if l.stopping || l.suppressed || l.state != StateListening {
			l.mu.Unlock()
			return
		}
		l.mu.Unlock()

		if ctx != nil && ctx.Err() != nil {
			return
		}

		l.metrics.RecordListenerRestart()
		if err := l.rec.Start(ctx, c); err != nil {
			l.log.Error().Err(err).Msg("Listener restart failed")
			l.mu.Lock()
			l.state = StateIdle
			l.mu.Unlock()
		}
	})
}
