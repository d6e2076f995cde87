// Package triage runs the confirmation window between a detection and an
// escalation: the countdown, the user's confirm/dismiss choice, and the
// silent escalation when no choice is made.
package triage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"emergency-escalation-service/internal/events"
	"emergency-escalation-service/internal/models"
	"emergency-escalation-service/internal/observability/metrics"
	"emergency-escalation-service/internal/service/countdown"
	"emergency-escalation-service/internal/service/escalate"
	"emergency-escalation-service/internal/service/session"
)

// ListenControl restarts continuous listening once a flow resolves.
type ListenControl interface {
	Start(ctx context.Context) error
}

// Config holds confirmation flow settings.
type Config struct {
	// CountdownTicks is the pre-triage window for voice detections.
	CountdownTicks int
	// FallCountdownTicks is the longer window used after a suspected
	// fall, where the patient may need more time to reach the device.
	FallCountdownTicks int
	// TickInterval is the wall-clock spacing between countdown ticks.
	TickInterval time.Duration
}

// Flow owns the active confirmation countdown and routes its outcome.
// All entry points are safe for concurrent use; the session manager
// enforces that only one flow runs at a time.
type Flow struct {
	sessions  *session.Manager
	coord     *escalate.Coordinator
	publisher *events.Publisher
	listen    ListenControl
	cfg       Config
	log       zerolog.Logger
	metrics   *metrics.Metrics

	mu          sync.Mutex
	timer       *countdown.Timer
	onCountdown func(sessionID string, remaining int)
}

// New creates a confirmation flow. listen may be nil when no continuous
// listener is attached (fall-only deployments).
func New(sessions *session.Manager, coord *escalate.Coordinator, publisher *events.Publisher, listen ListenControl, cfg Config, log zerolog.Logger) *Flow {
	return &Flow{
		sessions:  sessions,
		coord:     coord,
		publisher: publisher,
		listen:    listen,
		cfg:       cfg,
		log:       log.With().Str("component", "triage").Logger(),
		metrics:   metrics.DefaultMetrics,
	}
}

// SetCountdownCallback registers a per-tick callback for the UI layer.
func (f *Flow) SetCountdownCallback(cb func(sessionID string, remaining int)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onCountdown = cb
}

// Active returns the session currently in flight, or nil.
func (f *Flow) Active() *session.Session {
	return f.sessions.Active()
}

// HandleDetection opens a confirmation window for a voice detection.
// A detection arriving while another flow is active is dropped;
// listening resumes so the microphone does not stay dark.
func (f *Flow) HandleDetection(ctx context.Context, d models.EmergencyDetection) (*session.Session, error) {
	det := d
	s, err := f.sessions.Begin(&det, session.TriggerVoice)
	if err != nil {
		f.metrics.RecordSessionDuplicate()
		f.log.Info().Err(err).Msg("Detection ignored, session already active")
		f.resume(ctx)
		return nil, err
	}

	f.metrics.RecordSessionCreated(string(session.TriggerVoice))
	f.publishDetection(ctx, s, det)
	f.log.Info().
		Str("sessionId", s.ID()).
		Str("confidence", string(det.Confidence)).
		Msg("Pre-triage confirmation started")

	if err := f.arm(ctx, s, f.cfg.CountdownTicks, "pretriage"); err != nil {
		return nil, err
	}
	return s, nil
}

// HandleFall opens a confirmation window for a suspected fall. There is
// no transcript; the session carries no detection.
func (f *Flow) HandleFall(ctx context.Context) (*session.Session, error) {
	s, err := f.sessions.Begin(nil, session.TriggerFall)
	if err != nil {
		f.metrics.RecordSessionDuplicate()
		return nil, err
	}

	f.metrics.RecordSessionCreated(string(session.TriggerFall))
	f.log.Info().Str("sessionId", s.ID()).Msg("Fall confirmation started")

	if err := f.arm(ctx, s, f.cfg.FallCountdownTicks, "fall"); err != nil {
		return nil, err
	}
	return s, nil
}

// TriggerManual escalates immediately on an explicit SOS action. No
// countdown; the button press is the confirmation.
func (f *Flow) TriggerManual(ctx context.Context) (*session.Session, error) {
	s, err := f.sessions.Begin(nil, session.TriggerManual)
	if err != nil {
		f.metrics.RecordSessionDuplicate()
		return nil, err
	}

	f.metrics.RecordSessionCreated(string(session.TriggerManual))
	if err := s.Confirm(); err != nil {
		return nil, err
	}
	f.log.Info().Str("sessionId", s.ID()).Msg("Manual emergency trigger confirmed")

	go f.escalateAndResume(ctx, s)
	return s, nil
}

// Confirm records the user's "yes, this is an emergency" and escalates.
func (f *Flow) Confirm(ctx context.Context) error {
	s := f.sessions.Active()
	if s == nil {
		return session.ErrNotAwaiting
	}

	f.cancelTimer(s, true)
	if err := s.Confirm(); err != nil {
		return err
	}
	f.log.Info().Str("sessionId", s.ID()).Msg("Emergency confirmed by user")

	go f.escalateAndResume(ctx, s)
	return nil
}

// Dismiss records "I'm OK". The flow ends with no network call and
// listening resumes.
func (f *Flow) Dismiss(ctx context.Context) error {
	s := f.sessions.Active()
	if s == nil {
		return session.ErrNotAwaiting
	}

	f.cancelTimer(s, true)
	if err := s.Dismiss(); err != nil {
		return err
	}
	f.log.Info().
		Str("sessionId", s.ID()).
		Int("remaining", s.CountdownRemaining()).
		Msg("Emergency dismissed by user")
	f.publishOutcome(s)

	f.resume(ctx)
	return nil
}

// Retry resubmits a failed notification. Retrying is always a
// deliberate user action; nothing resubmits automatically.
func (f *Flow) Retry(ctx context.Context) error {
	s := f.sessions.Active()
	if s == nil {
		return session.ErrNotAwaiting
	}
	if s.State() != session.StateFailed {
		return fmt.Errorf("cannot retry session %s in state %s", s.ID(), s.State())
	}
	f.log.Info().Str("sessionId", s.ID()).Msg("Retrying failed escalation")

	go f.escalateAndResume(ctx, s)
	return nil
}

// Abandon gives up on a failed escalation, releasing the session so a
// new emergency can begin. Only FAILED sessions can be abandoned; a
// running confirmation ends through Dismiss instead.
func (f *Flow) Abandon(ctx context.Context) error {
	s := f.sessions.Active()
	if s == nil {
		return session.ErrNotAwaiting
	}
	if s.State() != session.StateFailed {
		return fmt.Errorf("cannot abandon session %s in state %s", s.ID(), s.State())
	}
	f.sessions.Release(s)
	f.log.Warn().Str("sessionId", s.ID()).Msg("Failed escalation abandoned by user")
	f.publishOutcome(s)

	f.resume(ctx)
	return nil
}

// arm starts the countdown for the given session. Expiry escalates
// silently.
func (f *Flow) arm(ctx context.Context, s *session.Session, ticks int, flowLabel string) error {
	if err := s.BeginConfirmation(ticks); err != nil {
		return err
	}

	t := countdown.New(ticks, f.cfg.TickInterval,
		func(remaining int) {
			// The only failure is losing the race against a
			// concurrent user action; their choice wins.
			_ = s.SetCountdown(remaining)
			f.mu.Lock()
			cb := f.onCountdown
			f.mu.Unlock()
			if cb != nil {
				cb(s.ID(), remaining)
			}
		},
		func() {
			f.expire(ctx, s, flowLabel)
		},
	)

	f.mu.Lock()
	f.timer = t
	f.mu.Unlock()

	f.metrics.RecordCountdownStarted(flowLabel)
	t.Start(ctx)
	return nil
}

// expire runs when a countdown reaches zero with no user action.
func (f *Flow) expire(ctx context.Context, s *session.Session, flowLabel string) {
	f.metrics.RecordCountdownExpired(flowLabel)

	if err := s.SilentlyEscalate(); err != nil {
		// The user acted in the same instant; their choice wins.
		f.log.Debug().Err(err).Str("sessionId", s.ID()).Msg("Expiry lost race against user action")
		return
	}
	f.log.Warn().Str("sessionId", s.ID()).Msg("No response before countdown expiry, escalating silently")

	go f.escalateAndResume(ctx, s)
}

// Timer returns the active countdown timer. Tests drive ticks through
// it directly.
func (f *Flow) Timer() *countdown.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timer
}

func (f *Flow) cancelTimer(s *session.Session, byUser bool) {
	f.mu.Lock()
	t := f.timer
	f.mu.Unlock()
	if t == nil || t.Done() {
		return
	}
	t.Cancel()
	if byUser {
		label := "pretriage"
		if s.Trigger() == session.TriggerFall {
			label = "fall"
		}
		f.metrics.RecordCountdownCancelled(label)
	}
}

func (f *Flow) escalateAndResume(ctx context.Context, s *session.Session) {
	if err := f.coord.Escalate(ctx, s); err != nil {
		f.log.Error().Err(err).Str("sessionId", s.ID()).Msg("Escalation failed, session is retryable")
	}
	f.resume(ctx)
}

// resume restarts continuous listening after a flow resolves.
func (f *Flow) resume(ctx context.Context) {
	if f.listen == nil {
		return
	}
	if err := f.listen.Start(ctx); err != nil {
		f.log.Error().Err(err).Msg("Could not resume listening")
	}
}

func (f *Flow) publishDetection(ctx context.Context, s *session.Session, d models.EmergencyDetection) {
	ev := models.DetectionEvent{
		EventType:        "emergency.detection",
		SessionID:        s.ID(),
		Timestamp:        time.Now().UnixMilli(),
		Transcript:       d.Transcript,
		Language:         d.Language,
		Confidence:       d.Confidence,
		DetectedKeywords: d.DetectedKeywords,
	}
	if err := f.publisher.PublishDetection(ctx, s.ID(), ev); err != nil {
		f.log.Warn().Err(err).Msg("Failed to publish detection event")
	}
}

func (f *Flow) publishOutcome(s *session.Session) {
	ev := models.EscalationEvent{
		EventType: "emergency.escalation",
		SessionID: s.ID(),
		Timestamp: time.Now().UnixMilli(),
		State:     s.State().String(),
		Trigger:   string(s.Trigger()),
		Silent:    s.Silent(),
	}
	if err := f.publisher.PublishEscalation(context.Background(), s.ID(), ev); err != nil {
		f.log.Warn().Err(err).Msg("Failed to publish escalation event")
	}
}
