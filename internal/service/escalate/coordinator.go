// Package escalate builds emergency payloads, submits them to the
// notification endpoint and tracks responder acknowledgment.
package escalate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"emergency-escalation-service/internal/events"
	"emergency-escalation-service/internal/geo"
	"emergency-escalation-service/internal/models"
	"emergency-escalation-service/internal/notify"
	"emergency-escalation-service/internal/observability/metrics"
	"emergency-escalation-service/internal/service/session"
)

// ResponderDefaults are the acknowledgment values synthesized when no
// live responder feed is attached.
type ResponderDefaults struct {
	Doctor      string
	Nurse       string
	AmbulanceID string
	ETAMinutes  int
}

// Config holds coordinator settings. The defaults exist so escalation
// degrades gracefully instead of blocking: a missed real emergency
// costs more than location precision.
type Config struct {
	DefaultPatientID     string
	DefaultEmergencyType string
	DefaultHospital      string
	DefaultLatitude      float64
	DefaultLongitude     float64
	HistoryMatchScore    float64
	AckDelay             time.Duration
	Responder            ResponderDefaults
}

// Coordinator submits escalation sessions exactly once each.
type Coordinator struct {
	client    *notify.Client
	geo       geo.Provider
	publisher *events.Publisher
	metrics   *metrics.Metrics
	cfg       Config
	log       zerolog.Logger

	mu       sync.Mutex
	inflight map[string]bool

	onAck func(*session.Session)
}

// New creates a coordinator.
func New(client *notify.Client, provider geo.Provider, publisher *events.Publisher, cfg Config, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		client:    client,
		geo:       provider,
		publisher: publisher,
		metrics:   metrics.DefaultMetrics,
		cfg:       cfg,
		log:       log.With().Str("component", "escalate").Logger(),
		inflight:  make(map[string]bool),
	}
}

// SetAcknowledgmentCallback registers a callback invoked when a session
// reaches ACKNOWLEDGED. The UI layer subscribes here.
func (c *Coordinator) SetAcknowledgmentCallback(cb func(*session.Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAck = cb
}

// Escalate submits the session to the notification endpoint.
//
// Repeated calls for a session that is already NOTIFIED (or later, or
// currently submitting) are no-ops, so double-clicks and timer races
// cannot dispatch twice. Failures move the session to FAILED and are
// returned to the caller; there is no automatic retry - retrying is a
// deliberate user action that goes through Escalate again.
func (c *Coordinator) Escalate(ctx context.Context, s *session.Session) error {
	st := s.State()
	if st == session.StateNotified || st == session.StateAcknowledged {
		c.log.Info().Str("sessionId", s.ID()).Str("state", st.String()).
			Msg("Escalate ignored: session already notified")
		c.metrics.RecordEscalationDuplicate()
		return nil
	}
	if !st.Escalatable() {
		return fmt.Errorf("cannot escalate session %s in state %s", s.ID(), st)
	}

	c.mu.Lock()
	if c.inflight[s.ID()] {
		c.mu.Unlock()
		c.metrics.RecordEscalationDuplicate()
		return nil
	}
	c.inflight[s.ID()] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inflight, s.ID())
		c.mu.Unlock()
	}()

	payload := c.buildPayload(ctx, s)

	log := c.log.With().
		Str("sessionId", s.ID()).
		Str("trigger", string(s.Trigger())).
		Bool("silent", s.Silent()).
		Logger()
	log.Info().
		Str("emergencyType", payload.EmergencyType).
		Str("hospital", payload.NearestHospital).
		Msg("Submitting emergency notification")

	start := time.Now()
	result, err := c.client.Submit(ctx, payload)
	latency := time.Since(start).Seconds()

	if err != nil {
		if ferr := s.MarkFailed(err); ferr != nil {
			log.Error().Err(ferr).Msg("Could not record escalation failure")
		}
		c.metrics.RecordEscalation("failed", s.Silent(), latency)
		c.publishEscalation(s, err)
		log.Error().Err(err).Msg("Emergency notification failed")
		return err
	}

	if err := s.MarkNotified(payload, result.ID); err != nil {
		// Lost the race against another submission; nothing was
		// double-sent because of the inflight guard.
		c.metrics.RecordEscalationDuplicate()
		return nil
	}

	c.metrics.RecordEscalation("notified", s.Silent(), latency)
	c.publishEscalation(s, nil)
	log.Info().Str("recordId", result.ID).Msg("Emergency notification accepted")

	time.AfterFunc(c.cfg.AckDelay, func() { c.acknowledge(s) })
	return nil
}

// buildPayload assembles the notification body. Geolocation denial
// falls back to the configured coordinates.
func (c *Coordinator) buildPayload(ctx context.Context, s *session.Session) *models.EscalationPayload {
	lat, lng := c.cfg.DefaultLatitude, c.cfg.DefaultLongitude
	if pos, err := c.geo.CurrentPosition(ctx); err == nil {
		lat, lng = pos.Latitude, pos.Longitude
	} else {
		c.log.Warn().Err(err).Msg("Geolocation unavailable, using configured fallback")
	}

	det := s.Detection()

	payload := &models.EscalationPayload{
		PatientID:       c.cfg.DefaultPatientID,
		EmergencyType:   c.cfg.DefaultEmergencyType,
		Latitude:        lat,
		Longitude:       lng,
		NearestHospital: c.cfg.DefaultHospital,
	}

	if det != nil {
		payload.Type = "voice_wake"
		payload.EmergencyType = InferEmergencyType(det.DetectedKeywords, c.cfg.DefaultEmergencyType)
		payload.DetectedLanguage = det.Language
		payload.Transcript = det.Transcript
		payload.Keywords = det.DetectedKeywords
		payload.Confidence = det.Confidence
		payload.HistoryMatchScore = c.cfg.HistoryMatchScore
		payload.SilentEscalation = s.Silent()
		if s.Silent() {
			payload.AuthenticityFlag = string(models.ConfidenceLow)
		} else {
			payload.AuthenticityFlag = string(det.Confidence)
		}
	}

	return payload
}

// acknowledge attaches the responder acknowledgment once the delay has
// elapsed. With no live responder feed the values come from config.
func (c *Coordinator) acknowledge(s *session.Session) {
	ack := models.Acknowledgment{
		Hospital:    c.cfg.DefaultHospital,
		Doctor:      c.cfg.Responder.Doctor,
		Nurse:       c.cfg.Responder.Nurse,
		ETAMinutes:  c.cfg.Responder.ETAMinutes,
		AmbulanceID: c.cfg.Responder.AmbulanceID,
		Status:      "dispatched",
	}
	if p := s.Payload(); p != nil && p.NearestHospital != "" {
		ack.Hospital = p.NearestHospital
	}

	if err := s.Acknowledge(ack); err != nil {
		c.log.Warn().Err(err).Str("sessionId", s.ID()).Msg("Acknowledgment not applied")
		return
	}

	c.metrics.RecordAcknowledgment()
	c.publishEscalation(s, nil)
	c.log.Info().
		Str("sessionId", s.ID()).
		Str("ambulanceId", ack.AmbulanceID).
		Int("etaMinutes", ack.ETAMinutes).
		Msg("Responder acknowledgment recorded")

	c.mu.Lock()
	cb := c.onAck
	c.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

func (c *Coordinator) publishEscalation(s *session.Session, failure error) {
	ev := models.EscalationEvent{
		EventType: "emergency.escalation",
		SessionID: s.ID(),
		Timestamp: time.Now().UnixMilli(),
		State:     s.State().String(),
		Trigger:   string(s.Trigger()),
		Silent:    s.Silent(),
	}
	if failure != nil {
		ev.Error = failure.Error()
	}
	if err := c.publisher.PublishEscalation(context.Background(), s.ID(), ev); err != nil {
		c.log.Warn().Err(err).Str("sessionId", s.ID()).Msg("Failed to publish escalation event")
	}
}

// InferEmergencyType maps detected keywords to a coarse condition for
// responders.
func InferEmergencyType(keywords []string, fallback string) string {
	joined := strings.Join(keywords, " ")
	switch {
	case strings.Contains(joined, "blood"):
		return "Severe bleeding / Trauma"
	case strings.Contains(joined, "breathe") || strings.Contains(joined, "fainting"):
		return "Respiratory distress"
	case strings.Contains(joined, "chest pain"):
		return "Cardiac Emergency"
	case strings.Contains(joined, "poisoned"):
		return "Poisoning"
	default:
		return fallback
	}
}

// BuildSMSPreview renders the SOS text message shared with emergency
// contacts.
func BuildSMSPreview(condition, address string, lat, lng float64) string {
	return fmt.Sprintf(
		"SOS! I need urgent medical help. Condition: %s. Location: %s. Track me: https://maps.google.com/?q=%g,%g",
		condition, address, lat, lng,
	)
}
