package escalate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"emergency-escalation-service/internal/events"
	"emergency-escalation-service/internal/geo"
	"emergency-escalation-service/internal/models"
	"emergency-escalation-service/internal/notify"
	"emergency-escalation-service/internal/service/session"
)

func testConfig() Config {
	return Config{
		DefaultPatientID:     "demo-patient-123",
		DefaultEmergencyType: "Cardiac Emergency",
		DefaultHospital:      "Kokilaben Dhirubhai Ambani Hospital",
		DefaultLatitude:      19.076,
		DefaultLongitude:     72.8777,
		HistoryMatchScore:    0.5,
		AckDelay:             20 * time.Millisecond,
		Responder: ResponderDefaults{
			Doctor:      "Dr. Rajesh Kumar",
			Nurse:       "Nurse Priya Sharma",
			AmbulanceID: "AMB-108-7734",
			ETAMinutes:  12,
		},
	}
}

func testCoordinator(url string) *Coordinator {
	client := notify.New(url, 2*time.Second, zerolog.Nop())
	return New(client, geo.Denied{}, events.New(nil), testConfig(), zerolog.Nop())
}

func confirmedVoiceSession(t *testing.T) *session.Session {
	t.Helper()
	m := session.NewManager()
	s, err := m.Begin(&models.EmergencyDetection{
		IsEmergency:      true,
		Confidence:       models.ConfidenceHigh,
		DetectedKeywords: []string{"severe pain", "blood"},
		Transcript:       "hey med ai help I have severe pain and blood in my cough",
		Language:         "en-IN",
	}, session.TriggerVoice)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.BeginConfirmation(7); err != nil {
		t.Fatalf("BeginConfirmation: %v", err)
	}
	if err := s.Confirm(); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	return s
}

func TestEscalate_VoicePayload(t *testing.T) {
	var received models.EscalationPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := jsonDecode(r, &received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "em-42", "success": true}`))
	}))
	defer srv.Close()

	s := confirmedVoiceSession(t)
	c := testCoordinator(srv.URL)

	if err := c.Escalate(context.Background(), s); err != nil {
		t.Fatalf("Escalate: %v", err)
	}

	if s.State() != session.StateNotified {
		t.Fatalf("expected NOTIFIED, got %s", s.State())
	}
	if s.RecordID() != "em-42" {
		t.Errorf("expected record id em-42, got %s", s.RecordID())
	}

	if received.PatientID != "demo-patient-123" {
		t.Errorf("patientId = %s", received.PatientID)
	}
	if received.Type != "voice_wake" {
		t.Errorf("type = %s", received.Type)
	}
	if received.EmergencyType != "Severe bleeding / Trauma" {
		t.Errorf("emergencyType = %s", received.EmergencyType)
	}
	if received.DetectedLanguage != "en-IN" {
		t.Errorf("detected_language = %s", received.DetectedLanguage)
	}
	if received.HistoryMatchScore != 0.5 {
		t.Errorf("history_match_score = %v", received.HistoryMatchScore)
	}
	if received.AuthenticityFlag != "high" {
		t.Errorf("authenticity_flag = %s", received.AuthenticityFlag)
	}
	if received.SilentEscalation {
		t.Error("confirmed escalation must not be marked silent")
	}
	// geo.Denied forces the configured fallback coordinates.
	if received.Latitude != 19.076 || received.Longitude != 72.8777 {
		t.Errorf("coordinates = %v,%v", received.Latitude, received.Longitude)
	}
}

func TestEscalate_SilentSetsLowAuthenticity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "em-1"}`))
	}))
	defer srv.Close()

	m := session.NewManager()
	s, _ := m.Begin(&models.EmergencyDetection{
		IsEmergency: true,
		Confidence:  models.ConfidenceMedium,
		Transcript:  "help",
		Language:    "en-IN",
	}, session.TriggerVoice)
	s.BeginConfirmation(7)
	if err := s.SilentlyEscalate(); err != nil {
		t.Fatalf("SilentlyEscalate: %v", err)
	}

	c := testCoordinator(srv.URL)
	payload := c.buildPayload(context.Background(), s)

	if !payload.SilentEscalation {
		t.Error("expected silent_escalation true")
	}
	if payload.AuthenticityFlag != "low" {
		t.Errorf("expected authenticity low for silent escalation, got %s", payload.AuthenticityFlag)
	}
}

func TestEscalate_GeoOverridesFallback(t *testing.T) {
	s := confirmedVoiceSession(t)
	client := notify.New("http://unused", time.Second, zerolog.Nop())
	c := New(client, geo.Static{Pos: geo.Position{Latitude: 28.6139, Longitude: 77.209}},
		events.New(nil), testConfig(), zerolog.Nop())

	payload := c.buildPayload(context.Background(), s)
	if payload.Latitude != 28.6139 || payload.Longitude != 77.209 {
		t.Errorf("expected provider coordinates, got %v,%v", payload.Latitude, payload.Longitude)
	}
}

func TestEscalate_FailureMarksRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>Internal Server Error</html>"))
	}))
	defer srv.Close()

	s := confirmedVoiceSession(t)
	c := testCoordinator(srv.URL)

	err := c.Escalate(context.Background(), s)
	if err == nil {
		t.Fatal("expected submission error")
	}
	if !strings.Contains(err.Error(), "server returned an invalid response") {
		t.Errorf("unexpected error: %v", err)
	}
	if s.State() != session.StateFailed {
		t.Fatalf("expected FAILED, got %s", s.State())
	}
	if s.LastError() == nil {
		t.Error("expected failure recorded on session")
	}
}

func TestEscalate_RetryAfterFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "em-2"}`))
	}))
	defer srv.Close()

	s := confirmedVoiceSession(t)
	c := testCoordinator(srv.URL)

	if err := c.Escalate(context.Background(), s); err == nil {
		t.Fatal("expected first attempt to fail")
	}
	if err := c.Escalate(context.Background(), s); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if s.State() != session.StateNotified {
		t.Fatalf("expected NOTIFIED after retry, got %s", s.State())
	}
}

func TestEscalate_IdempotentAfterNotified(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "em-3"}`))
	}))
	defer srv.Close()

	s := confirmedVoiceSession(t)
	c := testCoordinator(srv.URL)

	if err := c.Escalate(context.Background(), s); err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if err := c.Escalate(context.Background(), s); err != nil {
		t.Fatalf("duplicate Escalate must be a no-op, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected exactly 1 submission, got %d", n)
	}
}

func TestEscalate_RejectsNonEscalatableStates(t *testing.T) {
	m := session.NewManager()
	s, _ := m.Begin(nil, session.TriggerFall)

	c := testCoordinator("http://unused")
	if err := c.Escalate(context.Background(), s); err == nil {
		t.Error("expected error escalating a DETECTED session")
	}

	s.BeginConfirmation(10)
	s.Dismiss()
	if err := c.Escalate(context.Background(), s); err == nil {
		t.Error("expected error escalating a DISMISSED session")
	}
}

func TestEscalate_AcknowledgmentSynthesized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "em-4"}`))
	}))
	defer srv.Close()

	s := confirmedVoiceSession(t)
	c := testCoordinator(srv.URL)

	acked := make(chan *session.Session, 1)
	c.SetAcknowledgmentCallback(func(s *session.Session) { acked <- s })

	if err := c.Escalate(context.Background(), s); err != nil {
		t.Fatalf("Escalate: %v", err)
	}

	select {
	case <-acked:
	case <-time.After(2 * time.Second):
		t.Fatal("acknowledgment callback never fired")
	}

	if s.State() != session.StateAcknowledged {
		t.Fatalf("expected ACKNOWLEDGED, got %s", s.State())
	}
	resp := s.Response()
	if resp == nil {
		t.Fatal("expected acknowledgment attached")
	}
	if resp.Doctor != "Dr. Rajesh Kumar" || resp.Nurse != "Nurse Priya Sharma" {
		t.Errorf("responder = %s / %s", resp.Doctor, resp.Nurse)
	}
	if resp.AmbulanceID != "AMB-108-7734" || resp.ETAMinutes != 12 {
		t.Errorf("ambulance = %s eta %d", resp.AmbulanceID, resp.ETAMinutes)
	}
	if resp.Status != "dispatched" {
		t.Errorf("status = %s", resp.Status)
	}
}

func TestInferEmergencyType(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		want     string
	}{
		{"bleeding wins", []string{"severe pain", "blood"}, "Severe bleeding / Trauma"},
		{"respiratory", []string{"can't breathe"}, "Respiratory distress"},
		{"fainting", []string{"fainting"}, "Respiratory distress"},
		{"cardiac", []string{"chest pain"}, "Cardiac Emergency"},
		{"poisoning", []string{"poisoned"}, "Poisoning"},
		{"fallback", []string{"help", "ambulance"}, "Cardiac Emergency"},
		{"empty", nil, "Cardiac Emergency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferEmergencyType(tt.keywords, "Cardiac Emergency")
			if got != tt.want {
				t.Errorf("InferEmergencyType(%v) = %s, want %s", tt.keywords, got, tt.want)
			}
		})
	}
}

func TestBuildSMSPreview(t *testing.T) {
	msg := BuildSMSPreview("Cardiac Emergency", "Andheri West, Mumbai", 19.076, 72.8777)
	if !strings.HasPrefix(msg, "SOS!") {
		t.Errorf("unexpected prefix: %s", msg)
	}
	if !strings.Contains(msg, "Cardiac Emergency") || !strings.Contains(msg, "Andheri West, Mumbai") {
		t.Errorf("missing condition or address: %s", msg)
	}
	if !strings.Contains(msg, "https://maps.google.com/?q=19.076,72.8777") {
		t.Errorf("missing tracking link: %s", msg)
	}
}

func jsonDecode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
