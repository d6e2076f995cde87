// Package models defines the data structures shared by the detection and
// escalation pipeline.
package models

// Confidence grades how strongly a transcript points at an emergency.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Transcript is a single recognizer result. Only final transcripts are
// classified; interim results exist for UI feedback.
type Transcript struct {
	Text     string `json:"text"`
	IsFinal  bool   `json:"isFinal"`
	Language string `json:"language"`
}

// EmergencyDetection is the classification of one final transcript.
// It is derived purely from the transcript and never mutated.
type EmergencyDetection struct {
	IsEmergency      bool       `json:"isEmergency"`
	Confidence       Confidence `json:"confidence"`
	DetectedKeywords []string   `json:"detectedKeywords"`
	Transcript       string     `json:"transcript"`
	Language         string     `json:"language"`
}

// EscalationPayload is the body submitted to the notification endpoint.
// The voice-wake fields are populated only for sessions that originate
// from a voice detection.
type EscalationPayload struct {
	PatientID       string  `json:"patientId"`
	EmergencyType   string  `json:"emergencyType"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	NearestHospital string  `json:"nearestHospital"`

	// Voice-wake extension.
	Type              string     `json:"type,omitempty"`
	DetectedLanguage  string     `json:"detected_language,omitempty"`
	Transcript        string     `json:"transcript,omitempty"`
	Keywords          []string   `json:"keywords,omitempty"`
	Confidence        Confidence `json:"confidence,omitempty"`
	HistoryMatchScore float64    `json:"history_match_score,omitempty"`
	AuthenticityFlag  string     `json:"authenticity_flag,omitempty"`
	SilentEscalation  bool       `json:"silent_escalation,omitempty"`
}

// Acknowledgment is the responder-side confirmation received (or
// synthesized) after a successful notification.
type Acknowledgment struct {
	Hospital    string `json:"hospital"`
	Doctor      string `json:"doctor"`
	Nurse       string `json:"nurse"`
	ETAMinutes  int    `json:"etaMinutes"`
	AmbulanceID string `json:"ambulanceId"`
	Status      string `json:"status"`
}

// DetectionEvent is the audit event published when a final transcript
// classifies as an emergency.
type DetectionEvent struct {
	EventType        string     `json:"eventType"`
	SessionID        string     `json:"sessionId,omitempty"`
	Timestamp        int64      `json:"timestamp"`
	Transcript       string     `json:"transcript"`
	Language         string     `json:"language"`
	Confidence       Confidence `json:"confidence"`
	DetectedKeywords []string   `json:"detectedKeywords"`
}

// EscalationEvent is the audit event published on every escalation
// outcome (notified, acknowledged, failed, dismissed).
type EscalationEvent struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
	State     string `json:"state"`
	Trigger   string `json:"trigger"`
	Silent    bool   `json:"silent"`
	Error     string `json:"error,omitempty"`
}
