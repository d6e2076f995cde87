package events

import (
	"context"
	"testing"
	"time"

	"emergency-escalation-service/internal/models"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerDetection != nil {
				t.Error("expected nil detection writer when disabled")
			}
			if p.writerEscalation != nil {
				t.Error("expected nil escalation writer when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	cfg := &Config{
		Enabled:         false,
		Brokers:         []string{"localhost:9092"},
		TopicDetection:  "emergency.detections",
		TopicEscalation: "emergency.escalations",
		Principal:       "svc-emergency-escalation",
	}

	p := New(cfg)

	if p.principal != "svc-emergency-escalation" {
		t.Errorf("expected principal preserved, got %s", p.principal)
	}
	if p.topicDetection != "emergency.detections" {
		t.Errorf("expected detection topic preserved, got %s", p.topicDetection)
	}
	if p.topicEscalation != "emergency.escalations" {
		t.Errorf("expected escalation topic preserved, got %s", p.topicEscalation)
	}
}

func TestPublish_DisabledModeSucceeds(t *testing.T) {
	p := New(&Config{Enabled: false})

	ev := models.DetectionEvent{
		EventType:  "emergency.detection",
		SessionID:  "sess-1",
		Timestamp:  time.Now().UnixMilli(),
		Transcript: "hey med ai help",
		Confidence: models.ConfidenceMedium,
	}

	if err := p.PublishDetection(context.Background(), "sess-1", ev); err != nil {
		t.Errorf("disabled publish should be a no-op, got %v", err)
	}

	esc := models.EscalationEvent{
		EventType: "emergency.escalation",
		SessionID: "sess-1",
		Timestamp: time.Now().UnixMilli(),
		State:     "NOTIFIED",
		Trigger:   "voice",
	}
	if err := p.PublishEscalation(context.Background(), "sess-1", esc); err != nil {
		t.Errorf("disabled publish should be a no-op, got %v", err)
	}
}

func TestPublish_MarshalFailure(t *testing.T) {
	p := New(&Config{Enabled: false})

	// Channels are not JSON-marshalable.
	if err := p.PublishDetection(context.Background(), "k", make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
}

func TestClose_DisabledMode(t *testing.T) {
	p := New(&Config{Enabled: false})
	if err := p.Close(); err != nil {
		t.Errorf("Close on disabled publisher: %v", err)
	}
}
