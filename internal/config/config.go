// Package config loads service configuration from the environment with
// sane defaults for every value.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig
	Listener      ListenerConfig
	Triage        TriageConfig
	Escalate      EscalateConfig
	Notify        NotifyConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
}

// ListenerConfig holds continuous listening settings.
type ListenerConfig struct {
	// Provider selects the recognizer backend: "scripted" or "google".
	Provider     string
	LanguageCode string
	SampleRateHz int
	RestartDelay time.Duration
	// ScriptInterval paces the scripted recognizer's playback.
	ScriptInterval time.Duration
}

// TriageConfig holds confirmation window settings.
type TriageConfig struct {
	CountdownSeconds     int
	FallCountdownSeconds int
	TickInterval         time.Duration
}

// EscalateConfig holds escalation and acknowledgment settings.
type EscalateConfig struct {
	AckDelay          time.Duration
	HistoryMatchScore float64
	Doctor            string
	Nurse             string
	AmbulanceID       string
	ETAMinutes        int
}

// NotifyConfig holds notification endpoint settings. The defaults are
// the demo fallbacks used when geolocation or patient context is
// unavailable; escalation never blocks on missing data.
type NotifyConfig struct {
	EndpointURL          string
	Timeout              time.Duration
	DefaultPatientID     string
	DefaultEmergencyType string
	DefaultHospital      string
	DefaultLatitude      float64
	DefaultLongitude     float64
}

// KafkaConfig holds audit event publishing settings.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicDetection  string
	TopicEscalation string
	Principal       string
}

// ObservabilityConfig holds metrics and logging settings.
type ObservabilityConfig struct {
	MetricsPort string
	LogLevel    string
}

// Load reads configuration from the environment. Invalid values fall
// back to defaults rather than failing startup.
func Load() *Configuration {
	cfg := &Configuration{
		Service: ServiceConfig{
			Principal: envOrDefault("SERVICE_PRINCIPAL", "svc-emergency-escalation"),
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
		},
		Listener: ListenerConfig{
			Provider:       envOrDefault("LISTENER_PROVIDER", "scripted"),
			LanguageCode:   envOrDefault("LISTENER_LANGUAGE_CODE", "en-US"),
			SampleRateHz:   envOrDefaultInt("LISTENER_SAMPLE_RATE_HZ", 16000),
			RestartDelay:   envOrDefaultDuration("LISTENER_RESTART_DELAY", time.Second),
			ScriptInterval: envOrDefaultDuration("LISTENER_SCRIPT_INTERVAL", 2*time.Second),
		},
		Triage: TriageConfig{
			CountdownSeconds:     envOrDefaultInt("TRIAGE_COUNTDOWN_SECONDS", 7),
			FallCountdownSeconds: envOrDefaultInt("TRIAGE_FALL_COUNTDOWN_SECONDS", 10),
			TickInterval:         envOrDefaultDuration("TRIAGE_TICK_INTERVAL", time.Second),
		},
		Escalate: EscalateConfig{
			AckDelay:          envOrDefaultDuration("ESCALATE_ACK_DELAY", 2*time.Second),
			HistoryMatchScore: envOrDefaultFloat("ESCALATE_HISTORY_MATCH_SCORE", 0.5),
			Doctor:            envOrDefault("ESCALATE_DOCTOR", "Dr. Rajesh Kumar"),
			Nurse:             envOrDefault("ESCALATE_NURSE", "Nurse Priya Sharma"),
			AmbulanceID:       envOrDefault("ESCALATE_AMBULANCE_ID", "AMB-108-7734"),
			ETAMinutes:        envOrDefaultInt("ESCALATE_ETA_MINUTES", 12),
		},
		Notify: NotifyConfig{
			EndpointURL:          envOrDefault("NOTIFY_ENDPOINT_URL", "http://localhost:5000/api/emergency/notify"),
			Timeout:              envOrDefaultDuration("NOTIFY_TIMEOUT", 10*time.Second),
			DefaultPatientID:     envOrDefault("NOTIFY_DEFAULT_PATIENT_ID", "demo-patient-123"),
			DefaultEmergencyType: envOrDefault("NOTIFY_DEFAULT_EMERGENCY_TYPE", "Cardiac Emergency"),
			DefaultHospital:      envOrDefault("NOTIFY_DEFAULT_HOSPITAL", "Kokilaben Dhirubhai Ambani Hospital"),
			DefaultLatitude:      envOrDefaultFloat("NOTIFY_DEFAULT_LATITUDE", 19.076),
			DefaultLongitude:     envOrDefaultFloat("NOTIFY_DEFAULT_LONGITUDE", 72.8777),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         envOrDefaultSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicDetection:  envOrDefault("KAFKA_TOPIC_DETECTION", "emergency.detections"),
			TopicEscalation: envOrDefault("KAFKA_TOPIC_ESCALATION", "emergency.escalations"),
			Principal:       os.Getenv("KAFKA_PRINCIPAL"),
		},
		Observability: ObservabilityConfig{
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		},
	}

	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Service.Principal
	}

	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultSlice(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
