// Package events publishes emergency audit events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"emergency-escalation-service/internal/observability/metrics"
)

// Publisher publishes detection and escalation events to separate Kafka
// topics. When disabled it degrades to log-only mode; emergency flows
// never depend on a broker being reachable.
type Publisher struct {
	writerDetection  *kafka.Writer
	writerEscalation *kafka.Writer
	principal        string
	topicDetection   string
	topicEscalation  string
	enabled          bool
	metrics          *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicDetection  string
	TopicEscalation string
	Principal       string
	Enabled         bool
}

// New creates a Kafka audit publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{enabled: false, metrics: m}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:       cfg.Principal,
			topicDetection:  cfg.TopicDetection,
			topicEscalation: cfg.TopicEscalation,
			enabled:         false,
			metrics:         m,
		}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{Dial: dialer.DialFunc}

	writerDetection := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicDetection,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerEscalation := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicEscalation,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicDetection", cfg.TopicDetection).
		Str("topicEscalation", cfg.TopicEscalation).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerDetection:  writerDetection,
		writerEscalation: writerEscalation,
		principal:        cfg.Principal,
		topicDetection:   cfg.TopicDetection,
		topicEscalation:  cfg.TopicEscalation,
		enabled:          true,
		metrics:          m,
	}
}

// PublishDetection publishes a detection event keyed by session id.
func (p *Publisher) PublishDetection(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerDetection, p.topicDetection, "detection", key, event)
}

// PublishEscalation publishes an escalation event keyed by session id.
func (p *Publisher) PublishEscalation(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerEscalation, p.topicEscalation, "escalation", key, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(topic)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerDetection != nil {
		if e := p.writerDetection.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing detection writer")
			err = e
		}
	}
	if p.writerEscalation != nil {
		if e := p.writerEscalation.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing escalation writer")
			err = e
		}
	}
	return err
}
