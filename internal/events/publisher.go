// Package events publishes transcript and session lifecycle events to
// Kafka. When no brokers are configured the publisher runs in log-only
// mode so the dictation pipeline works without a broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types emitted by the dictation service.
const (
	TypeTranscriptAppend = "dictation.transcript.append"
	TypeSessionStarted   = "dictation.session.started"
	TypeSessionFinished  = "dictation.session.finished"
)

// TranscriptEvent is emitted for every transcript segment merged by a flush.
type TranscriptEvent struct {
	EventType string `json:"event_type"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Sequence  int    `json:"sequence"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// LifecycleEvent is emitted when a session starts or reaches a terminal state.
type LifecycleEvent struct {
	EventType  string `json:"event_type"`
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Timestamp  int64  `json:"timestamp"`
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// Publisher writes dictation events to a Kafka topic, keyed by session id
// so a session's events stay ordered within a partition.
type Publisher struct {
	writer  *kafka.Writer
	topic   string
	enabled bool
	logger  *slog.Logger
}

// New creates a Kafka event publisher. With Enabled false or no brokers it
// degrades to log-only mode and every publish succeeds locally.
func New(cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logger.Info("Event publishing disabled, using log-only mode")
		return &Publisher{enabled: false, topic: cfg.Topic, logger: logger}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	logger.Info("Kafka event publisher initialized",
		slog.Any("brokers", cfg.Brokers),
		slog.String("topic", cfg.Topic),
	)

	return &Publisher{writer: writer, topic: cfg.Topic, enabled: true, logger: logger}
}

// PublishTranscript emits a transcript append event.
func (p *Publisher) PublishTranscript(ctx context.Context, ev TranscriptEvent) error {
	ev.EventType = TypeTranscriptAppend
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	return p.publish(ctx, ev.SessionID, ev.EventType, ev)
}

// PublishLifecycle emits a session lifecycle event.
func (p *Publisher) PublishLifecycle(ctx context.Context, ev LifecycleEvent) error {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	return p.publish(ctx, ev.SessionID, ev.EventType, ev)
}

func (p *Publisher) publish(ctx context.Context, key, eventType string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if !p.enabled || p.writer == nil {
		p.logger.Debug("Event (log-only)",
			slog.String("event_type", eventType),
			slog.String("key", key),
		)
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to kafka topic %s: %w", p.topic, err)
	}

	return nil
}

// Close closes the underlying Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
