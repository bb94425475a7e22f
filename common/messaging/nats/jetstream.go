package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carepulse-systems/carepulse-stack/common/events"
	"github.com/carepulse-systems/carepulse-stack/common/logging"
	"github.com/carepulse-systems/carepulse-stack/common/messaging"
	"github.com/carepulse-systems/carepulse-stack/common/metrics"
)

// Header names carried on published events.
const (
	HeaderCorrelationID = "Correlation-Id"
	HeaderEventID       = "Event-Id"
)

// nakDelay is how long a failed delivery waits before redelivery.
const nakDelay = 5 * time.Second

// JetStreamClient extends Client with JetStream persistence.
type JetStreamClient struct {
	*Client
	js jetstream.JetStream
}

// StreamConfig defines a JetStream stream.
type StreamConfig struct {
	// Name is the stream name.
	Name string

	// Subjects are the subjects this stream captures.
	Subjects []string

	// MaxAge is the maximum age of messages in the stream.
	MaxAge time.Duration

	// MaxBytes is the maximum total size of the stream.
	MaxBytes int64

	// MaxMsgs is the maximum number of messages in the stream.
	MaxMsgs int64

	// Retention policy (LimitsPolicy, InterestPolicy, WorkQueuePolicy).
	Retention jetstream.RetentionPolicy

	// Storage type (FileStorage, MemoryStorage).
	Storage jetstream.StorageType
}

// QueueConfig defines a durable consumer bound to one subject. The queue
// name doubles as the durable consumer name, so each queue keeps its own
// delivery cursor and two queues bound to the same subject each receive
// every event on it.
type QueueConfig struct {
	// Name is the durable consumer name.
	Name string

	// FilterSubject is the subject this queue receives.
	FilterSubject string

	// AckWait is the time to wait for acknowledgment before redelivery.
	AckWait time.Duration

	// MaxDeliver caps delivery attempts. -1 means redeliver until acked.
	MaxDeliver int
}

// CareEventsStream captures every subject the pipeline publishes.
// InterestPolicy retention deletes an event once all bound queues ack it.
var CareEventsStream = StreamConfig{
	Name:      events.StreamName,
	Subjects:  events.StreamSubjects,
	MaxAge:    24 * time.Hour,
	MaxBytes:  1024 * 1024 * 1024, // 1GB
	MaxMsgs:   1000000,
	Retention: jetstream.InterestPolicy,
	Storage:   jetstream.FileStorage,
}

// Queue bindings for the care event pipeline. Both risk-alert queues bind
// ai.risk.alert; each receives its own copy of every risk alert.
var (
	TelemetryQueue = QueueConfig{
		Name:          events.QueueTelemetry,
		FilterSubject: events.SubjectTelemetryReceived,
		AckWait:       30 * time.Second,
		MaxDeliver:    -1,
	}

	RiskAlertQueue = QueueConfig{
		Name:          events.QueueRiskAlert,
		FilterSubject: events.SubjectRiskAlert,
		AckWait:       30 * time.Second,
		MaxDeliver:    -1,
	}

	DispatcherRiskQueue = QueueConfig{
		Name:          events.QueueDispatcherRisk,
		FilterSubject: events.SubjectRiskAlert,
		AckWait:       30 * time.Second,
		MaxDeliver:    -1,
	}

	GeofenceViolationQueue = QueueConfig{
		Name:          events.QueueGeofenceViolation,
		FilterSubject: events.SubjectGeofenceViolation,
		AckWait:       30 * time.Second,
		MaxDeliver:    -1,
	}

	AlertCreatedQueue = QueueConfig{
		Name:          events.QueueAlertCreated,
		FilterSubject: events.SubjectAlertCreated,
		AckWait:       30 * time.Second,
		MaxDeliver:    -1,
	}
)

// NewJetStreamClient creates a JetStream-enabled client.
func NewJetStreamClient(cfg Config) (*JetStreamClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamClient{Client: client, js: js}, nil
}

// EnsureStream creates or updates a stream. The operation is idempotent;
// every service declares the stream it uses on startup.
func (c *JetStreamClient) EnsureStream(ctx context.Context, cfg StreamConfig) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:      cfg.Name,
		Subjects:  cfg.Subjects,
		MaxAge:    cfg.MaxAge,
		MaxBytes:  cfg.MaxBytes,
		MaxMsgs:   cfg.MaxMsgs,
		Retention: cfg.Retention,
		Storage:   cfg.Storage,
	}

	stream, err := c.js.CreateOrUpdateStream(ctx, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}
	return stream, nil
}

// EnsureQueue creates or updates the durable consumer behind a queue.
// MaxAckPending is pinned to 1 so each queue processes one event at a time
// in stream order.
func (c *JetStreamClient) EnsureQueue(ctx context.Context, streamName string, cfg QueueConfig) (jetstream.Consumer, error) {
	consumerCfg := jetstream.ConsumerConfig{
		Name:          cfg.Name,
		Durable:       cfg.Name,
		FilterSubject: cfg.FilterSubject,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: 1,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}

	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", streamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, consumerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create/update consumer %s: %w", cfg.Name, err)
	}
	return consumer, nil
}

// Publish sends raw bytes to a subject and waits for the stream to confirm
// persistence.
func (c *JetStreamClient) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		metrics.EventsPublished.WithLabelValues(subject, metrics.OutcomeError).Inc()
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	metrics.EventsPublished.WithLabelValues(subject, metrics.OutcomeOK).Inc()
	return nil
}

// PublishEvent serializes the envelope and publishes it to its EventType
// subject, carrying the event and correlation IDs as headers.
func (c *JetStreamClient) PublishEvent(ctx context.Context, env *events.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", env.EventID, err)
	}

	msg := buildMsg(env.EventType, data)
	msg.Header.Set(HeaderEventID, env.EventID)
	if env.CorrelationID != "" {
		msg.Header.Set(HeaderCorrelationID, env.CorrelationID)
	}

	if _, err := c.js.PublishMsg(ctx, msg); err != nil {
		metrics.EventsPublished.WithLabelValues(env.EventType, metrics.OutcomeError).Inc()
		return fmt.Errorf("publish event %s to %s: %w", env.EventID, env.EventType, err)
	}
	metrics.EventsPublished.WithLabelValues(env.EventType, metrics.OutcomeOK).Inc()
	return nil
}

// Consume starts delivering envelopes from the named queue to the handler.
//
// A payload that is not JSON at all is acked and logged: redelivering it
// cannot make it parse. An envelope missing required fields, or a handler
// error, naks the delivery with a short delay so the broker redelivers it.
// The returned stop function halts delivery.
func (c *JetStreamClient) Consume(ctx context.Context, queue string, handler messaging.EnvelopeHandler) (func(), error) {
	stream, err := c.js.Stream(ctx, events.StreamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", events.StreamName, err)
	}

	consumer, err := stream.Consumer(ctx, queue)
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer %s: %w", queue, err)
	}

	consumeCtx, cancel := context.WithCancel(ctx)

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		var env events.Envelope
		if err := json.Unmarshal(msg.Data(), &env); err != nil {
			c.logger.ErrorContext(consumeCtx, "dropping undecodable event",
				logging.FieldQueue, queue,
				logging.FieldSubject, msg.Subject(),
				"error", err)
			metrics.EventsConsumed.WithLabelValues(queue, metrics.OutcomeError).Inc()
			_ = msg.Ack()
			return
		}
		if err := env.Validate(); err != nil {
			c.logger.ErrorContext(consumeCtx, "invalid event envelope, requeueing",
				logging.FieldQueue, queue,
				logging.FieldSubject, msg.Subject(),
				logging.FieldEventID, env.EventID,
				"error", err)
			metrics.EventsConsumed.WithLabelValues(queue, metrics.OutcomeError).Inc()
			_ = msg.NakWithDelay(nakDelay)
			return
		}

		msgCtx := consumeCtx
		if env.CorrelationID != "" {
			msgCtx = logging.WithCorrelationID(msgCtx, env.CorrelationID)
		}

		if err := handler(msgCtx, &env); err != nil {
			c.logger.ErrorContext(msgCtx, "event handler failed, requeueing",
				logging.FieldQueue, queue,
				logging.FieldEventID, env.EventID,
				logging.FieldEventType, env.EventType,
				"error", err)
			metrics.EventsConsumed.WithLabelValues(queue, metrics.OutcomeNacked).Inc()
			_ = msg.NakWithDelay(nakDelay)
			return
		}

		metrics.EventsConsumed.WithLabelValues(queue, metrics.OutcomeOK).Inc()
		_ = msg.Ack()
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start consuming %s: %w", queue, err)
	}

	return func() {
		cancel()
		cons.Stop()
	}, nil
}

func buildMsg(subject string, data []byte) *nats.Msg {
	return &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  make(nats.Header),
	}
}
