// Package messaging provides abstractions for message broker communication.
// It defines interfaces that allow services to publish and consume care
// events without being coupled to a specific broker implementation.
package messaging

import (
	"context"
	"time"

	"github.com/carepulse-systems/carepulse-stack/common/events"
)

// Message represents a raw message received from or sent to the broker.
type Message struct {
	// Subject is the topic the message was published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains optional key-value pairs from message headers.
	Metadata map[string]string

	// Timestamp is when the message was received.
	Timestamp time.Time
}

// MessageHandler processes a raw message. Returning an error requeues the
// message for redelivery.
type MessageHandler func(ctx context.Context, msg *Message) error

// EnvelopeHandler processes a decoded event envelope. Returning an error
// requeues the delivery; the handler must therefore be safe to run more
// than once for the same event ID.
type EnvelopeHandler func(ctx context.Context, env *events.Envelope) error

// Publisher publishes events to the bus.
type Publisher interface {
	// Publish sends raw bytes to the specified subject and waits for the
	// broker to confirm persistence.
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishEvent serializes the envelope and publishes it to its
	// EventType subject.
	PublishEvent(ctx context.Context, env *events.Envelope) error
}

// Consumer consumes events from a durable queue.
type Consumer interface {
	// Consume starts delivering envelopes from the named queue to the
	// handler, one at a time. The returned stop function halts delivery.
	Consume(ctx context.Context, queue string, handler EnvelopeHandler) (func(), error)
}

// Bus combines the capabilities most services need.
type Bus interface {
	Publisher
	Consumer

	// Drain gracefully closes the connection, allowing in-flight
	// deliveries to complete.
	Drain() error

	// IsConnected reports whether the client is connected to the broker.
	IsConnected() bool

	// Close releases all resources.
	Close() error
}
