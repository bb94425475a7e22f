// Package nats provides the NATS implementation of the messaging interfaces.
package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/carepulse-systems/carepulse-stack/common/logging"
)

// Client wraps a core NATS connection.
type Client struct {
	conn   *nats.Conn
	logger *logging.Logger
}

// Config holds NATS client configuration.
type Config struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// Name is the client name for connection identification.
	Name string

	// MaxReconnects is the maximum number of reconnection attempts.
	// Use -1 for infinite reconnects.
	MaxReconnects int

	// ReconnectWait is the time to wait between reconnection attempts.
	ReconnectWait time.Duration

	// Timeout is the connection timeout.
	Timeout time.Duration

	// Logger receives connection lifecycle events. Defaults to the
	// process-wide logger.
	Logger *logging.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "carepulse-client",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NewClient creates a new NATS client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Client{conn: conn, logger: logger}, nil
}

// Publish sends a message to the specified subject without persistence
// guarantees. Services publish events through JetStreamClient; this exists
// for lightweight signals that may be lost.
func (c *Client) PublishCore(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.conn.Publish(subject, data)
}

// Drain gracefully closes, allowing in-flight messages to complete.
func (c *Client) Drain() error {
	return c.conn.Drain()
}

// IsConnected reports whether the client is connected to NATS.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// Close releases all resources.
func (c *Client) Close() error {
	c.conn.Close()
	return nil
}
