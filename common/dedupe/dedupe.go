// Package dedupe provides an idempotency cache keyed on event IDs.
//
// The bus guarantees at-least-once delivery, so every consumer that creates
// records as a side effect checks the cache before acting. The cache fails
// open: if Redis is unreachable the delivery is treated as first, because a
// duplicate alert is preferable to a missed one.
package dedupe

import (
	"context"
	"time"
)

// Deduper answers whether an event delivery is the first one seen.
type Deduper interface {
	// FirstDelivery marks (consumer, eventID) as seen and reports whether
	// it had not been seen before.
	FirstDelivery(ctx context.Context, consumer, eventID string) (bool, error)
}

// Noop is a Deduper that treats every delivery as first. Used when Redis is
// disabled; consumers then rely on database unique constraints alone.
type Noop struct{}

// FirstDelivery always reports true.
func (Noop) FirstDelivery(ctx context.Context, consumer, eventID string) (bool, error) {
	return true, nil
}

// DefaultTTL bounds how long a processed event ID is remembered. Redelivery
// storms resolve within minutes; a day of memory is comfortably past any
// broker redelivery window.
const DefaultTTL = 24 * time.Hour
