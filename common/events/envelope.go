// Package events defines the common event envelope and the typed payloads
// exchanged on the care-monitoring message bus.
//
// Every message on the bus is an Envelope. The envelope is immutable once
// published; the EventID doubles as the idempotency key, so consumers must
// tolerate redelivery of the same EventID without corrupting state.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is stamped into every envelope this code produces.
const SchemaVersion = "1.0"

// Envelope is the common header wrapping all bus messages.
type Envelope struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       string          `json:"version"`
	CorrelationID string          `json:"correlationId"`
	Source        string          `json:"source"`
	WardID        string          `json:"wardId,omitempty"`
	UserID        string          `json:"userId,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// ValidationError marks an envelope that is structurally unusable.
// Consumers treat it as fatal to the message: the bus client nacks and the
// broker redelivers (or dead-letters after max attempts).
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("event envelope missing required field %q", e.Field)
}

// IsValidation reports whether err is an envelope validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks the envelope's required header fields.
func (e *Envelope) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "eventId"}
	}
	if e.EventType == "" {
		return &ValidationError{Field: "eventType"}
	}
	if e.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp"}
	}
	return nil
}

// DecodeData unmarshals the envelope payload into v.
func (e *Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return &ValidationError{Field: "data"}
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// New builds an envelope for the given event type and payload.
// A fresh EventID is generated; the correlation ID is propagated from the
// triggering event so a ward incident can be traced end to end.
func New(eventType, source, correlationID string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate event id: %w", err)
	}
	if correlationID == "" {
		correlationID = id.String()
	}

	return &Envelope{
		EventID:       id.String(),
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		Version:       SchemaVersion,
		CorrelationID: correlationID,
		Source:        source,
		Data:          data,
	}, nil
}
