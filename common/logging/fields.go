package logging

import "log/slog"

// Common field names for consistent logging across services.
const (
	FieldService       = "service"
	FieldWardID        = "ward_id"
	FieldUserID        = "user_id"
	FieldAlertID       = "alert_id"
	FieldCallID        = "call_id"
	FieldDispatcherID  = "dispatcher_id"
	FieldChannel       = "channel"
	FieldSeverity      = "severity"
	FieldStatus        = "status"
	FieldDuration      = "duration_ms"
	FieldError         = "error"
	FieldEventID       = "event_id"
	FieldEventType     = "event_type"
	FieldSubject       = "subject"
	FieldQueue         = "queue"
	FieldCorrelationID = "correlation_id"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// WardID returns a slog attribute for the monitored ward's ID.
func WardID(id string) slog.Attr {
	return slog.String(FieldWardID, id)
}

// UserID returns a slog attribute for the user ID.
func UserID(id string) slog.Attr {
	return slog.String(FieldUserID, id)
}

// AlertID returns a slog attribute for an alert ID.
func AlertID(id string) slog.Attr {
	return slog.String(FieldAlertID, id)
}

// CallID returns a slog attribute for an emergency call ID.
func CallID(id string) slog.Attr {
	return slog.String(FieldCallID, id)
}

// DispatcherID returns a slog attribute for a dispatcher ID.
func DispatcherID(id string) slog.Attr {
	return slog.String(FieldDispatcherID, id)
}

// Channel returns a slog attribute for a notification channel.
func Channel(ch string) slog.Attr {
	return slog.String(FieldChannel, ch)
}

// Severity returns a slog attribute for an alert severity.
func Severity(s string) slog.Attr {
	return slog.String(FieldSeverity, s)
}

// Status returns a slog attribute for a status value.
func Status(s string) slog.Attr {
	return slog.String(FieldStatus, s)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// EventID returns a slog attribute for an event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// EventType returns a slog attribute for an event type.
func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

// Subject returns a slog attribute for a bus subject.
func Subject(s string) slog.Attr {
	return slog.String(FieldSubject, s)
}

// Queue returns a slog attribute for a consumer queue name.
func Queue(q string) slog.Attr {
	return slog.String(FieldQueue, q)
}
