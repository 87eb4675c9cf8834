package logger

import (
	"log/slog"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error records err under the key "error".
// If err is nil, it returns an empty Attr, which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// optional returns an empty Attr for empty values so call sites can pass
// whatever an event happens to carry.
func optional(key, value string) slog.Attr {
	if value == "" {
		return slog.Attr{}
	}
	return slog.String(key, value)
}

// UserID records the identity directory user under "user_id".
func UserID(id string) slog.Attr { return optional("user_id", id) }

// RequestID records the HTTP request ID under "request_id".
func RequestID(id string) slog.Attr { return optional("request_id", id) }

// Provider records the payment provider under "provider".
func Provider(name string) slog.Attr { return optional("provider", name) }

// EventName records the provider's event type under "event".
func EventName(name string) slog.Attr { return optional("event", name) }

// EventID records the provider's delivery ID under "event_id".
func EventID(id string) slog.Attr { return optional("event_id", id) }

// Action records the normalized billing action under "action".
func Action(action string) slog.Attr { return optional("action", action) }

// CustomerID records the provider customer under "customer_id".
func CustomerID(id string) slog.Attr { return optional("customer_id", id) }

// PlanID records a catalog or vendor plan ID under "plan_id".
func PlanID(id string) slog.Attr { return optional("plan_id", id) }

// Email records an email address under "email".
func Email(addr string) slog.Attr { return optional("email", addr) }

// Component names the subsystem emitting the record.
func Component(name string) slog.Attr { return optional("component", name) }

// Duration records an elapsed time in milliseconds under "duration_ms".
func Duration(d time.Duration) slog.Attr {
	return slog.Int64("duration_ms", d.Milliseconds())
}
