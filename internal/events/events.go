// Package events carries the typed notifications the publisher and queue
// emit for observability collaborators (dashboards, notifiers).
package events

import (
	"context"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	TypeDispatchStart    Type = "dispatch_start"
	TypeDispatchResult   Type = "dispatch_result"
	TypeQueueItemRetried Type = "queue_item_retried"
	TypeScheduleExpanded Type = "schedule_expanded"
)

// Event is one observability notification. Fields are populated per type;
// zero values are omitted on the wire.
type Event struct {
	Type        Type      `json:"type"`
	Platform    string    `json:"platform,omitempty"`
	ContentID   string    `json:"content_id,omitempty"`
	ScheduleID  string    `json:"schedule_id,omitempty"`
	QueueName   string    `json:"queue_name,omitempty"`
	QueueItemID string    `json:"queue_item_id,omitempty"`
	Attempt     int       `json:"attempt,omitempty"`
	Success     *bool     `json:"success,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Emitter delivers events to a downstream consumer. Emit must not block the
// caller beyond the context deadline; delivery failures are the emitter's
// concern, not the publisher's.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}

// Noop discards all events. Used when no event sink is configured.
type Noop struct{}

func (Noop) Emit(context.Context, Event) error { return nil }
func (Noop) Close() error                      { return nil }

// Bool is a convenience for the Success pointer field.
func Bool(b bool) *bool { return &b }
