// Package notification relays order outcomes to a RabbitMQ work queue and
// delivers them from there.
package notification

import (
	"time"

	"github.com/google/uuid"
)

// Job outcomes reported to metrics.
const (
	OutcomeEnqueued      = "enqueued"
	OutcomeEnqueueFailed = "enqueue_failed"
	OutcomeSent          = "sent"
	OutcomeRetried       = "retried"
	OutcomeAbandoned     = "abandoned"
	OutcomeInvalid       = "invalid"
)

const unknownRequestID = "unknown"

// Job is the message placed on the notifications queue.
type Job struct {
	EventType  string    `json:"eventType"`
	OrderID    uuid.UUID `json:"orderId"`
	Status     string    `json:"status,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
	RequestID  string    `json:"requestId"`
	TraceID    string    `json:"traceId,omitempty"`
	SpanID     string    `json:"spanId,omitempty"`
}
