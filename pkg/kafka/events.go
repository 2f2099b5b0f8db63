package kafka

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const (
	EventBookingReconciled = "booking.reconciled"
	EventBookingReleased   = "booking.released"

	eventSchemaVersion = "1"
)

// ReconciledEvent summarises one completed materialization run.
type ReconciledEvent struct {
	GroupingID       string    `json:"grouping_id"`
	Source           string    `json:"source"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
	SlotsSeen        int       `json:"slots_seen"`
	LocationInserted int       `json:"location_inserted"`
	LocationUpdated  int       `json:"location_updated"`
	EmployeeInserted int       `json:"employee_inserted"`
	EmployeeUpdated  int       `json:"employee_updated"`
	LocationDeleted  int64     `json:"location_deleted"`
	EmployeeDeleted  int64     `json:"employee_deleted"`
	Skipped          int       `json:"skipped"`
	Actor            string    `json:"actor,omitempty"`
}

// ReleasedEvent reports that every booking of a source was removed.
type ReleasedEvent struct {
	Source          string `json:"source"`
	LocationDeleted int64  `json:"location_deleted"`
	EmployeeDeleted int64  `json:"employee_deleted"`
	Actor           string `json:"actor,omitempty"`
}

type messagePublisher interface {
	Publish(ctx context.Context, msg Message) error
}

// EventPublisher turns ledger outcomes into keyed booking events. Events for
// one source share a partition key and therefore stay ordered.
type EventPublisher struct {
	producer messagePublisher
	service  string
}

func NewEventPublisher(producer *Producer, service string) *EventPublisher {
	return &EventPublisher{producer: producer, service: service}
}

func (e *EventPublisher) PublishReconciled(ctx context.Context, ev ReconciledEvent) error {
	return e.publish(ctx, EventBookingReconciled, ev.Source, ev)
}

func (e *EventPublisher) PublishReleased(ctx context.Context, ev ReleasedEvent) error {
	return e.publish(ctx, EventBookingReleased, ev.Source, ev)
}

func (e *EventPublisher) publish(ctx context.Context, eventType, key string, payload any) error {
	msg := NewMessage().
		WithKey(key).
		WithValue(payload).
		WithEventType(eventType).
		WithSchemaVersion(eventSchemaVersion).
		WithSource(e.service).
		WithCorrelationID(traceID(ctx)).
		Build()
	return e.producer.Publish(ctx, msg)
}

// traceID returns the active trace ID so events can be joined to the request
// or reconcile run that produced them.
func traceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
