package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/internal/events"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
	"github.com/andreasstove999/ecommerce-system/internal/metrics"
)

// JobQueue is satisfied by *QueuePublisher.
type JobQueue interface {
	Enqueue(ctx context.Context, job Job) error
}

// Relay turns terminal order events into notification jobs.
type Relay struct {
	queue   JobQueue
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewRelay(queue JobQueue, logger *zap.Logger, m *metrics.Metrics) *Relay {
	return &Relay{queue: queue, logger: logger, metrics: m}
}

func (r *Relay) Register(c *events.Consumer) {
	c.Handle(events.TypeOrderConfirmed, r.HandleOrderConfirmed)
	c.Handle(events.TypeOrderCancelled, r.HandleOrderCancelled)
}

func (r *Relay) HandleOrderConfirmed(ctx context.Context, env events.RawEnvelope) error {
	data, err := events.DecodeData[events.OrderConfirmed](env)
	if err != nil {
		return err
	}
	job := newJob(env)
	job.OrderID = data.OrderID
	job.Status = data.Status
	job.OccurredAt = data.ConfirmedAt
	r.enqueue(ctx, job)
	return nil
}

func (r *Relay) HandleOrderCancelled(ctx context.Context, env events.RawEnvelope) error {
	data, err := events.DecodeData[events.OrderCancelled](env)
	if err != nil {
		return err
	}
	job := newJob(env)
	job.OrderID = data.OrderID
	job.Status = data.Status
	job.Reason = data.Reason
	job.OccurredAt = data.CancelledAt
	r.enqueue(ctx, job)
	return nil
}

// enqueue failures are logged only; the order event is not redelivered for them.
func (r *Relay) enqueue(ctx context.Context, job Job) {
	log := logging.FromContext(ctx, r.logger).With(
		zap.String("order_id", job.OrderID.String()),
		zap.String("event_type", job.EventType))

	if err := r.queue.Enqueue(ctx, job); err != nil {
		log.Error("failed to enqueue notification job", zap.String("event", "notifications.job.enqueue_failed"), zap.Error(err))
		r.metrics.Notification(OutcomeEnqueueFailed)
		return
	}
	log.Info("enqueued notification job", zap.String("event", "notifications.job.enqueued"))
	r.metrics.Notification(OutcomeEnqueued)
}

func newJob(env events.RawEnvelope) Job {
	requestID := env.RequestID
	if requestID == "" {
		requestID = unknownRequestID
	}
	return Job{
		EventType: env.Type,
		RequestID: requestID,
		TraceID:   env.TraceID,
		SpanID:    env.SpanID,
	}
}
