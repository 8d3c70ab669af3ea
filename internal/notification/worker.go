package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/internal/events"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
	"github.com/andreasstove999/ecommerce-system/internal/metrics"
)

var ErrSimulatedFailure = errors.New("simulated notification delivery failure")

// Sender delivers a notification to its recipient.
type Sender interface {
	Send(ctx context.Context, job Job) error
}

// SimulatedSender stands in for a mail or push provider. It fails a random
// share of deliveries.
type SimulatedSender struct {
	FailureRate float64
	Latency     time.Duration
	Logger      *zap.Logger
	rand        func() float64
}

func (s *SimulatedSender) Send(ctx context.Context, job Job) error {
	roll := rand.Float64
	if s.rand != nil {
		roll = s.rand
	}
	if s.FailureRate > 0 && roll() < s.FailureRate {
		return ErrSimulatedFailure
	}

	logging.FromContext(ctx, s.Logger).Info("sending notification",
		zap.String("event", "notifications.send.start"),
		zap.String("order_id", job.OrderID.String()),
		zap.String("event_type", job.EventType),
		zap.String("status", job.Status))

	t := time.NewTimer(s.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type WorkerOptions struct {
	Queue      string
	MaxRetries int // delivery attempts before a job is abandoned
	BaseDelay  time.Duration
	Prefetch   int
}

// Worker consumes notification jobs with manual acks. Every job is acked once
// it is delivered, abandoned or found malformed.
type Worker struct {
	ch      Channel
	sender  Sender
	opts    WorkerOptions
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func NewWorker(ch Channel, sender Sender, opts WorkerOptions, logger *zap.Logger, m *metrics.Metrics) *Worker {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	return &Worker{
		ch:      ch,
		sender:  sender,
		opts:    opts,
		logger:  logger.With(zap.String("queue", opts.Queue)),
		metrics: m,
		tracer:  otel.Tracer("github.com/andreasstove999/ecommerce-system/internal/notification"),
	}
}

// Run consumes until ctx is cancelled or the delivery channel closes.
func (w *Worker) Run(ctx context.Context) error {
	if err := declareQueue(w.ch, w.opts.Queue); err != nil {
		return err
	}
	if err := w.ch.Qos(w.opts.Prefetch, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	msgs, err := w.ch.Consume(
		w.opts.Queue,
		"notifications-worker", // consumer tag
		false,                  // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	w.logger.Info("notification worker started")
	defer w.logger.Info("notification worker stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("delivery channel closed")
			}
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg amqp.Delivery) {
	var job Job
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		w.logger.Warn("invalid notification job payload", zap.String("event", "notifications.job.invalid"), zap.Error(err))
		w.metrics.Notification(OutcomeInvalid)
		w.ack(msg)
		return
	}
	if job.RequestID == "" {
		job.RequestID = unknownRequestID
	}

	ctx = logging.WithRequestID(ctx, job.RequestID)
	ctx, span := w.tracer.Start(events.ContextWithTrace(ctx, events.Meta{TraceID: job.TraceID, SpanID: job.SpanID}, nil), "notifications.send",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", w.opts.Queue),
			attribute.String("event.type", job.EventType),
			attribute.String("order.id", job.OrderID.String()),
		))
	defer span.End()

	log := logging.FromContext(ctx, w.logger).With(
		zap.String("order_id", job.OrderID.String()),
		zap.String("event_type", job.EventType))

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return w.sender.Send(ctx, job)
	}, w.backOff(ctx), func(err error, next time.Duration) {
		log.Warn("notification delivery failed",
			zap.String("event", "notifications.send_failed"),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", next),
			zap.Error(err))
		w.metrics.Notification(OutcomeRetried)
	})

	switch {
	case err == nil:
		log.Info("notification delivered", zap.String("event", "notifications.sent"), zap.Int("attempts", attempt))
		w.metrics.Notification(OutcomeSent)
		w.ack(msg)
	case ctx.Err() != nil:
		// Left unacked; the broker redelivers it after the channel closes.
		log.Info("notification delivery interrupted", zap.Int("attempts", attempt))
	default:
		span.RecordError(err)
		log.Error("notification delivery abandoned after retries",
			zap.String("event", "notifications.send_abandoned"),
			zap.Int("attempts", attempt),
			zap.Error(err))
		w.metrics.Notification(OutcomeAbandoned)
		w.ack(msg)
	}
}

// backOff doubles the delay from BaseDelay and stops after MaxRetries attempts.
func (w *Worker) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.opts.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = w.opts.BaseDelay << 10
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(w.opts.MaxRetries-1)), ctx)
}

func (w *Worker) ack(msg amqp.Delivery) {
	if err := msg.Ack(false); err != nil {
		w.logger.Error("ack notification job", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(err))
	}
}
