package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/internal/logging"
	"github.com/andreasstove999/ecommerce-system/internal/metrics"
)

// Reader is the subset of *kafka.Reader the consumer loop needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaReader joins groupID on topic with manual offset commits.
func NewKafkaReader(brokers []string, topic, groupID string, logger *zap.Logger) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.FirstOffset,
		ErrorLogger: zap.NewStdLog(logger.With(zap.String("kafka_component", "consumer"))),
	})
}

// Handler processes one decoded envelope. A returned error is logged; the
// offset is committed regardless.
type Handler func(ctx context.Context, env RawEnvelope) error

// Consumer runs a single sequential subscription and dispatches by event type.
type Consumer struct {
	reader         Reader
	topic          string
	handlers       map[string]Handler
	logger         *zap.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	retryDelay     time.Duration
	handlerTimeout time.Duration
	commitTimeout  time.Duration
}

type ConsumerOption func(*Consumer)

func WithMetrics(m *metrics.Metrics) ConsumerOption {
	return func(c *Consumer) { c.metrics = m }
}

// WithRetryDelay sets the pause after a transport error.
func WithRetryDelay(d time.Duration) ConsumerOption {
	return func(c *Consumer) { c.retryDelay = d }
}

// WithHandlerTimeout bounds a single handler invocation.
func WithHandlerTimeout(d time.Duration) ConsumerOption {
	return func(c *Consumer) { c.handlerTimeout = d }
}

// WithCommitTimeout bounds an offset commit.
func WithCommitTimeout(d time.Duration) ConsumerOption {
	return func(c *Consumer) { c.commitTimeout = d }
}

func NewConsumer(reader Reader, topic string, logger *zap.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:         reader,
		topic:          topic,
		handlers:       make(map[string]Handler),
		logger:         logger.With(zap.String("topic", topic)),
		tracer:         otel.Tracer(tracerName),
		retryDelay:     time.Second,
		handlerTimeout: 30 * time.Second,
		commitTimeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle registers h for eventType. Types without a handler are skipped.
func (c *Consumer) Handle(eventType string, h Handler) {
	c.handlers[eventType] = h
}

// Run blocks until ctx is cancelled or the reader is closed. A message that was
// fetched before cancellation is processed and committed before Run returns.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.logger.Info("consumer stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Error("fetch message", zap.Error(err))
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}

		// In-flight work is detached from shutdown so transactions finish.
		work := context.WithoutCancel(ctx)
		c.process(work, msg)

		if err := c.commit(work, msg); err != nil {
			c.logger.Error("commit offset",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	log := c.logger.With(zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))

	env, err := ParseEnvelope(msg.Value)
	if err != nil {
		log.Warn("skipping malformed message", zap.Error(err))
		c.metrics.EventConsumed(c.topic, "unknown", metrics.OutcomeMalformed)
		return
	}

	handler, ok := c.handlers[env.Type]
	if !ok {
		log.Debug("ignoring event type", zap.String("type", env.Type))
		c.metrics.EventConsumed(c.topic, env.Type, metrics.OutcomeIgnored)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
	defer cancel()

	ctx = logging.WithRequestID(ctx, env.RequestID)
	ctx, span := c.tracer.Start(ContextWithTrace(ctx, env.Meta(), msg.Headers), "consume "+env.Type,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", c.topic),
			attribute.String("messaging.message.id", env.ID),
		))
	defer span.End()

	log = logging.FromContext(ctx, log).With(zap.String("type", env.Type), zap.String("event_id", env.ID))

	if err := invoke(ctx, handler, env); err != nil {
		if errors.Is(err, ErrMalformedPayload) {
			log.Warn("skipping malformed payload", zap.Error(err))
			c.metrics.EventConsumed(c.topic, env.Type, metrics.OutcomeMalformed)
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("handle event", zap.Error(err))
		c.metrics.EventConsumed(c.topic, env.Type, metrics.OutcomeFailed)
		return
	}

	c.metrics.EventConsumed(c.topic, env.Type, metrics.OutcomeHandled)
}

// invoke turns a handler panic into an error so the offset is still committed.
func invoke(ctx context.Context, h Handler, env RawEnvelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, env)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) error {
	ctx, cancel := context.WithTimeout(ctx, c.commitTimeout)
	defer cancel()
	return c.reader.CommitMessages(ctx, msg)
}

func (c *Consumer) sleep(ctx context.Context) bool {
	t := time.NewTimer(c.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
