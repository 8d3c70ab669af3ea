package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns a writer that routes messages by key so all events of one
// order land on the same partition.
func NewKafkaWriter(brokers []string, logger *zap.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            5,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
		ErrorLogger:            zap.NewStdLog(logger.With(zap.String("kafka_component", "producer"))),
	}
}

// Publisher wraps payloads in a fresh envelope and writes them to a topic.
type Publisher struct {
	writer Writer
	source string
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewPublisher(w Writer, source string, logger *zap.Logger) *Publisher {
	return &Publisher{
		writer: w,
		source: source,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Publish sends data as an event of the given type. key selects the partition.
func (p *Publisher) Publish(ctx context.Context, topic, key, eventType string, meta Meta, data any) error {
	traceID, spanID := traceIDs(ctx, meta)
	env := Envelope[any]{
		ID:        p.newID(),
		Type:      eventType,
		Source:    p.source,
		Time:      p.now(),
		TraceID:   traceID,
		SpanID:    spanID,
		RequestID: meta.RequestID,
		Version:   Version,
		Data:      data,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	headers := []kafka.Header{{Key: "type", Value: []byte(eventType)}}
	otel.GetTextMapPropagator().Inject(ContextWithTrace(ctx, Meta{TraceID: traceID, SpanID: spanID}, nil), headerCarrier{headers: &headers})

	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   body,
		Headers: headers,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", eventType, topic, err)
	}

	p.logger.Debug("event published",
		zap.String("topic", topic),
		zap.String("type", eventType),
		zap.String("event_id", env.ID),
		zap.String("key", key),
		zap.String("request_id", meta.RequestID))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
