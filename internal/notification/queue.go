package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Channel is the subset of *amqp.Channel used by the queue publisher and worker.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

func declareQueue(ch Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	return nil
}

// QueuePublisher writes jobs to a durable queue through the default exchange.
type QueuePublisher struct {
	ch     Channel
	queue  string
	logger *zap.Logger
	now    func() time.Time
}

func NewQueuePublisher(ch Channel, queue string, logger *zap.Logger) (*QueuePublisher, error) {
	if err := declareQueue(ch, queue); err != nil {
		return nil, err
	}
	return &QueuePublisher{
		ch:     ch,
		queue:  queue,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *QueuePublisher) Enqueue(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal notification job: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		"",      // default exchange
		p.queue, // queue name as routing key
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			Timestamp:     p.now(),
			CorrelationId: job.RequestID,
			Headers: amqp.Table{
				"trace_id":   job.TraceID,
				"span_id":    job.SpanID,
				"request_id": job.RequestID,
				"event_type": job.EventType,
			},
			Body: body,
		},
	)
}

func (p *QueuePublisher) Close() error {
	return p.ch.Close()
}
