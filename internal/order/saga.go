package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/internal/events"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
	"github.com/andreasstove999/ecommerce-system/internal/metrics"
)

// EventPublisher is satisfied by *events.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key, eventType string, meta events.Meta, data any) error
}

// SagaHandler folds stock and payment outcomes into the order row and announces
// confirmation or cancellation on the orders topic.
type SagaHandler struct {
	repo    TransactionalRepository
	pub     EventPublisher
	topic   string
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewSagaHandler(repo TransactionalRepository, pub EventPublisher, ordersTopic string, logger *zap.Logger, m *metrics.Metrics) *SagaHandler {
	return &SagaHandler{
		repo:    repo,
		pub:     pub,
		topic:   ordersTopic,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register subscribes the handler to the event types it understands.
func (h *SagaHandler) Register(c *events.Consumer) {
	c.Handle(events.TypeStockReserved, h.HandleStockReserved)
	c.Handle(events.TypeStockFailed, h.HandleStockFailed)
	c.Handle(events.TypePaymentProcessed, h.HandlePaymentProcessed)
}

func (h *SagaHandler) HandleStockReserved(ctx context.Context, env events.RawEnvelope) error {
	data, err := events.DecodeData[events.StockReserved](env)
	if err != nil {
		return err
	}
	return h.apply(ctx, data.OrderID, env, StockReservedTrigger{})
}

func (h *SagaHandler) HandleStockFailed(ctx context.Context, env events.RawEnvelope) error {
	data, err := events.DecodeData[events.StockFailed](env)
	if err != nil {
		return err
	}
	return h.apply(ctx, data.OrderID, env, StockFailedTrigger{Reason: data.Reason})
}

func (h *SagaHandler) HandlePaymentProcessed(ctx context.Context, env events.RawEnvelope) error {
	data, err := events.DecodeData[events.PaymentProcessed](env)
	if err != nil {
		return err
	}
	trig := PaymentProcessedTrigger{Succeeded: data.Succeeded()}
	if data.Reason != nil {
		trig.Reason = *data.Reason
	}
	return h.apply(ctx, data.OrderID, env, trig)
}

func (h *SagaHandler) apply(ctx context.Context, orderID uuid.UUID, env events.RawEnvelope, trig Trigger) error {
	log := logging.FromContext(ctx, h.logger).With(
		zap.String("order_id", orderID.String()),
		zap.String("event_type", env.Type))

	tx, err := h.repo.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := h.repo.GetForUpdate(ctx, tx, orderID)
	if errors.Is(err, ErrNotFound) {
		log.Warn("order not found for saga update", zap.String("event", "orders.saga.missing"))
		return tx.Commit(ctx)
	}
	if err != nil {
		return err
	}

	t := Apply(current, trig)
	if !t.HasChange {
		log.Debug("no order change", zap.String("event", "orders.saga.noop"), zap.String("status", current.Status.String()))
		return tx.Commit(ctx)
	}

	updated := current.With(t, h.now())
	if err := h.repo.UpdateWithTx(ctx, tx, updated); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit order %s: %w", orderID, err)
	}

	log.Info("applied order transition",
		zap.String("event", "orders.saga.transition"),
		zap.String("trigger", t.Trigger),
		zap.String("status", updated.Status.String()),
		zap.String("stock_status", updated.StockStatus.String()),
		zap.String("payment_status", updated.PaymentStatus.String()))
	h.metrics.OrderTransition(t.Trigger, updated.Status.String())

	meta := env.Meta()
	key := orderID.String()
	if t.PublishConfirmed {
		err := h.pub.Publish(ctx, h.topic, key, events.TypeOrderConfirmed, meta, events.OrderConfirmed{
			OrderID:     orderID,
			Status:      updated.Status.String(),
			ConfirmedAt: updated.UpdatedAt,
		})
		if err != nil {
			return fmt.Errorf("publish order confirmed: %w", err)
		}
	}
	if t.PublishCancelled {
		err := h.pub.Publish(ctx, h.topic, key, events.TypeOrderCancelled, meta, events.OrderCancelled{
			OrderID:     orderID,
			Status:      updated.Status.String(),
			Reason:      t.CancelReason,
			CancelledAt: updated.UpdatedAt,
		})
		if err != nil {
			return fmt.Errorf("publish order cancelled: %w", err)
		}
	}
	return nil
}
