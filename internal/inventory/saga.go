package inventory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/internal/events"
)

// EventPublisher is satisfied by *events.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key, eventType string, meta events.Meta, data any) error
}

// SagaHandler turns order events into reservation changes and reports the
// reservation outcome on the inventory topic.
type SagaHandler struct {
	engine   *Engine
	pub      EventPublisher
	topic    string
	settings Settings
	logger   *zap.Logger
}

func NewSagaHandler(engine *Engine, pub EventPublisher, inventoryTopic string, settings Settings, logger *zap.Logger) *SagaHandler {
	return &SagaHandler{
		engine:   engine,
		pub:      pub,
		topic:    inventoryTopic,
		settings: settings,
		logger:   logger,
	}
}

func (h *SagaHandler) Register(c *events.Consumer) {
	c.Handle(events.TypeOrderCreated, h.HandleOrderCreated)
	c.Handle(events.TypeOrderConfirmed, h.HandleOrderConfirmed)
	c.Handle(events.TypeOrderCancelled, h.HandleOrderCancelled)
}

// HandleOrderCreated reserves the default product for the order. A replay
// republishes the stored outcome so a publish lost after commit is recovered.
func (h *SagaHandler) HandleOrderCreated(ctx context.Context, env events.RawEnvelope) error {
	data, err := events.DecodeData[events.OrderCreated](env)
	if err != nil {
		return err
	}

	result, err := h.engine.Reserve(ctx, data.OrderID, h.settings.DefaultProductID, h.settings.DefaultReservationQuantity)
	if err != nil {
		return err
	}

	res := result.Reservation
	key := data.OrderID.String()
	if res.Status == ReservationFailed {
		reason := ReasonReservationFailed
		if res.FailureReason != nil && *res.FailureReason != "" {
			reason = *res.FailureReason
		}
		err = h.pub.Publish(ctx, h.topic, key, events.TypeStockFailed, env.Meta(), events.StockFailed{
			OrderID: data.OrderID,
			Reason:  reason,
		})
		if err != nil {
			return fmt.Errorf("publish stock failed: %w", err)
		}
		return nil
	}

	err = h.pub.Publish(ctx, h.topic, key, events.TypeStockReserved, env.Meta(), events.StockReserved{
		OrderID:       data.OrderID,
		ReservationID: res.ID,
	})
	if err != nil {
		return fmt.Errorf("publish stock reserved: %w", err)
	}
	return nil
}

func (h *SagaHandler) HandleOrderConfirmed(ctx context.Context, env events.RawEnvelope) error {
	data, err := events.DecodeData[events.OrderConfirmed](env)
	if err != nil {
		return err
	}
	_, err = h.engine.Commit(ctx, data.OrderID)
	return err
}

func (h *SagaHandler) HandleOrderCancelled(ctx context.Context, env events.RawEnvelope) error {
	data, err := events.DecodeData[events.OrderCancelled](env)
	if err != nil {
		return err
	}
	_, err = h.engine.Release(ctx, data.OrderID)
	return err
}
