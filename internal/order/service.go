package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/internal/events"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
)

const DefaultCurrency = "USD"

type CreateInput struct {
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	CustomerID string  `json:"customerId"`
}

func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Amount, validation.By(func(v any) error {
			if amount, _ := v.(float64); amount <= 0 {
				return errors.New("amount must be greater than 0.")
			}
			return nil
		})),
	)
}

// Service creates orders; every other mutation belongs to the saga handler.
type Service struct {
	repo   Repository
	pub    EventPublisher
	topic  string
	logger *zap.Logger
	now    func() time.Time
	newID  func() uuid.UUID
}

func NewService(repo Repository, pub EventPublisher, ordersTopic string, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		pub:    pub,
		topic:  ordersTopic,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.New,
	}
}

// Create stores a PENDING order and publishes order.created.
func (s *Service) Create(ctx context.Context, in CreateInput) (Order, error) {
	if err := in.Validate(); err != nil {
		return Order{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	var customerID *string
	if c := strings.TrimSpace(in.CustomerID); c != "" {
		customerID = &c
	}

	now := s.now()
	o := Order{
		ID:            s.newID(),
		Status:        StatusPending,
		StockStatus:   StockPending,
		PaymentStatus: PaymentPending,
		Amount:        in.Amount,
		Currency:      currency,
		CustomerID:    customerID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return Order{}, err
	}

	meta := events.Meta{RequestID: logging.RequestID(ctx)}
	err := s.pub.Publish(ctx, s.topic, o.ID.String(), events.TypeOrderCreated, meta, events.OrderCreated{
		OrderID:    o.ID,
		Amount:     o.Amount,
		Currency:   o.Currency,
		CustomerID: o.CustomerID,
		Status:     o.Status.String(),
		CreatedAt:  o.CreatedAt,
	})
	if err != nil {
		return Order{}, fmt.Errorf("publish order created: %w", err)
	}

	logging.FromContext(ctx, s.logger).Info("created order",
		zap.String("event", "order.created"),
		zap.String("order_id", o.ID.String()),
		zap.String("status", o.Status.String()))
	return o, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	return s.repo.Get(ctx, id)
}
