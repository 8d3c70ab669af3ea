package payment

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

// EventPublisher is satisfied by *events.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key, eventType string, meta events.Meta, data any) error
}

type ProcessInput struct {
	OrderID      uuid.UUID `json:"orderId"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	ForceOutcome string    `json:"forceOutcome"`
}

func (in ProcessInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.OrderID, validation.By(func(v any) error {
			if id, _ := v.(uuid.UUID); id == uuid.Nil {
				return errors.New("orderId is required.")
			}
			return nil
		})),
		validation.Field(&in.Amount, validation.By(func(v any) error {
			if amount, _ := v.(float64); amount <= 0 {
				return errors.New("amount must be greater than 0.")
			}
			return nil
		})),
	)
}

// Service charges orders against the mock decision engine.
type Service struct {
	repo   Repository
	pub    EventPublisher
	topic  string
	logger *zap.Logger
	now    func() time.Time
	newID  func() uuid.UUID
}

func NewService(repo Repository, pub EventPublisher, paymentsTopic string, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		pub:    pub,
		topic:  paymentsTopic,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.New,
	}
}

// Process records a payment attempt and publishes payment.processed once the
// attempt is stored.
func (s *Service) Process(ctx context.Context, in ProcessInput) (Attempt, error) {
	if err := in.Validate(); err != nil {
		return Attempt{}, err
	}
	decision, err := Decide(in.OrderID, in.ForceOutcome)
	if err != nil {
		return Attempt{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	now := s.now()
	a := Attempt{
		ID:            s.newID(),
		OrderID:       in.OrderID,
		Amount:        in.Amount,
		Currency:      currency,
		Status:        StatusFailure,
		FailureReason: decision.FailureReason,
		CreatedAt:     now,
	}
	var effective *EffectivePayment
	if decision.Success {
		a.Status = StatusSuccess
		a.Effective = true
		effective = &EffectivePayment{
			ID:          a.ID,
			OrderID:     a.OrderID,
			Amount:      a.Amount,
			Currency:    a.Currency,
			ProcessedAt: now,
		}
	}

	if err := s.repo.Record(ctx, a, effective); err != nil {
		return Attempt{}, err
	}

	status := events.PaymentFailure
	if a.Succeeded() {
		status = events.PaymentSuccess
	}
	err = s.pub.Publish(ctx, s.topic, a.OrderID.String(), events.TypePaymentProcessed,
		events.Meta{RequestID: logging.RequestID(ctx)},
		events.PaymentProcessed{
			OrderID:     a.OrderID,
			PaymentID:   a.ID,
			Status:      status,
			Reason:      a.FailureReason,
			Amount:      a.Amount,
			Currency:    a.Currency,
			ProcessedAt: a.CreatedAt,
		})
	if err != nil {
		return Attempt{}, fmt.Errorf("publish payment processed: %w", err)
	}

	logging.FromContext(ctx, s.logger).Info("processed payment",
		zap.String("event", "payment.processed"),
		zap.String("payment_id", a.ID.String()),
		zap.String("order_id", a.OrderID.String()),
		zap.String("status", a.Status))
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Attempt, error) {
	return s.repo.Get(ctx, id)
}
