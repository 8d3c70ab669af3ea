package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeOrderCreated     = "order.created"
	TypeOrderConfirmed   = "order.confirmed"
	TypeOrderCancelled   = "order.cancelled"
	TypeStockReserved    = "stock.reserved"
	TypeStockFailed      = "stock.failed"
	TypePaymentProcessed = "payment.processed"
)

// Payment outcomes carried by payment.processed.
const (
	PaymentSuccess = "success"
	PaymentFailure = "failure"
)

type OrderCreated struct {
	OrderID    uuid.UUID `json:"orderId"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	CustomerID *string   `json:"customerId,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

type OrderConfirmed struct {
	OrderID     uuid.UUID `json:"orderId"`
	Status      string    `json:"status"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

type OrderCancelled struct {
	OrderID     uuid.UUID `json:"orderId"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelledAt"`
}

type StockReserved struct {
	OrderID       uuid.UUID `json:"orderId"`
	ReservationID uuid.UUID `json:"reservationId"`
}

type StockFailed struct {
	OrderID uuid.UUID `json:"orderId"`
	Reason  string    `json:"reason"`
}

type PaymentProcessed struct {
	OrderID     uuid.UUID `json:"orderId"`
	PaymentID   uuid.UUID `json:"paymentId"`
	Status      string    `json:"status"`
	Reason      *string   `json:"reason,omitempty"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	ProcessedAt time.Time `json:"processedAt"`
}

// Succeeded reports whether the payment outcome is a success.
func (p PaymentProcessed) Succeeded() bool {
	return p.Status == PaymentSuccess
}
