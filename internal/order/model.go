package order

import (
	"time"

	"github.com/google/uuid"
)

type Order struct {
	ID            uuid.UUID     `json:"id"`
	Status        Status        `json:"status"`
	StockStatus   StockStatus   `json:"stockStatus"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	CustomerID    *string       `json:"customerId"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// With returns o with the statuses of t applied.
func (o Order) With(t Transition, now time.Time) Order {
	o.Status = t.Status
	o.StockStatus = t.StockStatus
	o.PaymentStatus = t.PaymentStatus
	o.UpdatedAt = now
	return o
}
