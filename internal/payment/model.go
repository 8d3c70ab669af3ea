package payment

import (
	"time"

	"github.com/google/uuid"
)

// Attempt statuses as stored in payment_attempts.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

const DefaultCurrency = "USD"

type Attempt struct {
	ID            uuid.UUID `json:"id"`
	OrderID       uuid.UUID `json:"orderId"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	FailureReason *string   `json:"failureReason"`
	CreatedAt     time.Time `json:"createdAt"`
	Effective     bool      `json:"effective"`
}

func (a Attempt) Succeeded() bool { return a.Status == StatusSuccess }

// EffectivePayment is the record of money actually taken. It shares its id with
// the successful attempt.
type EffectivePayment struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Amount      float64
	Currency    string
	ProcessedAt time.Time
}
