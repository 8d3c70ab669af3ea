package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	ReasonInsufficientStock = "insufficient_stock"
	ReasonReservationFailed = "reservation_failed"
)

type StockItem struct {
	ProductID         string    `json:"productId"`
	AvailableQuantity int       `json:"availableQuantity"`
	ReservedQuantity  int       `json:"reservedQuantity"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// ReservationStatus moves RESERVED to COMMITTED or RELEASED. FAILED, COMMITTED
// and RELEASED are terminal.
type ReservationStatus uint8

const (
	ReservationPending ReservationStatus = iota
	ReservationReserved
	ReservationFailed
	ReservationCommitted
	ReservationReleased
)

var reservationStatusNames = [...]string{"PENDING", "RESERVED", "FAILED", "COMMITTED", "RELEASED"}

func (s ReservationStatus) String() string {
	if int(s) < len(reservationStatusNames) {
		return reservationStatusNames[s]
	}
	return fmt.Sprintf("ReservationStatus(%d)", uint8(s))
}

func ParseReservationStatus(v string) (ReservationStatus, error) {
	for i, name := range reservationStatusNames {
		if name == v {
			return ReservationStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown reservation status %q", v)
}

func (s ReservationStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ReservationStatus) UnmarshalText(b []byte) error {
	v, err := ParseReservationStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type Reservation struct {
	ID            uuid.UUID         `json:"id"`
	OrderID       uuid.UUID         `json:"orderId"`
	ProductID     string            `json:"productId"`
	Quantity      int               `json:"quantity"`
	Status        ReservationStatus `json:"status"`
	FailureReason *string           `json:"failureReason,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Settings describe the single product every order reserves.
type Settings struct {
	DefaultProductID           string
	DefaultStock               int
	DefaultReservationQuantity int
}
