package order

import "fmt"

// Status is the order lifecycle status. CONFIRMED and CANCELLED are terminal.
type Status uint8

const (
	StatusPending Status = iota
	StatusConfirmed
	StatusCancelled
)

var statusNames = [...]string{"PENDING", "CONFIRMED", "CANCELLED"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

func ParseStatus(v string) (Status, error) {
	for i, name := range statusNames {
		if name == v {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown order status %q", v)
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// StockStatus mirrors the inventory outcome for the order.
type StockStatus uint8

const (
	StockPending StockStatus = iota
	StockReserved
	StockOutOfStock
)

var stockStatusNames = [...]string{"PENDING", "RESERVED", "OUT_OF_STOCK"}

func (s StockStatus) String() string {
	if int(s) < len(stockStatusNames) {
		return stockStatusNames[s]
	}
	return fmt.Sprintf("StockStatus(%d)", uint8(s))
}

func ParseStockStatus(v string) (StockStatus, error) {
	for i, name := range stockStatusNames {
		if name == v {
			return StockStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stock status %q", v)
}

func (s StockStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *StockStatus) UnmarshalText(b []byte) error {
	v, err := ParseStockStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// PaymentStatus mirrors the payment outcome for the order.
type PaymentStatus uint8

const (
	PaymentPending PaymentStatus = iota
	PaymentPaid
	PaymentFailed
)

var paymentStatusNames = [...]string{"PENDING", "PAID", "FAILED"}

func (s PaymentStatus) String() string {
	if int(s) < len(paymentStatusNames) {
		return paymentStatusNames[s]
	}
	return fmt.Sprintf("PaymentStatus(%d)", uint8(s))
}

func ParsePaymentStatus(v string) (PaymentStatus, error) {
	for i, name := range paymentStatusNames {
		if name == v {
			return PaymentStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown payment status %q", v)
}

func (s PaymentStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *PaymentStatus) UnmarshalText(b []byte) error {
	v, err := ParsePaymentStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
