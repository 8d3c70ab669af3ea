package order

// Default cancellation reasons when the triggering event carries none.
const (
	ReasonPaymentFailed = "payment_failed"
)

// Trigger is one of StockReservedTrigger, StockFailedTrigger or PaymentProcessedTrigger.
type Trigger interface {
	Name() string
}

type StockReservedTrigger struct{}

func (StockReservedTrigger) Name() string { return "stock.reserved" }

type StockFailedTrigger struct {
	Reason string
}

func (StockFailedTrigger) Name() string { return "stock.failed" }

type PaymentProcessedTrigger struct {
	Succeeded bool
	Reason    string
}

func (PaymentProcessedTrigger) Name() string { return "payment.processed" }

// Transition is the outcome of applying a trigger to an order.
type Transition struct {
	HasChange        bool
	Status           Status
	StockStatus      StockStatus
	PaymentStatus    PaymentStatus
	PublishConfirmed bool
	PublishCancelled bool
	Trigger          string
	CancelReason     string
}

// NoChange keeps every field of o.
func NoChange(o Order) Transition {
	return Transition{
		Status:        o.Status,
		StockStatus:   o.StockStatus,
		PaymentStatus: o.PaymentStatus,
		Trigger:       "noop",
	}
}

// Apply computes the next state of o for trig. It has no side effects.
func Apply(o Order, trig Trigger) Transition {
	if o.Status.IsTerminal() {
		return NoChange(o)
	}

	status, stock, payment := o.Status, o.StockStatus, o.PaymentStatus
	var reason string

	switch trig := trig.(type) {
	case StockReservedTrigger:
		stock = StockReserved
		if payment == PaymentPaid {
			status = StatusConfirmed
		}
	case StockFailedTrigger:
		stock = StockOutOfStock
		status = StatusCancelled
		reason = trig.Reason
	case PaymentProcessedTrigger:
		if !trig.Succeeded {
			payment = PaymentFailed
			status = StatusCancelled
			reason = trig.Reason
			if reason == "" {
				reason = ReasonPaymentFailed
			}
			break
		}
		payment = PaymentPaid
		switch stock {
		case StockReserved:
			status = StatusConfirmed
		case StockOutOfStock:
			status = StatusCancelled
		}
	default:
		return NoChange(o)
	}

	t := Transition{
		HasChange:        status != o.Status || stock != o.StockStatus || payment != o.PaymentStatus,
		Status:           status,
		StockStatus:      stock,
		PaymentStatus:    payment,
		PublishConfirmed: status == StatusConfirmed && o.Status != StatusConfirmed,
		PublishCancelled: status == StatusCancelled && o.Status != StatusCancelled,
		Trigger:          trig.Name(),
	}
	if t.PublishCancelled {
		t.CancelReason = reason
		if t.CancelReason == "" {
			t.CancelReason = t.Trigger
		}
	}
	return t
}
