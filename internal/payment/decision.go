package payment

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const ReasonDeclined = "mock_declined"

var ErrInvalidOutcome = errors.New("forceOutcome must be 'success' or 'failure' when provided.")

type Decision struct {
	Success       bool
	FailureReason *string
}

// Decide returns the forced outcome when one is given. Otherwise the outcome is
// derived from the order id: an even byte sum succeeds, an odd one is declined.
func Decide(orderID uuid.UUID, forceOutcome string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(forceOutcome)) {
	case "":
	case "success":
		return approved(), nil
	case "failure":
		return declined(), nil
	default:
		return Decision{}, ErrInvalidOutcome
	}

	sum := 0
	for _, b := range orderID {
		sum += int(b)
	}
	if sum%2 == 0 {
		return approved(), nil
	}
	return declined(), nil
}

func approved() Decision { return Decision{Success: true} }

func declined() Decision {
	reason := ReasonDeclined
	return Decision{FailureReason: &reason}
}
