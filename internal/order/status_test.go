package order

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusPending, StatusConfirmed, StatusCancelled} {
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	for _, s := range []StockStatus{StockPending, StockReserved, StockOutOfStock} {
		got, err := ParseStockStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	for _, s := range []PaymentStatus{PaymentPending, PaymentPaid, PaymentFailed} {
		got, err := ParsePaymentStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestParse_RejectsUnknown(t *testing.T) {
	t.Parallel()

	_, err := ParseStatus("pending")
	assert.Error(t, err)
	_, err = ParseStockStatus("FAILED")
	assert.Error(t, err)
	_, err = ParsePaymentStatus("PROCESSED")
	assert.Error(t, err)
}

func TestStatus_Terminal(t *testing.T) {
	t.Parallel()

	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusConfirmed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestOrder_JSON(t *testing.T) {
	t.Parallel()

	o := withStatuses(StatusConfirmed, StockReserved, PaymentPaid)
	body, err := json.Marshal(o)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(body, &fields))
	assert.Equal(t, "CONFIRMED", fields["status"])
	assert.Equal(t, "RESERVED", fields["stockStatus"])
	assert.Equal(t, "PAID", fields["paymentStatus"])
	assert.Nil(t, fields["customerId"])

	var back Order
	require.NoError(t, json.Unmarshal(body, &back))
	assert.Equal(t, o, back)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"SHIPPED"}`), &back))
}
