package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublisher_Publish(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	w := &fakeWriter{}
	p := NewPublisher(w, "inventory", zap.NewNop())
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	p.newID = func() string { return "event-1" }

	orderID := uuid.New()
	reservationID := uuid.New()
	meta := Meta{
		RequestID: "req-9",
		TraceID:   "4bf92f3577b34da6a3ce929d0e0e4736",
		SpanID:    "00f067aa0ba902b7",
	}

	err := p.Publish(context.Background(), "inventory.events", orderID.String(), TypeStockReserved, meta,
		StockReserved{OrderID: orderID, ReservationID: reservationID})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "inventory.events", msg.Topic)
	assert.Equal(t, orderID.String(), string(msg.Key))
	assert.Equal(t, TypeStockReserved, header(msg, "type"))
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", header(msg, "traceparent"))

	env, err := ParseEnvelope(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, "event-1", env.ID)
	assert.Equal(t, "inventory", env.Source)
	assert.Equal(t, Version, env.Version)
	assert.Equal(t, fixed, env.Time)
	assert.Equal(t, meta, env.Meta())

	data, err := DecodeData[StockReserved](env)
	require.NoError(t, err)
	assert.Equal(t, reservationID, data.ReservationID)
}

func TestPublisher_FreshIDPerPublish(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := NewPublisher(w, "orders", zap.NewNop())

	for i := 0; i < 2; i++ {
		require.NoError(t, p.Publish(context.Background(), "orders.events", "k", TypeOrderConfirmed, Meta{}, OrderConfirmed{}))
	}

	var ids []string
	for _, msg := range w.messages {
		var env RawEnvelope
		require.NoError(t, json.Unmarshal(msg.Value, &env))
		ids = append(ids, env.ID)
	}
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
}

func TestPublisher_ActiveSpanWins(t *testing.T) {
	t.Parallel()

	traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	w := &fakeWriter{}
	p := NewPublisher(w, "orders", zap.NewNop())
	require.NoError(t, p.Publish(ctx, "orders.events", "k", TypeOrderCancelled,
		Meta{RequestID: "r", TraceID: "4bf92f3577b34da6a3ce929d0e0e4736", SpanID: "00f067aa0ba902b7"},
		OrderCancelled{Reason: "insufficient_stock"}))

	env, err := ParseEnvelope(w.messages[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", env.TraceID)
	assert.Equal(t, "b7ad6b7169203331", env.SpanID)
	assert.Equal(t, "r", env.RequestID)
}

func TestPublisher_WriteError(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{err: errors.New("broker down")}
	p := NewPublisher(w, "orders", zap.NewNop())

	err := p.Publish(context.Background(), "orders.events", "k", TypeOrderCreated, Meta{}, OrderCreated{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
