package events

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/andreasstove999/ecommerce-system/internal/events"

// headerCarrier adapts kafka message headers to a propagation.TextMapCarrier.
type headerCarrier struct {
	headers *[]kafka.Header
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// ContextWithTrace returns ctx parented on the span described by the envelope ids,
// falling back to a traceparent header on the message.
func ContextWithTrace(ctx context.Context, meta Meta, headers []kafka.Header) context.Context {
	if sc, ok := spanContext(meta); ok {
		return trace.ContextWithRemoteSpanContext(ctx, sc)
	}
	return otel.GetTextMapPropagator().Extract(ctx, headerCarrier{headers: &headers})
}

// traceIDs picks the ids stamped on an outgoing envelope: the active span in ctx
// wins, otherwise the ids of the triggering event are carried over.
func traceIDs(ctx context.Context, meta Meta) (string, string) {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String(), sc.SpanID().String()
	}
	return meta.TraceID, meta.SpanID
}

func spanContext(meta Meta) (trace.SpanContext, bool) {
	traceID, err := trace.TraceIDFromHex(meta.TraceID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	spanID, err := trace.SpanIDFromHex(meta.SpanID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return sc, sc.IsValid()
}
