package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Version is the only envelope version producers emit and consumers accept.
const Version = "1"

var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrMalformedPayload  = errors.New("malformed payload")
)

// Envelope is the wire contract shared by every saga participant.
type Envelope[T any] struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Time      time.Time `json:"time"`
	TraceID   string    `json:"traceId,omitempty"`
	SpanID    string    `json:"spanId,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	Version   string    `json:"version"`
	Data      T         `json:"data"`
}

// RawEnvelope is an envelope whose data has not been decoded yet.
type RawEnvelope = Envelope[json.RawMessage]

// Meta carries the correlation fields of the triggering context into the next publish.
type Meta struct {
	RequestID string
	TraceID   string
	SpanID    string
}

// Meta returns the correlation fields of e.
func (e Envelope[T]) Meta() Meta {
	return Meta{RequestID: e.RequestID, TraceID: e.TraceID, SpanID: e.SpanID}
}

// ParseEnvelope decodes the outer envelope and leaves data raw.
func ParseEnvelope(body []byte) (RawEnvelope, error) {
	var env RawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return RawEnvelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Type == "" {
		return RawEnvelope{}, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	if env.Version != "" && env.Version != Version {
		return RawEnvelope{}, fmt.Errorf("%w: unsupported version %q", ErrMalformedEnvelope, env.Version)
	}
	return env, nil
}

// DecodeData decodes the payload of env into T.
func DecodeData[T any](env RawEnvelope) (T, error) {
	var data T
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return data, fmt.Errorf("%w: %s has no data", ErrMalformedPayload, env.Type)
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return data, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, env.Type, err)
	}
	return data, nil
}
