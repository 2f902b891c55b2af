package es

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payload is one event variant of one aggregate type. Kind is the stable
// name the payload is serialized under in the log; it must never change once
// events of that kind have been committed.
type Payload interface {
	Kind() string
}

// Envelope wraps a payload with its attribution and timestamp.
type Envelope struct {
	Payload Payload
	Actor   *uuid.UUID
	At      time.Time
}

// Record is the serialized form of an envelope as stored in the log.
type Record struct {
	Address StreamAddress
	Seq     int64 // 1-based position within the stream
	Kind    string
	Data    []byte
	Actor   *uuid.UUID
	At      time.Time
}

// Codec translates payloads to and from their stored representation.
type Codec interface {
	Encode(p Payload) ([]byte, error)
	Decode(kind string, data []byte) (Payload, error)
}

// JSONCodec decodes payloads through a registry of per-kind factories. Each
// aggregate package exposes its own registry via a Codec() constructor.
type JSONCodec struct {
	factories map[string]func() Payload
}

func NewJSONCodec(factories map[string]func() Payload) *JSONCodec {
	return &JSONCodec{factories: factories}
}

func (c *JSONCodec) Encode(p Payload) ([]byte, error) {
	return json.Marshal(p)
}

func (c *JSONCodec) Decode(kind string, data []byte) (Payload, error) {
	f, ok := c.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
	}
	p := f()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %q: %w", kind, err)
	}
	return p, nil
}
