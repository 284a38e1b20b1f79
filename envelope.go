package edgekv

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Envelope is the record persisted per key. Field order is part of the
// wire format.
type Envelope struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt int64           `json:"expiresAt"` // epoch millis
	Metadata  map[string]any  `json:"metadata,omitempty"`
	CreatedAt int64           `json:"createdAt"` // epoch millis
}

var errEmptyValue = errors.New("edgekv: envelope has no value")

// Expired reports whether the envelope is past its expiry at now.
func (e Envelope) Expired(now time.Time) bool { return now.UnixMilli() >= e.ExpiresAt }

func decodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("edgekv: decode envelope: %w", err)
	}
	if len(e.Value) == 0 {
		return Envelope{}, errEmptyValue
	}
	return e, nil
}

// envelopeCodec is the stored JSON form as a codec, for wrapping in
// codec.Limit when no cache codec is configured.
type envelopeCodec struct{}

func (envelopeCodec) Encode(e Envelope) ([]byte, error) { return json.Marshal(e) }
func (envelopeCodec) Decode(b []byte) (Envelope, error) { return decodeEnvelope(b) }

// encodeValue turns a Put value into the envelope's value field. Byte
// slices holding valid JSON are stored verbatim; any other value is
// marshalled.
func encodeValue(v any) (json.RawMessage, error) {
	switch t := v.(type) {
	case json.RawMessage:
		if json.Valid(t) {
			return t, nil
		}
		return nil, errors.New("edgekv: invalid json.RawMessage value")
	case []byte:
		if json.Valid(t) {
			return json.RawMessage(t), nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("edgekv: encode value: %w", err)
	}
	return b, nil
}

// Entry is a value read from or written to a KV.
type Entry struct {
	Key       string // logical key, without KeyPrefix
	Value     json.RawMessage
	Metadata  map[string]any
	ExpiresAt time.Time
	CreatedAt time.Time
	FromCache bool
}

// Decode unmarshals the value into dst.
func (e Entry) Decode(dst any) error { return json.Unmarshal(e.Value, dst) }

func entryFrom(key string, env Envelope, fromCache bool) Entry {
	return Entry{
		Key:       key,
		Value:     env.Value,
		Metadata:  env.Metadata,
		ExpiresAt: time.UnixMilli(env.ExpiresAt),
		CreatedAt: time.UnixMilli(env.CreatedAt),
		FromCache: fromCache,
	}
}
