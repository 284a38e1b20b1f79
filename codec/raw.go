package codec

import (
	"encoding/json"
	"errors"
)

// Bytes passes []byte through. Encode copies so the caller may reuse its
// buffer after a Put.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return append([]byte(nil), b...), nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

var errInvalidJSON = errors.New("codec: invalid JSON")

// RawJSON passes already encoded JSON through, rejecting anything that does
// not parse in either direction.
type RawJSON struct{}

func (RawJSON) Encode(m json.RawMessage) ([]byte, error) {
	if !json.Valid(m) {
		return nil, errInvalidJSON
	}
	return append([]byte(nil), m...), nil
}

func (RawJSON) Decode(b []byte) (json.RawMessage, error) {
	if !json.Valid(b) {
		return nil, errInvalidJSON
	}
	return json.RawMessage(b), nil
}
