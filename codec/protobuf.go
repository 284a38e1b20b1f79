package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Protobuf stores proto messages in binary wire form. Encoding is
// deterministic so an unchanged message rewrites the same bytes.
type Protobuf[T proto.Message] struct {
	newMsg func() T
}

// NewProtobuf takes a constructor for the concrete message, e.g.
// func() *userpb.User { return new(userpb.User) }.
func NewProtobuf[T proto.Message](newMsg func() T) Protobuf[T] {
	if newMsg == nil {
		panic("codec: NewProtobuf needs a message constructor")
	}
	return Protobuf[T]{newMsg: newMsg}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.newMsg()
	if err := proto.Unmarshal(b, m); err != nil {
		var zero T
		return zero, fmt.Errorf("codec: protobuf: %w", err)
	}
	return m, nil
}
