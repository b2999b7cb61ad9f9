package bus

import "github.com/vmihailenco/msgpack"

// msgpackCodec implements Codec[T] for any msgpack-serializable T. All
// three event families round-trip through plain struct tags, so one
// generic codec covers InboundEvent, OutboundEvent, and
// InterEngineMessage without per-family boilerplate.
type msgpackCodec[T any] struct{}

// MsgpackCodec returns a Codec[T] backed by msgpack.
func MsgpackCodec[T any]() Codec[T] {
	return msgpackCodec[T]{}
}

func (msgpackCodec[T]) Encode(v T) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackCodec[T]) Decode(raw []byte) (T, error) {
	var v T
	err := msgpack.Unmarshal(raw, &v)
	return v, err
}
