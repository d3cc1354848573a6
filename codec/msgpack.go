package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack encodes with vmihailenco/msgpack/v5. The zero value is ready to use.
// Use `msgpack:"name"` struct tags where field names matter.
type Msgpack[V any] struct{}

var _ Codec[struct{}] = Msgpack[struct{}]{}

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}
