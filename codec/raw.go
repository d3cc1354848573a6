package codec

// String stores rendered markup as-is (UTF-8 assumed, not validated).
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }

// Bytes stores []byte values as-is. Both directions copy, so callers never share
// a buffer with the provider.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return append([]byte(nil), b...), nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return append([]byte(nil), b...), nil }
