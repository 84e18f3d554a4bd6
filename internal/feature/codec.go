package feature

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Stored encodings use a self-describing binary format: a little-endian
// uint32 element count followed by that many IEEE-754 float32 values.
// This replaces the ad-hoc object serialization used by the legacy system
// so that stored encodings are portable across backends.

// ErrCorruptEncoding is returned when a stored encoding cannot be decoded.
var ErrCorruptEncoding = errors.New("corrupt feature encoding")

const lenPrefixSize = 4

// Encode serializes a vector into the length-prefixed float32 format.
func Encode(v Vector) []byte {
	buf := make([]byte, lenPrefixSize+4*len(v))
	binary.LittleEndian.PutUint32(buf, uint32(len(v)))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[lenPrefixSize+4*i:], math.Float32bits(x))
	}
	return buf
}

// Decode parses a length-prefixed float32 encoding. It returns
// ErrCorruptEncoding (wrapped with detail) when the payload is truncated
// or its length prefix disagrees with the payload size.
func Decode(data []byte) (Vector, error) {
	if len(data) < lenPrefixSize {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrCorruptEncoding, len(data))
	}
	n := binary.LittleEndian.Uint32(data)
	if uint64(len(data)) != uint64(lenPrefixSize)+4*uint64(n) {
		return nil, fmt.Errorf("%w: prefix says %d elements, payload has %d bytes",
			ErrCorruptEncoding, n, len(data)-lenPrefixSize)
	}
	v := make(Vector, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[lenPrefixSize+4*i:]))
	}
	return v, nil
}
