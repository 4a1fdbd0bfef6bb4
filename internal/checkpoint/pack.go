package checkpoint

import (
	"encoding/binary"
	"math"
)

// packFloat64s encodes a sample slice as little-endian IEEE 754 bytes.
func packFloat64s(vals []float64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

// unpackFloat64s decodes a sample blob written by packFloat64s. Trailing
// bytes that do not fill a full float64 are ignored.
func unpackFloat64s(buf []byte) []float64 {
	vals := make([]float64, len(buf)/8)
	for i := range vals {
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return vals
}
