// Package floatbits implements the order-preserving integer encoding of
// 32-bit floats used by the argmax and softmax kernels. The encoded
// values compare as unsigned integers in the same order as the original
// floats, which lets the kernels track a running maximum with plain
// unsigned max operations.
package floatbits

import "math"

// ToOrdered maps a float32 to a uint32 whose unsigned order matches the
// float order. Positive floats (and +0) get the sign bit set; negative
// floats are bit-complemented. Round-trips exactly through FromOrdered
// for every bit pattern, including zeros and subnormals.
func ToOrdered(f float32) uint32 {
	bits := math.Float32bits(f)
	if bits&0x80000000 != 0 {
		return ^bits
	}
	return bits | 0x80000000
}

// FromOrdered inverts ToOrdered.
func FromOrdered(u uint32) float32 {
	if u&0x80000000 != 0 {
		return math.Float32frombits(u &^ 0x80000000)
	}
	return math.Float32frombits(^u)
}

// PackArgmax packs an ordered-bits value and its element index into one
// word: value in the high 32 bits, complemented index in the low 32.
// An unsigned max over packed words therefore prefers the larger value,
// and on equal values the lower index.
func PackArgmax(bits uint32, idx uint32) uint64 {
	return uint64(bits)<<32 | uint64(^idx)
}

// ArgmaxBits extracts the ordered-bits value from a packed word.
func ArgmaxBits(packed uint64) uint32 {
	return uint32(packed >> 32)
}

// ArgmaxIndex extracts the element index from a packed word.
func ArgmaxIndex(packed uint64) uint32 {
	return ^uint32(packed)
}

// ArgmaxValue decodes the float value carried by a packed word.
func ArgmaxValue(packed uint64) float32 {
	return FromOrdered(ArgmaxBits(packed))
}
