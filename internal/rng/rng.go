// Package rng implements the counter-based pseudorandom generator used
// by the categorical-sample kernel. It is a 4-round squares-style
// construction: fast, stateless and reproducible for a given
// (offset, seed) pair. It is not cryptographically secure.
package rng

import "math/bits"

// Squares32 maps (offset, seed) deterministically to a 32-bit word
// using four squaring/rotation rounds.
func Squares32(offset, seed uint64) uint32 {
	y := offset * seed
	z := y + seed

	x := y*y + y
	x = bits.RotateLeft64(x, 32)

	x = x*x + z
	x = bits.RotateLeft64(x, 32)

	x = x*x + y
	x = bits.RotateLeft64(x, 32)

	return uint32((x*x + z) >> 32)
}

// Uniform scales the low 24 bits of a generator word to a float in
// [0, 1). 24 bits keep the result exact in float32.
func Uniform(word uint32) float32 {
	return float32(word&0x00FFFFFF) * 0x1.0p-24
}
