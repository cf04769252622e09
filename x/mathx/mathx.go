// Package mathx holds small generic integer helpers used on the firmware
// side, where pulling in math is not worth the code size.
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MaxOf returns the largest value representable in bits (bits <= 32).
func MaxOf(bits uint8) uint32 {
	if bits >= 32 {
		return ^uint32(0)
	}
	return 1<<bits - 1
}

// Mask truncates v to its low bits.
func Mask[T constraints.Unsigned](v T, bits uint8) T {
	if bits >= 64 {
		return v
	}
	return v & T(uint64(1)<<bits-1)
}

// ScaleBits rescales a from-bit sample into a to-bit range by shifting:
// a 10-bit ADC reading becomes an 8-bit duty value as v>>2. Values wider
// than from are clamped first.
func ScaleBits[T constraints.Unsigned](v T, from, to uint8) T {
	v = Clamp(v, 0, T(MaxOf(from)))
	if from > to {
		return v >> (from - to)
	}
	return v << (to - from)
}
