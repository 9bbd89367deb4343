// Package ufloat8 packs unsigned integers into one byte with 4 bit exponent
// and 4 bit mantissa. Exponent 0 is denormal: value equals mantissa.
// Exponent e>0 has implicit leading one: value = (16+m) << (e-1).
// Range is 0..507904, precision is 1/16..1/32 of magnitude.
//
// This layout is assumed, not taken from peripheral firmware.
// Verify against firmware before relying on looping time values.
package ufloat8

import "math/bits"

const Max uint32 = (16 + 15) << 14

func Decode(b uint8) uint32 {
	e, m := uint32(b>>4), uint32(b&0x0f)
	if e == 0 {
		return m
	}
	return (16 + m) << (e - 1)
}

// Encode is the inverse of Decode for values Decode can produce.
// Other values are truncated to the closest smaller representable.
// Values above Max saturate to 0xff.
func Encode(v uint32) uint8 {
	if v < 16 {
		return uint8(v)
	}
	if v >= Max {
		return 0xff
	}
	e := uint32(bits.Len32(v)) - 4
	m := (v >> (e - 1)) - 16
	return uint8(e<<4 | m)
}
