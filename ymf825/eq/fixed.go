package eq

import (
	"fmt"
	"math"

	"github.com/valerio/go-ymf825/ymf825/bit"
	"github.com/valerio/go-ymf825/ymf825/fault"
)

const (
	// FractionBits is the number of fractional bits in a register value.
	FractionBits = 20
	// BandBytes is the wire size of one section: 5 coefficients, 3 bytes each.
	BandBytes = 5 * 3

	scale    = 1 << FractionBits
	limit    = 8.0
	mask24   = 0xFFFFFF
	signBit  = 0x800000
	maxValue = 0x7FFFFF
)

// ToRegisterFormat converts v to 24-bit two's complement with 20 fraction
// bits. The result is in the low 24 bits. v must lie in (-8, 8).
func ToRegisterFormat(v float64) (int32, error) {
	if !(v > -limit && v < limit) {
		return 0, fmt.Errorf("coefficient %v outside (-8, 8): %w", v, fault.ErrOutOfRange)
	}
	// values within half a step of +8 would wrap to the sign bit
	raw := min(int32(math.Round(v*scale)), maxValue)
	return raw & mask24, nil
}

// ToDouble is the inverse of ToRegisterFormat. Only the low 24 bits of raw
// are used.
func ToDouble(raw int32) float64 {
	raw &= mask24
	if raw&signBit != 0 {
		raw -= 1 << 24
	}
	return float64(raw) / scale
}

// Bytes encodes the section as 15 big-endian bytes.
func (c Coefficients) Bytes() ([]byte, error) {
	buf := make([]byte, BandBytes)
	for i, v := range c {
		raw, err := ToRegisterFormat(v)
		if err != nil {
			return nil, fmt.Errorf("coefficient %d: %w", i, err)
		}
		bit.Put24(buf[i*3:], uint32(raw))
	}
	return buf, nil
}

// Decode parses 15 bytes produced by Bytes or read back from the chip.
func Decode(b []byte) (Coefficients, error) {
	if len(b) != BandBytes {
		return Coefficients{}, fault.Range("coefficient bytes", len(b), BandBytes, BandBytes)
	}
	var c Coefficients
	for i := range c {
		c[i] = ToDouble(int32(bit.Get24(b[i*3:])))
	}
	return c, nil
}
