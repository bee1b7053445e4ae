package bit

// IsSet will check if the bit at the specified index is set to 1 or not.
func IsSet(index, byte uint8) bool {
	return ((byte >> index) & 1) == 1
}

// Mask returns a byte with the lowest width bits set.
func Mask(width uint8) uint8 {
	if width >= 8 {
		return 0xFF
	}
	return uint8(1<<width) - 1
}

// Field truncates value to width bits and moves it to the given shift.
// Out of range values are silently masked, never rejected.
func Field(value int, width, shift uint8) uint8 {
	return (uint8(value) & Mask(width)) << shift
}

// Flag returns a byte with the bit at index set when b is true.
func Flag(b bool, index uint8) uint8 {
	if b {
		return 1 << index
	}
	return 0
}

// ExtractBits extracts bits from highBit to lowBit (inclusive)
// Example: ExtractBits(0b11010110, 6, 4) -> 0b101 (extracts bits 6, 5, 4)
func ExtractBits(value uint8, highBit, lowBit uint8) uint8 {
	return (value >> lowBit) & Mask(highBit-lowBit+1)
}

// Count returns the number of bits set in a byte.
func Count(value uint8) int {
	n := 0
	for ; value != 0; value &= value - 1 {
		n++
	}
	return n
}

// Put24 writes the low 24 bits of value big-endian into b[0:3].
func Put24(b []byte, value uint32) {
	_ = b[2]
	b[0] = uint8(value >> 16)
	b[1] = uint8(value >> 8)
	b[2] = uint8(value)
}

// Get24 reads a big-endian 24 bit value from b[0:3].
func Get24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// Low returns the low (LSB) part of a 16 bit number.
func Low(value uint16) uint8 {
	return uint8(value)
}

// High returns the high (MSB) part of a 16 bit number.
func High(value uint16) uint8 {
	return uint8(value >> 8)
}
