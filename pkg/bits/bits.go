package bits

// Two numbering schemes are used by the SD protocol and both appear here:
//
// 1. Byte flags (host controller registers, R1 status bytes) are addressed
//    1 to 8, bit 1 being the least significant, matching datasheet tables
//    that label the host control bits from 1.
//
// 2. Card registers (CSD, CID) are 128-bit big-endian blocks whose fields
//    are named by their absolute bit positions [127:0]. Byte i of the block
//    holds bits [127-8i : 120-8i].

// Bit returns a byte with only the n-th bit set (1 to 8).
func Bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet checks if the n-th bit is set (1 to 8).
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// Set raises bit n.
func Set(b byte, n uint) byte {
	return b | Bit(n)
}

// Clear lowers bit n, leaving every other bit untouched.
func Clear(b byte, n uint) byte {
	return b &^ Bit(n)
}

// Assign sets or clears bit n depending on on.
func Assign(b byte, n uint, on bool) byte {
	if on {
		return Set(b, n)
	}
	return Clear(b, n)
}

// Field extracts bits [high:low] of a big-endian register block.
// Example: Field(csd, 83, 80) returns READ_BL_LEN.
// Out of range or inverted bounds, and fields wider than 32 bits, yield 0.
func Field(reg []byte, high, low uint) uint32 {
	width := uint(len(reg)) * 8
	if high < low || high >= width || high-low >= 32 {
		return 0
	}

	var v uint32
	for n := high; ; n-- {
		v = v<<1 | uint32(regBit(reg, n))
		if n == low {
			break
		}
	}
	return v
}

// SetField stores v into bits [high:low] of a big-endian register block.
// Bits of v above the field width are discarded.
func SetField(reg []byte, high, low uint, v uint32) {
	width := uint(len(reg)) * 8
	if high < low || high >= width || high-low >= 32 {
		return
	}

	for n := low; n <= high; n++ {
		idx := len(reg) - 1 - int(n/8)
		mask := byte(1) << (n % 8)
		if v&(1<<(n-low)) != 0 {
			reg[idx] |= mask
		} else {
			reg[idx] &^= mask
		}
	}
}

func regBit(reg []byte, n uint) byte {
	return (reg[len(reg)-1-int(n/8)] >> (n % 8)) & 1
}
