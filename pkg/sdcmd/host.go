package sdcmd

import (
	"encoding/binary"
	"fmt"
)

// Host register query block (IoctlReadHostRegister / IoctlWriteHostRegister):
//
//	reg | 0 | 0 | size | value | 0
//
// six big-endian words. Size is the access width in bytes; the driver only
// performs byte accesses. Reads return the value in the low byte of a
// 4-byte output word.

// HostQuerySize is the encoded size of a host register query.
const HostQuerySize = 24

// HostQuery addresses one host controller register.
type HostQuery struct {
	Register uint8
	Size     uint32
	Value    uint32
}

// NewHostQuery creates a byte-wide query.
func NewHostQuery(reg uint8, value uint8) HostQuery {
	return HostQuery{Register: reg, Size: 1, Value: uint32(value)}
}

// Encode writes the query into dst, which must hold HostQuerySize bytes.
func (q HostQuery) Encode(dst []byte) error {
	if len(dst) < HostQuerySize {
		return fmt.Errorf("host query buffer too short: %d < %d", len(dst), HostQuerySize)
	}
	words := [6]uint32{uint32(q.Register), 0, 0, q.Size, q.Value, 0}
	for i, w := range words {
		binary.BigEndian.PutUint32(dst[i*4:], w)
	}
	return nil
}

// ParseHostQuery decodes a host register query block.
func ParseHostQuery(raw []byte) (HostQuery, error) {
	if len(raw) < HostQuerySize {
		return HostQuery{}, fmt.Errorf("host query too short: length %d", len(raw))
	}
	reg := binary.BigEndian.Uint32(raw[0:])
	if reg > 0xFF {
		return HostQuery{}, fmt.Errorf("host register 0x%X out of range", reg)
	}
	return HostQuery{
		Register: uint8(reg),
		Size:     binary.BigEndian.Uint32(raw[12:]),
		Value:    binary.BigEndian.Uint32(raw[16:]),
	}, nil
}

// PutWord stores a 32-bit output word as returned by the coprocessor.
func PutWord(dst []byte, v uint32) {
	binary.BigEndian.PutUint32(dst, v)
}

// Word reads a 32-bit output word as returned by the coprocessor.
func Word(src []byte) uint32 {
	return binary.BigEndian.Uint32(src)
}
