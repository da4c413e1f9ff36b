package sdcmd

import (
	"fmt"
	"strings"

	"github.com/gregLibert/sd-card/pkg/bits"
	"github.com/gregLibert/sd-card/pkg/tlv"
)

// CARD REGISTERS:
//
// CSD (Card Specific Data) describes how the card is accessed. Two layouts
// exist and are told apart by CSD_STRUCTURE (bits 127:126):
//
//   - Version 1.0 (standard capacity):
//     capacity = (C_SIZE+1) * 2^(C_SIZE_MULT+2) * 2^READ_BL_LEN
//     with C_SIZE on bits 73:62 and C_SIZE_MULT on bits 49:47.
//   - Version 2.0 (high capacity):
//     capacity = (C_SIZE+1) * 512 KiB with C_SIZE on bits 69:48.
//
// READ_BL_LEN (83:80) and WRITE_BL_LEN (25:22) are block length exponents.
//
// CID (Card Identification) holds the manufacturer (MID), OEM (OID), product
// name (PNM), revision (PRV), serial number (PSN) and manufacturing date (MDT).

// RegisterSize is the size of the CSD and CID blocks.
const RegisterSize = 16

// CSD is the decoded Card Specific Data register.
type CSD struct {
	Structure  uint8 // 0 = v1.0, 1 = v2.0
	TranSpeed  uint8
	ReadBlLen  uint8
	WriteBlLen uint8
	CSize      uint32
	CSizeMult  uint8 // v1.0 only
	Raw        [RegisterSize]byte
}

// ParseCSD decodes a CSD block.
func ParseCSD(raw []byte) (CSD, error) {
	if len(raw) < RegisterSize {
		return CSD{}, fmt.Errorf("CSD too short: length %d", len(raw))
	}

	c := CSD{
		Structure:  uint8(bits.Field(raw, 127, 126)),
		TranSpeed:  uint8(bits.Field(raw, 103, 96)),
		ReadBlLen:  uint8(bits.Field(raw, 83, 80)),
		WriteBlLen: uint8(bits.Field(raw, 25, 22)),
	}
	copy(c.Raw[:], raw)

	switch c.Structure {
	case 0:
		c.CSize = bits.Field(raw, 73, 62)
		c.CSizeMult = uint8(bits.Field(raw, 49, 47))
	case 1:
		c.CSize = bits.Field(raw, 69, 48)
	default:
		return CSD{}, fmt.Errorf("unsupported CSD structure %d", c.Structure)
	}
	return c, nil
}

// NewCSD builds a register describing a card of the given number of
// 512-byte sectors. Small cards use the v1.0 layout, which can only express
// multiples of 4 sectors; larger ones use v2.0 and are rounded down to a
// multiple of 512 KiB.
func NewCSD(sectors uint64) CSD {
	c := CSD{TranSpeed: 0x32, ReadBlLen: 9, WriteBlLen: 9}

	for mult := uint8(0); mult <= 7; mult++ {
		unit := uint64(1) << (mult + 2)
		if sectors >= unit && sectors%unit == 0 && sectors/unit <= 4096 {
			c.Structure = 0
			c.CSizeMult = mult
			c.CSize = uint32(sectors/unit - 1)
			c.Raw = c.encode()
			return c
		}
	}

	if sectors < 1024 {
		c.Structure = 0
		c.CSize = uint32(sectors/4) - 1
		if sectors < 4 {
			c.CSize = 0
		}
		c.Raw = c.encode()
		return c
	}

	c.Structure = 1
	c.CSize = uint32(sectors/1024 - 1)
	c.Raw = c.encode()
	return c
}

func (c CSD) encode() [RegisterSize]byte {
	var reg [RegisterSize]byte
	bits.SetField(reg[:], 127, 126, uint32(c.Structure))
	bits.SetField(reg[:], 119, 112, 0x0E) // TAAC
	bits.SetField(reg[:], 103, 96, uint32(c.TranSpeed))
	bits.SetField(reg[:], 95, 84, 0x5B5) // CCC
	bits.SetField(reg[:], 83, 80, uint32(c.ReadBlLen))
	if c.Structure == 0 {
		bits.SetField(reg[:], 73, 62, c.CSize)
		bits.SetField(reg[:], 49, 47, uint32(c.CSizeMult))
	} else {
		bits.SetField(reg[:], 69, 48, c.CSize)
	}
	bits.SetField(reg[:], 25, 22, uint32(c.WriteBlLen))
	bits.SetField(reg[:], 0, 0, 1)
	return reg
}

// Capacity returns the card size in bytes.
func (c CSD) Capacity() uint64 {
	if c.Structure == 1 {
		return (uint64(c.CSize) + 1) * 512 * 1024
	}
	return (uint64(c.CSize) + 1) << (uint64(c.CSizeMult) + 2 + uint64(c.ReadBlLen))
}

// Sectors returns the card size in BlockSize units.
func (c CSD) Sectors() uint64 {
	return c.Capacity() / BlockSize
}

// ReadBlockLength returns 2^READ_BL_LEN.
func (c CSD) ReadBlockLength() int {
	return 1 << c.ReadBlLen
}

// WriteBlockLength returns 2^WRITE_BL_LEN.
func (c CSD) WriteBlockLength() int {
	return 1 << c.WriteBlLen
}

// Describe generates a human-readable report of the register.
func (c CSD) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== CSD REGISTER ===\n")
	sb.WriteString(fmt.Sprintf("    + Raw:          %X\n", c.Raw))
	sb.WriteString(fmt.Sprintf("    + Structure:    v%d.0\n", c.Structure+1))
	sb.WriteString(fmt.Sprintf("    + TRAN_SPEED:   %02X\n", c.TranSpeed))
	sb.WriteString(fmt.Sprintf("    + READ_BL_LEN:  %d (%d bytes)\n", c.ReadBlLen, c.ReadBlockLength()))
	sb.WriteString(fmt.Sprintf("    + WRITE_BL_LEN: %d (%d bytes)\n", c.WriteBlLen, c.WriteBlockLength()))
	sb.WriteString(fmt.Sprintf("    + C_SIZE:       %d\n", c.CSize))
	if c.Structure == 0 {
		sb.WriteString(fmt.Sprintf("    + C_SIZE_MULT:  %d\n", c.CSizeMult))
	}
	sb.WriteString(fmt.Sprintf("    + Capacity:     %d bytes (%d sectors)", c.Capacity(), c.Sectors()))
	return sb.String()
}

// CID is the decoded Card Identification register.
type CID struct {
	ManufacturerID uint8
	OEMID          string
	ProductName    string
	Revision       uint8
	Serial         uint32
	Year           int
	Month          int
	Raw            [RegisterSize]byte
}

// ParseCID decodes a CID block.
func ParseCID(raw []byte) (CID, error) {
	if len(raw) < RegisterSize {
		return CID{}, fmt.Errorf("CID too short: length %d", len(raw))
	}

	c := CID{
		ManufacturerID: uint8(bits.Field(raw, 127, 120)),
		OEMID:          tlv.MakeSafeASCII(raw[1:3]),
		ProductName:    tlv.MakeSafeASCII(raw[3:8]),
		Revision:       uint8(bits.Field(raw, 63, 56)),
		Serial:         bits.Field(raw, 55, 24),
		Year:           2000 + int(bits.Field(raw, 19, 12)),
		Month:          int(bits.Field(raw, 11, 8)),
	}
	copy(c.Raw[:], raw)
	return c, nil
}

// Bytes encodes the identification fields into a register block.
func (c CID) Bytes() [RegisterSize]byte {
	var reg [RegisterSize]byte
	bits.SetField(reg[:], 127, 120, uint32(c.ManufacturerID))
	copy(reg[1:3], padASCII(c.OEMID, 2))
	copy(reg[3:8], padASCII(c.ProductName, 5))
	bits.SetField(reg[:], 63, 56, uint32(c.Revision))
	bits.SetField(reg[:], 55, 24, c.Serial)
	if c.Year >= 2000 {
		bits.SetField(reg[:], 19, 12, uint32(c.Year-2000))
	}
	bits.SetField(reg[:], 11, 8, uint32(c.Month))
	bits.SetField(reg[:], 0, 0, 1)
	return reg
}

// Describe generates a human-readable report of the register.
func (c CID) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== CID REGISTER ===\n")
	sb.WriteString(fmt.Sprintf("    + Raw:          %X\n", c.Raw))
	sb.WriteString(fmt.Sprintf("    + Manufacturer: %02X\n", c.ManufacturerID))
	sb.WriteString(fmt.Sprintf("    + OEM:          %q\n", c.OEMID))
	sb.WriteString(fmt.Sprintf("    + Product:      %q rev %d.%d\n", c.ProductName, c.Revision>>4, c.Revision&0x0F))
	sb.WriteString(fmt.Sprintf("    + Serial:       %08X\n", c.Serial))
	sb.WriteString(fmt.Sprintf("    + Manufactured: %04d-%02d", c.Year, c.Month))
	return sb.String()
}

func padASCII(s string, n int) []byte {
	out := []byte(strings.Repeat(" ", n))
	copy(out, s)
	return out
}
