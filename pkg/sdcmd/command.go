package sdcmd

import (
	"encoding/binary"
	"fmt"
)

// CommandType is the bus command class declared in the request descriptor.
type CommandType uint32

const (
	// TypeBC is a broadcast command without response.
	TypeBC CommandType = 1
	// TypeBCR is a broadcast command with response.
	TypeBCR CommandType = 2
	// TypeAC is an addressed command without data transfer on DAT lines.
	TypeAC CommandType = 3
	// TypeADTC is an addressed command with data transfer.
	TypeADTC CommandType = 4
)

func (t CommandType) String() string {
	switch t {
	case TypeBC:
		return "BC"
	case TypeBCR:
		return "BCR"
	case TypeAC:
		return "AC"
	case TypeADTC:
		return "ADTC"
	default:
		return fmt.Sprintf("CommandType(%d)", uint32(t))
	}
}

// ResponseType is the response class the host controller should expect.
type ResponseType uint32

const (
	ResponseNone ResponseType = 0
	ResponseR1   ResponseType = 1
	ResponseR1B  ResponseType = 2 // R1 with busy signalling on DAT0
	ResponseR2   ResponseType = 3 // 136-bit CID/CSD
	ResponseR3   ResponseType = 4 // OCR
	ResponseR4   ResponseType = 5
	ResponseR5   ResponseType = 6
	ResponseR6   ResponseType = 7 // published RCA
)

func (r ResponseType) String() string {
	switch r {
	case ResponseNone:
		return "None"
	case ResponseR1:
		return "R1"
	case ResponseR1B:
		return "R1b"
	case ResponseR2:
		return "R2"
	case ResponseR3:
		return "R3"
	case ResponseR4:
		return "R4"
	case ResponseR5:
		return "R5"
	case ResponseR6:
		return "R6"
	default:
		return fmt.Sprintf("ResponseType(%d)", uint32(r))
	}
}

// RequestSize is the encoded size of a command descriptor.
const RequestSize = 36

// Command is a request descriptor for IoctlSendCommand.
type Command struct {
	Opcode     Opcode
	Type       CommandType
	Response   ResponseType
	Arg        uint32
	BlockCount uint32
	BlockSize  uint32
	IsDMA      bool
}

// NewCommand creates a command without data phase.
func NewCommand(op Opcode, typ CommandType, rsp ResponseType, arg uint32) Command {
	return Command{
		Opcode:   op,
		Type:     typ,
		Response: rsp,
		Arg:      arg,
	}
}

// RCAArg places a relative card address in the upper half of an argument.
func RCAArg(rca uint16) uint32 {
	return uint32(rca) << 16
}

// TransferLength is the number of data bytes moved by the command.
func (c Command) TransferLength() int {
	return int(c.BlockCount) * int(c.BlockSize)
}

// Encode writes the descriptor into dst, which must hold RequestSize bytes.
func (c Command) Encode(dst []byte) error {
	if len(dst) < RequestSize {
		return fmt.Errorf("request buffer too short: %d < %d", len(dst), RequestSize)
	}

	var isdma uint32
	if c.IsDMA {
		isdma = 1
	}

	words := [9]uint32{
		uint32(c.Opcode),
		uint32(c.Type),
		uint32(c.Response),
		c.Arg,
		c.BlockCount,
		c.BlockSize,
		0, // dma_addr travels as its own vector
		isdma,
		0,
	}
	for i, w := range words {
		binary.BigEndian.PutUint32(dst[i*4:], w)
	}
	return nil
}

// Bytes encodes the command into a new RequestSize buffer.
func (c Command) Bytes() []byte {
	buf := make([]byte, RequestSize)
	_ = c.Encode(buf)
	return buf
}

// ParseCommand decodes a request descriptor.
func ParseCommand(raw []byte) (Command, error) {
	if len(raw) < RequestSize {
		return Command{}, fmt.Errorf("request descriptor too short: length %d", len(raw))
	}

	word := func(i int) uint32 { return binary.BigEndian.Uint32(raw[i*4:]) }

	isdma := word(7)
	if isdma > 1 {
		return Command{}, fmt.Errorf("invalid isdma flag %d", isdma)
	}

	return Command{
		Opcode:     Opcode(word(0)),
		Type:       CommandType(word(1)),
		Response:   ResponseType(word(2)),
		Arg:        word(3),
		BlockCount: word(4),
		BlockSize:  word(5),
		IsDMA:      isdma == 1,
	}, nil
}

// String returns a readable representation of the command.
func (c Command) String() string {
	s := fmt.Sprintf("%s | Type: %s | Rsp: %s | Arg: %08X", c.Opcode.Verbose(), c.Type, c.Response, c.Arg)
	if c.IsDMA {
		s += fmt.Sprintf(" | DMA: %dx%d", c.BlockCount, c.BlockSize)
	}
	return s
}
