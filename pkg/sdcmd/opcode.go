package sdcmd

import "fmt"

// Command index logic (SD Physical Layer, simplified):
//
// Each bus command is identified by a 6-bit index. Application-specific
// commands (ACMDn) reuse the same index space and are only recognised when
// the card has just accepted APP_CMD (CMD55); the index alone does not say
// which family a command belongs to.
//
// The block commands are addressed by byte offset on standard-capacity
// cards. This driver always issues the MULTIPLE_BLOCK variants with a block
// count of one.

// Opcode is a command index.
type Opcode uint32

// Command indices used by the driver.
const (
	CMD_GO_IDLE_STATE        Opcode = 0x00
	CMD_SEND_RCA             Opcode = 0x03
	CMD_SELECT_CARD          Opcode = 0x07
	CMD_DESELECT_CARD        Opcode = 0x07
	CMD_SEND_CSD             Opcode = 0x09
	CMD_SEND_CID             Opcode = 0x0A
	CMD_SEND_STATUS          Opcode = 0x0D
	CMD_SET_BLOCKLEN         Opcode = 0x10
	CMD_READ_SINGLE_BLOCK    Opcode = 0x11
	CMD_READ_MULTIPLE_BLOCK  Opcode = 0x12
	CMD_WRITE_BLOCK          Opcode = 0x18
	CMD_WRITE_MULTIPLE_BLOCK Opcode = 0x19
	CMD_APP_CMD              Opcode = 0x37

	ACMD_SET_BUS_WIDTH Opcode = 0x06
	ACMD_SEND_SCR      Opcode = 0x33
)

// String returns the symbolic name of the opcode.
func (o Opcode) String() string {
	switch o {
	case CMD_GO_IDLE_STATE:
		return "CMD_GO_IDLE_STATE"
	case CMD_SEND_RCA:
		return "CMD_SEND_RCA"
	case CMD_SELECT_CARD:
		return "CMD_SELECT_CARD"
	case CMD_SEND_CSD:
		return "CMD_SEND_CSD"
	case CMD_SEND_CID:
		return "CMD_SEND_CID"
	case CMD_SEND_STATUS:
		return "CMD_SEND_STATUS"
	case CMD_SET_BLOCKLEN:
		return "CMD_SET_BLOCKLEN"
	case CMD_READ_SINGLE_BLOCK:
		return "CMD_READ_SINGLE_BLOCK"
	case CMD_READ_MULTIPLE_BLOCK:
		return "CMD_READ_MULTIPLE_BLOCK"
	case CMD_WRITE_BLOCK:
		return "CMD_WRITE_BLOCK"
	case CMD_WRITE_MULTIPLE_BLOCK:
		return "CMD_WRITE_MULTIPLE_BLOCK"
	case CMD_APP_CMD:
		return "CMD_APP_CMD"
	case ACMD_SET_BUS_WIDTH:
		return "ACMD_SET_BUS_WIDTH"
	case ACMD_SEND_SCR:
		return "ACMD_SEND_SCR"
	default:
		return fmt.Sprintf("Opcode(%d)", uint32(o))
	}
}

// Verbose returns a human-readable description of the opcode.
func (o Opcode) Verbose() string {
	return fmt.Sprintf("CMD%d (0x%02X) %s", uint32(o), uint32(o), o.String())
}

// IsDataTransfer reports whether the opcode moves a data block.
func (o Opcode) IsDataTransfer() bool {
	switch o {
	case CMD_READ_SINGLE_BLOCK, CMD_READ_MULTIPLE_BLOCK, CMD_WRITE_BLOCK, CMD_WRITE_MULTIPLE_BLOCK:
		return true
	}
	return false
}

// IsWrite reports whether the opcode moves data towards the card.
func (o Opcode) IsWrite() bool {
	return o == CMD_WRITE_BLOCK || o == CMD_WRITE_MULTIPLE_BLOCK
}
