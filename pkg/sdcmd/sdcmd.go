/*
Package sdcmd implements the wire formats exchanged with the coprocessor's
SD host driver ("/dev/sdio/slot0").

# Requests

Every SD bus command travels as a fixed 36-byte request descriptor (nine
big-endian 32-bit words) sent with IoctlSendCommand:

	cmd | cmd_type | rsp_type | arg | blk_cnt | blk_size | dma_addr | isdma | pad

The command type and the expected response class must match the command:
an addressed command declared with the wrong response class is rejected by
the host controller. Data-bearing commands set isdma and carry the data
buffer as a separate DMA vector; dma_addr itself is left zero.

The reply is a 16-byte response descriptor (four big-endian words). Short
responses (R1, R1b, R3, R6) occupy the first word; R2 fills all four with a
128-bit register (CSD or CID).

# Host registers

Host controller registers are reached through IoctlReadHostRegister and
IoctlWriteHostRegister with a 24-byte query block (see HostQuery).

# Card registers

CSD and CID are 128-bit blocks. Byte i of the block holds register bits
[127-8i : 120-8i], so READ_BL_LEN (bits 83:80) is the low nibble of byte 5.
*/
package sdcmd

// BlockSize is the only transfer granularity used with the card.
const BlockSize = 512

// Ioctl request codes understood by the SD host driver.
const (
	IoctlWriteHostRegister   uint32 = 0x01
	IoctlReadHostRegister    uint32 = 0x02
	IoctlReadCardRegister    uint32 = 0x03
	IoctlResetCard           uint32 = 0x04
	IoctlWriteCardRegister   uint32 = 0x05
	IoctlSetClock            uint32 = 0x06
	IoctlSendCommand         uint32 = 0x07
	IoctlSetBusWidth         uint32 = 0x08
	IoctlReadMemCardRegister uint32 = 0x09
	IoctlWriteMemCardReg     uint32 = 0x0A
	IoctlGetStatus           uint32 = 0x0B
	IoctlGetOCR              uint32 = 0x0C
	IoctlReadData            uint32 = 0x0D
	IoctlWriteData           uint32 = 0x0E
)

// IoctlName returns a short name for an ioctl request code.
func IoctlName(request uint32) string {
	switch request {
	case IoctlWriteHostRegister:
		return "WRITEHCREG"
	case IoctlReadHostRegister:
		return "READHCREG"
	case IoctlReadCardRegister:
		return "READCREG"
	case IoctlResetCard:
		return "RESETCARD"
	case IoctlWriteCardRegister:
		return "WRITECREG"
	case IoctlSetClock:
		return "SETCLK"
	case IoctlSendCommand:
		return "SENDCMD"
	case IoctlSetBusWidth:
		return "SETBUSWIDTH"
	case IoctlReadMemCardRegister:
		return "READMCREG"
	case IoctlWriteMemCardReg:
		return "WRITEMCREG"
	case IoctlGetStatus:
		return "GETSTATUS"
	case IoctlGetOCR:
		return "GETOCR"
	case IoctlReadData:
		return "READDATA"
	case IoctlWriteData:
		return "WRITEDATA"
	default:
		return "UNKNOWN"
	}
}

// Host controller registers and flags.
const (
	HostControl     uint8 = 0x28
	HostControl4Bit uint8 = 0x02

	// HostControlWidthBit is HostControl4Bit as a 1-indexed bit number.
	HostControlWidthBit uint = 2
)

// Host status bits returned by IoctlGetStatus.
const (
	StatusCardInserted    uint32 = 0x00000001
	StatusCardInitialized uint32 = 0x00010000
	StatusCardSDHC        uint32 = 0x00100000
)
