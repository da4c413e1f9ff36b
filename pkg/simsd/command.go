package simsd

import (
	"errors"
	"fmt"

	"github.com/gregLibert/sd-card/pkg/bits"
	"github.com/gregLibert/sd-card/pkg/ios"
	"github.com/gregLibert/sd-card/pkg/sdcmd"
)

// expectation is the command type and response class a command must be
// declared with.
type expectation struct {
	types    []sdcmd.CommandType
	response []sdcmd.ResponseType
}

var (
	acR1   = expectation{[]sdcmd.CommandType{sdcmd.TypeAC}, []sdcmd.ResponseType{sdcmd.ResponseR1}}
	acR2   = expectation{[]sdcmd.CommandType{sdcmd.TypeAC}, []sdcmd.ResponseType{sdcmd.ResponseR2}}
	acR1B  = expectation{[]sdcmd.CommandType{sdcmd.TypeAC}, []sdcmd.ResponseType{sdcmd.ResponseR1B, sdcmd.ResponseNone}}
	dataR1 = expectation{[]sdcmd.CommandType{sdcmd.TypeAC, sdcmd.TypeADTC}, []sdcmd.ResponseType{sdcmd.ResponseR1}}
	bcNone = expectation{[]sdcmd.CommandType{sdcmd.TypeBC}, []sdcmd.ResponseType{sdcmd.ResponseNone}}
)

func (e expectation) accepts(cmd sdcmd.Command) bool {
	return contains(e.types, cmd.Type) && contains(e.response, cmd.Response)
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// command executes one SD bus command. data is the DMA buffer of block
// commands, rsp receives the response descriptor.
func (c *Card) command(cmd sdcmd.Command, data, rsp []byte) int32 {
	log := c.log.With("cmd", cmd.Opcode.String(), "arg", fmt.Sprintf("%08X", cmd.Arg))

	if c.rca == 0 {
		log.Debug("command before reset")
		return int32(ios.EINVAL)
	}

	app := c.appCmd
	c.appCmd = false

	if app && cmd.Opcode == sdcmd.ACMD_SET_BUS_WIDTH {
		return c.setBusWidth(cmd, rsp)
	}

	received := c.state
	var exp expectation
	switch cmd.Opcode {
	case sdcmd.CMD_GO_IDLE_STATE:
		exp = bcNone
	case sdcmd.CMD_SELECT_CARD:
		exp = acR1B
	case sdcmd.CMD_SEND_CSD, sdcmd.CMD_SEND_CID:
		exp = acR2
	case sdcmd.CMD_SEND_STATUS, sdcmd.CMD_SET_BLOCKLEN, sdcmd.CMD_APP_CMD:
		exp = acR1
	case sdcmd.CMD_READ_SINGLE_BLOCK, sdcmd.CMD_READ_MULTIPLE_BLOCK, sdcmd.CMD_WRITE_BLOCK, sdcmd.CMD_WRITE_MULTIPLE_BLOCK:
		exp = dataR1
	default:
		log.Debug("illegal command")
		return c.r1(rsp, received, sdcmd.StatusIllegalCommand)
	}

	if !exp.accepts(cmd) {
		log.Warn("wrong command type or response class", "type", cmd.Type.String(), "rsp", cmd.Response.String())
		return int32(ios.EINVAL)
	}

	switch cmd.Opcode {
	case sdcmd.CMD_GO_IDLE_STATE:
		c.state = sdcmd.StateIdle
		c.rca = 0
		return 0

	case sdcmd.CMD_SELECT_CARD:
		return c.selectCard(cmd, rsp)

	case sdcmd.CMD_SEND_CSD, sdcmd.CMD_SEND_CID:
		if !c.addressed(cmd) {
			return int32(ios.EINVAL)
		}
		if c.state != sdcmd.StateStby {
			return c.r1(rsp, received, sdcmd.StatusIllegalCommand)
		}
		reg := c.csd.Raw
		if cmd.Opcode == sdcmd.CMD_SEND_CID {
			reg = c.profile.CID.Bytes()
		}
		copy(rsp, reg[:])
		return 0

	case sdcmd.CMD_SEND_STATUS:
		if !c.addressed(cmd) {
			return int32(ios.EINVAL)
		}
		return c.r1(rsp, received, sdcmd.StatusReadyForData)

	case sdcmd.CMD_SET_BLOCKLEN:
		if c.state != sdcmd.StateTran {
			return c.r1(rsp, received, sdcmd.StatusIllegalCommand)
		}
		if cmd.Arg != sdcmd.BlockSize {
			return c.r1(rsp, received, sdcmd.StatusBlockLenError)
		}
		c.blockLen = cmd.Arg
		return c.r1(rsp, received, 0)

	case sdcmd.CMD_APP_CMD:
		if !c.addressed(cmd) {
			return int32(ios.EINVAL)
		}
		c.appCmd = true
		return c.r1(rsp, received, sdcmd.StatusAppCmd)
	}

	return c.transfer(cmd, data, rsp)
}

// r1 writes an R1 response. Error flags make the request fail.
func (c *Card) r1(rsp []byte, state sdcmd.CardState, flags sdcmd.CardStatus) int32 {
	status := sdcmd.NewCardStatus(state, flags)
	clear(rsp)
	sdcmd.PutWord(rsp, uint32(status))
	if status.IsError() {
		c.log.Debug("card error", "status", status.Verbose())
		return int32(ios.EINVAL)
	}
	return 0
}

// addressed reports whether the command carries this card's RCA. Other
// addresses get no response at all.
func (c *Card) addressed(cmd sdcmd.Command) bool {
	return uint16(cmd.Arg>>16) == c.rca
}

func (c *Card) selectCard(cmd sdcmd.Command, rsp []byte) int32 {
	received := c.state
	switch {
	case cmd.Arg>>16 == 0:
		if c.state == sdcmd.StateTran {
			c.state = sdcmd.StateStby
		}
		return 0
	case !c.addressed(cmd):
		c.state = sdcmd.StateStby
		return int32(ios.EINVAL)
	case c.state != sdcmd.StateStby && c.state != sdcmd.StateTran:
		return c.r1(rsp, received, sdcmd.StatusIllegalCommand)
	}
	c.state = sdcmd.StateTran
	return c.r1(rsp, received, 0)
}

func (c *Card) setBusWidth(cmd sdcmd.Command, rsp []byte) int32 {
	received := c.state
	if !acR1.accepts(cmd) {
		return int32(ios.EINVAL)
	}
	if c.state != sdcmd.StateTran {
		return c.r1(rsp, received, sdcmd.StatusIllegalCommand|sdcmd.StatusAppCmd)
	}

	switch cmd.Arg & 3 {
	case 0:
		c.busWidth = 1
	case 2:
		c.busWidth = 4
	default:
		return c.r1(rsp, received, sdcmd.StatusError|sdcmd.StatusAppCmd)
	}
	c.log.Debug("card bus width", "width", c.busWidth)
	return c.r1(rsp, received, sdcmd.StatusAppCmd)
}

func (c *Card) hostBusWidth() int {
	if bits.IsSet(c.hostRegs[sdcmd.HostControl], sdcmd.HostControlWidthBit) {
		return 4
	}
	return 1
}

func (c *Card) transfer(cmd sdcmd.Command, data, rsp []byte) int32 {
	received := c.state
	if data == nil {
		// Data commands need the DMA vector.
		return int32(ios.EINVAL)
	}
	if c.state != sdcmd.StateTran {
		return c.r1(rsp, received, sdcmd.StatusIllegalCommand)
	}
	if cmd.BlockSize != c.blockLen {
		return c.r1(rsp, received, sdcmd.StatusBlockLenError)
	}
	if c.clock == 0 || c.hostBusWidth() != c.busWidth {
		c.log.Warn("data phase failed", "clock", c.clock, "host_width", c.hostBusWidth(), "card_width", c.busWidth)
		return int32(ios.EINVAL)
	}
	if cmd.Arg%sdcmd.BlockSize != 0 {
		return c.r1(rsp, received, sdcmd.StatusAddressError)
	}

	first := uint64(cmd.Arg) / sdcmd.BlockSize
	for i := uint64(0); i < uint64(cmd.BlockCount); i++ {
		block := data[i*sdcmd.BlockSize : (i+1)*sdcmd.BlockSize]

		var err error
		if cmd.Opcode.IsWrite() {
			err = c.backend.WriteSector(first+i, block)
		} else {
			err = c.backend.ReadSector(first+i, block)
		}

		switch {
		case err == nil:
		case errors.Is(err, ErrOutOfRange):
			return c.r1(rsp, received, sdcmd.StatusOutOfRange)
		case errors.Is(err, ErrReadOnly):
			return c.r1(rsp, received, sdcmd.StatusWPViolation)
		default:
			c.log.Error("backend failure", "sector", first+i, "error", err)
			return c.r1(rsp, received, sdcmd.StatusCardECCFailed)
		}
	}
	return c.r1(rsp, received, sdcmd.StatusReadyForData)
}
