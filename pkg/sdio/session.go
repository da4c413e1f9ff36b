package sdio

import (
	"fmt"

	"github.com/gregLibert/sd-card/pkg/logging"
	"github.com/gregLibert/sd-card/pkg/sdcmd"
)

func (d *Driver) selectCard() error {
	_, err := d.sendCommand(sdcmd.NewCommand(sdcmd.CMD_SELECT_CARD, sdcmd.TypeAC, sdcmd.ResponseR1B, sdcmd.RCAArg(d.rca)), nil, nil)
	return err
}

func (d *Driver) deselectCard() error {
	_, err := d.sendCommand(sdcmd.NewCommand(sdcmd.CMD_DESELECT_CARD, sdcmd.TypeAC, sdcmd.ResponseR1B, 0), nil, nil)
	return err
}

func (d *Driver) setBlockLength(length uint32) error {
	_, err := d.sendCommand(sdcmd.NewCommand(sdcmd.CMD_SET_BLOCKLEN, sdcmd.TypeAC, sdcmd.ResponseR1, length), nil, nil)
	return err
}

// setCardBusWidth sends APP_CMD then SET_BUS_WIDTH (2 = 4 bits, 0 = 1 bit).
func (d *Driver) setCardBusWidth(width int) error {
	if _, err := d.sendCommand(sdcmd.NewCommand(sdcmd.CMD_APP_CMD, sdcmd.TypeAC, sdcmd.ResponseR1, sdcmd.RCAArg(d.rca)), nil, nil); err != nil {
		return err
	}

	var arg uint32
	if width == 4 {
		arg = 2
	}
	_, err := d.sendCommand(sdcmd.NewCommand(sdcmd.ACMD_SET_BUS_WIDTH, sdcmd.TypeAC, sdcmd.ResponseR1, arg), nil, nil)
	return err
}

// initIO runs the bring-up sequence and leaves the card deselected.
func (d *Driver) initIO() error {
	log := d.logger(logging.ComponentSDIO)

	if err := d.resetCard(); err != nil {
		return fmt.Errorf("reset card: %w", err)
	}
	if err := d.setHostBusWidth(4); err != nil {
		return fmt.Errorf("host bus width: %w", err)
	}
	if err := d.setClock(1); err != nil {
		return fmt.Errorf("set clock: %w", err)
	}
	if err := d.selectCard(); err != nil {
		return fmt.Errorf("select card: %w", err)
	}
	log.Debug("card selected", "rca", fmt.Sprintf("%04X", d.rca))

	if err := d.setBlockLength(sdcmd.BlockSize); err != nil {
		d.abortSelected()
		return fmt.Errorf("set block length: %w", err)
	}
	if err := d.setCardBusWidth(4); err != nil {
		d.abortSelected()
		return fmt.Errorf("card bus width: %w", err)
	}

	if err := d.deselectCard(); err != nil {
		return fmt.Errorf("deselect card: %w", err)
	}
	log.Debug("card ready")
	return nil
}

// abortSelected deselects the card on a failure path. The original error
// wins, so a deselect failure is only logged.
func (d *Driver) abortSelected() {
	if err := d.deselectCard(); err != nil {
		d.logger(logging.ComponentSDIO).Warn("deselect after failure", "error", err)
	}
}

// CSD reads the Card Specific Data register. The result is cached for the
// session.
func (d *Driver) CSD() (sdcmd.CSD, error) {
	if d.csd != nil {
		return *d.csd, nil
	}

	reg, err := d.readRegister(sdcmd.CMD_SEND_CSD)
	if err != nil {
		return sdcmd.CSD{}, err
	}
	csd, err := sdcmd.ParseCSD(reg)
	if err != nil {
		return sdcmd.CSD{}, err
	}
	d.csd = &csd
	return csd, nil
}

// CID reads the Card Identification register. The result is cached for
// the session.
func (d *Driver) CID() (sdcmd.CID, error) {
	if d.cid != nil {
		return *d.cid, nil
	}

	reg, err := d.readRegister(sdcmd.CMD_SEND_CID)
	if err != nil {
		return sdcmd.CID{}, err
	}
	cid, err := sdcmd.ParseCID(reg)
	if err != nil {
		return sdcmd.CID{}, err
	}
	d.cid = &cid
	return cid, nil
}

// readRegister fetches a 128-bit register. The card must be in stand-by,
// which is where it rests between operations.
func (d *Driver) readRegister(op sdcmd.Opcode) ([]byte, error) {
	if !d.initialized {
		return nil, ErrNotOpen
	}

	reply := make([]byte, sdcmd.RegisterSize)
	if _, err := d.sendCommand(sdcmd.NewCommand(op, sdcmd.TypeAC, sdcmd.ResponseR2, sdcmd.RCAArg(d.rca)), nil, reply); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reply, nil
}

// Status sends SEND_STATUS and returns the card status.
func (d *Driver) Status() (sdcmd.CardStatus, error) {
	if !d.initialized {
		return 0, ErrNotOpen
	}

	reply := make([]byte, 4)
	if _, err := d.sendCommand(sdcmd.NewCommand(sdcmd.CMD_SEND_STATUS, sdcmd.TypeAC, sdcmd.ResponseR1, sdcmd.RCAArg(d.rca)), nil, reply); err != nil {
		return 0, fmt.Errorf("%s: %w", sdcmd.CMD_SEND_STATUS, err)
	}
	return sdcmd.CardStatus(sdcmd.Word(reply)), nil
}
