package sdio

import (
	"fmt"

	"github.com/gregLibert/sd-card/pkg/bits"
	"github.com/gregLibert/sd-card/pkg/logging"
	"github.com/gregLibert/sd-card/pkg/sdcmd"
)

// HostRegister reads one byte-wide host controller register.
func (d *Driver) HostRegister(reg uint8) (uint8, error) {
	out := make([]byte, 4)
	if err := d.hostQuery(sdcmd.IoctlReadHostRegister, sdcmd.NewHostQuery(reg, 0), out); err != nil {
		return 0, err
	}
	return uint8(sdcmd.Word(out)), nil
}

// SetHostRegister writes one byte-wide host controller register.
func (d *Driver) SetHostRegister(reg, value uint8) error {
	return d.hostQuery(sdcmd.IoctlWriteHostRegister, sdcmd.NewHostQuery(reg, value), nil)
}

func (d *Driver) hostQuery(request uint32, q sdcmd.HostQuery, out []byte) error {
	if d.ch == nil || d.heap == nil {
		return ErrNotOpen
	}

	block, err := d.heap.Alloc(sdcmd.HostQuerySize)
	if err != nil {
		return fmt.Errorf("%w: host query: %w", ErrOutOfResources, err)
	}
	defer d.free(block)

	if err := q.Encode(block); err != nil {
		return err
	}
	return checkStatus(sdcmd.IoctlName(request), d.ch.Ioctl(request, block, out))
}

// setHostBusWidth switches the host side of the bus between 1 and 4 data
// lines. Only the 4-bit flag of HOSTCONTROL is touched.
func (d *Driver) setHostBusWidth(width int) error {
	v, err := d.HostRegister(sdcmd.HostControl)
	if err != nil {
		return fmt.Errorf("read host control: %w", err)
	}

	v = bits.Assign(v, sdcmd.HostControlWidthBit, width == 4)

	d.logger(logging.ComponentHost).Debug("host bus width", "width", width, "hostcontrol", fmt.Sprintf("%02X", v))
	if err := d.SetHostRegister(sdcmd.HostControl, v); err != nil {
		return fmt.Errorf("write host control: %w", err)
	}
	return nil
}

func (d *Driver) setClock(clock uint32) error {
	if d.ch == nil {
		return ErrNotOpen
	}
	in := make([]byte, 4)
	sdcmd.PutWord(in, clock)
	return checkStatus(sdcmd.IoctlName(sdcmd.IoctlSetClock), d.ch.Ioctl(sdcmd.IoctlSetClock, in, nil))
}

// resetCard resets the card and records the RCA it reports.
func (d *Driver) resetCard() error {
	if d.ch == nil {
		return ErrNotOpen
	}

	out := make([]byte, 4)
	if err := checkStatus(sdcmd.IoctlName(sdcmd.IoctlResetCard), d.ch.Ioctl(sdcmd.IoctlResetCard, nil, out)); err != nil {
		return err
	}

	status := sdcmd.Word(out)
	d.rca = uint16(status >> 16)
	d.cardStatus = uint16(status)
	d.logger(logging.ComponentHost).Debug("card reset", "rca", fmt.Sprintf("%04X", d.rca), "status", fmt.Sprintf("%04X", d.cardStatus))
	return nil
}

// HostStatus returns the host's slot status word (see sdcmd.StatusCard*).
func (d *Driver) HostStatus() (uint32, error) {
	if d.ch == nil {
		return 0, ErrNotOpen
	}

	out := make([]byte, 4)
	if err := checkStatus(sdcmd.IoctlName(sdcmd.IoctlGetStatus), d.ch.Ioctl(sdcmd.IoctlGetStatus, nil, out)); err != nil {
		return 0, err
	}
	return sdcmd.Word(out), nil
}
