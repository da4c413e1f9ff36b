package sdio

import (
	"fmt"

	"github.com/gregLibert/sd-card/pkg/logging"
	"github.com/gregLibert/sd-card/pkg/sdcmd"
)

// sendCommand issues one SD bus command.
//
// The request and response descriptors come from the session heap and are
// released on every path. When buf is non-nil the command is flagged as DMA
// and buf travels as the data vector; it must hold cmd.TransferLength()
// bytes. The response is copied to reply only when reply fits in a response
// descriptor; longer replies are left untouched.
//
// The coprocessor status is returned as is, with an error when negative.
func (d *Driver) sendCommand(cmd sdcmd.Command, buf, reply []byte) (int32, error) {
	if d.ch == nil || d.heap == nil {
		return 0, ErrNotOpen
	}

	var payload []byte
	cmd.IsDMA = buf != nil
	if cmd.IsDMA {
		n := cmd.TransferLength()
		if len(buf) < n {
			return 0, fmt.Errorf("%w: data buffer %d bytes, command moves %d", ErrInvalidArgument, len(buf), n)
		}
		payload = buf[:n]
	}

	req, err := d.heap.Alloc(sdcmd.RequestSize)
	if err != nil {
		return 0, fmt.Errorf("%w: request descriptor: %w", ErrOutOfResources, err)
	}
	defer d.free(req)

	rsp, err := d.heap.Alloc(sdcmd.ResponseSize)
	if err != nil {
		return 0, fmt.Errorf("%w: response descriptor: %w", ErrOutOfResources, err)
	}
	defer d.free(rsp)

	clear(rsp)
	if err := cmd.Encode(req); err != nil {
		return 0, err
	}

	var ret int32
	if cmd.IsDMA {
		ret = d.ch.Ioctlv(sdcmd.IoctlSendCommand, 2, 1, [][]byte{req, payload, rsp})
	} else {
		ret = d.ch.Ioctl(sdcmd.IoctlSendCommand, req, rsp)
	}

	if reply != nil && len(reply) <= sdcmd.ResponseSize {
		copy(reply, rsp)
	}

	d.logger(logging.ComponentSDIO).Debug("command", "cmd", cmd.Opcode.String(), "arg", fmt.Sprintf("%08X", cmd.Arg), "ret", ret)
	return ret, checkStatus(cmd.Opcode.String(), ret)
}
