package simsd

import "github.com/gregLibert/sd-card/pkg/sdcmd"

type fault struct {
	request uint32
	opcode  sdcmd.Opcode
	command bool // match on opcode
	skip    int
	status  int32
}

// FailRequest makes every request with the given ioctl code fail with
// status.
func (c *Card) FailRequest(request uint32, status int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults = append(c.faults, fault{request: request, status: status})
}

// FailCommand makes SD command op fail with status, after letting skip
// matching commands through.
func (c *Card) FailCommand(op sdcmd.Opcode, skip int, status int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults = append(c.faults, fault{
		request: sdcmd.IoctlSendCommand,
		opcode:  op,
		command: true,
		skip:    skip,
		status:  status,
	})
}

// ClearFaults removes every injected fault.
func (c *Card) ClearFaults() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults = nil
}

// fault returns the injected status for a request, if any. Request-level
// faults are checked with cmd nil, command faults once the descriptor is
// decoded.
func (c *Card) fault(request uint32, cmd *sdcmd.Command) (int32, bool) {
	for i := range c.faults {
		f := &c.faults[i]
		if f.request != request || f.command != (cmd != nil) {
			continue
		}
		if f.command && f.opcode != cmd.Opcode {
			continue
		}
		if f.skip > 0 {
			f.skip--
			continue
		}
		c.log.Debug("injected fault", "request", sdcmd.IoctlName(request), "status", f.status)
		return f.status, true
	}
	return 0, false
}
