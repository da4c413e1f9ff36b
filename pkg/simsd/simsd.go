/*
Package simsd simulates the coprocessor's SD host and the card behind it.

A Card implements ios.Opener for a single device path and answers the SD
host ioctls the way the coprocessor does: host register access through
query blocks, card reset with RCA assignment, clock control, slot status,
and SD bus commands carried by request descriptors. Data commands must
arrive through Ioctlv with DMA-aligned vectors.

The card side follows the SD state machine closely enough to catch
sequencing errors: commands are rejected before a reset, CMD7 moves the
card between stand-by and transfer, block commands need the transfer state
and matching host and card bus widths, and ACMD6 is only recognised after
CMD55. Rejected commands return ios.EINVAL, with the R1 error bits set in
the response when the card answered.
*/
package simsd

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gregLibert/sd-card/pkg/ios"
	"github.com/gregLibert/sd-card/pkg/logging"
	"github.com/gregLibert/sd-card/pkg/sdcmd"
)

// DevicePath is the device served by default.
const DevicePath = "/dev/sdio/slot0"

// Profile describes the simulated card.
type Profile struct {
	DevicePath  string
	RCA         uint16
	CID         sdcmd.CID
	HostControl uint8 // HOSTCONTROL value after power-on
}

// DefaultProfile returns the profile of a generic 2GB-class card.
func DefaultProfile() Profile {
	return Profile{
		DevicePath: DevicePath,
		RCA:        0xB368,
		CID: sdcmd.CID{
			ManufacturerID: 0x03,
			OEMID:          "SD",
			ProductName:    "SIMSD",
			Revision:       0x10,
			Serial:         0x0C0FFEE0,
			Year:           2010,
			Month:          6,
		},
	}
}

// Card is a simulated SD host with a card inserted.
type Card struct {
	mu      sync.Mutex
	profile Profile
	backend Backend
	csd     sdcmd.CSD
	log     *slog.Logger

	hostRegs [256]uint8
	clock    uint32
	channels int

	// Card state. rca is zero until the first reset.
	rca      uint16
	state    sdcmd.CardState
	blockLen uint32
	busWidth int
	appCmd   bool

	counts   map[uint32]int
	commands []sdcmd.Command
	faults   []fault
}

// New creates a card serving backend.
func New(backend Backend, profile Profile) *Card {
	if profile.DevicePath == "" {
		profile.DevicePath = DevicePath
	}
	if profile.RCA == 0 {
		profile.RCA = DefaultProfile().RCA
	}

	c := &Card{
		profile: profile,
		backend: backend,
		csd:     sdcmd.NewCSD(backend.SectorCount()),
		log:     logging.For(logging.ComponentSim),
		counts:  make(map[uint32]int),
	}
	c.hostRegs[sdcmd.HostControl] = profile.HostControl
	return c
}

// SetLogger replaces the simulator logger.
func (c *Card) SetLogger(l *slog.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = l.With("component", string(logging.ComponentSim))
}

// Backend returns the medium.
func (c *Card) Backend() Backend {
	return c.backend
}

// CSD returns the register the card reports.
func (c *Card) CSD() sdcmd.CSD {
	return c.csd
}

// Open implements ios.Opener.
func (c *Card) Open(path string, mode ios.Mode) (ios.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if path != c.profile.DevicePath {
		return nil, ios.ENOENT
	}
	if mode == ios.ModeNone || mode&^ios.ModeReadWrite != 0 {
		return nil, ios.EINVAL
	}
	c.channels++
	return &channel{card: c}, nil
}

// OpenChannels returns the number of channels not yet closed.
func (c *Card) OpenChannels() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels
}

// Count returns how many requests with the given ioctl code were received.
func (c *Card) Count(request uint32) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[request]
}

// Commands returns the SD commands received so far, in order.
func (c *Card) Commands() []sdcmd.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sdcmd.Command(nil), c.commands...)
}

// ResetLog clears the counters and the command log.
func (c *Card) ResetLog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[uint32]int)
	c.commands = nil
}

// State returns the card's CURRENT_STATE.
func (c *Card) State() sdcmd.CardState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BusWidth returns the card bus width (1 or 4).
func (c *Card) BusWidth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busWidth
}

// Clock returns the last SETCLK value.
func (c *Card) Clock() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock
}

// HostRegister returns a host controller register.
func (c *Card) HostRegister(reg uint8) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hostRegs[reg]
}

// hostStatus builds the IoctlGetStatus word.
func (c *Card) hostStatus() uint32 {
	s := sdcmd.StatusCardInserted
	if c.rca != 0 {
		s |= sdcmd.StatusCardInitialized
	}
	if c.csd.Structure == 1 {
		s |= sdcmd.StatusCardSDHC
	}
	return s
}

func (c *Card) reset() uint32 {
	c.rca = c.profile.RCA
	c.state = sdcmd.StateStby
	c.blockLen = sdcmd.BlockSize
	c.busWidth = 1
	c.appCmd = false
	c.log.Debug("card reset", "rca", fmt.Sprintf("%04X", c.rca))

	return uint32(c.rca)<<16 | uint32(sdcmd.NewCardStatus(c.state, sdcmd.StatusReadyForData))&0xFFFF
}

type channel struct {
	card   *Card
	closed bool
}

func (ch *channel) Ioctl(request uint32, in, out []byte) int32 {
	c := ch.card
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch.closed {
		return int32(ios.EINVAL)
	}
	c.counts[request]++
	return c.ioctl(request, in, out)
}

func (ch *channel) Ioctlv(request uint32, inCount, outCount int, vecs [][]byte) int32 {
	c := ch.card
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch.closed {
		return int32(ios.EINVAL)
	}
	c.counts[request]++
	return c.ioctlv(request, inCount, outCount, vecs)
}

func (ch *channel) Close() error {
	c := ch.card
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch.closed {
		return ios.EINVAL
	}
	ch.closed = true
	c.channels--
	return nil
}

func (c *Card) ioctl(request uint32, in, out []byte) int32 {
	if status, ok := c.fault(request, nil); ok {
		return status
	}

	switch request {
	case sdcmd.IoctlWriteHostRegister:
		q, err := sdcmd.ParseHostQuery(in)
		if err != nil {
			return int32(ios.EINVAL)
		}
		c.hostRegs[q.Register] = uint8(q.Value)
		return 0

	case sdcmd.IoctlReadHostRegister:
		q, err := sdcmd.ParseHostQuery(in)
		if err != nil || len(out) < 4 {
			return int32(ios.EINVAL)
		}
		sdcmd.PutWord(out, uint32(c.hostRegs[q.Register]))
		return 0

	case sdcmd.IoctlResetCard:
		if len(out) < 4 {
			return int32(ios.EINVAL)
		}
		sdcmd.PutWord(out, c.reset())
		return 0

	case sdcmd.IoctlSetClock:
		if len(in) < 4 {
			return int32(ios.EINVAL)
		}
		c.clock = sdcmd.Word(in)
		return 0

	case sdcmd.IoctlGetStatus:
		if len(out) < 4 {
			return int32(ios.EINVAL)
		}
		sdcmd.PutWord(out, c.hostStatus())
		return 0

	case sdcmd.IoctlSendCommand:
		cmd, err := sdcmd.ParseCommand(in)
		if err != nil || cmd.IsDMA || len(out) < sdcmd.ResponseSize {
			return int32(ios.EINVAL)
		}
		c.commands = append(c.commands, cmd)
		if status, ok := c.fault(request, &cmd); ok {
			return status
		}
		return c.command(cmd, nil, out)
	}

	c.log.Warn("unsupported ioctl", "request", sdcmd.IoctlName(request))
	return int32(ios.EINVAL)
}

func (c *Card) ioctlv(request uint32, inCount, outCount int, vecs [][]byte) int32 {
	if status, ok := c.fault(request, nil); ok {
		return status
	}
	if request != sdcmd.IoctlSendCommand || inCount != 2 || outCount != 1 || len(vecs) != 3 {
		return int32(ios.EINVAL)
	}
	for i, v := range vecs {
		if len(v) > 0 && !ios.Aligned(v) {
			c.log.Warn("misaligned DMA vector", "vector", i)
			return int32(ios.EINVAL)
		}
	}

	cmd, err := sdcmd.ParseCommand(vecs[0])
	if err != nil || !cmd.IsDMA || len(vecs[2]) < sdcmd.ResponseSize {
		return int32(ios.EINVAL)
	}
	if len(vecs[1]) != cmd.TransferLength() {
		c.log.Warn("DMA length mismatch", "have", len(vecs[1]), "want", cmd.TransferLength())
		return int32(ios.EINVAL)
	}
	c.commands = append(c.commands, cmd)
	if status, ok := c.fault(request, &cmd); ok {
		return status
	}
	return c.command(cmd, vecs[1], vecs[2])
}
