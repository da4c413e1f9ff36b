package sdio

import (
	"log/slog"

	"github.com/gregLibert/sd-card/pkg/ios"
	"github.com/gregLibert/sd-card/pkg/logging"
	"github.com/gregLibert/sd-card/pkg/sdcmd"
	"github.com/rs/xid"
)

const (
	// DefaultDevicePath is the coprocessor device of the front SD slot.
	DefaultDevicePath = "/dev/sdio/slot0"
	// DefaultHeapSize is the session heap size.
	DefaultHeapSize = 0x400
)

// Options configures a Driver. Zero values select the defaults.
type Options struct {
	DevicePath string
	HeapSize   int
	Logger     *slog.Logger
	// Recorder, when set, captures every exchange on the channel.
	Recorder *Recorder
}

// Driver is one session with the SD slot.
type Driver struct {
	opener   ios.Opener
	path     string
	heapSize int
	rec      *Recorder

	heap        *ios.Heap
	ch          ios.Channel
	rca         uint16
	cardStatus  uint16
	initialized bool

	csd *sdcmd.CSD
	cid *sdcmd.CID

	id  xid.ID
	log *slog.Logger
}

// New creates a driver using opener to reach the coprocessor.
// Nothing is opened until Startup.
func New(opener ios.Opener, opts Options) *Driver {
	d := &Driver{
		opener:   opener,
		path:     opts.DevicePath,
		heapSize: opts.HeapSize,
		rec:      opts.Recorder,
		id:       xid.New(),
	}
	if d.path == "" {
		d.path = DefaultDevicePath
	}
	if d.heapSize <= 0 {
		d.heapSize = DefaultHeapSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	d.log = logger.With("session", d.id.String())
	return d
}

// ID identifies the session in logs.
func (d *Driver) ID() xid.ID {
	return d.id
}

// DevicePath returns the coprocessor device the driver opens.
func (d *Driver) DevicePath() string {
	return d.path
}

// Heap returns the session heap, or nil outside a session.
func (d *Driver) Heap() *ios.Heap {
	return d.heap
}

// RCA returns the relative card address. It is meaningful only while
// IsInserted reports true.
func (d *Driver) RCA() uint16 {
	return d.rca
}

func (d *Driver) logger(c logging.Component) *slog.Logger {
	return d.log.With("component", string(c))
}

func (d *Driver) free(buf []byte) {
	if err := d.heap.Free(buf); err != nil {
		d.logger(logging.ComponentIOS).Warn("heap free failed", "error", err)
	}
}
