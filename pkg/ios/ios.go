/*
Package ios models the request/reply interface of the I/O coprocessor that
owns the SD slot.

The coprocessor exposes devices as paths ("/dev/sdio/slot0"). A client opens
a path, receives a logical channel, and issues blocking control requests on
it:

  - Ioctl: one input buffer, one output buffer.
  - Ioctlv: a vector list split into inCount input vectors followed by
    outCount output vectors. Vectors are handed to the coprocessor by
    address, so they must stay in place for the whole call and respect the
    DMA alignment (Align).

Every request returns a signed status. Negative values are failures and map
onto Errno; non-negative values are request specific.

The package also provides Heap, a bounded arena handing out Align-aligned
buffers, which is how clients obtain DMA-safe memory.
*/
package ios

import "fmt"

// Align is the DMA alignment, in bytes, required for every vector.
const Align = 32

// Mode selects the access requested when opening a device.
type Mode uint32

const (
	ModeNone      Mode = 0
	ModeRead      Mode = 1
	ModeWrite     Mode = 2
	ModeReadWrite Mode = ModeRead | ModeWrite
)

// Opener opens logical channels on coprocessor devices.
type Opener interface {
	Open(path string, mode Mode) (Channel, error)
}

// Channel is an open logical channel. All calls block until the
// coprocessor replies.
type Channel interface {
	Ioctl(request uint32, in, out []byte) int32
	Ioctlv(request uint32, inCount, outCount int, vecs [][]byte) int32
	Close() error
}

// Errno is a negative coprocessor status.
type Errno int32

// Coprocessor IPC status codes.
const (
	EINVAL     Errno = -4
	ENOHEAP    Errno = -5
	ENOENT     Errno = -6
	EQUEUEFULL Errno = -8
	ENOMEM     Errno = -22
)

func (e Errno) Error() string {
	switch e {
	case EINVAL:
		return "ios: invalid argument"
	case ENOHEAP:
		return "ios: no heap"
	case ENOENT:
		return "ios: no such device"
	case EQUEUEFULL:
		return "ios: request queue full"
	case ENOMEM:
		return "ios: out of memory"
	default:
		return fmt.Sprintf("ios: status %d", int32(e))
	}
}

// Error converts a request status into an error. Non-negative statuses
// are successes and yield nil.
func Error(ret int32) error {
	if ret >= 0 {
		return nil
	}
	return Errno(ret)
}
