package sdio

import (
	"errors"
	"fmt"

	"github.com/gregLibert/sd-card/pkg/ios"
)

var (
	// ErrOutOfResources is returned when the session heap cannot provide a
	// descriptor or the staging buffer.
	ErrOutOfResources = errors.New("sdio: out of resources")

	// ErrInvalidArgument is returned for a missing or undersized buffer.
	ErrInvalidArgument = errors.New("sdio: invalid argument")

	// ErrTransport is the root of every coprocessor-side failure.
	ErrTransport = errors.New("sdio: transport failure")

	// ErrNotOpen is returned when no session is open.
	ErrNotOpen = fmt.Errorf("%w: session not open", ErrTransport)
)

// StatusError is a negative status returned by the coprocessor.
// It matches both ErrTransport and the corresponding ios.Errno.
type StatusError struct {
	Op   string
	Code int32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sdio: %s: %v", e.Op, ios.Errno(e.Code))
}

func (e *StatusError) Unwrap() []error {
	return []error{ErrTransport, ios.Errno(e.Code)}
}

// checkStatus returns nil for non-negative statuses.
func checkStatus(op string, ret int32) error {
	if ret >= 0 {
		return nil
	}
	return &StatusError{Op: op, Code: ret}
}
