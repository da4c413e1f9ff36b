package sdio

import (
	"fmt"

	"github.com/gregLibert/sd-card/pkg/ios"
	"github.com/gregLibert/sd-card/pkg/logging"
)

// Startup opens the slot and brings the card up. Calling it on a running
// session is a no-op. On failure every resource is released.
func (d *Driver) Startup() error {
	if d.initialized {
		return nil
	}
	log := d.logger(logging.ComponentSDIO)

	heap, err := ios.NewHeap(d.heapSize)
	if err != nil {
		return fmt.Errorf("%w: create heap: %w", ErrOutOfResources, err)
	}
	d.heap = heap

	ch, err := d.opener.Open(d.path, ios.ModeRead)
	if err != nil {
		_ = d.Shutdown()
		return fmt.Errorf("%w: open %s: %w", ErrTransport, d.path, err)
	}
	if d.rec != nil {
		ch = d.rec.Wrap(ch)
	}
	d.ch = ch

	if err := d.initIO(); err != nil {
		_ = d.Shutdown()
		return err
	}

	d.initialized = true
	log.Info("card up", "device", d.path, "rca", fmt.Sprintf("%04X", d.rca))
	return nil
}

// Shutdown closes the channel and releases the heap. It never fails;
// problems while closing are logged.
func (d *Driver) Shutdown() error {
	log := d.logger(logging.ComponentSDIO)

	if d.ch != nil {
		if err := d.ch.Close(); err != nil {
			log.Warn("close channel", "error", err)
		}
	}
	if d.heap != nil {
		if n := d.heap.InUse(); n != 0 {
			log.Warn("heap not empty at shutdown", "bytes", n)
		}
		if err := d.heap.Destroy(); err != nil {
			log.Warn("destroy heap", "error", err)
		}
	}

	wasUp := d.initialized
	d.ch = nil
	d.heap = nil
	d.rca = 0
	d.cardStatus = 0
	d.initialized = false
	d.csd = nil
	d.cid = nil

	if wasUp {
		log.Info("card down")
	}
	return nil
}

// IsInserted reports whether the session completed bring-up.
func (d *Driver) IsInserted() bool {
	return d.initialized
}

// ClearStatus exists for interface compatibility and does nothing.
func (d *Driver) ClearStatus() error {
	return nil
}
