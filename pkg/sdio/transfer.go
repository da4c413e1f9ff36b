package sdio

import (
	"fmt"

	"github.com/gregLibert/sd-card/pkg/logging"
	"github.com/gregLibert/sd-card/pkg/sdcmd"
)

// ReadSectors reads count sectors starting at sector into buf, which must
// hold count*512 bytes. Sectors are read in ascending order and the
// transfer stops at the first failure; sectors already read stay in buf.
func (d *Driver) ReadSectors(sector, count uint32, buf []byte) error {
	return d.transfer(sdcmd.CMD_READ_MULTIPLE_BLOCK, sector, count, buf)
}

// WriteSectors writes count sectors from buf starting at sector. The
// transfer stops at the first failure; sectors already written are not
// rolled back.
func (d *Driver) WriteSectors(sector, count uint32, buf []byte) error {
	return d.transfer(sdcmd.CMD_WRITE_MULTIPLE_BLOCK, sector, count, buf)
}

func (d *Driver) transfer(op sdcmd.Opcode, sector, count uint32, buf []byte) error {
	if buf == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidArgument)
	}
	if uint64(len(buf)) < uint64(count)*sdcmd.BlockSize {
		return fmt.Errorf("%w: buffer of %d bytes for %d sectors", ErrInvalidArgument, len(buf), count)
	}

	if err := d.selectCard(); err != nil {
		return fmt.Errorf("select card: %w", err)
	}

	staging, err := d.heap.Alloc(sdcmd.BlockSize)
	if err != nil {
		d.abortSelected()
		return fmt.Errorf("%w: staging buffer: %w", ErrOutOfResources, err)
	}

	log := d.logger(logging.ComponentTransfer)
	write := op.IsWrite()

	var result error
	for i := uint32(0); i < count; i++ {
		chunk := buf[i*sdcmd.BlockSize : (i+1)*sdcmd.BlockSize]
		cmd := sdcmd.Command{
			Opcode:     op,
			Type:       sdcmd.TypeAC,
			Response:   sdcmd.ResponseR1,
			Arg:        (sector + i) * sdcmd.BlockSize,
			BlockCount: 1,
			BlockSize:  sdcmd.BlockSize,
		}

		if write {
			copy(staging, chunk)
		}
		if _, err := d.sendCommand(cmd, staging, nil); err != nil {
			result = fmt.Errorf("sector %d: %w", sector+i, err)
			break
		}
		if !write {
			copy(chunk, staging)
		}
	}

	if err := d.deselectCard(); err != nil {
		log.Warn("deselect after transfer", "error", err)
	}
	d.free(staging)

	if result != nil {
		log.Warn("transfer failed", "op", op.String(), "sector", sector, "count", count, "error", result)
		return result
	}
	log.Debug("transfer", "op", op.String(), "sector", sector, "count", count)
	return nil
}

// SectorSize is the transfer granularity.
func (d *Driver) SectorSize() int {
	return sdcmd.BlockSize
}

// SectorCount returns the card capacity in sectors, from the CSD.
func (d *Driver) SectorCount() (uint64, error) {
	csd, err := d.CSD()
	if err != nil {
		return 0, err
	}
	return csd.Sectors(), nil
}
