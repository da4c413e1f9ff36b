package simsd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gregLibert/sd-card/pkg/sdcmd"
)

// Backend errors.
var (
	ErrOutOfRange = errors.New("simsd: sector out of range")
	ErrReadOnly   = fmt.Errorf("simsd: read-only medium: %w", os.ErrPermission)
)

// Backend stores the sectors of the simulated card.
type Backend interface {
	// SectorCount returns the number of 512-byte sectors.
	SectorCount() uint64

	// ReadSector fills buf (one sector) from sector.
	ReadSector(sector uint64, buf []byte) error

	// WriteSector stores buf (one sector) at sector.
	WriteSector(sector uint64, buf []byte) error

	IsReadOnly() bool
	Sync() error
	Close() error
}

// MemoryBackend keeps the card image in memory.
type MemoryBackend struct {
	mu       sync.RWMutex
	data     []byte
	readOnly bool
}

// NewMemory creates a zero-filled in-memory card.
func NewMemory(sectors uint64) *MemoryBackend {
	return &MemoryBackend{data: make([]byte, sectors*sdcmd.BlockSize)}
}

func (m *MemoryBackend) SectorCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.data)) / sdcmd.BlockSize
}

func (m *MemoryBackend) ReadSector(sector uint64, buf []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	off, err := sectorOffset(sector, uint64(len(m.data)), buf)
	if err != nil {
		return err
	}
	copy(buf, m.data[off:off+sdcmd.BlockSize])
	return nil
}

func (m *MemoryBackend) WriteSector(sector uint64, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readOnly {
		return ErrReadOnly
	}
	off, err := sectorOffset(sector, uint64(len(m.data)), buf)
	if err != nil {
		return err
	}
	copy(m.data[off:off+sdcmd.BlockSize], buf)
	return nil
}

func (m *MemoryBackend) IsReadOnly() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readOnly
}

// SetReadOnly write-protects the medium.
func (m *MemoryBackend) SetReadOnly(readOnly bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly = readOnly
}

// Bytes exposes the image. Callers must not use it concurrently with the
// card.
func (m *MemoryBackend) Bytes() []byte {
	return m.data
}

func (m *MemoryBackend) Sync() error  { return nil }
func (m *MemoryBackend) Close() error { return nil }

// FileBackend serves the card from a raw image file.
type FileBackend struct {
	mu       sync.RWMutex
	file     *os.File
	size     uint64
	readOnly bool
}

// OpenImage opens an existing image. Trailing bytes beyond the last full
// sector are ignored.
func OpenImage(path string, readOnly bool) (*FileBackend, error) {
	flags := os.O_RDWR
	if readOnly {
		flags = os.O_RDONLY
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	return &FileBackend{
		file:     file,
		size:     uint64(stat.Size()) / sdcmd.BlockSize * sdcmd.BlockSize,
		readOnly: readOnly,
	}, nil
}

// CreateImage creates (or truncates) a zero-filled image of the given
// number of sectors.
func CreateImage(path string, sectors uint64) (*FileBackend, error) {
	if sectors == 0 {
		return nil, fmt.Errorf("simsd: image needs at least one sector")
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	size := sectors * sdcmd.BlockSize
	if err := file.Truncate(int64(size)); err != nil {
		file.Close()
		return nil, err
	}
	return &FileBackend{file: file, size: size}, nil
}

func (f *FileBackend) SectorCount() uint64 {
	return f.size / sdcmd.BlockSize
}

func (f *FileBackend) ReadSector(sector uint64, buf []byte) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	off, err := sectorOffset(sector, f.size, buf)
	if err != nil {
		return err
	}
	if f.file == nil {
		return os.ErrClosed
	}
	if _, err := f.file.ReadAt(buf[:sdcmd.BlockSize], int64(off)); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (f *FileBackend) WriteSector(sector uint64, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readOnly {
		return ErrReadOnly
	}
	off, err := sectorOffset(sector, f.size, buf)
	if err != nil {
		return err
	}
	if f.file == nil {
		return os.ErrClosed
	}
	_, err = f.file.WriteAt(buf[:sdcmd.BlockSize], int64(off))
	return err
}

func (f *FileBackend) IsReadOnly() bool {
	return f.readOnly
}

// Sync flushes writes to disk.
func (f *FileBackend) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readOnly || f.file == nil {
		return nil
	}
	return f.file.Sync()
}

// Close closes the image file.
func (f *FileBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

func sectorOffset(sector, size uint64, buf []byte) (uint64, error) {
	if len(buf) < sdcmd.BlockSize {
		return 0, io.ErrShortBuffer
	}
	if sector >= size/sdcmd.BlockSize {
		return 0, ErrOutOfRange
	}
	return sector * sdcmd.BlockSize, nil
}
