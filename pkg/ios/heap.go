package ios

import (
	"sort"
	"sync"
	"unsafe"
)

// Heap is a bounded arena of DMA-safe memory.
//
// Every allocation starts on an Align boundary and its footprint is rounded
// up to a multiple of Align, so a 0x400-byte heap holds at most 32 blocks.
// Allocation is first-fit. Memory is not cleared on allocation.
type Heap struct {
	mu     sync.Mutex
	arena  []byte
	blocks []block // sorted by offset
	dead   bool
}

type block struct {
	off, size int
}

// NewHeap creates an arena of size bytes, rounded up to Align.
func NewHeap(size int) (*Heap, error) {
	if size <= 0 {
		return nil, EINVAL
	}
	size = roundUp(size)

	raw := make([]byte, size+Align)
	pad := int(-uintptr(unsafe.Pointer(&raw[0])) & (Align - 1))

	return &Heap{arena: raw[pad : pad+size : pad+size]}, nil
}

// Size returns the arena capacity in bytes.
func (h *Heap) Size() int {
	return len(h.arena)
}

// InUse returns the number of arena bytes currently allocated, including
// alignment padding.
func (h *Heap) InUse() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, b := range h.blocks {
		n += b.size
	}
	return n
}

// Alloc returns an aligned buffer of exactly size bytes.
// It fails with ENOMEM when no gap is large enough.
func (h *Heap) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, EINVAL
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dead {
		return nil, ENOHEAP
	}

	need := roundUp(size)
	off := 0
	at := len(h.blocks)
	for i, b := range h.blocks {
		if b.off-off >= need {
			at = i
			break
		}
		off = b.off + b.size
	}
	if at == len(h.blocks) && len(h.arena)-off < need {
		return nil, ENOMEM
	}

	h.blocks = append(h.blocks, block{})
	copy(h.blocks[at+1:], h.blocks[at:])
	h.blocks[at] = block{off: off, size: need}

	return h.arena[off : off+size : off+size], nil
}

// Free releases a buffer obtained from Alloc.
func (h *Heap) Free(buf []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dead {
		return ENOHEAP
	}
	off, ok := h.offsetOf(buf)
	if !ok {
		return EINVAL
	}

	i := sort.Search(len(h.blocks), func(i int) bool { return h.blocks[i].off >= off })
	if i == len(h.blocks) || h.blocks[i].off != off {
		return EINVAL
	}
	h.blocks = append(h.blocks[:i], h.blocks[i+1:]...)
	return nil
}

// Destroy releases the arena. Outstanding buffers must not be used after.
func (h *Heap) Destroy() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dead {
		return ENOHEAP
	}
	h.dead = true
	h.blocks = nil
	h.arena = nil
	return nil
}

func (h *Heap) offsetOf(buf []byte) (int, bool) {
	if cap(buf) == 0 || len(h.arena) == 0 {
		return 0, false
	}
	base := uintptr(unsafe.Pointer(&h.arena[0]))
	p := uintptr(unsafe.Pointer(&buf[:1][0]))
	if p < base || p >= base+uintptr(len(h.arena)) {
		return 0, false
	}
	return int(p - base), true
}

// Aligned reports whether buf starts on an Align boundary.
// Empty buffers are considered aligned.
func Aligned(buf []byte) bool {
	if cap(buf) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&buf[:1][0]))&(Align-1) == 0
}

func roundUp(n int) int {
	return (n + Align - 1) &^ (Align - 1)
}
