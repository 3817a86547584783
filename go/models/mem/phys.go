package mem

import (
	"sync"

	"github.com/pkg/errors"
)

// Stats is a snapshot of physical page usage.
type Stats struct {
	Total, Free, Used int
}

// PhysMem simulates a contiguous block of RAM handed out one page at a time,
// like xv6's kalloc free list. Every page returned by Alloc is zeroed.
type PhysMem struct {
	base  uint64
	data  []byte
	inUse []bool

	mu       sync.Mutex
	freelist []Frame
}

// NewPhysMem creates pages of RAM starting at base, which must be page aligned.
func NewPhysMem(base uint64, pages int) (*PhysMem, error) {
	if base%PageSize != 0 {
		return nil, errors.Errorf("physical base %#x is not page aligned", base)
	}
	if pages <= 0 {
		return nil, errors.Errorf("invalid physical page count: %d", pages)
	}
	p := &PhysMem{
		base:     base,
		data:     make([]byte, uint64(pages)*PageSize),
		inUse:    make([]bool, pages),
		freelist: make([]Frame, 0, pages),
	}
	// push in reverse so the lowest page is handed out first
	for i := pages - 1; i >= 0; i-- {
		p.freelist = append(p.freelist, FrameOf(base)+Frame(i))
	}
	return p, nil
}

func (p *PhysMem) index(f Frame) (int, bool) {
	first := FrameOf(p.base)
	if f < first || uint64(f-first) >= uint64(len(p.inUse)) {
		return 0, false
	}
	return int(f - first), true
}

// Alloc returns a zeroed page, or ErrOutOfMemory.
func (p *PhysMem) Alloc() (Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.freelist)
	if n == 0 {
		return InvalidFrame, errors.WithStack(ErrOutOfMemory)
	}
	f := p.freelist[n-1]
	p.freelist = p.freelist[:n-1]
	i, _ := p.index(f)
	p.inUse[i] = true
	page := p.page(i)
	for j := range page {
		page[j] = 0
	}
	return f, nil
}

// Free returns a page to the allocator. Freeing a page twice or a page outside
// this memory is an error.
func (p *PhysMem) Free(f Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.index(f)
	if !ok {
		return errors.Wrapf(ErrBadFrame, "free %v: outside physical memory", f)
	}
	if !p.inUse[i] {
		return errors.Wrapf(ErrBadFrame, "free %v: not allocated", f)
	}
	p.inUse[i] = false
	// fill with junk to catch dangling refs
	page := p.page(i)
	for j := range page {
		page[j] = 1
	}
	p.freelist = append(p.freelist, f)
	return nil
}

func (p *PhysMem) page(i int) []byte {
	off := uint64(i) * PageSize
	return p.data[off : off+PageSize : off+PageSize]
}

// Page returns the backing bytes of an allocated frame, or nil.
func (p *PhysMem) Page(f Frame) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.index(f)
	if !ok || !p.inUse[i] {
		return nil
	}
	return p.page(i)
}

func (p *PhysMem) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := len(p.inUse)
	return Stats{Total: total, Free: len(p.freelist), Used: total - len(p.freelist)}
}
