package mem

import (
	"fmt"
	"math"
)

// Frame is a physical page number.
type Frame uint64

const (
	// InvalidFrame is returned by allocators when they fail to reserve a frame.
	InvalidFrame = Frame(math.MaxUint64)
)

func FrameOf(pa uint64) Frame { return Frame(pa >> PageShift) }

func (f Frame) IsValid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of the first byte of the frame.
func (f Frame) Address() uint64 {
	return uint64(f) << PageShift
}

func (f Frame) String() string {
	if !f.IsValid() {
		return "frame(invalid)"
	}
	return fmt.Sprintf("frame(%#x)", f.Address())
}

// Allocator hands out physical pages. Alloc must return a page whose
// contents are all zero; the loader relies on this for .bss tails.
type Allocator interface {
	Alloc() (Frame, error)
	Free(f Frame) error
	Page(f Frame) []byte
}

// pte_t helpers
type pte uint64

func pa2pte(pa uint64) pte { return pte((pa >> PageShift) << 10) }
func (p pte) pa() uint64   { return (uint64(p) >> 10) << PageShift }
func (p pte) flags() int   { return int(p & pteFlags) }
func (p pte) valid() bool  { return p&PTE_V != 0 }
func (p pte) leaf() bool   { return p&pteLeafOK != 0 }
