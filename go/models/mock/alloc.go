package mock

import (
	"github.com/pkg/errors"

	"github.com/timeros/appload/go/models/mem"
)

// Allocator wraps a real allocator and starts failing after Budget successful
// allocations. A negative Budget never fails. A non-nil FreeErr is returned by
// every Free without releasing the frame.
type Allocator struct {
	mem.Allocator
	Budget  int
	Allocs  int
	FreeErr error
}

func NewAllocator(a mem.Allocator, budget int) *Allocator {
	return &Allocator{Allocator: a, Budget: budget}
}

func (a *Allocator) Alloc() (mem.Frame, error) {
	if a.Budget >= 0 && a.Allocs >= a.Budget {
		return mem.InvalidFrame, errors.WithStack(mem.ErrOutOfMemory)
	}
	f, err := a.Allocator.Alloc()
	if err == nil {
		a.Allocs++
	}
	return f, err
}

func (a *Allocator) Free(f mem.Frame) error {
	if a.FreeErr != nil {
		return a.FreeErr
	}
	return a.Allocator.Free(f)
}
