package mem

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrOutOfMemory = errors.New("out of physical pages")
	ErrBadFrame    = errors.New("bad frame")
)

// MapError is returned by PageTable.Map.
type MapError struct {
	Addr uint64
	Kind int
	Err  error
}

func (m *MapError) Error() string {
	reason := "map error"
	switch m.Kind {
	case MapAlreadyMapped:
		reason = "already mapped"
	case MapNoMemory:
		reason = "out of physical memory"
	case MapBadAddress:
		reason = "bad address"
	case MapBadPerm:
		reason = "no access bits in mapping"
	}
	return fmt.Sprintf("%s at %#x", reason, m.Addr)
}

func (m *MapError) Unwrap() error { return m.Err }

// FaultError is returned for accesses through a page table that would fault.
type FaultError struct {
	Addr uint64
	Size int
	Kind int
}

func (f *FaultError) Error() string {
	reason := "page fault"
	switch f.Kind {
	case FAULT_UNMAPPED:
		reason = "unmapped read"
	case FAULT_PROT:
		reason = "protected read"
	}
	return fmt.Sprintf("%s at %#x(%d)", reason, f.Addr, f.Size)
}
