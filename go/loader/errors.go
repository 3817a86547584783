package loader

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrOutOfRange       = errors.New("application id out of range")
	ErrNotFound         = errors.New("application not found")
	ErrCapacityExceeded = errors.New("application table capacity exceeded")
	ErrBadTable         = errors.New("malformed application table")
	ErrInvalidFormat    = errors.New("invalid ELF image")
	ErrNoLoadable       = errors.New("no loadable segment in ELF image")
	ErrBadImage         = errors.New("malformed kernel image")
)

// kindError files an underlying failure under one of the sentinels above.
type kindError struct {
	kind error
	err  error
}

func (k *kindError) Error() string        { return fmt.Sprintf("%v: %v", k.kind, k.err) }
func (k *kindError) Is(target error) bool { return target == k.kind }
func (k *kindError) Unwrap() error        { return k.err }

// FormatError names the header field that failed validation.
type FormatError struct {
	Field     string
	Got, Want uint64
}

func (f *FormatError) Error() string {
	if f.Want == 0 {
		return fmt.Sprintf("%v: bad %s (0x%x)", ErrInvalidFormat, f.Field, f.Got)
	}
	return fmt.Sprintf("%v: bad %s: got 0x%x, want 0x%x", ErrInvalidFormat, f.Field, f.Got, f.Want)
}

func (f *FormatError) Is(target error) bool { return target == ErrInvalidFormat }

// kinds for SegmentError
const (
	SegNoPermission = iota + 1
	SegOverlap
)

// SegmentError rejects a PT_LOAD entry that is well formed but not loadable.
type SegmentError struct {
	Index int
	Vaddr uint64
	Kind  int
}

func (s *SegmentError) Error() string {
	reason := "bad segment"
	switch s.Kind {
	case SegNoPermission:
		reason = "segment has no access permissions"
	case SegOverlap:
		reason = "segment overlaps an earlier segment"
	}
	return fmt.Sprintf("%s (phdr %d, vaddr 0x%x)", reason, s.Index, s.Vaddr)
}
