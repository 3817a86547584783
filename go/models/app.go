package models

import "fmt"

// AppMetadata identifies one application image embedded in the kernel image.
// Start and Size describe a region owned by the kernel image; nothing is copied.
type AppMetadata struct {
	ID    int
	Start uint64
	Size  uint64
}

func (a AppMetadata) End() uint64 { return a.Start + a.Size }

func (a AppMetadata) String() string {
	return fmt.Sprintf("app %d [0x%x-0x%x]", a.ID, a.Start, a.End())
}
