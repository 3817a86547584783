package kernel

import (
	"fmt"

	"github.com/timeros/appload/go/loader"
	"github.com/timeros/appload/go/models"
	"github.com/timeros/appload/go/models/mem"
)

// TaskControlBlock is a loaded, runnable task. Its page table owns every
// physical page backing the task until the kernel destroys it.
type TaskControlBlock struct {
	ID        int
	App       models.AppMetadata
	Name      string
	PageTable *mem.PageTable

	Entry    uint64
	Ustack   uint64
	BaseSize uint64
	Segments []loader.Segment
}

func (t *TaskControlBlock) String() string {
	return fmt.Sprintf("task %d (%s): entry 0x%x ustack 0x%x", t.ID, t.Name, t.Entry, t.Ustack)
}

// Satp is the value the scheduler would load before returning to this task.
func (t *TaskControlBlock) Satp() uint64 { return t.PageTable.Satp() }

func (t *TaskControlBlock) Mappings() mem.Mappings { return t.PageTable.Mappings() }
