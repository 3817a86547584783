package kernel

import (
	"github.com/pkg/errors"

	"github.com/timeros/appload/go/loader"
	"github.com/timeros/appload/go/models"
	"github.com/timeros/appload/go/models/mem"
)

// Kernel owns simulated physical memory, the application registry and a
// bounded task table.
type Kernel struct {
	config *models.Config
	apps   *loader.Registry
	phys   *mem.PhysMem
	kpt    *mem.PageTable
	tasks  []*TaskControlBlock
}

// NewKernel brings up physical memory at mem.KernBase and the kernel's root
// page table. Any failure here is wrapped in ErrBootstrap.
func NewKernel(config *models.Config, apps *loader.Registry) (*Kernel, error) {
	if config == nil {
		config = &models.Config{}
	}
	config.Init()
	phys, err := mem.NewPhysMem(mem.KernBase, config.PhysPages)
	if err != nil {
		return nil, &bootstrapError{err}
	}
	kpt, err := mem.NewPageTable(phys)
	if err != nil {
		return nil, &bootstrapError{errors.Wrap(err, "kernel page table")}
	}
	k := &Kernel{
		config: config,
		apps:   apps,
		phys:   phys,
		kpt:    kpt,
		tasks:  make([]*TaskControlBlock, config.MaxTasks),
	}
	k.config.Debugf("[kernel] %d pages at 0x%x, satp 0x%x\n", config.PhysPages, mem.KernBase, kpt.Satp())
	return k, nil
}

func (k *Kernel) Config() *models.Config    { return k.config }
func (k *Kernel) Apps() *loader.Registry    { return k.apps }
func (k *Kernel) Stats() mem.Stats          { return k.phys.Stats() }
func (k *Kernel) PageTable() *mem.PageTable { return k.kpt }

func (k *Kernel) freeSlot() int {
	for i, t := range k.tasks {
		if t == nil {
			return i
		}
	}
	return -1
}

// CreateTask loads an application into a fresh address space. On failure no
// task is registered and every page allocated for it is released.
func (k *Kernel) CreateTask(appID int) (*TaskControlBlock, error) {
	slot := k.freeSlot()
	if slot < 0 {
		return nil, errors.Wrapf(ErrTooManyTasks, "%d tasks", len(k.tasks))
	}
	meta, err := k.apps.ByID(appID)
	if err != nil {
		return nil, err
	}
	name, _ := k.apps.Name(appID)
	image, err := k.apps.Image(meta)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", name)
	}
	img, err := loader.Open(image)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", name)
	}
	pt, err := mem.NewPageTable(k.phys)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", name)
	}
	layout, err := loader.Build(img, pt, k.phys, k.config.GuardPages)
	if err != nil {
		if derr := pt.Destroy(); derr != nil {
			k.config.Printf("[kernel] releasing %s: %v\n", name, derr)
		}
		return nil, errors.Wrapf(err, "load %s", name)
	}
	t := &TaskControlBlock{
		ID:        slot,
		App:       meta,
		Name:      name,
		PageTable: pt,
		Entry:     layout.Entry,
		Ustack:    layout.Ustack,
		BaseSize:  layout.BaseSize,
		Segments:  layout.Segments,
	}
	k.tasks[slot] = t
	k.config.Debugf("[kernel] %v\n", t)
	return t, nil
}

func (k *Kernel) CreateTaskByName(name string) (*TaskControlBlock, error) {
	meta, err := k.apps.ByName(name)
	if err != nil {
		return nil, err
	}
	return k.CreateTask(meta.ID)
}

// Destroy releases a task's address space and frees its slot.
func (k *Kernel) Destroy(t *TaskControlBlock) error {
	if t == nil || t.ID < 0 || t.ID >= len(k.tasks) || k.tasks[t.ID] != t {
		return errors.WithStack(ErrNoTask)
	}
	k.tasks[t.ID] = nil
	return errors.Wrapf(t.PageTable.Destroy(), "destroy task %d", t.ID)
}

// Boot creates a task for every embedded application in id order. Apps that
// fail are returned as a BootError; the others stay loaded.
func (k *Kernel) Boot() ([]*TaskControlBlock, error) {
	var tasks []*TaskControlBlock
	var failed BootError
	for id := 0; id < k.apps.Count(); id++ {
		t, err := k.CreateTask(id)
		if err != nil {
			name, _ := k.apps.Name(id)
			failed = append(failed, &LoadError{App: id, Name: name, Err: err})
			continue
		}
		tasks = append(tasks, t)
	}
	if len(failed) > 0 {
		return tasks, failed
	}
	return tasks, nil
}

// Tasks returns the live tasks in slot order.
func (k *Kernel) Tasks() []*TaskControlBlock {
	var out []*TaskControlBlock
	for _, t := range k.tasks {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (k *Kernel) Task(id int) (*TaskControlBlock, error) {
	if id < 0 || id >= len(k.tasks) || k.tasks[id] == nil {
		return nil, errors.Wrapf(ErrNoTask, "task %d", id)
	}
	return k.tasks[id], nil
}
