package monitor

import (
	"github.com/pkg/errors"

	"github.com/timeros/appload/go/models"
)

// largest mem dump
const maxDump = 1 << 20

var TasksCmd = cmd(&Command{
	Name: "tasks",
	Desc: "List live tasks.",
	Run: func(c *Context) error {
		for _, t := range c.K.Tasks() {
			c.Printf("%3d %-16s entry 0x%x ustack 0x%x pages %d\n", t.ID, t.Name, t.Entry, t.Ustack, t.Mappings().Pages())
		}
		return nil
	},
})

var MapsCmd = cmd(&Command{
	Name:  "maps",
	Desc:  "Display a task's memory mappings.",
	Usage: "<task>",
	Run: func(c *Context, task int) error {
		t, err := c.K.Task(task)
		if err != nil {
			return err
		}
		for _, line := range models.MapDump(t.Mappings(), c.Color) {
			c.Printf("  %s\n", line)
		}
		return nil
	},
})

var MemCmd = cmd(&Command{
	Name:  "mem",
	Desc:  "Dump task memory through its page table.",
	Usage: "<task> <addr> <size>",
	Run: func(c *Context, task int, addr, size uint64) error {
		t, err := c.K.Task(task)
		if err != nil {
			return err
		}
		if size > maxDump {
			return errors.Errorf("size 0x%x exceeds 0x%x", size, maxDump)
		}
		mem := make([]byte, size)
		if err := t.PageTable.Read(addr, mem, false); err != nil {
			return err
		}
		for _, line := range models.HexDump(addr, mem, 64) {
			c.Printf("  %s\n", line)
		}
		return nil
	},
})

var KillCmd = cmd(&Command{
	Name:  "kill",
	Desc:  "Destroy a task and free its memory.",
	Usage: "<task>",
	Run: func(c *Context, task int) error {
		t, err := c.K.Task(task)
		if err != nil {
			return err
		}
		return c.K.Destroy(t)
	},
})

var FreeCmd = cmd(&Command{
	Name: "free",
	Desc: "Show physical page usage.",
	Run: func(c *Context) error {
		s := c.K.Stats()
		c.Printf("pages: %d total, %d used, %d free\n", s.Total, s.Used, s.Free)
		c.Printf("kernel satp: 0x%x\n", c.K.PageTable().Satp())
		return nil
	},
})
