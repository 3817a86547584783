package boot

import (
	"fmt"

	"github.com/timeros/appload/go/cmd"
	"github.com/timeros/appload/go/models"
)

func Command(name string) *cmd.KernelCmd {
	c := cmd.NewKernelCmd(name)
	c.ArgUsage = "<image>"
	c.MinArgs = 1
	c.Main = func(args []string) error {
		k, err := c.LoadKernel(args[0])
		if err != nil {
			return err
		}
		tasks, err := k.Boot()
		for _, t := range tasks {
			fmt.Fprintf(c.Stdout, "%v satp 0x%x\n", t, t.Satp())
			for _, line := range models.MapDump(t.Mappings(), c.Config.Color) {
				fmt.Fprintf(c.Stdout, "  %s\n", line)
			}
		}
		s := k.Stats()
		c.Config.Debugf("[boot] %d tasks, %d/%d pages used\n", len(tasks), s.Used, s.Total)
		return err
	}
	return c
}

func Main(args []string) int { return Command(args[0]).Run(args) }

func init() {
	cmd.Register("boot", "load every application in a kernel image into its own address space", Main)
}
