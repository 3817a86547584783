package ls

import (
	"fmt"

	"github.com/timeros/appload/go/cmd"
)

func Command(name string) *cmd.KernelCmd {
	c := cmd.NewKernelCmd(name)
	c.ArgUsage = "<image>"
	c.MinArgs = 1
	c.Main = func(args []string) error {
		apps, err := c.LoadRegistry(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.Stdout, "%3s %-16s %-18s %s\n", "id", "name", "start", "size")
		for id := 0; id < apps.Count(); id++ {
			m, err := apps.ByID(id)
			if err != nil {
				return err
			}
			name, _ := apps.Name(id)
			fmt.Fprintf(c.Stdout, "%3d %-16s 0x%016x %d\n", id, name, m.Start, m.Size)
		}
		return nil
	}
	return c
}

func Main(args []string) int { return Command(args[0]).Run(args) }

func init() {
	cmd.Register("ls", "list the applications in a kernel image", Main)
}
