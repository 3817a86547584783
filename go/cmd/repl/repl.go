package repl

import (
	"github.com/timeros/appload/go/cmd"
	"github.com/timeros/appload/go/ui"
)

func Main(args []string) int {
	c := cmd.NewKernelCmd(args[0])
	c.ArgUsage = "<image>"
	c.MinArgs = 1
	c.Main = func(args []string) error {
		k, err := c.LoadKernel(args[0])
		if err != nil {
			return err
		}
		r, err := ui.NewRepl(k)
		if err != nil {
			return err
		}
		return r.Run()
	}
	return c.Run(args)
}

func init() {
	cmd.Register("repl", "interactive kernel monitor", Main)
}
