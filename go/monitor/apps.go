package monitor

import (
	"github.com/lunixbochs/argjoy"

	"github.com/timeros/appload/go/kernel"
)

var HelpCmd = cmd(&Command{
	Name:  "help",
	Desc:  "List commands, or show usage for one.",
	Usage: "[command]",
	Run: func(c *Context, args ...string) error {
		if len(args) > 0 {
			cmd, ok := Commands[args[0]]
			if !ok {
				c.Printf("command not found.\n")
				return nil
			}
			c.Printf("%s %s\n  %s\n", cmd.Name, cmd.Usage, cmd.Desc)
			return nil
		}
		for _, name := range Names() {
			c.Printf("  %-6s %s\n", name, Commands[name].Desc)
		}
		return nil
	},
})

var AppsCmd = cmd(&Command{
	Name: "apps",
	Desc: "List embedded applications.",
	Run: func(c *Context) error {
		apps := c.K.Apps()
		for id := 0; id < apps.Count(); id++ {
			m, err := apps.ByID(id)
			if err != nil {
				return err
			}
			name, _ := apps.Name(id)
			c.Printf("%3d %-16s 0x%08x %d\n", id, name, m.Start, m.Size)
		}
		return nil
	},
})

var LoadCmd = cmd(&Command{
	Name:  "load",
	Desc:  "Create a task from an application.",
	Usage: "<name|id>",
	Run: func(c *Context, app string) error {
		var t *kernel.TaskControlBlock
		var err error
		// names win over ids, so an app may be called "1"
		var id int
		if _, nerr := c.K.Apps().ByName(app); nerr != nil && argjoy.RadStrToInt(&id, []interface{}{app}) == nil {
			t, err = c.K.CreateTask(id)
		} else {
			t, err = c.K.CreateTaskByName(app)
		}
		if err != nil {
			return err
		}
		c.Printf("%v\n", t)
		return nil
	},
})
