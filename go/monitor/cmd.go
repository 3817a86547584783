package monitor

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/lunixbochs/argjoy"
	"github.com/mattn/go-shellwords"
)

type Command struct {
	Name  string
	Desc  string
	Usage string
	Run   interface{}
}

var Commands = make(map[string]*Command)

func cmd(c *Command) *Command {
	fn := reflect.ValueOf(c.Run)
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		panic(fmt.Sprintf("Command.Run must be a func: got (%T) %#v\n", c.Run, c.Run))
	}
	Commands[c.Name] = c
	return c
}

// Names returns every command name in sorted order.
func Names() []string {
	names := make([]string, 0, len(Commands))
	for name := range Commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StrToStr passes a string through to a string parameter. It runs before
// RadStrToInt, which would otherwise reject non-numeric words.
func StrToStr(arg interface{}, vals []interface{}) error {
	if p, ok := arg.(*string); ok {
		if s, ok := vals[0].(string); ok {
			*p = s
			return nil
		}
	}
	return argjoy.NoMatch
}

var aj = argjoy.NewArgjoy(StrToStr, argjoy.RadStrToInt)

// Run executes one monitor line. Command errors are printed, not returned;
// the error result is reserved for failures of the context itself.
func Run(c *Context, line string) error {
	args, err := shellwords.Parse(line)
	if err != nil {
		c.Printf("parse error: %v\n", err)
		return nil
	}
	if len(args) == 0 {
		return nil
	}
	name, args := args[0], args[1:]
	if cmd, ok := Commands[name]; ok {
		out, err := aj.Call(cmd.Run, c, args)
		if err != nil {
			c.Printf("error: %v\n", err)
			if _, ok := err.(*argjoy.ArgCountErr); ok {
				c.Printf("usage: %s %s\n", cmd.Name, cmd.Usage)
			}
		}
		if len(out) > 0 {
			if err, ok := out[0].(error); ok {
				c.Printf("error: %v\n", err)
			}
		}
	} else {
		c.Printf("command not found.\n")
	}
	return nil
}
