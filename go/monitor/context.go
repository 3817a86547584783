package monitor

import (
	"fmt"
	"io"

	"github.com/timeros/appload/go/kernel"
)

type Context struct {
	io.Writer
	K     *kernel.Kernel
	Color bool
}

func (c *Context) Printf(format string, a ...interface{}) (n int, err error) {
	return fmt.Fprintf(c, format, a...)
}
