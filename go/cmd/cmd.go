package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/timeros/appload/go/kernel"
	"github.com/timeros/appload/go/loader"
	"github.com/timeros/appload/go/models"
)

// KernelCmd is the shared driver for subcommands that operate on a kernel
// image: it owns the flag set, builds the Config and reports errors.
type KernelCmd struct {
	Name   string
	Config *models.Config
	Flags  *flag.FlagSet
	// positional argument synopsis for usage, e.g. "<image>"
	ArgUsage string
	MinArgs  int

	SetupFlags func() error
	Main       func(args []string) error

	Stdout io.Writer
	Stderr io.Writer
}

func NewKernelCmd(name string) *KernelCmd {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &KernelCmd{
		Name:   name,
		Flags:  fs,
		Stdout: colorable.NewColorableStdout(),
		Stderr: os.Stderr,
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// innermost stack trace in the error chain, which is closest to the failure
func findStack(err error) stackTracer {
	var found stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			found = st
		}
	}
	return found
}

// PrintError prints an error, and a stacktrace if available.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(w, "Error: %s\n", err)
	if boot, ok := errors.Cause(err).(kernel.BootError); ok {
		for _, l := range boot {
			fmt.Fprintf(w, "  %v\n", l)
		}
	}
	st := findStack(err)
	if st == nil {
		return
	}
	// parse full path and method name for each stack frame
	var frames [][]string
	for _, f := range st.StackTrace() {
		fullpath := ""
		fileline := fmt.Sprintf("%s:%d", f, f)
		method := fmt.Sprintf("%n", f)

		frame := fmt.Sprintf("%+s", f)
		tmp := strings.SplitN(frame, "\n", 3)
		if len(tmp) == 2 {
			pathsplit := strings.Split(tmp[0], "/")
			method = pathsplit[len(pathsplit)-1]
			fullpath = strings.TrimSpace(tmp[1])
		}
		frames = append(frames, []string{fullpath, fileline, method})
		if method == "main.main" {
			break
		}
	}
	// calculate column widths
	widths := make([]int, 3)
	for _, f := range frames {
		for i, s := range f {
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}
	// print pretty stacktrace
	for _, f := range frames {
		for i := 0; i < 2; i++ {
			if widths[i] > 0 {
				pad := strings.Repeat(" ", widths[i]-len(f[i]))
				fmt.Fprintf(w, "%s%s | ", f[i], pad)
			}
		}
		fmt.Fprintf(w, "%s()\n", f[2])
	}
}

func (c *KernelCmd) PrintError(err error) { PrintError(c.Stderr, err) }

func (c *KernelCmd) usage() {
	fmt.Fprintf(c.Stderr, "Usage: %s [options] %s\n\nOptions:\n", c.Name, c.ArgUsage)
	var flags []*flag.Flag
	c.Flags.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
	models.PrintFlags(c.Stderr, flags)
}

// Run parses argv (argv[0] is the command name), runs Main and returns the
// process exit code.
func (c *KernelCmd) Run(argv []string) int {
	fs := c.Flags
	fs.SetOutput(c.Stderr)
	color := fs.Bool("color", isatty.IsTerminal(os.Stdout.Fd()), "colorize output")
	verbose := fs.Bool("v", false, "verbose output")
	pages := fs.Int("pages", models.DefaultPhysPages, "physical memory size in pages")
	tasks := fs.Int("tasks", models.MaxTasks, "task table capacity")
	apps := fs.Int("apps", models.MaxApps, "application table capacity")
	guard := fs.Uint64("guard", models.DefaultGuardPages, "guard pages between the image and the user stack")
	outfile := fs.String("o", "", "redirect diagnostic output to file (default stderr)")
	fs.Usage = c.usage
	if c.SetupFlags != nil {
		if err := c.SetupFlags(); err != nil {
			c.PrintError(err)
			return 1
		}
	}
	if err := fs.Parse(argv[1:]); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	args := fs.Args()
	if len(args) < c.MinArgs {
		fs.Usage()
		return 2
	}

	config := &models.Config{
		Color:      *color,
		Verbose:    *verbose,
		PhysPages:  *pages,
		MaxTasks:   *tasks,
		MaxApps:    *apps,
		GuardPages: *guard,
		Output:     c.Stderr,
	}
	if *outfile != "" {
		out, err := os.OpenFile(*outfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			c.PrintError(errors.WithStack(err))
			return 1
		}
		defer out.Close()
		config.Output = out
	}
	c.Config = config.Init()

	if err := c.Main(args); err != nil {
		c.PrintError(err)
		return 1
	}
	return 0
}

// LoadRegistry reads a kernel image file and parses its application table.
func (c *KernelCmd) LoadRegistry(path string) (*loader.Registry, error) {
	img, err := loader.LoadImageFile(path)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	c.Config.Debugf("[image] %s: %d bytes at 0x%x, table at 0x%x\n", path, len(img.Data), img.Base, img.TableAddr)
	return loader.NewImageRegistry(img, c.Config.MaxApps)
}

// LoadKernel boots a kernel around the image at path without creating tasks.
func (c *KernelCmd) LoadKernel(path string) (*kernel.Kernel, error) {
	apps, err := c.LoadRegistry(path)
	if err != nil {
		return nil, err
	}
	return kernel.NewKernel(c.Config, apps)
}
