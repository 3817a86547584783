package mkimage

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/timeros/appload/go/cmd"
	"github.com/timeros/appload/go/loader"
	"github.com/timeros/appload/go/models"
)

// DefaultBase is where the kernel's data section holding the apps is linked.
const DefaultBase = 0x80400000

// AppName derives an application name from its file name.
func AppName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Collect reads and validates every ELF, returning the apps sorted by name.
func Collect(paths []string) ([]loader.App, error) {
	apps := make([]loader.App, 0, len(paths))
	for _, path := range paths {
		img, err := loader.LoadFile(path)
		if err != nil {
			return nil, err
		}
		apps = append(apps, loader.App{Name: AppName(path), Data: img.Data})
	}
	sort.SliceStable(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })
	return apps, nil
}

func Run(argv []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(argv[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("o", "", "output image file")
	base := fs.Uint64("base", DefaultBase, "load address of the image")
	verbose := fs.Bool("v", false, "list the apps written")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s -o <image> [options] <elf>...\n\nOptions:\n", argv[0])
		var flags []*flag.Flag
		fs.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
		models.PrintFlags(stderr, flags)
	}
	if err := fs.Parse(argv[1:]); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if *out == "" || fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	if *base%8 != 0 {
		cmd.PrintError(stderr, errors.Errorf("base 0x%x is not 8-byte aligned", *base))
		return 1
	}
	apps, err := Collect(fs.Args())
	if err == nil && len(apps) > models.MaxApps {
		err = errors.Wrapf(loader.ErrCapacityExceeded, "%d apps", len(apps))
	}
	if err != nil {
		cmd.PrintError(stderr, err)
		return 1
	}
	img, err := loader.BuildImage(*base, apps)
	if err == nil {
		err = loader.SaveImageFile(*out, img)
	}
	if err != nil {
		cmd.PrintError(stderr, err)
		return 1
	}
	if *verbose {
		for _, app := range apps {
			fmt.Fprintf(stdout, "%-16s %d bytes\n", app.Name, len(app.Data))
		}
		fmt.Fprintf(stdout, "wrote %s: %d bytes at 0x%x\n", *out, len(img.Data), img.Base)
	}
	return 0
}

func Main(args []string) int { return Run(args, os.Stdout, os.Stderr) }

func init() {
	cmd.Register("mkimage", "pack ELF executables into a kernel image", Main)
}
