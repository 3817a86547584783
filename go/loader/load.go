package loader

import (
	"io/ioutil"

	"github.com/pkg/errors"
)

var UnknownMagic = errors.New("Could not identify file magic.")

// LoadFile reads and validates a RISC-V ELF executable from disk.
func LoadFile(path string) (*ElfImage, error) {
	p, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !MatchElf(p) {
		return nil, errors.Wrap(UnknownMagic, path)
	}
	img, err := Open(p)
	return img, errors.Wrap(err, path)
}
