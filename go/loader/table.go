package loader

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/timeros/appload/go/models"
)

// App is one application blob to embed in a kernel image.
type App struct {
	Name string
	Data []byte
}

type tableHead struct {
	Count uint64
}

func tableSize(apps []App) uint64 {
	size := uint64(8 + (len(apps)+1)*8)
	for _, a := range apps {
		size += uint64(len(a.Name)) + 1
	}
	return size
}

// PackTable encodes an application table. addrs holds every start address
// followed by the end of the last application.
func PackTable(names []string, addrs []uint64) ([]byte, error) {
	if len(addrs) != len(names)+1 {
		return nil, errors.Errorf("%d names need %d addresses, got %d", len(names), len(names)+1, len(addrs))
	}
	var buf bytes.Buffer
	s := models.StrucStream{W: &buf, Order: binary.LittleEndian}
	if err := s.Pack(&tableHead{Count: uint64(len(names))}, addrs); err != nil {
		return nil, errors.Wrap(err, "pack app table")
	}
	for _, name := range names {
		if bytes.IndexByte([]byte(name), 0) >= 0 {
			return nil, errors.Errorf("app name %q contains NUL", name)
		}
		buf.WriteString(name)
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

func align8(n uint64) uint64 { return (n + 7) &^ 7 }

// BuildImage lays out an image at base: the application table first, then
// each application 8-byte aligned in the order given.
func BuildImage(base uint64, apps []App) (*KernelImage, error) {
	names := make([]string, len(apps))
	addrs := make([]uint64, len(apps)+1)
	pos := align8(base + tableSize(apps))
	for i, a := range apps {
		names[i] = a.Name
		addrs[i] = pos
		pos = align8(pos + uint64(len(a.Data)))
	}
	addrs[len(apps)] = pos
	table, err := PackTable(names, addrs)
	if err != nil {
		return nil, err
	}
	data := make([]byte, pos-base)
	copy(data, table)
	for i, a := range apps {
		copy(data[addrs[i]-base:], a.Data)
	}
	return &KernelImage{Base: base, TableAddr: base, Data: data}, nil
}
