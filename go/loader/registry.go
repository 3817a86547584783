package loader

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/timeros/appload/go/models"
)

// Memory exposes bounds-checked reads of the kernel's embedded image.
type Memory interface {
	Slice(addr, size uint64) ([]byte, error)
}

// Registry is the parsed application table. It is immutable after NewRegistry.
type Registry struct {
	image  Memory
	addrs  []uint64
	names  []string
	byName map[string]int
}

// NewRegistry parses an application table: a count, count+1 start addresses
// (the last one is the end of the final app), then count NUL-terminated names.
// image may be nil if application bytes are never requested.
func NewRegistry(table []byte, image Memory, capacity int) (*Registry, error) {
	if capacity <= 0 {
		capacity = models.MaxApps
	}
	if len(table) < 8 {
		return nil, errors.Wrap(ErrBadTable, "missing app count")
	}
	count := binary.LittleEndian.Uint64(table)
	if count > uint64(capacity) {
		return nil, errors.Wrapf(ErrCapacityExceeded, "%d apps, capacity %d", count, capacity)
	}
	off := uint64(8)
	if uint64(len(table))-off < (count+1)*8 {
		return nil, errors.Wrap(ErrBadTable, "truncated address table")
	}
	r := &Registry{
		image:  image,
		addrs:  make([]uint64, count+1),
		names:  make([]string, count),
		byName: make(map[string]int, count),
	}
	for i := range r.addrs {
		r.addrs[i] = binary.LittleEndian.Uint64(table[off:])
		off += 8
		if i > 0 && r.addrs[i] < r.addrs[i-1] {
			return nil, errors.Wrapf(ErrBadTable, "app %d ends before it starts", i-1)
		}
	}
	rest := table[off:]
	for i := range r.names {
		end := bytes.IndexByte(rest, 0)
		if end < 0 {
			return nil, errors.Wrapf(ErrBadTable, "unterminated name for app %d", i)
		}
		name := string(rest[:end])
		rest = rest[end+1:]
		r.names[i] = name
		if _, ok := r.byName[name]; !ok {
			r.byName[name] = i
		}
	}
	return r, nil
}

// NewImageRegistry parses the table embedded in img at img.TableAddr.
func NewImageRegistry(img *KernelImage, capacity int) (*Registry, error) {
	table, err := img.Slice(img.TableAddr, img.End()-img.TableAddr)
	if err != nil {
		return nil, &kindError{ErrBadTable, err}
	}
	return NewRegistry(table, img, capacity)
}

func (r *Registry) Count() int { return len(r.names) }

func (r *Registry) ByID(id int) (models.AppMetadata, error) {
	if id < 0 || id >= len(r.names) {
		return models.AppMetadata{}, errors.Wrapf(ErrOutOfRange, "app id %d (have %d)", id, len(r.names))
	}
	return models.AppMetadata{ID: id, Start: r.addrs[id], Size: r.addrs[id+1] - r.addrs[id]}, nil
}

// ByName returns the first app with this exact name.
func (r *Registry) ByName(name string) (models.AppMetadata, error) {
	id, ok := r.byName[name]
	if !ok {
		return models.AppMetadata{}, errors.Wrapf(ErrNotFound, "%q", name)
	}
	return r.ByID(id)
}

func (r *Registry) Name(id int) (string, error) {
	if id < 0 || id >= len(r.names) {
		return "", errors.Wrapf(ErrOutOfRange, "app id %d (have %d)", id, len(r.names))
	}
	return r.names[id], nil
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Image returns the ELF bytes of an application.
func (r *Registry) Image(meta models.AppMetadata) ([]byte, error) {
	if r.image == nil {
		return nil, errors.Errorf("no image memory for app %d", meta.ID)
	}
	return r.image.Slice(meta.Start, meta.Size)
}
