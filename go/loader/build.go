package loader

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/timeros/appload/go/models/mem"
)

// Segment records where one PT_LOAD entry was mapped.
type Segment struct {
	Index      int
	Vaddr      uint64
	Filesz     uint64
	Memsz      uint64
	Start, End uint64
	Perm       int
}

func (s *Segment) String() string {
	return fmt.Sprintf("0x%x-0x%x %s (file 0x%x, mem 0x%x)", s.Start, s.End, mem.PermString(s.Perm), s.Filesz, s.Memsz)
}

// Layout describes a built user address space. Top is the end of the highest
// loaded segment.
type Layout struct {
	Entry    uint64
	Top      uint64
	Ustack   uint64
	BaseSize uint64
	Segments []Segment
}

func checkSegment(p *ProgHeader, image []byte) error {
	if p.Filesz > p.Memsz {
		return &FormatError{Field: "p_filesz", Got: p.Filesz, Want: p.Memsz}
	}
	if p.Off > uint64(len(image)) || p.Filesz > uint64(len(image))-p.Off {
		return &FormatError{Field: "p_offset", Got: p.Off}
	}
	if p.Memsz > math.MaxUint64-p.Vaddr || p.Vaddr+p.Memsz > mem.MaxVA {
		return &FormatError{Field: "p_vaddr", Got: p.Vaddr}
	}
	return nil
}

// loadSegment maps seg page by page, copying the file bytes of p into fresh
// frames. Frames already mapped belong to pt; only an unmapped frame is freed here.
func loadSegment(seg *Segment, p *ProgHeader, image []byte, pt *mem.PageTable, alloc mem.Allocator) error {
	file := image[p.Off : p.Off+p.Filesz]
	fileEnd := p.Vaddr + p.Filesz
	for va := seg.Start; va < seg.End; va += mem.PageSize {
		frame, err := alloc.Alloc()
		if err != nil {
			return errors.Wrapf(&mem.MapError{Addr: va, Kind: mem.MapNoMemory, Err: err}, "segment %d", seg.Index)
		}
		lo, hi := va, va+mem.PageSize
		if lo < p.Vaddr {
			lo = p.Vaddr
		}
		if hi > fileEnd {
			hi = fileEnd
		}
		if hi > lo {
			copy(alloc.Page(frame)[lo-va:], file[lo-p.Vaddr:hi-p.Vaddr])
		}
		if err := pt.Map(va, frame.Address(), mem.PageSize, seg.Perm|mem.PTE_U); err != nil {
			if ferr := alloc.Free(frame); ferr != nil {
				return errors.Wrapf(err, "free 0x%x: %v", frame.Address(), ferr)
			}
			return err
		}
	}
	return nil
}

// Build maps every PT_LOAD segment of img into pt with user permissions and
// computes the initial stack pointer, guardPages above the highest segment.
// Empty segments count toward the top of the image but map nothing.
// On error pt may hold a partial mapping; the caller destroys it.
func Build(img *ElfImage, pt *mem.PageTable, alloc mem.Allocator, guardPages uint64) (*Layout, error) {
	layout := &Layout{Entry: img.Entry()}
	loaded := false
	var placed mem.Mappings
	for i := range img.Progs {
		p := &img.Progs[i]
		if !p.Loadable() {
			continue
		}
		perm := FlagsToPerm(p.Flags)
		if perm == 0 {
			return nil, &SegmentError{Index: i, Vaddr: p.Vaddr, Kind: SegNoPermission}
		}
		if err := checkSegment(p, img.Data); err != nil {
			return nil, err
		}
		seg := Segment{
			Index:  i,
			Vaddr:  p.Vaddr,
			Filesz: p.Filesz,
			Memsz:  p.Memsz,
			Start:  mem.RoundDown(p.Vaddr),
			End:    mem.RoundUp(p.Vaddr + p.Memsz),
			Perm:   perm,
		}
		if top := p.Vaddr + p.Memsz; top > layout.Top {
			layout.Top = top
		}
		loaded = true
		// an empty segment occupies no page
		if p.Memsz == 0 {
			continue
		}
		for _, prev := range placed {
			if prev.Overlaps(seg.Start, seg.End-seg.Start) {
				return nil, &SegmentError{Index: i, Vaddr: p.Vaddr, Kind: SegOverlap}
			}
		}
		if err := loadSegment(&seg, p, img.Data, pt, alloc); err != nil {
			return nil, err
		}
		layout.Segments = append(layout.Segments, seg)
		placed = append(placed, &mem.Mapping{Addr: seg.Start, Size: seg.End - seg.Start, Perm: perm})
	}
	if !loaded {
		return nil, errors.WithStack(ErrNoLoadable)
	}
	layout.Ustack = mem.RoundUp(layout.Top) + guardPages*mem.PageSize
	layout.BaseSize = layout.Ustack
	return layout, nil
}
