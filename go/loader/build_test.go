package loader

import (
	"bytes"
	"debug/elf"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/timeros/appload/go/loader/elftest"
	"github.com/timeros/appload/go/models/mem"
	"github.com/timeros/appload/go/models/mock"
)

func newSpace(t *testing.T, pages int) (*mem.PhysMem, *mem.PageTable) {
	phys, err := mem.NewPhysMem(mem.KernBase, pages)
	if err != nil {
		t.Fatal(err)
	}
	pt, err := mem.NewPageTable(phys)
	if err != nil {
		t.Fatal(err)
	}
	return phys, pt
}

func openFile(t *testing.T, f *elftest.File) *ElfImage {
	img, err := Open(f.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestBuildMinimal(t *testing.T) {
	phys, pt := newSpace(t, 64)
	img, err := Open(minimalElf())
	if err != nil {
		t.Fatal(err)
	}
	layout, err := Build(img, pt, phys, 2)
	if err != nil {
		t.Fatal(err)
	}
	_, perm, err := pt.Translate(0x1000)
	if err != nil {
		t.Fatal(err)
	}
	if perm&(mem.PTE_R|mem.PTE_X|mem.PTE_U) != mem.PTE_R|mem.PTE_X|mem.PTE_U || perm&mem.PTE_W != 0 {
		t.Errorf("perm = %s", mem.PermString(perm))
	}
	if _, _, err := pt.Translate(0x2000); err == nil {
		t.Error("page after the segment is mapped")
	}
	if layout.Entry != 0x1000 || layout.Top != 0x1100 {
		t.Errorf("entry %#x top %#x", layout.Entry, layout.Top)
	}
	if want := mem.RoundUp(0x1100) + 2*mem.PageSize; layout.Ustack != want || layout.BaseSize != want {
		t.Errorf("ustack %#x base size %#x, want %#x", layout.Ustack, layout.BaseSize, want)
	}
	if len(layout.Segments) != 1 || layout.Segments[0].Start != 0x1000 || layout.Segments[0].End != 0x2000 {
		t.Errorf("segments = %+v", layout.Segments)
	}
}

func TestBuildContents(t *testing.T) {
	text := bytes.Repeat([]byte("code"), 0x500)
	data := []byte("initialized data")
	f := elftest.RV64(0x10000,
		elftest.Segment{Flags: elf.PF_R | elf.PF_X, Vaddr: 0x10000, Data: text},
		// bss runs two pages past the file bytes
		elftest.Segment{Flags: elf.PF_R | elf.PF_W, Vaddr: 0x13010, Memsz: 0x2100, Data: data},
	)
	phys, pt := newSpace(t, 64)
	layout, err := Build(openFile(t, f), pt, phys, 2)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(text))
	if err := pt.Read(0x10000, got, true); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, text) {
		t.Error("text segment contents differ")
	}
	// the unaligned segment starts mid page; everything around the file bytes is zero
	page := make([]byte, 3*mem.PageSize)
	if err := pt.Read(0x13000, page, true); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(page[0x10:0x10+len(data)], data) {
		t.Errorf("data = %q", page[0x10:0x10+len(data)])
	}
	for i, b := range page {
		if b != 0 && (i < 0x10 || i >= 0x10+len(data)) {
			t.Fatalf("byte %#x = %#x, want zero fill", 0x13000+i, b)
		}
	}
	_, perm, _ := pt.Translate(0x15000)
	if perm&mem.PTE_W == 0 || perm&mem.PTE_X != 0 {
		t.Errorf("bss perm = %s", mem.PermString(perm))
	}
	if layout.Top != 0x15110 {
		t.Errorf("top = %#x", layout.Top)
	}
	if layout.Ustack != 0x16000+2*mem.PageSize {
		t.Errorf("ustack = %#x", layout.Ustack)
	}
	if maps := pt.Mappings(); maps.Pages() != 2+3 {
		t.Errorf("mapped pages = %d\n%s", maps.Pages(), maps)
	}
}

func TestBuildUstackMonotonic(t *testing.T) {
	var last uint64
	for _, memsz := range []uint64{1, 0xfff, 0x1000, 0x1001, 0x5000, 0x5001} {
		phys, pt := newSpace(t, 64)
		f := elftest.RV64(0x1000, elftest.Segment{Flags: elf.PF_R, Vaddr: 0x1000, Memsz: memsz})
		layout, err := Build(openFile(t, f), pt, phys, 2)
		if err != nil {
			t.Fatal(err)
		}
		if layout.Ustack%mem.PageSize != 0 {
			t.Errorf("memsz %#x: ustack %#x not page aligned", memsz, layout.Ustack)
		}
		if layout.Ustack < 0x1000+memsz+2*mem.PageSize || layout.Ustack < last {
			t.Errorf("memsz %#x: ustack %#x", memsz, layout.Ustack)
		}
		last = layout.Ustack
		pt.Destroy()
	}
}

func TestBuildRejects(t *testing.T) {
	rx := elftest.Segment{Flags: elf.PF_R | elf.PF_X, Vaddr: 0x1000, Data: make([]byte, 0x1800)}
	tests := []struct {
		name  string
		image func() []byte
		check func(err error) bool
	}{
		{"no loadable", func() []byte {
			return elftest.RV64(0, elftest.Segment{Type: elf.PT_NOTE, Flags: elf.PF_R, Data: []byte{1}}).Bytes()
		}, func(err error) bool { return errors.Is(err, ErrNoLoadable) }},
		{"no permission", func() []byte {
			return elftest.RV64(0x1000, elftest.Segment{Vaddr: 0x1000, Data: []byte{1}}).Bytes()
		}, segKind(SegNoPermission)},
		{"overlap", func() []byte {
			over := elftest.Segment{Flags: elf.PF_R | elf.PF_W, Vaddr: 0x2800, Data: []byte{1}}
			return elftest.RV64(0x1000, rx, over).Bytes()
		}, segKind(SegOverlap)},
		{"filesz > memsz", func() []byte {
			image := elftest.RV64(0x1000, rx).Bytes()
			elftest.SetProg(image, 0, "memsz", 0x10)
			return image
		}, field("p_filesz")},
		{"offset past end", func() []byte {
			image := elftest.RV64(0x1000, rx).Bytes()
			elftest.SetProg(image, 0, "offset", 0x1000)
			return image
		}, field("p_offset")},
		{"vaddr overflow", func() []byte {
			image := elftest.RV64(0x1000, rx).Bytes()
			elftest.SetProg(image, 0, "vaddr", ^uint64(0)-0x10)
			return image
		}, field("p_vaddr")},
		{"vaddr above MaxVA", func() []byte {
			image := elftest.RV64(0x1000, rx).Bytes()
			elftest.SetProg(image, 0, "vaddr", mem.MaxVA-0x1000)
			return image
		}, field("p_vaddr")},
	}
	for _, test := range tests {
		phys, pt := newSpace(t, 64)
		img, err := Open(test.image())
		if err != nil {
			t.Fatalf("%s: %v", test.name, err)
		}
		_, err = Build(img, pt, phys, 2)
		if err == nil || !test.check(err) {
			t.Errorf("%s: err = %v", test.name, err)
		}
		if err := pt.Destroy(); err != nil {
			t.Fatal(err)
		}
		if s := phys.Stats(); s.Used != 0 {
			t.Errorf("%s: %d pages leaked", test.name, s.Used)
		}
	}
}

func segKind(kind int) func(error) bool {
	return func(err error) bool {
		var serr *SegmentError
		return errors.As(err, &serr) && serr.Kind == kind
	}
}

func field(name string) func(error) bool {
	return func(err error) bool {
		var ferr *FormatError
		return errors.As(err, &ferr) && ferr.Field == name
	}
}

func TestBuildAbuttingSegments(t *testing.T) {
	f := elftest.RV64(0x1000,
		elftest.Segment{Flags: elf.PF_R | elf.PF_X, Vaddr: 0x1000, Data: make([]byte, 0x1000)},
		elftest.Segment{Flags: elf.PF_R | elf.PF_W, Vaddr: 0x2000, Data: make([]byte, 0x10)},
	)
	phys, pt := newSpace(t, 64)
	if _, err := Build(openFile(t, f), pt, phys, 2); err != nil {
		t.Fatal(err)
	}
}

func TestBuildNoLeakOnExhaustion(t *testing.T) {
	f := elftest.RV64(0x10000,
		elftest.Segment{Flags: elf.PF_R | elf.PF_X, Vaddr: 0x10000, Data: make([]byte, 3*mem.PageSize)},
		elftest.Segment{Flags: elf.PF_R | elf.PF_W, Vaddr: 0x400000, Memsz: 4 * mem.PageSize, Data: []byte{1, 2, 3}},
	)
	img := openFile(t, f)
	phys, err := mem.NewPhysMem(mem.KernBase, 64)
	if err != nil {
		t.Fatal(err)
	}
	// fail at every allocation until the build fits in the budget
	for budget := 0; ; budget++ {
		before := phys.Stats().Used
		alloc := mock.NewAllocator(phys, budget)
		pt, err := mem.NewPageTable(alloc)
		if err != nil {
			if budget != 0 {
				t.Fatalf("budget %d: %v", budget, err)
			}
			continue
		}
		_, err = Build(img, pt, alloc, 2)
		if derr := pt.Destroy(); derr != nil {
			t.Fatal(derr)
		}
		if used := phys.Stats().Used; used != before {
			t.Fatalf("budget %d: %d pages used after destroy, want %d", budget, used, before)
		}
		if err == nil {
			break
		}
		var merr *mem.MapError
		if !errors.Is(err, mem.ErrOutOfMemory) || !errors.As(err, &merr) || merr.Kind != mem.MapNoMemory {
			t.Fatalf("budget %d: err = %v", budget, err)
		}
		if budget > 32 {
			t.Fatal("build never succeeded")
		}
	}
}

func TestBuildEmptySegment(t *testing.T) {
	f := elftest.RV64(0x1000,
		elftest.Segment{Flags: elf.PF_R | elf.PF_X, Vaddr: 0x1000, Data: make([]byte, 0x10)},
		elftest.Segment{Flags: elf.PF_R | elf.PF_W, Vaddr: 0x5800},
	)
	phys, pt := newSpace(t, 64)
	layout, err := Build(openFile(t, f), pt, phys, 2)
	if err != nil {
		t.Fatal(err)
	}
	if maps := pt.Mappings(); maps.Pages() != 1 {
		t.Errorf("mapped pages = %d\n%s", maps.Pages(), maps)
	}
	if layout.Top != 0x5800 || layout.Ustack != 0x6000+2*mem.PageSize {
		t.Errorf("top %#x ustack %#x", layout.Top, layout.Ustack)
	}
	if len(layout.Segments) != 1 {
		t.Errorf("segments = %+v", layout.Segments)
	}
}

func TestBuildReportsFreeFailure(t *testing.T) {
	phys, err := mem.NewPhysMem(mem.KernBase, 16)
	if err != nil {
		t.Fatal(err)
	}
	// root and the first leaf fit, the interior tables for it do not
	alloc := mock.NewAllocator(phys, 2)
	alloc.FreeErr = errors.New("frame still referenced")
	pt, err := mem.NewPageTable(alloc)
	if err != nil {
		t.Fatal(err)
	}
	img, err := Open(minimalElf())
	if err != nil {
		t.Fatal(err)
	}
	_, err = Build(img, pt, alloc, 2)
	if err == nil || !strings.Contains(err.Error(), "frame still referenced") {
		t.Fatalf("err = %v", err)
	}
	var merr *mem.MapError
	if !errors.As(err, &merr) || merr.Kind != mem.MapNoMemory {
		t.Errorf("err = %v, want MapNoMemory", err)
	}
}
