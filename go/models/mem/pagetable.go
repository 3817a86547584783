package mem

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// PageTable is an Sv39 page table stored in pages from an Allocator.
// It owns every page it references: interior table pages it allocates while
// walking, and every leaf page installed with Map. Destroy gives them all back.
type PageTable struct {
	alloc Allocator
	root  Frame
}

func NewPageTable(alloc Allocator) (*PageTable, error) {
	root, err := alloc.Alloc()
	if err != nil {
		return nil, errors.Wrap(err, "page table root")
	}
	return &PageTable{alloc: alloc, root: root}, nil
}

// Satp returns the satp register value that would activate this table.
func (pt *PageTable) Satp() uint64 {
	return satpSv39 | uint64(pt.root)
}

func (pt *PageTable) readPTE(table Frame, idx uint64) pte {
	page := pt.alloc.Page(table)
	return pte(binary.LittleEndian.Uint64(page[idx*pteSize:]))
}

func (pt *PageTable) writePTE(table Frame, idx uint64, e pte) {
	page := pt.alloc.Page(table)
	binary.LittleEndian.PutUint64(page[idx*pteSize:], uint64(e))
}

// walk finds the level-0 table and index holding the PTE for va.
// If alloc is set, missing interior tables are created. If alloc is unset and
// a table is missing, the returned frame is InvalidFrame.
func (pt *PageTable) walk(va uint64, alloc bool) (Frame, uint64, error) {
	if va >= MaxVA {
		return InvalidFrame, 0, &MapError{Addr: va, Kind: MapBadAddress}
	}
	table := pt.root
	for level := levels - 1; level > 0; level-- {
		idx := px(level, va)
		e := pt.readPTE(table, idx)
		if e.valid() {
			if e.leaf() {
				// superpages are never created here
				return InvalidFrame, 0, &MapError{Addr: va, Kind: MapAlreadyMapped}
			}
			table = FrameOf(e.pa())
			continue
		}
		if !alloc {
			return InvalidFrame, 0, nil
		}
		next, err := pt.alloc.Alloc()
		if err != nil {
			return InvalidFrame, 0, &MapError{Addr: va, Kind: MapNoMemory, Err: err}
		}
		pt.writePTE(table, idx, pa2pte(next.Address())|PTE_V)
		table = next
	}
	return table, px(0, va), nil
}

// Map installs PTEs for virtual addresses starting at va that refer to
// physical addresses starting at pa. va and size need not be page aligned.
// The table takes ownership of the mapped physical pages.
func (pt *PageTable) Map(va, pa, size uint64, perm int) error {
	if size == 0 || va+size < va {
		return &MapError{Addr: va, Kind: MapBadAddress}
	}
	if perm&PTE_RWX == 0 {
		return &MapError{Addr: va, Kind: MapBadPerm}
	}
	a := RoundDown(va)
	last := RoundDown(va + size - 1)
	pa = RoundDown(pa)
	for {
		table, idx, err := pt.walk(a, true)
		if err != nil {
			return err
		}
		if pt.readPTE(table, idx).valid() {
			return &MapError{Addr: a, Kind: MapAlreadyMapped}
		}
		pt.writePTE(table, idx, pa2pte(pa)|pte(perm&pteFlags)|PTE_V)
		if a == last {
			break
		}
		a += PageSize
		pa += PageSize
	}
	return nil
}

func (pt *PageTable) lookup(va uint64) (pte, bool) {
	table, idx, err := pt.walk(va, false)
	if err != nil || !table.IsValid() {
		return 0, false
	}
	e := pt.readPTE(table, idx)
	return e, e.valid()
}

// Translate returns the physical address and PTE bits for va.
func (pt *PageTable) Translate(va uint64) (uint64, int, error) {
	e, ok := pt.lookup(va)
	if !ok {
		return 0, 0, &FaultError{Addr: va, Size: 1, Kind: FAULT_UNMAPPED}
	}
	return e.pa() + va%PageSize, e.flags(), nil
}

// Read copies len(p) bytes at va through the table. If user is set, every
// page must carry PTE_U, the way a user-mode load would be checked.
func (pt *PageTable) Read(va uint64, p []byte, user bool) error {
	addr := va
	for len(p) > 0 {
		e, ok := pt.lookup(addr)
		if !ok {
			return &FaultError{Addr: addr, Size: len(p), Kind: FAULT_UNMAPPED}
		}
		if e&PTE_R == 0 || (user && e&PTE_U == 0) {
			return &FaultError{Addr: addr, Size: len(p), Kind: FAULT_PROT}
		}
		page := pt.alloc.Page(FrameOf(e.pa()))
		if page == nil {
			return errors.Wrapf(ErrBadFrame, "pte for %#x", addr)
		}
		n := copy(p, page[addr%PageSize:])
		addr, p = addr+uint64(n), p[n:]
	}
	return nil
}

// visit calls fn for every valid leaf in ascending va order.
func (pt *PageTable) visit(table Frame, level int, base uint64, fn func(va uint64, e pte)) {
	for i := uint64(0); i < ptesPage; i++ {
		e := pt.readPTE(table, i)
		if !e.valid() {
			continue
		}
		va := base | i<<(PageShift+uint(level)*9)
		if level == 0 || e.leaf() {
			fn(va, e)
		} else {
			pt.visit(FrameOf(e.pa()), level-1, va, fn)
		}
	}
}

// Mappings returns the mapped ranges, coalescing adjacent pages with equal bits.
func (pt *PageTable) Mappings() Mappings {
	var out Mappings
	pt.visit(pt.root, levels-1, 0, func(va uint64, e pte) {
		if n := len(out); n > 0 {
			prev := out[n-1]
			if prev.Addr+prev.Size == va && prev.Perm == e.flags() {
				prev.Size += PageSize
				return
			}
		}
		out = append(out, &Mapping{Addr: va, Size: PageSize, Perm: e.flags(), Phys: e.pa()})
	})
	return out
}

// Owned counts the physical pages this table would release on Destroy.
func (pt *PageTable) Owned() int {
	n := 1
	var count func(table Frame, level int)
	count = func(table Frame, level int) {
		for i := uint64(0); i < ptesPage; i++ {
			e := pt.readPTE(table, i)
			if !e.valid() {
				continue
			}
			n++
			if level > 0 && !e.leaf() {
				count(FrameOf(e.pa()), level-1)
			}
		}
	}
	count(pt.root, levels-1)
	return n
}

func (pt *PageTable) free(table Frame, level int) error {
	var first error
	for i := uint64(0); i < ptesPage; i++ {
		e := pt.readPTE(table, i)
		if !e.valid() {
			continue
		}
		if level > 0 && !e.leaf() {
			if err := pt.free(FrameOf(e.pa()), level-1); err != nil && first == nil {
				first = err
			}
		} else if err := pt.alloc.Free(FrameOf(e.pa())); err != nil && first == nil {
			first = err
		}
		pt.writePTE(table, i, 0)
	}
	if err := pt.alloc.Free(table); err != nil && first == nil {
		first = err
	}
	return first
}

// Destroy frees every page owned by the table, including the root.
// The table must not be used afterwards.
func (pt *PageTable) Destroy() error {
	if !pt.root.IsValid() {
		return nil
	}
	err := pt.free(pt.root, levels-1)
	pt.root = InvalidFrame
	return err
}
