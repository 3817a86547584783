package mem

import (
	"fmt"
	"strings"
)

// Mapping is a run of virtually contiguous pages with the same PTE bits.
type Mapping struct {
	Addr uint64
	Size uint64
	Perm int
	// physical address of the first page
	Phys uint64
}

// PermString renders PTE bits as "rwxu".
func PermString(perm int) string {
	bits := []int{PTE_R, PTE_W, PTE_X, PTE_U}
	chars := []string{"r", "w", "x", "u"}
	s := ""
	for i := range bits {
		if perm&bits[i] != 0 {
			s += chars[i]
		} else {
			s += "-"
		}
	}
	return s
}

func (m *Mapping) String() string {
	return fmt.Sprintf("0x%x-0x%x %s", m.Addr, m.Addr+m.Size, PermString(m.Perm))
}

func (m *Mapping) Contains(addr uint64) bool {
	return addr >= m.Addr && addr < m.Addr+m.Size
}

// start = max(s1, s2), end = min(e1, e2), ok = end > start
func (m *Mapping) Intersect(addr, size uint64) (uint64, uint64, bool) {
	start := m.Addr
	end := m.Addr + m.Size
	e2 := addr + size
	if end > e2 {
		end = e2
	}
	if start < addr {
		start = addr
	}
	return start, end - start, end > start
}

func (m *Mapping) Overlaps(addr, size uint64) bool {
	_, _, ok := m.Intersect(addr, size)
	return ok
}

// Mappings is kept sorted by address.
type Mappings []*Mapping

func (m Mappings) String() string {
	s := make([]string, len(m))
	for i, v := range m {
		s[i] = v.String()
	}
	return strings.Join(s, "\n")
}

// binary search to find index of the mapping containing addr, if any, else -1
func (m Mappings) bsearch(addr uint64) int {
	l := 0
	r := len(m) - 1
	for l <= r {
		mid := (l + r) / 2
		e := m[mid]
		if e.Contains(addr) {
			return mid
		} else if addr >= e.Addr {
			l = mid + 1
		} else {
			r = mid - 1
		}
	}
	return -1
}

func (m Mappings) Find(addr uint64) *Mapping {
	if i := m.bsearch(addr); i >= 0 {
		return m[i]
	}
	return nil
}

// Pages sums the number of pages covered by the mappings.
func (m Mappings) Pages() int {
	n := 0
	for _, v := range m {
		n += int(v.Size / PageSize)
	}
	return n
}
