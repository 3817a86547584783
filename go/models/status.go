package models

import (
	"fmt"
	"strings"

	"github.com/mgutz/ansi"

	"github.com/timeros/appload/go/models/mem"
)

var (
	chExec  = ansi.ColorCode("green+b:default")
	chWrite = ansi.ColorCode("red:default")
	chRead  = ansi.ColorCode("default:default")
	chAddr  = ansi.ColorCode("cyan:default")
)

func colorPad(s, color string, pad int) string {
	length := len(s)
	s = color + s + ansi.Reset
	if length < pad {
		s = strings.Repeat(" ", pad-length) + s
	}
	return s
}

func permColor(perm int) string {
	switch {
	case perm&mem.PTE_X != 0:
		return chExec
	case perm&mem.PTE_W != 0:
		return chWrite
	default:
		return chRead
	}
}

// MapLine renders one mapping, padded for column output.
func MapLine(m *mem.Mapping, color bool) string {
	addr := fmt.Sprintf("0x%08x-0x%08x", m.Addr, m.Addr+m.Size)
	perm := mem.PermString(m.Perm)
	pages := fmt.Sprintf("%d", m.Size/mem.PageSize)
	if color {
		return fmt.Sprintf("%s %s %s pages @ 0x%x", colorPad(addr, chAddr, 21), colorPad(perm, permColor(m.Perm), 4), pages, m.Phys)
	}
	return fmt.Sprintf("%21s %4s %s pages @ 0x%x", addr, perm, pages, m.Phys)
}

// MapDump renders a whole mapping list, one line per run.
func MapDump(maps mem.Mappings, color bool) []string {
	out := make([]string, 0, len(maps))
	for _, m := range maps {
		out = append(out, MapLine(m, color))
	}
	return out
}
