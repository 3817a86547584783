// Package elftest writes small ELF64 executables for tests.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"github.com/lunixbochs/struc"
)

type header struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type prog struct {
	Type   uint32
	Flags  uint32
	Off    uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

// Segment is one program header. Data is the file content; Memsz defaults to
// len(Data) when zero. Type defaults to PT_LOAD.
type Segment struct {
	Type  elf.ProgType
	Flags elf.ProgFlag
	Vaddr uint64
	Memsz uint64
	Data  []byte
}

// File describes an executable. Zero fields get RISC-V ELF64 LSB defaults.
type File struct {
	Entry    uint64
	Machine  elf.Machine
	Class    elf.Class
	Encoding elf.Data
	Segments []Segment
}

// RV64 returns a File for a RISC-V executable with the given segments.
func RV64(entry uint64, segs ...Segment) *File {
	return &File{Entry: entry, Segments: segs}
}

// Bytes lays out the header, the program headers, then each segment's data.
func (f *File) Bytes() []byte {
	h := header{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(f.Machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     f.Entry,
		Phoff:     64,
		Ehsize:    64,
		Phentsize: 56,
		Phnum:     uint16(len(f.Segments)),
		Shentsize: 64,
	}
	if f.Machine == 0 {
		h.Machine = uint16(elf.EM_RISCV)
	}
	class, data := f.Class, f.Encoding
	if class == 0 {
		class = elf.ELFCLASS64
	}
	if data == 0 {
		data = elf.ELFDATA2LSB
	}
	copy(h.Ident[:], elf.ELFMAG)
	h.Ident[elf.EI_CLASS] = byte(class)
	h.Ident[elf.EI_DATA] = byte(data)
	h.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	off := uint64(64 + 56*len(f.Segments))
	progs := make([]prog, len(f.Segments))
	for i, s := range f.Segments {
		p := &progs[i]
		p.Type = uint32(elf.PT_LOAD)
		if s.Type != 0 {
			p.Type = uint32(s.Type)
		}
		p.Flags = uint32(s.Flags)
		p.Off = off
		p.Vaddr = s.Vaddr
		p.Paddr = s.Vaddr
		p.Filesz = uint64(len(s.Data))
		p.Memsz = s.Memsz
		if p.Memsz == 0 {
			p.Memsz = p.Filesz
		}
		p.Align = 0x1000
		off += p.Filesz
	}

	var buf bytes.Buffer
	if err := struc.PackWithOrder(&buf, &h, binary.LittleEndian); err != nil {
		panic(err)
	}
	for i := range progs {
		if err := struc.PackWithOrder(&buf, &progs[i], binary.LittleEndian); err != nil {
			panic(err)
		}
	}
	for _, s := range f.Segments {
		buf.Write(s.Data)
	}
	return buf.Bytes()
}

var progFields = map[string]int{"offset": 8, "vaddr": 16, "filesz": 32, "memsz": 40}

// SetProg overwrites a 64-bit field of program header i in image, for
// building deliberately broken files.
func SetProg(image []byte, i int, field string, v uint64) {
	off, ok := progFields[field]
	if !ok {
		panic("elftest: unknown program header field " + field)
	}
	binary.LittleEndian.PutUint64(image[64+56*i+off:], v)
}
