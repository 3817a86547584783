package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/timeros/appload/go/models/mem"
)

const (
	elfHeaderSize = 64
	progEntSize   = 56
)

var elfMagic = []byte{0x7f, 0x45, 0x4c, 0x46}

// ElfHeader is the ELF64 file header.
type ElfHeader struct {
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

// ProgHeader is an ELF64 program header.
type ProgHeader struct {
	Type   uint32
	Flags  uint32
	Off    uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

func (p *ProgHeader) Loadable() bool { return elf.ProgType(p.Type) == elf.PT_LOAD }

// ElfImage is a validated executable: its bytes, header and program headers.
type ElfImage struct {
	Data   []byte
	Header *ElfHeader
	Progs  []ProgHeader
}

func (e *ElfImage) Entry() uint64 { return e.Header.Entry }

func MatchElf(image []byte) bool {
	return len(image) >= len(elfMagic) && bytes.Equal(image[:len(elfMagic)], elfMagic)
}

func unpackAt(r io.ReaderAt, i interface{}, at uint64) (int, error) {
	size, err := struc.Sizeof(i)
	if err != nil {
		return 0, err
	}
	return size, struc.UnpackWithOrder(io.NewSectionReader(r, int64(at), int64(size)), i, binary.LittleEndian)
}

// ReadHeader decodes the ELF header at the start of image.
func ReadHeader(image []byte) (*ElfHeader, error) {
	if len(image) < elfHeaderSize {
		return nil, &FormatError{Field: "size", Got: uint64(len(image)), Want: elfHeaderSize}
	}
	var h ElfHeader
	if _, err := unpackAt(bytes.NewReader(image), &h, 0); err != nil {
		return nil, errors.Wrap(err, "unpack ELF header")
	}
	return &h, nil
}

// Validate checks magic, class, data encoding and machine. Nothing else in the
// header is trusted until ProgHeaders range checks it.
func Validate(h *ElfHeader) error {
	magic := binary.BigEndian.Uint32(h.Ident[:4])
	if want := binary.BigEndian.Uint32(elfMagic); magic != want {
		return &FormatError{Field: "magic", Got: uint64(magic), Want: uint64(want)}
	}
	if class := elf.Class(h.Ident[elf.EI_CLASS]); class != elf.ELFCLASS64 {
		return &FormatError{Field: "class", Got: uint64(class), Want: uint64(elf.ELFCLASS64)}
	}
	if data := elf.Data(h.Ident[elf.EI_DATA]); data != elf.ELFDATA2LSB {
		return &FormatError{Field: "data", Got: uint64(data), Want: uint64(elf.ELFDATA2LSB)}
	}
	if machine := elf.Machine(h.Machine); machine != elf.EM_RISCV {
		return &FormatError{Field: "machine", Got: uint64(machine), Want: uint64(elf.EM_RISCV)}
	}
	return nil
}

// ProgHeaders reads the program header table after checking it lies inside image.
func ProgHeaders(image []byte, h *ElfHeader) ([]ProgHeader, error) {
	if h.Phnum == 0 {
		return nil, nil
	}
	if h.Phentsize < progEntSize {
		return nil, &FormatError{Field: "phentsize", Got: uint64(h.Phentsize), Want: progEntSize}
	}
	size := uint64(h.Phnum) * uint64(h.Phentsize)
	if h.Phoff > uint64(len(image)) || size > uint64(len(image))-h.Phoff {
		return nil, &FormatError{Field: "phoff", Got: h.Phoff}
	}
	r := bytes.NewReader(image)
	progs := make([]ProgHeader, h.Phnum)
	for i := range progs {
		if _, err := unpackAt(r, &progs[i], h.Phoff+uint64(i)*uint64(h.Phentsize)); err != nil {
			return nil, errors.Wrapf(err, "unpack program header %d", i)
		}
	}
	return progs, nil
}

// Open validates image as a RISC-V ELF64 executable.
func Open(image []byte) (*ElfImage, error) {
	h, err := ReadHeader(image)
	if err != nil {
		return nil, err
	}
	if err := Validate(h); err != nil {
		return nil, err
	}
	progs, err := ProgHeaders(image, h)
	if err != nil {
		return nil, err
	}
	return &ElfImage{Data: image, Header: h, Progs: progs}, nil
}

// FlagsToPerm translates ELF segment flags into PTE permission bits.
func FlagsToPerm(flags uint32) int {
	f := elf.ProgFlag(flags)
	perm := 0
	if f&elf.PF_R != 0 {
		perm |= mem.PTE_R
	}
	if f&elf.PF_W != 0 {
		perm |= mem.PTE_W
	}
	if f&elf.PF_X != 0 {
		perm |= mem.PTE_X
	}
	return perm
}
