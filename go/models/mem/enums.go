package mem

// Sv39 paging, as the RISC-V privileged spec and xv6 define it.
const (
	PageShift = 12
	PageSize  = uint64(1) << PageShift

	// one bit less than the max allowed by Sv39, so addresses never need sign extension
	MaxVA = uint64(1) << (9 + 9 + 9 + 12 - 1)

	// qemu -machine virt puts RAM here
	KernBase = uint64(0x80000000)

	levels   = 3
	ptesPage = 512
	pteSize  = 8

	satpSv39 = uint64(8) << 60
)

// page table entry bits
const (
	PTE_V = 1 << 0 // valid
	PTE_R = 1 << 1
	PTE_W = 1 << 2
	PTE_X = 1 << 3
	PTE_U = 1 << 4 // user-mode accessible
	PTE_G = 1 << 5
	PTE_A = 1 << 6
	PTE_D = 1 << 7

	PTE_RWX   = PTE_R | PTE_W | PTE_X
	pteFlags  = 0x3ff
	pteLeafOK = PTE_RWX
)

// kinds for MapError
const (
	MapAlreadyMapped = iota + 1
	MapNoMemory
	MapBadAddress
	MapBadPerm
)

// kinds for FaultError
const (
	FAULT_UNMAPPED = iota + 1
	FAULT_PROT
)

func RoundUp(a uint64) uint64   { return (a + PageSize - 1) &^ (PageSize - 1) }
func RoundDown(a uint64) uint64 { return a &^ (PageSize - 1) }

// vpn index of va at the given level (0 is the leaf level)
func px(level int, va uint64) uint64 {
	return (va >> (PageShift + uint(level)*9)) & 0x1ff
}
