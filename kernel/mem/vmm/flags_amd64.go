package vmm

const (
	// pageLevels indicates the number of page table levels on amd64.
	pageLevels = 4

	// ptePhysPageMask extracts the physical frame address from a page
	// table entry (bits 12-51).
	ptePhysPageMask = uintptr(0x000ffffffffff000)

	// kernelReserveTop is the highest virtual address handed out by
	// EarlyReserveRegion. It lies in the upper (kernel) half of the
	// canonical address space, above the canonical-address hole, so
	// reservations never collide with user-space mappings.
	kernelReserveTop = uintptr(0xffffff0000000000)
)

var (
	// pageLevelBits defines the number of virtual address bits that
	// correspond to each page level. Each level indexes 512 entries.
	pageLevelBits = [pageLevels]uint8{9, 9, 9, 9}

	// pageLevelShifts defines the shift required to extract each page
	// table level's index out of a virtual address.
	pageLevelShifts = [pageLevels]uint8{39, 30, 21, 12}
)

const (
	// FlagPresent is set when the page is available in memory.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW

	// FlagUserAccessible is set if user-mode code may access this page.
	FlagUserAccessible

	// FlagWriteThroughCaching implies write-through caching when set.
	FlagWriteThroughCaching

	// FlagDoNotCache prevents this page from being cached.
	FlagDoNotCache

	// FlagAccessed is set by the CPU when the page is accessed.
	FlagAccessed

	// FlagDirty is set by the CPU when the page is modified.
	FlagDirty

	// FlagHugePage marks a 2MiB (or 1GiB) mapping instead of a 4KiB one.
	FlagHugePage

	// FlagGlobal prevents the TLB entry for this page from being flushed
	// on a CR3 switch.
	FlagGlobal

	// FlagCopyOnWrite marks a read-only page for copy-on-write. Mutually
	// exclusive with FlagRW.
	FlagCopyOnWrite = 1 << 9

	// FlagNoExecute marks a page as containing non-executable data.
	FlagNoExecute = 1 << 63
)

// DefaultFlags is the flag set present, writable, no-execute. No function in
// this package applies it on its own; callers pass it to Map explicitly.
const DefaultFlags = FlagPresent | FlagRW | FlagNoExecute
