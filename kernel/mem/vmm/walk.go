package vmm

import (
	"lucid/kernel/cpu"
	"lucid/kernel/mem"
	"unsafe"
)

var (
	// activePDTFn is used by tests to override calls to cpu.ActivePDT which
	// will fault if called outside of ring 0.
	activePDTFn = cpu.ActivePDT

	// ptePtrFn converts the virtual address of a page table entry to a
	// pointer. It is overridden by tests so walk() can run against a
	// fake page table hierarchy.
	ptePtrFn = func(entryAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(entryAddr)
	}
)

// pageTableWalker is invoked by walk with the current page level and the
// page table entry at that level for the address being walked. If it returns
// false, the walk stops at the current level.
type pageTableWalker func(pteLevel uint8, pte *pageTableEntry) bool

// walk performs a four-level page table walk for virtAddr starting at the
// currently active top-level table (CR3). Because all of physical memory is
// linearly visible at physToVirt(phys), each page table level is reached by
// translating the physical frame stored in the previous level's entry;
// unlike the recursive-mapping scheme this replaces, no table ever needs a
// temporary virtual mapping of its own to be inspected.
func walk(virtAddr uintptr, walkFn pageTableWalker) {
	var (
		level     uint8
		tableAddr = PhysToVirt(activePDTFn())
		pte       *pageTableEntry
		ok        bool
	)

	for level = 0; level < pageLevels; level++ {
		entryIndex := (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
		entryAddr := tableAddr + (entryIndex << mem.PointerShift)

		pte = (*pageTableEntry)(ptePtrFn(entryAddr))
		if ok = walkFn(level, pte); !ok {
			return
		}

		if level+1 < pageLevels {
			tableAddr = PhysToVirt(pte.Frame().Address())
		}
	}
}
