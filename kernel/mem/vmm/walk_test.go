package vmm

import (
	"lucid/kernel/mem/pmm"
	"testing"
	"unsafe"
)

func TestPtePtrFn(t *testing.T) {
	// Dummy test to keep coverage happy
	if exp, got := unsafe.Pointer(uintptr(123)), ptePtrFn(uintptr(123)); exp != got {
		t.Fatalf("expected ptePtrFn to return %v; got %v", exp, got)
	}
}

// fakeTable simulates a single page-table level as an in-memory array of
// entries tagged with its own fake physical address, so walk() can chase
// pte.Frame() across levels without any real hardware page table.
type fakeTable struct {
	physAddr uintptr
	entries  [512]pageTableEntry
}

func TestWalkFourLevels(t *testing.T) {
	defer func(origActive func() uintptr, origPhys func(uintptr) uintptr, origPte func(uintptr) unsafe.Pointer) {
		activePDTFn = origActive
		physToVirtFn = origPhys
		ptePtrFn = origPte
	}(activePDTFn, physToVirtFn, ptePtrFn)

	sizeofPte := unsafe.Sizeof(pageTableEntry(0))

	tables := make([]*fakeTable, pageLevels)
	for i := range tables {
		tables[i] = &fakeTable{physAddr: uintptr((i + 1) << 20)}
	}
	for i := 0; i < pageLevels-1; i++ {
		tables[i].entries[0].SetFrame(pmm.Frame(tables[i+1].physAddr >> 12))
		tables[i].entries[0].SetFlags(FlagPresent | FlagRW)
	}

	byPhys := map[uintptr]*fakeTable{}
	for _, tbl := range tables {
		byPhys[tbl.physAddr] = tbl
	}

	activePDTFn = func() uintptr { return tables[0].physAddr }
	physToVirtFn = func(phys uintptr) uintptr { return phys } // identity for the test

	ptePtrFn = func(entryAddr uintptr) unsafe.Pointer {
		for phys, tbl := range byPhys {
			tableEnd := phys + uintptr(len(tbl.entries))*sizeofPte
			if entryAddr >= phys && entryAddr < tableEnd {
				idx := (entryAddr - phys) / sizeofPte
				return unsafe.Pointer(&tbl.entries[idx])
			}
		}
		t.Fatalf("ptePtrFn called with unexpected address 0x%x", entryAddr)
		return nil
	}

	var visitedLevels []uint8
	walk(0, func(level uint8, pte *pageTableEntry) bool {
		visitedLevels = append(visitedLevels, level)
		return true
	})

	if len(visitedLevels) != pageLevels {
		t.Fatalf("expected to visit %d levels; visited %d", pageLevels, len(visitedLevels))
	}
	for i, lvl := range visitedLevels {
		if lvl != uint8(i) {
			t.Errorf("expected level %d at step %d; got %d", i, i, lvl)
		}
	}
}
