package vmm

import "lucid/kernel"

// physMemOffset is the virtual address at which physical address 0 is
// linearly mapped. It is set once by Init using the value supplied in the
// boot-info record and never changes afterwards.
var physMemOffset uintptr

// physToVirtFn is overridden by tests so walk() can run without a real
// linear mapping in place.
var physToVirtFn = func(phys uintptr) uintptr {
	return phys + physMemOffset
}

// SetPhysOffset records the bootloader-provided physical memory offset. It
// must be called once, before any other vmm function, typically from the
// kernel entry point with the value taken from the boot-info record.
func SetPhysOffset(offset uintptr) {
	physMemOffset = offset
}

// PhysToVirt returns the virtual address at which the given physical address
// is reachable through the kernel's linear physical-memory mapping. It is
// only valid for addresses that fall within RAM reported by the firmware.
func PhysToVirt(phys uintptr) uintptr {
	return physToVirtFn(phys)
}

// Translate returns the physical address that corresponds to the supplied
// virtual address or ErrInvalidMapping if the virtual address does not
// correspond to a mapped physical address.
func Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	pte, err := pteForAddress(virtAddr)
	if err != nil {
		return 0, err
	}

	physAddr := pte.Frame().Address() + PageOffset(virtAddr)
	return physAddr, nil
}

// PageOffset returns the offset within the page specified by a virtual
// address.
func PageOffset(virtAddr uintptr) uintptr {
	return virtAddr & ((1 << pageLevelShifts[pageLevels-1]) - 1)
}
