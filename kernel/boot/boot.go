// Package boot describes the hand-off record passed to the kernel by the
// bootloader. It replaces the multiboot-specific parsing that earlier
// revisions of this kernel relied on with a small, bootloader-agnostic
// struct that a UEFI or BIOS stage-2 loader can populate directly.
package boot

// MemoryRegionKind classifies a physical memory region reported by firmware.
type MemoryRegionKind uint8

const (
	// Usable regions may be handed out by the frame allocator.
	Usable MemoryRegionKind = iota

	// Reserved regions are never allocated (firmware tables, MMIO holes,
	// the bootloader and kernel images themselves, ...).
	Reserved

	// BootloaderReclaimable regions are safe to repurpose once the
	// bootloader's own data structures are no longer needed.
	BootloaderReclaimable

	// Unusable regions are reported by firmware as defective memory.
	Unusable
)

// MemoryRegion describes a contiguous range of physical memory.
type MemoryRegion struct {
	StartAddr uintptr
	EndAddr   uintptr
	Kind      MemoryRegionKind
}

// Size returns the number of bytes covered by this region.
func (r MemoryRegion) Size() uintptr {
	return r.EndAddr - r.StartAddr
}

// PixelFormat describes how a single pixel is laid out in the framebuffer.
type PixelFormat uint8

const (
	// PixelFormatRGB stores the red channel in the lowest-addressed byte.
	PixelFormatRGB PixelFormat = iota

	// PixelFormatBGR stores the blue channel in the lowest-addressed byte.
	PixelFormatBGR

	// PixelFormatU8 is a single grayscale/indexed byte per pixel.
	PixelFormatU8
)

// FramebufferInfo describes the geometry of the linear framebuffer handed off
// by the bootloader's graphics-output-protocol (or VBE/VESA equivalent) call.
type FramebufferInfo struct {
	Width          uint32
	Height         uint32
	Stride         uint32 // pixels per scan line
	BytesPerPixel  uint8
	PixelFormat    PixelFormat
}

// BytesPerRow returns the number of bytes that separate the start of one scan
// line from the next.
func (fi FramebufferInfo) BytesPerRow() uint32 {
	return fi.Stride * uint32(fi.BytesPerPixel)
}

// Offset returns the byte offset of pixel (x, y) within the framebuffer.
func (fi FramebufferInfo) Offset(x, y uint32) uint32 {
	return y*fi.BytesPerRow() + x*uint32(fi.BytesPerPixel)
}

// Info is the record passed by the bootloader to the kernel entry point. All
// of physical memory is assumed to be linearly visible starting at
// PhysicalMemoryOffset: for any mapped physical address p, the byte at p is
// also reachable at virtual address p+PhysicalMemoryOffset.
type Info struct {
	// PhysicalMemoryOffset is the virtual address at which physical
	// address 0 is mapped.
	PhysicalMemoryOffset uintptr

	// MemoryRegions lists the firmware-reported physical memory map in
	// ascending, non-overlapping order.
	MemoryRegions []MemoryRegion

	// FramebufferAddr is the physical address of the linear framebuffer.
	FramebufferAddr uintptr

	// FramebufferLen is the size in bytes of the framebuffer region.
	FramebufferLen uintptr

	// Framebuffer describes the geometry/pixel layout of the framebuffer.
	Framebuffer FramebufferInfo

	// RSDPAddr is the physical address of the ACPI root system descriptor
	// pointer, or 0 if the bootloader could not locate one. No code in the
	// kernel reads this field: device/acpi always locates the RSDP by
	// scanning the legacy BIOS area.
	RSDPAddr uintptr
}
