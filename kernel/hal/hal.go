// Package hal defines the register-level primitives consumed by the mapping
// layer. Implementations are assumed to be correct; the allocators treat any
// error reported by them in the middle of a commit sequence as fatal.
package hal

import (
	"extmem/kernel"
	"extmem/kernel/mm"
	"extmem/kernel/sync"
)

var (
	// ErrUnsupported is returned by primitives the hardware does not
	// provide, e.g. invalidating a cache address range.
	ErrUnsupported = &kernel.Error{Module: "hal", Message: "operation not supported by hardware", Kind: kernel.KindInvalidState}

	// ErrTimeout is returned when a hardware status flag fails to clear
	// within the bounded spin.
	ErrTimeout = &kernel.Error{Module: "hal", Message: "timed out waiting for hardware", Kind: kernel.KindFatal}

	// ErrOutOfRange is returned when a primitive is asked to touch entries
	// or registers that do not exist.
	ErrOutOfRange = &kernel.Error{Module: "hal", Message: "address outside of hardware range", Kind: kernel.KindInvalidArg}
)

// MMU programs the translation tables. Each cache-owning core may have its own
// table; all of them are kept identical.
type MMU interface {
	// MMUCount returns the number of translation tables.
	MMUCount() int

	// MapRegion writes translation entries so that [vaddr, vaddr+size)
	// resolves to [paddr, paddr+size) on the given target and returns the
	// number of bytes actually mapped.
	MapRegion(mmuID int, target mm.Target, vaddr, paddr, size uintptr) (uintptr, *kernel.Error)

	// UnmapRegion invalidates the translation entries covering
	// [vaddr, vaddr+size).
	UnmapRegion(mmuID int, vaddr, size uintptr) *kernel.Error

	// LinearToVirtual converts a linear address to the address the CPU
	// uses on the selected bus.
	LinearToVirtual(laddr uintptr, kind mm.AddrKind) uintptr
}

// Cache controls the instruction/data cache hierarchy and the cache buses that
// route CPU accesses to external memory.
type Cache interface {
	// CoreCount returns the number of cache-owning cores.
	CoreCount() int

	// DisableCaches suspends instruction and data caches on a core.
	DisableCaches(core int)

	// EnableCaches resumes instruction and data caches on a core.
	EnableCaches(core int)

	// BusMask returns the cache buses covering [vaddr, vaddr+size).
	BusMask(vaddr, size uintptr) uint32

	// EnableBus enables the cache buses in mask on a core.
	EnableBus(core int, mask uint32)

	// InvalidateRange drops cached lines for [vaddr, vaddr+size). It
	// returns ErrUnsupported if the hardware cannot invalidate by range.
	InvalidateRange(vaddr, size uintptr) *kernel.Error

	// WritebackAll writes back every dirty line and invalidates the cache.
	WritebackAll() *kernel.Error
}

// BankSwitch relocates the fixed window used on platforms without an MMU
// table.
type BankSwitch interface {
	// SetBanks points count consecutive window banks starting at virtBank
	// to physical banks starting at physBank on every core.
	SetBanks(virtBank, physBank, count uint32) *kernel.Error
}

// MMUPlatform bundles the primitives the region/block allocator depends on.
type MMUPlatform interface {
	MMU
	Cache
	sync.InterruptMasker
}

// BankPlatform bundles the primitives the bank-switch allocator depends on.
type BankPlatform interface {
	BankSwitch
	WritebackAll() *kernel.Error
	sync.InterruptMasker
}
