// Package vmm implements the region/block allocator for platforms that route
// external memory through an MMU translation table. A Manager owns the
// coalesced hardware regions, the ordered block list of each region and the
// commit sequence that programs the MMU and cache hardware.
//
// The hardware has no cache coherency across aliases: mapping a physical range
// that is already mapped is reported as ErrAlreadyMapped (enclosed range) or
// ErrOverlap (partial intersection) unless the caller passes FlagShared.
package vmm

import (
	"extmem/kernel"
	"extmem/kernel/hal"
	"extmem/kernel/kfmt"
	"extmem/kernel/mm"
	"extmem/kernel/sync"
)

var (
	// panicFn is invoked when a commit sequence fails half way. It is
	// mocked by tests and defaults to kfmt.Panic which halts.
	panicFn = kfmt.Panic

	// ErrInvalidArg is returned for null addresses, misaligned physical
	// addresses and illegal capability or target combinations.
	ErrInvalidArg = &kernel.Error{Module: "vmm", Message: "invalid argument", Kind: kernel.KindInvalidArg}

	// ErrInvalidSize is returned for zero-sized requests and requests that
	// exceed the physical limit of the target.
	ErrInvalidSize = &kernel.Error{Module: "vmm", Message: "invalid size", Kind: kernel.KindInvalidArg}

	// ErrInvalidConfig is returned by New when the hardware description is
	// inconsistent.
	ErrInvalidConfig = &kernel.Error{Module: "vmm", Message: "invalid hardware region description", Kind: kernel.KindInvalidArg}

	// ErrNoSuchRegion is returned when no region serves the requested caps
	// and target. It is a configuration problem and not retryable.
	ErrNoSuchRegion = &kernel.Error{Module: "vmm", Message: "no such vaddr range", Kind: kernel.KindNotFound}

	// ErrNoFreeSlot is returned when matching regions exist but none has a
	// free slot large enough. The request may succeed after an Unmap.
	ErrNoFreeSlot = &kernel.Error{Module: "vmm", Message: "no free slot large enough", Kind: kernel.KindNoMem}

	// ErrAlreadyMapped is returned when the requested physical range is
	// enclosed by an existing mapping. The virtual start of that mapping is
	// returned alongside the error.
	ErrAlreadyMapped = &kernel.Error{Module: "vmm", Message: "paddr block is mapped already", Kind: kernel.KindConflict}

	// ErrOverlap is returned when the requested physical range partially
	// overlaps an existing mapping and FlagShared was not supplied.
	ErrOverlap = &kernel.Error{Module: "vmm", Message: "paddr block overlaps an existing mapping", Kind: kernel.KindConflict}

	// ErrNotFound is returned when no live block matches a lookup.
	ErrNotFound = &kernel.Error{Module: "vmm", Message: "no mapped block matches address", Kind: kernel.KindNotFound}

	// ErrAlreadyInitialized is returned by a second call to Init.
	ErrAlreadyInitialized = &kernel.Error{Module: "vmm", Message: "vmm already initialized", Kind: kernel.KindInvalidState}

	errCorruptRegion    = &kernel.Error{Module: "vmm", Message: "region free slot accounting is corrupt", Kind: kernel.KindFatal}
	errCommitMap        = &kernel.Error{Module: "vmm", Message: "failed to write translation entries", Kind: kernel.KindFatal}
	errCommitUnmap      = &kernel.Error{Module: "vmm", Message: "failed to clear translation entries", Kind: kernel.KindFatal}
	errCommitInvalidate = &kernel.Error{Module: "vmm", Message: "failed to invalidate cache", Kind: kernel.KindFatal}
)

// Flags modify the behavior of Map.
type Flags uint8

const (
	// FlagShared allows the new mapping to partially overlap the physical
	// range of existing mappings of the same target.
	FlagShared Flags = 1 << iota
)

// HWRegion describes a range of linear address space as reported by the
// platform hardware table.
type HWRegion struct {
	LinearStart, LinearEnd uintptr

	// Caps is the set of capabilities the range supports.
	Caps mm.Caps

	// Targets is the set of backing devices the range can reach.
	Targets mm.Target

	// BusMask identifies the cache buses behind the range.
	BusMask uint32
}

// ReservedRange is a linear range that is already in use by statically placed
// code or data; it is carved out of the hardware regions at init.
type ReservedRange struct {
	Name       string
	Start, End uintptr
}

// Config holds the inputs consumed once by New.
type Config struct {
	// PageSize is the MMU page size; it must be a power of two.
	PageSize uintptr

	// Regions is the hardware region table.
	Regions []HWRegion

	// Reserved lists linker provided ranges occupied by static code/data.
	Reserved []ReservedRange

	// PhysicalLimit optionally caps the physical address space of a
	// target. A zero or missing entry disables the check.
	PhysicalLimit map[mm.Target]uintptr

	// HAL provides the MMU and cache primitives.
	HAL hal.MMUPlatform
}

// Manager owns the region registry and the block lists of every region. All
// bookkeeping is guarded by a critical section that also masks interrupts on
// the calling core.
type Manager struct {
	cs        sync.CriticalSection
	hw        hal.MMUPlatform
	pageSize  uintptr
	physLimit map[mm.Target]uintptr
	regions   []*region
}

var (
	initLock       sync.Spinlock
	defaultManager *Manager
)

// Init builds the process-wide Manager from cfg. It may only be called once;
// later calls fail with ErrAlreadyInitialized.
func Init(cfg Config) *kernel.Error {
	initLock.Acquire()
	defer initLock.Release()

	if defaultManager != nil {
		return ErrAlreadyInitialized
	}

	m, err := New(cfg)
	if err != nil {
		return err
	}

	defaultManager = m
	return nil
}

// Default returns the Manager installed by Init or nil if Init has not been
// called yet.
func Default() *Manager {
	initLock.Acquire()
	defer initLock.Release()
	return defaultManager
}

// PageSize returns the MMU page size used by the manager.
func (m *Manager) PageSize() uintptr {
	return m.pageSize
}
