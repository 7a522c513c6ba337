package mmio

import (
	"extmem/kernel"
	"extmem/kernel/mm"
)

// Translation entry encoding.
const (
	entryValid     = uint32(1 << 31)
	entryTargetRAM = uint32(1 << 30)
	entryPageMask  = uint32(1<<30 - 1)
)

// Cache controller register bits.
const (
	cacheEnable = uint32(1 << 0)
	opStart     = uint32(1 << 0)
)

// defaultSpinLimit bounds the wait for a cache operation to complete.
const defaultSpinLimit = 1 << 16

var (
	// ErrInvalidLayout is returned by Open for inconsistent layouts.
	ErrInvalidLayout = &kernel.Error{Module: "mmio", Message: "invalid register layout", Kind: kernel.KindInvalidArg}
)

// BusWindow describes the virtual range routed through one cache bus.
type BusWindow struct {
	Start, End uintptr
	Bit        uint32
}

// Layout describes where the MMU tables, cache controller and bank registers
// live inside the mapped register file. All offsets are byte offsets from the
// start of the file and must be 4-byte aligned. Optional registers with a zero
// offset are treated as absent.
type Layout struct {
	// PageSize is the size covered by one translation entry.
	PageSize uintptr

	// MMUs tables of TableEntries 32-bit entries each start at
	// TableOffset and are TableStride bytes apart.
	MMUs         int
	TableOffset  uintptr
	TableStride  uintptr
	TableEntries uint32

	// LinearBase is the linear address translated by entry 0 and
	// VirtualBase the CPU address of LinearBase on each bus view.
	LinearBase  uintptr
	VirtualBase [2]uintptr

	// Cores cache controllers each have a control register at
	// CacheCtrlOffset+4*core and a bus enable register at
	// BusCtrlOffset+4*core.
	Cores           int
	CacheCtrlOffset uintptr
	BusCtrlOffset   uintptr
	Buses           []BusWindow

	// InvalidateOffset points at three registers: start address, size and
	// control. An operation is started by setting the control start bit
	// which the hardware clears on completion. Optional.
	InvalidateOffset uintptr

	// WritebackOffset points at the control register of the full cache
	// writeback. Optional.
	WritebackOffset uintptr

	// BankOffset points at BankCount 32-bit bank registers. Optional.
	BankOffset uintptr
	BankCount  uint32

	// SpinLimit bounds the busy wait on cache operations. Zero selects a
	// default.
	SpinLimit int
}

// validate checks l and returns the number of bytes spanned by the
// registers.
func (l *Layout) validate() (uintptr, *kernel.Error) {
	if !mm.IsPowerOfTwo(l.PageSize) || l.MMUs <= 0 || l.Cores <= 0 || l.TableEntries == 0 {
		return 0, ErrInvalidLayout
	}
	if l.MMUs > 1 && l.TableStride < uintptr(l.TableEntries)*4 {
		return 0, ErrInvalidLayout
	}

	var (
		span    uintptr
		offsets = []struct{ offset, size uintptr }{
			{l.TableOffset, l.TableStride*uintptr(l.MMUs-1) + uintptr(l.TableEntries)*4},
			{l.CacheCtrlOffset, uintptr(l.Cores) * 4},
			{l.BusCtrlOffset, uintptr(l.Cores) * 4},
			{l.InvalidateOffset, 12},
			{l.WritebackOffset, 4},
			{l.BankOffset, uintptr(l.BankCount) * 4},
		}
	)
	for _, r := range offsets {
		if !mm.IsAligned(r.offset, 4) {
			return 0, ErrInvalidLayout
		}
		if end := r.offset + r.size; end > span {
			span = end
		}
	}

	return span, nil
}
