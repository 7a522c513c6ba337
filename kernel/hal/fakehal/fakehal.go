// Package fakehal provides an in-memory implementation of the hal primitives.
// It keeps a translation table per MMU, cache and bus state per core and the
// bank registers, and records every call so tests can assert the exact
// hardware sequence issued by the allocators.
package fakehal

import (
	"fmt"
	"sync"

	"extmem/kernel"
	"extmem/kernel/hal"
	"extmem/kernel/mm"
)

// Entry is a translation table entry of the fake MMU.
type Entry struct {
	Target mm.Target
	Paddr  uintptr
}

// BusWindow describes the virtual range routed through one cache bus.
type BusWindow struct {
	Start, End uintptr
	Bit        uint32
}

// Platform implements hal.MMUPlatform and hal.BankPlatform.
type Platform struct {
	// PageSize is the granularity of the fake translation tables.
	PageSize uintptr

	// Cores is the number of cache-owning cores; MMUs the number of
	// translation tables.
	Cores, MMUs int

	// VirtualOffset is added to a linear address to obtain the virtual
	// address on the corresponding bus.
	VirtualOffset [2]uintptr

	// Buses describes the bus windows used by BusMask. When empty, every
	// range maps to bus bit 0.
	Buses []BusWindow

	// NoRangeInvalidate makes InvalidateRange report hal.ErrUnsupported.
	NoRangeInvalidate bool

	// FailMapAfter makes the n-th MapRegion call (1-based) report a short
	// mapping. Zero disables the injection.
	FailMapAfter int

	// FailUnmap makes UnmapRegion fail.
	FailUnmap bool

	// FailSetBanks makes SetBanks fail.
	FailSetBanks bool

	// Calls records every primitive invocation in order.
	Calls []string

	mu           sync.Mutex
	tables       []map[uintptr]Entry
	cacheEnabled []bool
	busMask      []uint32
	banks        map[uint32]uint32
	irqDepth     int
	mapCalls     int
}

// New returns a fake platform with the given page size, core count and MMU
// count. Caches start enabled.
func New(pageSize uintptr, cores, mmus int) *Platform {
	p := &Platform{PageSize: pageSize, Cores: cores, MMUs: mmus}
	p.Reset()
	return p
}

// Reset clears the tables, bank registers and the call log.
func (p *Platform) Reset() {
	p.tables = make([]map[uintptr]Entry, p.MMUs)
	for i := range p.tables {
		p.tables[i] = make(map[uintptr]Entry)
	}
	p.cacheEnabled = make([]bool, p.Cores)
	for i := range p.cacheEnabled {
		p.cacheEnabled[i] = true
	}
	p.busMask = make([]uint32, p.Cores)
	p.banks = make(map[uint32]uint32)
	p.Calls = nil
	p.mapCalls = 0
	p.irqDepth = 0
}

func (p *Platform) record(format string, args ...interface{}) {
	p.mu.Lock()
	p.Calls = append(p.Calls, fmt.Sprintf(format, args...))
	p.mu.Unlock()
}

// MMUCount implements hal.MMU.
func (p *Platform) MMUCount() int { return p.MMUs }

// CoreCount implements hal.Cache.
func (p *Platform) CoreCount() int { return p.Cores }

// MapRegion implements hal.MMU.
func (p *Platform) MapRegion(mmuID int, target mm.Target, vaddr, paddr, size uintptr) (uintptr, *kernel.Error) {
	p.record("map mmu=%d target=%s vaddr=0x%x paddr=0x%x size=0x%x", mmuID, target, vaddr, paddr, size)
	if mmuID < 0 || mmuID >= len(p.tables) {
		return 0, hal.ErrOutOfRange
	}

	p.mapCalls++
	if p.FailMapAfter != 0 && p.mapCalls >= p.FailMapAfter {
		return size - p.PageSize, nil
	}

	for off := uintptr(0); off < size; off += p.PageSize {
		p.tables[mmuID][vaddr+off] = Entry{Target: target, Paddr: paddr + off}
	}
	return size, nil
}

// UnmapRegion implements hal.MMU.
func (p *Platform) UnmapRegion(mmuID int, vaddr, size uintptr) *kernel.Error {
	p.record("unmap mmu=%d vaddr=0x%x size=0x%x", mmuID, vaddr, size)
	if mmuID < 0 || mmuID >= len(p.tables) || p.FailUnmap {
		return hal.ErrOutOfRange
	}

	for off := uintptr(0); off < size; off += p.PageSize {
		delete(p.tables[mmuID], vaddr+off)
	}
	return nil
}

// LinearToVirtual implements hal.MMU.
func (p *Platform) LinearToVirtual(laddr uintptr, kind mm.AddrKind) uintptr {
	return laddr + p.VirtualOffset[kind]
}

// Lookup returns the translation entry for vaddr in table mmuID.
func (p *Platform) Lookup(mmuID int, vaddr uintptr) (Entry, bool) {
	e, ok := p.tables[mmuID][mm.AlignDown(vaddr, p.PageSize)]
	if ok {
		e.Paddr += vaddr - mm.AlignDown(vaddr, p.PageSize)
	}
	return e, ok
}

// EntryCount returns the number of valid entries in table mmuID.
func (p *Platform) EntryCount(mmuID int) int {
	return len(p.tables[mmuID])
}

// DisableCaches implements hal.Cache.
func (p *Platform) DisableCaches(core int) {
	p.record("cache-disable core=%d", core)
	p.cacheEnabled[core] = false
}

// EnableCaches implements hal.Cache.
func (p *Platform) EnableCaches(core int) {
	p.record("cache-enable core=%d", core)
	p.cacheEnabled[core] = true
}

// CachesEnabled reports whether the caches of core are running.
func (p *Platform) CachesEnabled(core int) bool {
	return p.cacheEnabled[core]
}

// BusMask implements hal.Cache.
func (p *Platform) BusMask(vaddr, size uintptr) uint32 {
	if len(p.Buses) == 0 {
		return 1
	}

	var mask uint32
	for _, bus := range p.Buses {
		if vaddr < bus.End && vaddr+size > bus.Start {
			mask |= bus.Bit
		}
	}
	return mask
}

// EnableBus implements hal.Cache.
func (p *Platform) EnableBus(core int, mask uint32) {
	p.record("bus-enable core=%d mask=0x%x", core, mask)
	p.busMask[core] |= mask
}

// EnabledBuses returns the bus mask enabled on core.
func (p *Platform) EnabledBuses(core int) uint32 {
	return p.busMask[core]
}

// InvalidateRange implements hal.Cache.
func (p *Platform) InvalidateRange(vaddr, size uintptr) *kernel.Error {
	if p.NoRangeInvalidate {
		p.record("invalidate-unsupported")
		return hal.ErrUnsupported
	}
	p.record("invalidate vaddr=0x%x size=0x%x", vaddr, size)
	return nil
}

// WritebackAll implements hal.Cache and hal.BankPlatform.
func (p *Platform) WritebackAll() *kernel.Error {
	p.record("writeback-all")
	return nil
}

// SetBanks implements hal.BankSwitch.
func (p *Platform) SetBanks(virtBank, physBank, count uint32) *kernel.Error {
	p.record("set-banks virt=%d phys=%d count=%d", virtBank, physBank, count)
	if p.FailSetBanks {
		return hal.ErrOutOfRange
	}
	for i := uint32(0); i < count; i++ {
		p.banks[virtBank+i] = physBank + i
	}
	return nil
}

// Bank returns the physical bank the window bank virtBank points to.
func (p *Platform) Bank(virtBank uint32) (uint32, bool) {
	phys, ok := p.banks[virtBank]
	return phys, ok
}

// DisableInterrupts implements sync.InterruptMasker. The fake tracks the
// number of sections currently masking interrupts across all goroutines.
func (p *Platform) DisableInterrupts() uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.irqDepth++
	return uintptr(p.irqDepth)
}

// RestoreInterrupts implements sync.InterruptMasker.
func (p *Platform) RestoreInterrupts(_ uintptr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.irqDepth--
}

// InterruptsMasked reports whether a critical section is currently held.
func (p *Platform) InterruptsMasked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.irqDepth != 0
}

// CountCalls returns the number of recorded calls starting with prefix.
func (p *Platform) CountCalls(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	var n int
	for _, c := range p.Calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

var (
	_ hal.MMUPlatform  = (*Platform)(nil)
	_ hal.BankPlatform = (*Platform)(nil)
)
