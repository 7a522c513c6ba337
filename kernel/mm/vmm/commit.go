package vmm

import (
	"extmem/kernel"
	"extmem/kernel/hal"
	"extmem/kernel/mm"
)

// commitMap programs the hardware for a new mapping. Caches are suspended on
// every core while the translation tables are written, the cache buses behind
// the range are enabled and stale lines for the range are dropped before the
// caches resume.
//
// Any failure leaves the translation tables half written; the error is
// reported through panicFn and returned for the benefit of tests that replace
// it.
func (m *Manager) commitMap(vaddr, paddr, size uintptr, target mm.Target) *kernel.Error {
	cores := m.hw.CoreCount()
	for core := 0; core < cores; core++ {
		m.hw.DisableCaches(core)
	}

	for mmuID := 0; mmuID < m.hw.MMUCount(); mmuID++ {
		mapped, err := m.hw.MapRegion(mmuID, target, vaddr, paddr, size)
		if err != nil || mapped != size {
			panicFn(errCommitMap)
			return errCommitMap
		}
	}

	busMask := m.hw.BusMask(vaddr, size)
	for core := 0; core < cores; core++ {
		m.hw.EnableBus(core, busMask)
	}

	switch err := m.hw.InvalidateRange(vaddr, size); err {
	case nil:
	case hal.ErrUnsupported:
		if err = m.hw.WritebackAll(); err != nil {
			panicFn(errCommitInvalidate)
			return errCommitInvalidate
		}
	default:
		panicFn(errCommitInvalidate)
		return errCommitInvalidate
	}

	for core := 0; core < cores; core++ {
		m.hw.EnableCaches(core)
	}
	return nil
}

// commitUnmap clears the translation entries of a block with the caches
// suspended on every core.
func (m *Manager) commitUnmap(vaddr, size uintptr) *kernel.Error {
	cores := m.hw.CoreCount()
	for core := 0; core < cores; core++ {
		m.hw.DisableCaches(core)
	}

	for mmuID := 0; mmuID < m.hw.MMUCount(); mmuID++ {
		if err := m.hw.UnmapRegion(mmuID, vaddr, size); err != nil {
			panicFn(errCommitUnmap)
			return errCommitUnmap
		}
	}

	for core := 0; core < cores; core++ {
		m.hw.EnableCaches(core)
	}
	return nil
}
