package vmm

import (
	"extmem/kernel"
	"extmem/kernel/kfmt"
	"extmem/kernel/mm"
)

// Reserve allocates a page-aligned range of virtual address space in the first
// region serving caps and target without writing any translation entries. The
// range is released with Unmap.
//
// The size argument is rounded up to the nearest page boundary.
func (m *Manager) Reserve(size uintptr, caps mm.Caps, target mm.Target) (uintptr, *kernel.Error) {
	if size == 0 {
		return 0, ErrInvalidSize
	}
	if caps.Validate() != nil || !target.Valid() {
		return 0, ErrInvalidArg
	}
	size = mm.AlignUp(size, m.pageSize)

	state := m.cs.Enter()
	defer m.cs.Exit(state)

	r, err := m.findRegion(size, caps, target)
	if err != nil {
		return 0, err
	}

	prev, laddr := r.findSlot(size)
	b := m.newBlock(laddr, size, caps)
	r.blocks.insertAfter(prev, b)
	r.recomputeFreeSlots()

	return b.VirtualStart, nil
}

// Map establishes a mapping for the physical range [paddr, paddr+size) of the
// given target and returns the virtual address of its start. The size
// argument is rounded up to the nearest page boundary; paddr must be page
// aligned.
//
// If the physical range is enclosed by an existing mapping of the same target
// in the selected region, Map returns the virtual start of that mapping
// together with ErrAlreadyMapped and creates nothing, even when another
// mapping only overlaps it. A partial overlap is rejected with ErrOverlap
// unless flags contains FlagShared. Ranges that wrap the physical address
// space are rejected with ErrInvalidSize.
//
// A failure while programming the hardware is fatal.
func (m *Manager) Map(paddr, size uintptr, target mm.Target, caps mm.Caps, flags Flags) (uintptr, *kernel.Error) {
	switch {
	case size == 0:
		return 0, ErrInvalidSize
	case !mm.IsAligned(paddr, m.pageSize), !target.Single(), caps.Validate() != nil:
		return 0, ErrInvalidArg
	}
	size = mm.AlignUp(size, m.pageSize)
	if size == 0 || size > ^uintptr(0)-paddr {
		return 0, ErrInvalidSize
	}

	if limit := m.physLimit[target]; limit != 0 && (paddr >= limit || size > limit-paddr) {
		return 0, ErrInvalidSize
	}

	state := m.cs.Enter()
	defer m.cs.Exit(state)

	r, err := m.findRegion(size, caps, target)
	if err != nil {
		return 0, err
	}

	if existing, ok := r.findConflict(paddr, size, target, (*Block).encloses); ok {
		kfmt.Printf("[vmm] paddr block is mapped already, vaddr_start: 0x%x\n", existing)
		return existing, ErrAlreadyMapped
	}

	if flags&FlagShared == 0 {
		if existing, ok := r.findConflict(paddr, size, target, (*Block).overlaps); ok {
			kfmt.Printf("[vmm] paddr [0x%x - 0x%x) overlaps block at vaddr 0x%x\n", paddr, paddr+size, existing)
			return 0, ErrOverlap
		}
	}

	prev, laddr := r.findSlot(size)
	b := m.newBlock(laddr, size, caps)
	b.PhysicalStart, b.PhysicalEnd = paddr, paddr+size
	b.Target = target
	b.Mapped = true

	idx := r.blocks.insertAfter(prev, b)
	if err = m.commitMap(b.VirtualStart, paddr, size, target); err != nil {
		r.blocks.remove(idx)
		r.recomputeFreeSlots()
		return 0, err
	}
	r.recomputeFreeSlots()

	return b.VirtualStart, nil
}

// Unmap releases the block whose virtual range starts at vaddr, clears its
// translation entries and returns its slot to the region.
//
// Unmap does not write back cached data; the caller must ensure that no dirty
// lines target the physical range before relying on the unmap.
func (m *Manager) Unmap(vaddr uintptr) *kernel.Error {
	if vaddr == 0 {
		return ErrInvalidArg
	}

	state := m.cs.Enter()
	defer m.cs.Exit(state)

	for _, r := range m.regions {
		var (
			found int32 = nilIndex
			size  uintptr
		)
		r.blocks.visit(func(idx int32, b *Block) bool {
			if b.VirtualStart == vaddr {
				found, size = idx, b.Size
				return false
			}
			return true
		})

		if found == nilIndex {
			continue
		}

		if err := m.commitUnmap(vaddr, size); err != nil {
			return err
		}

		r.blocks.remove(found)
		r.recomputeFreeSlots()
		return nil
	}

	return ErrNotFound
}

// findConflict returns the virtual start of the first mapped block of target,
// in address order, for which match reports true.
func (r *region) findConflict(paddr, size uintptr, target mm.Target, match func(*Block, uintptr, uintptr) bool) (uintptr, bool) {
	var (
		vaddr uintptr
		found bool
	)
	r.blocks.visit(func(_ int32, b *Block) bool {
		if b.Mapped && b.Target == target && match(b, paddr, size) {
			vaddr, found = b.VirtualStart, true
			return false
		}
		return true
	})
	return vaddr, found
}

// findRegion returns the first region, in registration order, that serves
// caps and target and has a free slot of at least size bytes.
func (m *Manager) findRegion(size uintptr, caps mm.Caps, target mm.Target) (*region, *kernel.Error) {
	var matched bool
	for _, r := range m.regions {
		if !r.matches(caps, target) {
			continue
		}
		matched = true
		if r.maxFreeSlot >= size {
			return r, nil
		}
	}

	if !matched {
		return nil, ErrNoSuchRegion
	}
	return nil, ErrNoFreeSlot
}

// findSlot walks the gaps from the head sentinel and returns the lowest slot
// that can hold size bytes. The caller must have checked maxFreeSlot.
func (r *region) findSlot(size uintptr) (prev int32, laddr uintptr) {
	prev = nilIndex
	r.blocks.gaps(func(p int32, start, end uintptr) bool {
		if end-start >= size {
			prev, laddr = p, start
			return false
		}
		return true
	})

	if prev == nilIndex {
		// maxFreeSlot promised a slot the list does not have.
		panicFn(errCorruptRegion)
	}
	return prev, laddr
}

// newBlock returns a block descriptor for the linear range starting at laddr.
// The virtual view is selected by the caps of the request.
func (m *Manager) newBlock(laddr, size uintptr, caps mm.Caps) Block {
	vaddr := m.hw.LinearToVirtual(laddr, mm.KindForCaps(caps))
	return Block{
		LinearStart:  laddr,
		LinearEnd:    laddr + size,
		VirtualStart: vaddr,
		VirtualEnd:   vaddr + size,
		Size:         size,
		Caps:         caps,
	}
}
