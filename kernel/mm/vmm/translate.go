package vmm

import (
	"extmem/kernel"
	"extmem/kernel/mm"
)

// toLinear converts a virtual address to the linear address it aliases by
// checking both bus views of every region.
func (m *Manager) toLinear(vaddr uintptr) (*region, uintptr, bool) {
	for _, r := range m.regions {
		for _, kind := range []mm.AddrKind{mm.AddrData, mm.AddrInstruction} {
			if !r.servesKind(kind) {
				continue
			}

			vstart := m.hw.LinearToVirtual(r.linearStart, kind)
			if vaddr >= vstart && vaddr-vstart < r.linearEnd-r.linearStart {
				return r, r.linearStart + (vaddr - vstart), true
			}
		}
	}
	return nil, 0, false
}

// VirtualToPhysical returns the physical address and target that back vaddr.
// It returns ErrInvalidArg if vaddr lies outside every region and ErrNotFound
// if no mapped block covers it.
func (m *Manager) VirtualToPhysical(vaddr uintptr) (uintptr, mm.Target, *kernel.Error) {
	state := m.cs.Enter()
	defer m.cs.Exit(state)

	r, laddr, ok := m.toLinear(vaddr)
	if !ok {
		return 0, 0, ErrInvalidArg
	}

	var (
		paddr  uintptr
		target mm.Target
		err    = ErrNotFound
	)
	r.blocks.visit(func(_ int32, b *Block) bool {
		if b.Mapped && laddr >= b.LinearStart && laddr < b.LinearEnd {
			paddr = b.PhysicalStart + (laddr - b.LinearStart)
			target = b.Target
			err = nil
			return false
		}
		return true
	})

	return paddr, target, err
}

// PhysicalToVirtual returns the address through which paddr of target is
// visible on the bus selected by kind. The first matching mapping, in
// region and address order, wins.
func (m *Manager) PhysicalToVirtual(paddr uintptr, target mm.Target, kind mm.AddrKind) (uintptr, *kernel.Error) {
	if !target.Single() || kind > mm.AddrInstruction {
		return 0, ErrInvalidArg
	}

	state := m.cs.Enter()
	defer m.cs.Exit(state)

	var (
		vaddr uintptr
		err   = ErrNotFound
	)
	for _, r := range m.regions {
		if !r.servesKind(kind) {
			continue
		}

		r.blocks.visit(func(_ int32, b *Block) bool {
			if b.Mapped && b.Target == target && paddr >= b.PhysicalStart && paddr < b.PhysicalEnd {
				vaddr = m.hw.LinearToVirtual(b.LinearStart+(paddr-b.PhysicalStart), kind)
				err = nil
				return false
			}
			return true
		})

		if err == nil {
			break
		}
	}

	return vaddr, err
}

// PhysicalCaps returns the capabilities of the first mapping whose physical
// range contains paddr.
func (m *Manager) PhysicalCaps(paddr uintptr) (mm.Caps, *kernel.Error) {
	state := m.cs.Enter()
	defer m.cs.Exit(state)

	var (
		caps mm.Caps
		err  = ErrNotFound
	)
	for _, r := range m.regions {
		r.blocks.visit(func(_ int32, b *Block) bool {
			if b.Mapped && paddr >= b.PhysicalStart && paddr < b.PhysicalEnd {
				caps, err = b.Caps, nil
				return false
			}
			return true
		})

		if err == nil {
			break
		}
	}

	return caps, err
}
