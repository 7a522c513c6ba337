package vmm

import (
	"fmt"
	"io"

	"extmem/kernel/kfmt"
)

// Blocks returns a snapshot of every live block in region and address order.
func (m *Manager) Blocks() []Block {
	state := m.cs.Enter()
	defer m.cs.Exit(state)

	var out []Block
	for _, r := range m.regions {
		r.blocks.visit(func(_ int32, b *Block) bool {
			out = append(out, *b)
			return true
		})
	}
	return out
}

// Dump writes a table of the regions and the blocks they contain to w. It is
// meant for diagnostics and takes the critical section for the whole dump.
func (m *Manager) Dump(w io.Writer) error {
	state := m.cs.Enter()
	defer m.cs.Exit(state)

	for i, r := range m.regions {
		if _, err := fmt.Fprintf(w, "region %d: laddr [0x%08x - 0x%08x), size: 0x%x, caps: %s, targets: %s, bus: 0x%x, free head: 0x%08x, max free: 0x%x, blocks: %d\n",
			i, r.linearStart, r.linearEnd, r.linearEnd-r.linearStart, r.caps, r.targets, r.busMask, r.freeHead, r.maxFreeSlot, r.blocks.count); err != nil {
			return err
		}

		var (
			blockIndex int
			err        error
		)
		r.blocks.visit(func(_ int32, b *Block) bool {
			err = dumpBlock(w, blockIndex, b)
			blockIndex++
			return err == nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func dumpBlock(w io.Writer, index int, b *Block) error {
	if !b.Mapped {
		_, err := fmt.Fprintf(w, "\tblock %d: vaddr [0x%08x - 0x%08x), laddr [0x%08x - 0x%08x), size: 0x%x, caps: %s, reserved\n",
			index, b.VirtualStart, b.VirtualEnd, b.LinearStart, b.LinearEnd, b.Size, b.Caps)
		return err
	}

	_, err := fmt.Fprintf(w, "\tblock %d: vaddr [0x%08x - 0x%08x), laddr [0x%08x - 0x%08x), paddr [0x%08x - 0x%08x), target: %s, size: 0x%x, caps: %s\n",
		index, b.VirtualStart, b.VirtualEnd, b.LinearStart, b.LinearEnd, b.PhysicalStart, b.PhysicalEnd, b.Target, b.Size, b.Caps)
	return err
}

// DumpEarly prints the dump through kfmt with a "[vmm] " prefix on every line.
// Output ends up in the early ring buffer when no sink is attached.
func (m *Manager) DumpEarly() {
	_ = m.Dump(kfmt.NewModuleWriter(nil, "vmm"))
}
