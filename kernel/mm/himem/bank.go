package himem

import (
	"fmt"
	"io"

	"extmem/kernel"
	"extmem/kernel/mm"
)

// Map makes length bytes of ph, starting at physOffset, visible through wh
// starting at winOffset and returns the address of the first mapped byte.
// Offsets and length must be block multiples and lie inside their handles;
// none of the blocks involved may be mapped already.
//
// Bank registers are only written for window blocks that currently point at
// a different physical bank.
func (a *Allocator) Map(ph *PhysHandle, wh *WindowHandle, physOffset, winOffset, length mm.Size) (uintptr, *kernel.Error) {
	if ph == nil || wh == nil || ph.owner != a || wh.owner != a {
		return 0, ErrInvalidArg
	}

	bs := a.blockSize
	switch {
	case length == 0,
		physOffset%bs != 0, winOffset%bs != 0, length%bs != 0,
		physOffset > ph.Size(), length > ph.Size()-physOffset,
		winOffset > wh.Size(), length > wh.Size()-winOffset:
		return 0, ErrInvalidSize
	}

	var (
		count     = uint32(length / bs)
		physFirst = uint32(physOffset / bs)
		winFirst  = wh.start + uint32(winOffset/bs)
	)

	state := a.cs.Enter()
	defer a.cs.Exit(state)

	for i := uint32(0); i < count; i++ {
		if a.phys.mapped(ph.blocks[physFirst+i]) || a.window.mapped(winFirst+i) {
			return 0, ErrAlreadyMapped
		}
	}

	for i := uint32(0); i < count; i++ {
		physBlock, winBlock := ph.blocks[physFirst+i], winFirst+i

		a.phys.setMapped(physBlock, true)
		a.window.setMapped(winBlock, true)
		a.backing[winBlock] = int32(physBlock)

		if a.hwBank[winBlock] == int32(physBlock) {
			continue
		}

		if err := a.hw.SetBanks(a.windowBank+winBlock, a.physBankBase+physBlock, 1); err != nil {
			panicFn(errSetBanks)
			return 0, errSetBanks
		}
		a.hwBank[winBlock] = int32(physBlock)
	}

	return a.windowBase + uintptr(winFirst)*uintptr(bs), nil
}

// Unmap releases length bytes of wh starting at ptr, a value previously
// returned by Map, and writes back the data cache so the physical blocks
// hold the latest data.
//
// The bank registers keep pointing at the old physical blocks until a later
// Map needs them for something else. Callers must not access the window
// range after Unmap and before the next Map of that range; such accesses
// still reach the previously mapped physical blocks, which may have been
// handed out to another owner in the meantime.
func (a *Allocator) Unmap(wh *WindowHandle, ptr uintptr, length mm.Size) *kernel.Error {
	if wh == nil || wh.owner != a || ptr < a.windowBase {
		return ErrInvalidArg
	}

	bs := a.blockSize
	offset := ptr - a.windowBase
	if !mm.IsAligned(offset, uintptr(bs)) {
		return ErrInvalidArg
	}

	var (
		handleStart = uintptr(wh.start) * uintptr(bs)
		handleEnd   = handleStart + uintptr(wh.Size())
	)
	switch {
	case length == 0, length%bs != 0,
		offset < handleStart, offset >= handleEnd,
		length > mm.Size(handleEnd-offset):
		return ErrInvalidSize
	}

	var (
		first = uint32(offset / uintptr(bs))
		count = uint32(length / bs)
	)

	state := a.cs.Enter()
	defer a.cs.Exit(state)

	for winBlock := first; winBlock < first+count; winBlock++ {
		if !a.window.mapped(winBlock) {
			return ErrNotMapped
		}
	}

	for winBlock := first; winBlock < first+count; winBlock++ {
		a.phys.setMapped(uint32(a.backing[winBlock]), false)
		a.window.setMapped(winBlock, false)
		a.backing[winBlock] = noBlock
	}

	if err := a.hw.WritebackAll(); err != nil {
		panicFn(errWriteback)
		return errWriteback
	}
	return nil
}

// Dump writes the state of every window block to w.
func (a *Allocator) Dump(w io.Writer) error {
	state := a.cs.Enter()
	defer a.cs.Exit(state)

	if _, err := fmt.Fprintf(w, "phys: %d/%d blocks free, window: %d/%d blocks free, block size: %s\n",
		a.phys.freeCount, a.phys.blocks, a.window.freeCount, a.window.blocks, a.blockSize); err != nil {
		return err
	}

	for winBlock := uint32(0); winBlock < a.window.blocks; winBlock++ {
		var status string
		switch {
		case a.window.mapped(winBlock):
			status = fmt.Sprintf("mapped to phys block %d", a.backing[winBlock])
		case a.window.allocated(winBlock):
			status = "allocated"
		default:
			status = "free"
		}

		bank := "unset"
		if a.hwBank[winBlock] != noBlock {
			bank = fmt.Sprintf("%d", a.physBankBase+uint32(a.hwBank[winBlock]))
		}

		if _, err := fmt.Fprintf(w, "\twindow block %d: addr 0x%08x, bank %d -> %s, %s\n",
			winBlock, a.windowBase+uintptr(winBlock)*uintptr(a.blockSize), a.windowBank+winBlock, bank, status); err != nil {
			return err
		}
	}
	return nil
}
