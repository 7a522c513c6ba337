package main

import (
	"fmt"
	"io"

	"extmem/kernel/hal"
	"extmem/kernel/mm/flashmap"
	"extmem/kernel/mm/himem"
	"extmem/kernel/mm/vmm"
	"extmem/platform"
)

// boardHAL is implemented by both the fake HAL and the mmio backend.
type boardHAL interface {
	hal.MMUPlatform
	hal.BankPlatform
}

// board holds the allocators booted for one platform description. Either
// allocator is nil when the platform does not describe it.
type board struct {
	desc   *platform.Description
	hw     boardHAL
	closer io.Closer

	space *vmm.Manager
	flash *flashmap.Mapper
	banks *himem.Allocator
}

// bootBoard builds the HAL and the allocators of desc. When device is not
// empty the registers are mapped from that file.
func bootBoard(desc *platform.Description, device string) (*board, error) {
	b := &board{desc: desc}

	if device == "" {
		b.hw = desc.FakeHAL()
	} else {
		dev, err := openDevice(desc, device)
		if err != nil {
			return nil, err
		}
		b.hw, b.closer = dev, dev
	}

	if len(desc.Regions) != 0 {
		cfg, err := desc.VMMConfig(b.hw)
		if err != nil {
			b.Close()
			return nil, err
		}

		space, kerr := vmm.New(cfg)
		if kerr != nil {
			b.Close()
			return nil, fmt.Errorf("platform %s: %w", desc.Name, kerr)
		}
		b.space = space
		b.flash = flashmap.New(space)
	}

	if desc.Himem != nil {
		cfg, err := desc.HimemConfig(b.hw)
		if err != nil {
			b.Close()
			return nil, err
		}

		banks, kerr := himem.New(cfg)
		if kerr != nil {
			b.Close()
			return nil, fmt.Errorf("platform %s: %w", desc.Name, kerr)
		}
		b.banks = banks
	}

	return b, nil
}

// Close releases the register mapping, if any.
func (b *board) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}
