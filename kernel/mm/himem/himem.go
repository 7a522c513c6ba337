// Package himem implements the legacy fixed-block allocator used on platforms
// that reach external RAM through a small bank-switched window instead of a
// full translation table.
//
// Physical memory and the window are both split into BlockSize blocks.
// Callers allocate physical blocks (not necessarily contiguous) and a
// contiguous run of window blocks, then Map pairs of them. Bank registers are
// reprogrammed lazily: Unmap only drops the bookkeeping and the next Map
// rewrites a bank register only when it points elsewhere.
package himem

import (
	"extmem/kernel"
	"extmem/kernel/hal"
	"extmem/kernel/kfmt"
	"extmem/kernel/mm"
	"extmem/kernel/sync"
)

// DefaultBlockSize is the bank size used when Config.BlockSize is zero.
const DefaultBlockSize = 32 * mm.Kb

var (
	// panicFn is invoked when a bank register cannot be programmed or the
	// cache cannot be written back.
	panicFn = kfmt.Panic

	// ErrInvalidArg is returned for nil, released or foreign handles and
	// for window pointers that are not block aligned.
	ErrInvalidArg = &kernel.Error{Module: "himem", Message: "invalid argument", Kind: kernel.KindInvalidArg}

	// ErrInvalidSize is returned when a size, offset or length is not a
	// non-zero multiple of the block size or exceeds the handle bounds.
	ErrInvalidSize = &kernel.Error{Module: "himem", Message: "size is not a block multiple or exceeds the handle", Kind: kernel.KindInvalidArg}

	// ErrInvalidConfig is returned by New for inconsistent configurations.
	ErrInvalidConfig = &kernel.Error{Module: "himem", Message: "invalid bank window configuration", Kind: kernel.KindInvalidArg}

	// ErrNoMem is returned when not enough free blocks are available.
	ErrNoMem = &kernel.Error{Module: "himem", Message: "not enough free blocks", Kind: kernel.KindNoMem}

	// ErrAlreadyMapped is returned by Map when one of the blocks involved
	// is mapped already.
	ErrAlreadyMapped = &kernel.Error{Module: "himem", Message: "block is mapped already", Kind: kernel.KindConflict}

	// ErrNotMapped is returned by Unmap when one of the window blocks is
	// not mapped.
	ErrNotMapped = &kernel.Error{Module: "himem", Message: "window block is not mapped", Kind: kernel.KindInvalidState}

	// ErrStillMapped is returned when freeing a handle with mapped blocks.
	ErrStillMapped = &kernel.Error{Module: "himem", Message: "block still mapped", Kind: kernel.KindInvalidState}

	// ErrAlreadyInitialized is returned by a second call to Init.
	ErrAlreadyInitialized = &kernel.Error{Module: "himem", Message: "himem already initialized", Kind: kernel.KindInvalidState}

	errSetBanks  = &kernel.Error{Module: "himem", Message: "failed to program bank registers", Kind: kernel.KindFatal}
	errWriteback = &kernel.Error{Module: "himem", Message: "failed to write back the data cache", Kind: kernel.KindFatal}
)

// Config holds the parameters of the allocator.
type Config struct {
	// BlockSize is the bank size. It must be a power of two; zero selects
	// DefaultBlockSize.
	BlockSize mm.Size

	// PhysBlocks is the number of physical blocks available to the
	// allocator and PhysBankBase the bank number of the first of them.
	PhysBlocks   uint32
	PhysBankBase uint32

	// WindowBlocks is the number of window blocks, WindowBank the bank
	// register index of the first window block and WindowBase its address.
	WindowBlocks uint32
	WindowBank   uint32
	WindowBase   uintptr

	// HAL provides the bank registers and the cache writeback.
	HAL hal.BankPlatform
}

// PhysHandle identifies a set of allocated physical blocks.
type PhysHandle struct {
	owner  *Allocator
	blocks []uint32
}

// Size returns the number of bytes covered by the handle.
func (h *PhysHandle) Size() mm.Size {
	if h == nil || h.owner == nil {
		return 0
	}
	return mm.Size(len(h.blocks)) * h.owner.blockSize
}

// WindowHandle identifies a contiguous run of allocated window blocks.
type WindowHandle struct {
	owner        *Allocator
	start, count uint32
}

// Size returns the number of bytes covered by the handle.
func (h *WindowHandle) Size() mm.Size {
	if h == nil || h.owner == nil {
		return 0
	}
	return mm.Size(h.count) * h.owner.blockSize
}

// Addr returns the address of the first window block of the handle.
func (h *WindowHandle) Addr() uintptr {
	if h == nil || h.owner == nil {
		return 0
	}
	return h.owner.windowBase + uintptr(h.start)*uintptr(h.owner.blockSize)
}

const noBlock = int32(-1)

// Allocator owns the physical and window block pools.
type Allocator struct {
	cs sync.CriticalSection
	hw hal.BankPlatform

	blockSize    mm.Size
	physBankBase uint32
	windowBank   uint32
	windowBase   uintptr

	phys   pool
	window pool

	// backing holds the physical block mapped into each window block and
	// hwBank the physical block its bank register was last programmed with.
	backing []int32
	hwBank  []int32
}

var (
	initLock         sync.Spinlock
	defaultAllocator *Allocator
)

// New validates cfg and returns an allocator with every block free.
func New(cfg Config) (*Allocator, *kernel.Error) {
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}

	switch {
	case cfg.HAL == nil,
		!mm.IsPowerOfTwo(uintptr(cfg.BlockSize)),
		cfg.PhysBlocks == 0,
		cfg.WindowBlocks == 0,
		!mm.IsAligned(cfg.WindowBase, uintptr(cfg.BlockSize)):
		return nil, ErrInvalidConfig
	}

	a := &Allocator{
		hw:           cfg.HAL,
		blockSize:    cfg.BlockSize,
		physBankBase: cfg.PhysBankBase,
		windowBank:   cfg.WindowBank,
		windowBase:   cfg.WindowBase,
		phys:         newPool(cfg.PhysBlocks),
		window:       newPool(cfg.WindowBlocks),
		backing:      make([]int32, cfg.WindowBlocks),
		hwBank:       make([]int32, cfg.WindowBlocks),
	}
	a.cs.Masker = cfg.HAL

	for i := range a.backing {
		a.backing[i] = noBlock
		a.hwBank[i] = noBlock
	}

	kfmt.Printf("[himem] %d physical blocks of %s (%s), window of %d blocks at 0x%x\n",
		cfg.PhysBlocks, cfg.BlockSize, mm.Size(cfg.PhysBlocks)*cfg.BlockSize, cfg.WindowBlocks, cfg.WindowBase)
	return a, nil
}

// Init builds the process-wide allocator from cfg. It may only be called
// once.
func Init(cfg Config) *kernel.Error {
	initLock.Acquire()
	defer initLock.Release()

	if defaultAllocator != nil {
		return ErrAlreadyInitialized
	}

	a, err := New(cfg)
	if err != nil {
		return err
	}

	defaultAllocator = a
	return nil
}

// Default returns the allocator installed by Init, or nil.
func Default() *Allocator {
	initLock.Acquire()
	defer initLock.Release()
	return defaultAllocator
}

// BlockSize returns the bank size.
func (a *Allocator) BlockSize() mm.Size {
	return a.blockSize
}

// blockCount converts size to a number of blocks. Sizes must be non-zero
// block multiples.
func (a *Allocator) blockCount(size mm.Size) (uint32, *kernel.Error) {
	if size == 0 || !mm.IsAligned(uintptr(size), uintptr(a.blockSize)) {
		return 0, ErrInvalidSize
	}
	return uint32(size / a.blockSize), nil
}

// AllocPhysical reserves size bytes of physical memory. The blocks are not
// necessarily contiguous. Either every block is reserved or none is.
func (a *Allocator) AllocPhysical(size mm.Size) (*PhysHandle, *kernel.Error) {
	n, err := a.blockCount(size)
	if err != nil {
		return nil, err
	}

	state := a.cs.Enter()
	defer a.cs.Exit(state)

	if n > a.phys.freeCount {
		return nil, ErrNoMem
	}

	h := &PhysHandle{owner: a, blocks: a.phys.firstFree(n)}
	for _, index := range h.blocks {
		a.phys.markAllocated(index)
	}
	return h, nil
}

// FreePhysical releases the blocks of h. It fails with ErrStillMapped, and
// changes nothing, if any of them is mapped. The handle must not be used
// after a successful call.
func (a *Allocator) FreePhysical(h *PhysHandle) *kernel.Error {
	if h == nil || h.owner != a {
		return ErrInvalidArg
	}

	state := a.cs.Enter()
	defer a.cs.Exit(state)

	for _, index := range h.blocks {
		if a.phys.mapped(index) {
			return ErrStillMapped
		}
	}

	for _, index := range h.blocks {
		a.phys.markFree(index)
	}
	h.owner, h.blocks = nil, nil
	return nil
}

// AllocWindow reserves a contiguous run of window blocks covering size bytes.
func (a *Allocator) AllocWindow(size mm.Size) (*WindowHandle, *kernel.Error) {
	n, err := a.blockCount(size)
	if err != nil {
		return nil, err
	}

	state := a.cs.Enter()
	defer a.cs.Exit(state)

	if n > a.window.freeCount {
		return nil, ErrNoMem
	}

	start, ok := a.window.firstFreeRun(n)
	if !ok {
		return nil, ErrNoMem
	}

	for index := start; index < start+n; index++ {
		a.window.markAllocated(index)
	}
	return &WindowHandle{owner: a, start: start, count: n}, nil
}

// FreeWindow releases the window blocks of h. It fails with ErrStillMapped,
// and changes nothing, if any of them is mapped.
func (a *Allocator) FreeWindow(h *WindowHandle) *kernel.Error {
	if h == nil || h.owner != a {
		return ErrInvalidArg
	}

	state := a.cs.Enter()
	defer a.cs.Exit(state)

	for index := h.start; index < h.start+h.count; index++ {
		if a.window.mapped(index) {
			return ErrStillMapped
		}
	}

	for index := h.start; index < h.start+h.count; index++ {
		a.window.markFree(index)
	}
	h.owner = nil
	return nil
}

// PhysSize returns the size of the physical pool.
func (a *Allocator) PhysSize() mm.Size {
	return mm.Size(a.phys.blocks) * a.blockSize
}

// FreeSize returns the number of unallocated physical bytes.
func (a *Allocator) FreeSize() mm.Size {
	state := a.cs.Enter()
	defer a.cs.Exit(state)
	return mm.Size(a.phys.freeCount) * a.blockSize
}

// WindowSize returns the size of the bank window.
func (a *Allocator) WindowSize() mm.Size {
	return mm.Size(a.window.blocks) * a.blockSize
}

// FreeWindowSize returns the number of unallocated window bytes.
func (a *Allocator) FreeWindowSize() mm.Size {
	state := a.cs.Enter()
	defer a.cs.Exit(state)
	return mm.Size(a.window.freeCount) * a.blockSize
}
