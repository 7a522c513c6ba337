// Package flashmap maps arbitrary byte ranges of flash into the address space
// and hands out handles for them. Several consumers may map overlapping or
// identical flash ranges; a range that is already fully mapped is shared
// instead of mapped twice.
package flashmap

import (
	"fmt"
	"io"
	"sort"

	"extmem/kernel"
	"extmem/kernel/mm"
	"extmem/kernel/mm/vmm"
	"extmem/kernel/sync"
)

var (
	// ErrInvalidHandle is returned by Munmap for handles that are unknown
	// or already released.
	ErrInvalidHandle = &kernel.Error{Module: "flashmap", Message: "invalid mmap handle", Kind: kernel.KindNotFound}

	// ErrInvalidSize is returned for zero-sized requests.
	ErrInvalidSize = &kernel.Error{Module: "flashmap", Message: "invalid size", Kind: kernel.KindInvalidArg}

	// ErrInvalidKind is returned for unknown bus views.
	ErrInvalidKind = &kernel.Error{Module: "flashmap", Message: "invalid address kind", Kind: kernel.KindInvalidArg}
)

// AddressSpace is the subset of the vmm.Manager API used by the Mapper.
type AddressSpace interface {
	PageSize() uintptr
	Map(paddr, size uintptr, target mm.Target, caps mm.Caps, flags vmm.Flags) (uintptr, *kernel.Error)
	Unmap(vaddr uintptr) *kernel.Error
	MaxFreeBlock(caps mm.Caps, target mm.Target) (uintptr, *kernel.Error)
	PhysicalToVirtual(paddr uintptr, target mm.Target, kind mm.AddrKind) (uintptr, *kernel.Error)
	VirtualToPhysical(vaddr uintptr) (uintptr, mm.Target, *kernel.Error)
}

// Handle identifies a live flash mapping. The zero Handle is never issued.
type Handle uint32

type mapping struct {
	srcAddr, size uintptr
	kind          mm.AddrKind
	ptr           uintptr

	// vaddr is the start of the block backing the mapping. The block is
	// only released by Munmap when owned is set.
	vaddr uintptr
	owned bool
}

// Mapper keeps track of the flash mappings handed out to consumers.
type Mapper struct {
	lock  sync.Spinlock
	space AddressSpace

	nextHandle Handle
	mappings   map[Handle]mapping
}

// New returns a Mapper that allocates from space.
func New(space AddressSpace) *Mapper {
	return &Mapper{
		space:    space,
		mappings: make(map[Handle]mapping),
	}
}

// CapsFor returns the capabilities used when mapping flash for kind.
func CapsFor(kind mm.AddrKind) (mm.Caps, *kernel.Error) {
	switch kind {
	case mm.AddrInstruction:
		return mm.CapExec | mm.CapRead | mm.Cap32Bit, nil
	case mm.AddrData:
		return mm.CapRead | mm.Cap8Bit | mm.Cap32Bit, nil
	}
	return 0, ErrInvalidKind
}

// Mmap maps size bytes of flash starting at srcAddr and returns a pointer to
// the byte at srcAddr together with a handle for Munmap. srcAddr does not have
// to be page aligned.
func (m *Mapper) Mmap(srcAddr, size uintptr, kind mm.AddrKind) (uintptr, Handle, *kernel.Error) {
	if size == 0 || size > ^uintptr(0)-srcAddr {
		return 0, 0, ErrInvalidSize
	}

	caps, err := CapsFor(kind)
	if err != nil {
		return 0, 0, err
	}

	pageSize := m.space.PageSize()
	pageStart := mm.AlignDown(srcAddr, pageSize)
	pageEnd := mm.AlignUp(srcAddr+size, pageSize)
	if pageEnd < srcAddr+size {
		return 0, 0, ErrInvalidSize
	}
	length := pageEnd - pageStart

	entry := mapping{srcAddr: srcAddr, size: size, kind: kind, owned: true}

	entry.vaddr, err = m.space.Map(pageStart, length, mm.TargetFlash, caps, vmm.FlagShared)
	switch err {
	case nil:
		entry.ptr = entry.vaddr + (srcAddr - pageStart)
	case vmm.ErrAlreadyMapped:
		// The existing block may start below pageStart.
		entry.owned = false
		if entry.ptr, err = m.space.PhysicalToVirtual(srcAddr, mm.TargetFlash, kind); err != nil {
			return 0, 0, err
		}
	default:
		return 0, 0, err
	}

	m.lock.Acquire()
	defer m.lock.Release()

	m.nextHandle++
	m.mappings[m.nextHandle] = entry
	return entry.ptr, m.nextHandle, nil
}

// Munmap releases the mapping identified by h. Mappings that reused an
// existing block leave that block in place.
func (m *Mapper) Munmap(h Handle) *kernel.Error {
	m.lock.Acquire()
	entry, ok := m.mappings[h]
	delete(m.mappings, h)
	m.lock.Release()

	if !ok {
		return ErrInvalidHandle
	}

	if !entry.owned {
		return nil
	}
	return m.space.Unmap(entry.vaddr)
}

// FreePages returns the number of pages available for new flash mappings of
// the given kind.
func (m *Mapper) FreePages(kind mm.AddrKind) uint32 {
	caps, err := CapsFor(kind)
	if err != nil {
		return 0
	}

	size, err := m.space.MaxFreeBlock(caps, mm.TargetFlash)
	if err != nil {
		return 0
	}
	return uint32(size / m.space.PageSize())
}

// Phys2Cache returns the address through which flash address paddr is visible
// on the bus selected by kind.
func (m *Mapper) Phys2Cache(paddr uintptr, kind mm.AddrKind) (uintptr, *kernel.Error) {
	return m.space.PhysicalToVirtual(paddr, mm.TargetFlash, kind)
}

// Cache2Phys returns the flash address behind vaddr. Addresses backed by RAM
// are reported as vmm.ErrNotFound.
func (m *Mapper) Cache2Phys(vaddr uintptr) (uintptr, *kernel.Error) {
	paddr, target, err := m.space.VirtualToPhysical(vaddr)
	if err != nil {
		return 0, err
	}
	if target != mm.TargetFlash {
		return 0, vmm.ErrNotFound
	}
	return paddr, nil
}

// Dump lists the live handles in issue order.
func (m *Mapper) Dump(w io.Writer) error {
	m.lock.Acquire()
	handles := make([]Handle, 0, len(m.mappings))
	for h := range m.mappings {
		handles = append(handles, h)
	}
	entries := make([]mapping, len(handles))
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for i, h := range handles {
		entries[i] = m.mappings[h]
	}
	m.lock.Release()

	for i, entry := range entries {
		if _, err := fmt.Fprintf(w, "handle %d: src 0x%08x, size 0x%x, kind: %s, ptr 0x%08x, owned: %t\n",
			handles[i], entry.srcAddr, entry.size, entry.kind, entry.ptr, entry.owned); err != nil {
			return err
		}
	}
	return nil
}
