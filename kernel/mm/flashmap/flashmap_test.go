package flashmap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"extmem/kernel/hal/fakehal"
	"extmem/kernel/mm"
	"extmem/kernel/mm/vmm"
)

const testPageSize = 0x10000

func newTestMapper(t *testing.T) (*Mapper, *vmm.Manager) {
	t.Helper()

	fake := fakehal.New(testPageSize, 2, 1)
	fake.VirtualOffset = [2]uintptr{0x3c000000, 0x42000000}

	space, err := vmm.New(vmm.Config{
		PageSize: testPageSize,
		Regions: []vmm.HWRegion{{
			LinearStart: 0,
			LinearEnd:   0x200000,
			Caps:        mm.CapExec | mm.CapRead | mm.CapWrite | mm.Cap8Bit | mm.Cap32Bit,
			Targets:     mm.TargetFlash | mm.TargetRAM,
			BusMask:     1,
		}},
		HAL: fake,
	})
	require.Nil(t, err)

	return New(space), space
}

func TestMmapUnaligned(t *testing.T) {
	m, space := newTestMapper(t)

	ptr, h, err := m.Mmap(0x12345, 0x100, mm.AddrData)
	require.Nil(t, err)
	require.NotZero(t, h)
	require.Equal(t, uintptr(0x3c002345), ptr)

	paddr, err := m.Cache2Phys(ptr)
	require.Nil(t, err)
	require.Equal(t, uintptr(0x12345), paddr)

	blocks := space.Blocks()
	require.Len(t, blocks, 1)
	require.Equal(t, uintptr(0x10000), blocks[0].PhysicalStart)
	require.Equal(t, uintptr(0x20000), blocks[0].PhysicalEnd)
	require.Equal(t, mm.CapRead|mm.Cap8Bit|mm.Cap32Bit, blocks[0].Caps)

	// A range straddling a page boundary needs two pages
	_, h2, err := m.Mmap(0x2fff0, 0x20, mm.AddrData)
	require.Nil(t, err)
	require.Len(t, space.Blocks(), 2)
	require.Equal(t, uintptr(0x20000), space.Blocks()[1].Size)

	require.Nil(t, m.Munmap(h))
	require.Nil(t, m.Munmap(h2))
	require.Empty(t, space.Blocks())
}

func TestMmapEnclosedIsShared(t *testing.T) {
	m, space := newTestMapper(t)

	_, owner, err := m.Mmap(0x10000, 0x20000, mm.AddrData)
	require.Nil(t, err)

	ptr, borrower, err := m.Mmap(0x24000, 0x100, mm.AddrData)
	require.Nil(t, err)
	require.Equal(t, uintptr(0x3c014000), ptr)
	require.Len(t, space.Blocks(), 1)

	// Releasing the borrowed handle keeps the block alive
	require.Nil(t, m.Munmap(borrower))
	require.Len(t, space.Blocks(), 1)

	require.Nil(t, m.Munmap(owner))
	require.Empty(t, space.Blocks())

	require.Equal(t, ErrInvalidHandle, m.Munmap(owner))
	require.Equal(t, ErrInvalidHandle, m.Munmap(0))
}

func TestMmapOverlapIsAllowed(t *testing.T) {
	m, space := newTestMapper(t)

	_, _, err := m.Mmap(0x10000, 0x10000, mm.AddrData)
	require.Nil(t, err)

	ptr, _, err := m.Mmap(0x18000, 0x10000, mm.AddrData)
	require.Nil(t, err)
	require.Equal(t, uintptr(0x3c018000), ptr)
	require.Len(t, space.Blocks(), 2)
}

func TestMmapInstruction(t *testing.T) {
	m, space := newTestMapper(t)

	ptr, _, err := m.Mmap(0x40010, 0x1000, mm.AddrInstruction)
	require.Nil(t, err)
	require.Equal(t, uintptr(0x42000010), ptr)
	require.Equal(t, mm.CapExec|mm.CapRead|mm.Cap32Bit, space.Blocks()[0].Caps)

	vaddr, err := m.Phys2Cache(0x40020, mm.AddrInstruction)
	require.Nil(t, err)
	require.Equal(t, uintptr(0x42000020), vaddr)

	vaddr, err = m.Phys2Cache(0x40020, mm.AddrData)
	require.Nil(t, err)
	require.Equal(t, uintptr(0x3c000020), vaddr)
}

func TestMmapErrors(t *testing.T) {
	m, _ := newTestMapper(t)

	_, _, err := m.Mmap(0x10000, 0, mm.AddrData)
	require.Equal(t, ErrInvalidSize, err)

	_, _, err = m.Mmap(0x10000, 0x100, mm.AddrKind(9))
	require.Equal(t, ErrInvalidKind, err)

	_, _, err = m.Mmap(0x10000, ^uintptr(0)-0x8000, mm.AddrData)
	require.Equal(t, ErrInvalidSize, err)

	// The range fits but its page-rounded end wraps.
	_, _, err = m.Mmap(^uintptr(0)-0x100, 0x10, mm.AddrData)
	require.Equal(t, ErrInvalidSize, err)
	require.Empty(t, m.mappings)

	_, _, err = m.Mmap(0, 0x400000, mm.AddrData)
	require.Equal(t, vmm.ErrNoFreeSlot, err)
}

func TestFreePages(t *testing.T) {
	m, _ := newTestMapper(t)

	require.Equal(t, uint32(32), m.FreePages(mm.AddrData))

	_, _, err := m.Mmap(0, 0x30000, mm.AddrInstruction)
	require.Nil(t, err)
	require.Equal(t, uint32(29), m.FreePages(mm.AddrInstruction))
	require.Zero(t, m.FreePages(mm.AddrKind(9)))
}

func TestCache2PhysRejectsRAM(t *testing.T) {
	m, space := newTestMapper(t)

	vaddr, err := space.Map(0x80000, testPageSize, mm.TargetRAM, mm.CapRead|mm.CapWrite, 0)
	require.Nil(t, err)

	_, err = m.Cache2Phys(vaddr)
	require.Equal(t, vmm.ErrNotFound, err)
}

func TestDump(t *testing.T) {
	m, _ := newTestMapper(t)

	_, _, err := m.Mmap(0x10000, 0x20000, mm.AddrData)
	require.Nil(t, err)
	_, _, err = m.Mmap(0x10100, 0x10, mm.AddrData)
	require.Nil(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Dump(&buf))
	require.Equal(t,
		"handle 1: src 0x00010000, size 0x20000, kind: data, ptr 0x3c000000, owned: true\n"+
			"handle 2: src 0x00010100, size 0x10, kind: data, ptr 0x3c000100, owned: false\n",
		buf.String(),
	)
}
