//go:build linux || darwin

// Package mmio implements the hal primitives on top of a memory-mapped
// register file such as a UIO device node or a window of /dev/mem.
package mmio

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"extmem/kernel"
	"extmem/kernel/hal"
	"extmem/kernel/mm"
)

var (
	// spinFn is called between polls of a busy flag. Tests replace it to
	// emulate the hardware completing an operation.
	spinFn = runtime.Gosched
)

// Device is a mapped register file. It implements hal.MMUPlatform and
// hal.BankPlatform.
type Device struct {
	file   *os.File
	regs   []byte
	layout Layout
}

// Open maps the registers described by layout from the file at path,
// starting at the given file offset.
func Open(path string, offset int64, layout Layout) (*Device, error) {
	span, kerr := layout.validate()
	if kerr != nil {
		return nil, kerr
	}
	if layout.SpinLimit == 0 {
		layout.SpinLimit = defaultSpinLimit
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}

	length := int(mm.AlignUp(span, uintptr(unix.Getpagesize())))
	if st, err := f.Stat(); err == nil && st.Mode().IsRegular() && st.Size() < offset+int64(length) {
		_ = f.Close()
		return nil, fmt.Errorf("mmio: %s is smaller than the %d byte register file", path, length)
	}

	regs, err := unix.Mmap(int(f.Fd()), offset, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmio: mmap %s: %w", path, err)
	}

	return &Device{file: f, regs: regs, layout: layout}, nil
}

// Close unmaps the registers and closes the underlying file.
func (d *Device) Close() error {
	if err := unix.Munmap(d.regs); err != nil {
		_ = d.file.Close()
		return fmt.Errorf("mmio: munmap: %w", err)
	}
	return d.file.Close()
}

func (d *Device) reg(offset uintptr) *uint32 {
	return (*uint32)(unsafe.Pointer(&d.regs[offset]))
}

func (d *Device) read32(offset uintptr) uint32 {
	return atomic.LoadUint32(d.reg(offset))
}

func (d *Device) write32(offset uintptr, v uint32) {
	atomic.StoreUint32(d.reg(offset), v)
}

// waitIdle spins until the start bit of the control register at offset is
// cleared by the hardware.
func (d *Device) waitIdle(offset uintptr) *kernel.Error {
	for i := 0; i < d.layout.SpinLimit; i++ {
		if d.read32(offset)&opStart == 0 {
			return nil
		}
		spinFn()
	}
	return hal.ErrTimeout
}

// MMUCount implements hal.MMU.
func (d *Device) MMUCount() int { return d.layout.MMUs }

// CoreCount implements hal.Cache.
func (d *Device) CoreCount() int { return d.layout.Cores }

// entryIndex returns the table index translating vaddr on either bus view.
func (d *Device) entryIndex(vaddr uintptr) (uint32, bool) {
	span := uintptr(d.layout.TableEntries) * d.layout.PageSize
	for _, base := range d.layout.VirtualBase {
		if vaddr >= base && vaddr-base < span {
			return uint32((vaddr - base) / d.layout.PageSize), true
		}
	}
	return 0, false
}

func (d *Device) entryOffset(mmuID int, index uint32) uintptr {
	return d.layout.TableOffset + uintptr(mmuID)*d.layout.TableStride + uintptr(index)*4
}

// MapRegion implements hal.MMU.
func (d *Device) MapRegion(mmuID int, target mm.Target, vaddr, paddr, size uintptr) (uintptr, *kernel.Error) {
	first, ok := d.entryIndex(vaddr)
	if !ok || mmuID < 0 || mmuID >= d.layout.MMUs || !target.Single() {
		return 0, hal.ErrOutOfRange
	}

	entryTarget := uint32(0)
	if target == mm.TargetRAM {
		entryTarget = entryTargetRAM
	}

	var mapped uintptr
	for index := first; mapped < size && index < d.layout.TableEntries; index++ {
		page := uint32((paddr+mapped)/d.layout.PageSize) & entryPageMask
		d.write32(d.entryOffset(mmuID, index), entryValid|entryTarget|page)
		mapped += d.layout.PageSize
	}
	return mapped, nil
}

// UnmapRegion implements hal.MMU.
func (d *Device) UnmapRegion(mmuID int, vaddr, size uintptr) *kernel.Error {
	first, ok := d.entryIndex(vaddr)
	if !ok || mmuID < 0 || mmuID >= d.layout.MMUs {
		return hal.ErrOutOfRange
	}

	count := uint32(mm.PageCount(size, d.layout.PageSize))
	if first+count > d.layout.TableEntries {
		return hal.ErrOutOfRange
	}

	for index := first; index < first+count; index++ {
		d.write32(d.entryOffset(mmuID, index), 0)
	}
	return nil
}

// LinearToVirtual implements hal.MMU.
func (d *Device) LinearToVirtual(laddr uintptr, kind mm.AddrKind) uintptr {
	return laddr - d.layout.LinearBase + d.layout.VirtualBase[kind]
}

// DisableCaches implements hal.Cache.
func (d *Device) DisableCaches(core int) {
	off := d.layout.CacheCtrlOffset + uintptr(core)*4
	d.write32(off, d.read32(off)&^cacheEnable)
}

// EnableCaches implements hal.Cache.
func (d *Device) EnableCaches(core int) {
	off := d.layout.CacheCtrlOffset + uintptr(core)*4
	d.write32(off, d.read32(off)|cacheEnable)
}

// BusMask implements hal.Cache.
func (d *Device) BusMask(vaddr, size uintptr) uint32 {
	var mask uint32
	for _, bus := range d.layout.Buses {
		if vaddr < bus.End && vaddr+size > bus.Start {
			mask |= bus.Bit
		}
	}
	return mask
}

// EnableBus implements hal.Cache.
func (d *Device) EnableBus(core int, mask uint32) {
	off := d.layout.BusCtrlOffset + uintptr(core)*4
	d.write32(off, d.read32(off)|mask)
}

// InvalidateRange implements hal.Cache.
func (d *Device) InvalidateRange(vaddr, size uintptr) *kernel.Error {
	base := d.layout.InvalidateOffset
	if base == 0 {
		return hal.ErrUnsupported
	}

	d.write32(base, uint32(vaddr))
	d.write32(base+4, uint32(size))
	d.write32(base+8, opStart)
	return d.waitIdle(base + 8)
}

// WritebackAll implements hal.Cache and hal.BankPlatform.
func (d *Device) WritebackAll() *kernel.Error {
	if d.layout.WritebackOffset == 0 {
		return hal.ErrUnsupported
	}

	d.write32(d.layout.WritebackOffset, opStart)
	return d.waitIdle(d.layout.WritebackOffset)
}

// SetBanks implements hal.BankSwitch.
func (d *Device) SetBanks(virtBank, physBank, count uint32) *kernel.Error {
	if d.layout.BankOffset == 0 || virtBank+count > d.layout.BankCount {
		return hal.ErrOutOfRange
	}

	for i := uint32(0); i < count; i++ {
		d.write32(d.layout.BankOffset+uintptr(virtBank+i)*4, physBank+i)
	}
	return nil
}

// DisableInterrupts implements sync.InterruptMasker. A user space process
// cannot mask interrupts; the calling goroutine is pinned to its OS thread
// instead so that the section runs on one CPU context.
func (d *Device) DisableInterrupts() uintptr {
	runtime.LockOSThread()
	return 0
}

// RestoreInterrupts implements sync.InterruptMasker.
func (d *Device) RestoreInterrupts(_ uintptr) {
	runtime.UnlockOSThread()
}

var (
	_ hal.MMUPlatform  = (*Device)(nil)
	_ hal.BankPlatform = (*Device)(nil)
)
