// Package platform describes the address-space hardware of a chip: the MMU
// region table, the reserved ranges of the firmware image, the cache buses and
// the optional bank-switch window. Descriptions come from built-in tables or
// YAML files and are turned into the configurations consumed by the vmm and
// himem allocators.
package platform

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"extmem/kernel/hal"
	"extmem/kernel/hal/fakehal"
	"extmem/kernel/hal/mmio"
	"extmem/kernel/mm"
	"extmem/kernel/mm/himem"
	"extmem/kernel/mm/vmm"
)

var (
	// ErrUnknownPlatform is returned by Lookup for names without a
	// built-in description.
	ErrUnknownPlatform = errors.New("platform: unknown platform")

	// ErrNoBankWindow is returned by HimemConfig for descriptions without
	// a bank-switch window.
	ErrNoBankWindow = errors.New("platform: description has no bank window")

	// ErrNoRegisterLayout is returned by MMIOLayout for descriptions
	// without a register layout.
	ErrNoRegisterLayout = errors.New("platform: description has no register layout")
)

// Description is the hardware description of a platform.
type Description struct {
	Name     string  `yaml:"name"`
	PageSize Address `yaml:"page_size"`
	Cores    int     `yaml:"cores"`
	MMUs     int     `yaml:"mmus"`

	// DataBase and InstructionBase are the CPU addresses of linear address
	// zero on the data and instruction buses.
	DataBase        Address `yaml:"data_base"`
	InstructionBase Address `yaml:"instruction_base"`

	Regions       []Region           `yaml:"regions"`
	Reserved      []Reserved         `yaml:"reserved,omitempty"`
	Buses         []Bus              `yaml:"buses,omitempty"`
	PhysicalLimit map[string]Address `yaml:"physical_limit,omitempty"`

	Himem *BankWindow `yaml:"himem,omitempty"`
	MMIO  *Registers  `yaml:"mmio,omitempty"`
}

// Region is an entry of the MMU region table.
type Region struct {
	Start   Address  `yaml:"start"`
	End     Address  `yaml:"end"`
	Caps    []string `yaml:"caps"`
	Targets []string `yaml:"targets"`
	Bus     uint32   `yaml:"bus"`
}

// Reserved is a linear range occupied by the firmware image.
type Reserved struct {
	Name  string  `yaml:"name"`
	Start Address `yaml:"start"`
	End   Address `yaml:"end"`
}

// Bus is a virtual address window routed through one cache bus.
type Bus struct {
	Start Address `yaml:"start"`
	End   Address `yaml:"end"`
	Bit   uint32  `yaml:"bit"`
}

// BankWindow describes the bank-switch window of platforms without an MMU
// table.
type BankWindow struct {
	BlockSize    Address `yaml:"block_size"`
	PhysBlocks   uint32  `yaml:"phys_blocks"`
	PhysBankBase uint32  `yaml:"phys_bank_base"`
	WindowBlocks uint32  `yaml:"window_blocks"`
	WindowBank   uint32  `yaml:"window_bank"`
	WindowBase   Address `yaml:"window_base"`
}

// Registers describes the register file used by the mmio backend.
type Registers struct {
	Device       string  `yaml:"device"`
	Offset       Address `yaml:"offset"`
	TableOffset  Address `yaml:"table_offset"`
	TableStride  Address `yaml:"table_stride"`
	TableEntries uint32  `yaml:"table_entries"`
	CacheCtrl    Address `yaml:"cache_ctrl"`
	BusCtrl      Address `yaml:"bus_ctrl"`
	Invalidate   Address `yaml:"invalidate"`
	Writeback    Address `yaml:"writeback"`
	Banks        Address `yaml:"banks"`
	BankCount    uint32  `yaml:"bank_count"`
}

// Load reads and validates the YAML description at path.
func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Parse decodes and validates a YAML description.
func Parse(data []byte) (*Description, error) {
	var d Description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("platform: %w", err)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Lookup returns a copy of the built-in description called name.
func Lookup(name string) (*Description, error) {
	build, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownPlatform, name)
	}
	return build(), nil
}

// Names returns the names of the built-in descriptions in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the fields that cannot be checked by the allocators.
func (d *Description) Validate() error {
	switch {
	case d.Name == "":
		return errors.New("platform: missing name")
	case !mm.IsPowerOfTwo(uintptr(d.PageSize)):
		return fmt.Errorf("platform %s: page size %s is not a power of two", d.Name, d.PageSize)
	case d.Cores <= 0 || d.MMUs <= 0:
		return fmt.Errorf("platform %s: cores and mmus must be positive", d.Name)
	case len(d.Regions) == 0 && d.Himem == nil:
		return fmt.Errorf("platform %s: neither regions nor a bank window are described", d.Name)
	}

	for i, r := range d.Regions {
		if _, _, err := r.attrs(); err != nil {
			return fmt.Errorf("platform %s: region %d: %w", d.Name, i, err)
		}
	}
	for name := range d.PhysicalLimit {
		if _, err := mm.ParseTarget([]string{name}); err != nil {
			return fmt.Errorf("platform %s: physical limit for %q: %w", d.Name, name, err)
		}
	}
	return nil
}

// attrs parses the capability and target names of r. Each capability is
// parsed on its own since hardware regions may combine exec and write.
func (r *Region) attrs() (mm.Caps, mm.Target, error) {
	var caps mm.Caps
	for _, name := range r.Caps {
		c, err := mm.ParseCaps([]string{name})
		if err != nil {
			return 0, 0, fmt.Errorf("capability %q: %w", name, err)
		}
		caps |= c
	}
	if caps == 0 {
		return 0, 0, errors.New("no capabilities")
	}

	targets, err := mm.ParseTarget(r.Targets)
	if err != nil {
		return 0, 0, fmt.Errorf("targets %v: %w", r.Targets, err)
	}
	return caps, targets, nil
}

// VMMConfig returns the region allocator configuration of the platform.
func (d *Description) VMMConfig(hw hal.MMUPlatform) (vmm.Config, error) {
	if len(d.Regions) == 0 {
		return vmm.Config{}, fmt.Errorf("platform %s: no MMU regions", d.Name)
	}

	cfg := vmm.Config{
		PageSize:      uintptr(d.PageSize),
		PhysicalLimit: make(map[mm.Target]uintptr, len(d.PhysicalLimit)),
		HAL:           hw,
	}

	for i, r := range d.Regions {
		caps, targets, err := r.attrs()
		if err != nil {
			return vmm.Config{}, fmt.Errorf("platform %s: region %d: %w", d.Name, i, err)
		}
		cfg.Regions = append(cfg.Regions, vmm.HWRegion{
			LinearStart: uintptr(r.Start),
			LinearEnd:   uintptr(r.End),
			Caps:        caps,
			Targets:     targets,
			BusMask:     r.Bus,
		})
	}

	for _, res := range d.Reserved {
		cfg.Reserved = append(cfg.Reserved, vmm.ReservedRange{Name: res.Name, Start: uintptr(res.Start), End: uintptr(res.End)})
	}

	for name, limit := range d.PhysicalLimit {
		target, err := mm.ParseTarget([]string{name})
		if err != nil {
			return vmm.Config{}, fmt.Errorf("platform %s: physical limit for %q: %w", d.Name, name, err)
		}
		cfg.PhysicalLimit[target] = uintptr(limit)
	}

	return cfg, nil
}

// HimemConfig returns the bank-switch allocator configuration of the
// platform.
func (d *Description) HimemConfig(hw hal.BankPlatform) (himem.Config, error) {
	if d.Himem == nil {
		return himem.Config{}, fmt.Errorf("%w: %s", ErrNoBankWindow, d.Name)
	}

	return himem.Config{
		BlockSize:    mm.Size(d.Himem.BlockSize),
		PhysBlocks:   d.Himem.PhysBlocks,
		PhysBankBase: d.Himem.PhysBankBase,
		WindowBlocks: d.Himem.WindowBlocks,
		WindowBank:   d.Himem.WindowBank,
		WindowBase:   uintptr(d.Himem.WindowBase),
		HAL:          hw,
	}, nil
}

// FakeHAL returns an in-memory HAL shaped like the platform.
func (d *Description) FakeHAL() *fakehal.Platform {
	p := fakehal.New(uintptr(d.PageSize), d.Cores, d.MMUs)
	p.VirtualOffset = [2]uintptr{uintptr(d.DataBase), uintptr(d.InstructionBase)}
	for _, bus := range d.Buses {
		p.Buses = append(p.Buses, fakehal.BusWindow{Start: uintptr(bus.Start), End: uintptr(bus.End), Bit: bus.Bit})
	}
	return p
}

// MMIOLayout returns the register layout used to drive the platform through
// a mapped register file, along with the device path and file offset.
func (d *Description) MMIOLayout() (mmio.Layout, string, int64, error) {
	if d.MMIO == nil {
		return mmio.Layout{}, "", 0, fmt.Errorf("%w: %s", ErrNoRegisterLayout, d.Name)
	}

	r := d.MMIO
	layout := mmio.Layout{
		PageSize:         uintptr(d.PageSize),
		MMUs:             d.MMUs,
		TableOffset:      uintptr(r.TableOffset),
		TableStride:      uintptr(r.TableStride),
		TableEntries:     r.TableEntries,
		VirtualBase:      [2]uintptr{uintptr(d.DataBase), uintptr(d.InstructionBase)},
		Cores:            d.Cores,
		CacheCtrlOffset:  uintptr(r.CacheCtrl),
		BusCtrlOffset:    uintptr(r.BusCtrl),
		InvalidateOffset: uintptr(r.Invalidate),
		WritebackOffset:  uintptr(r.Writeback),
		BankOffset:       uintptr(r.Banks),
		BankCount:        r.BankCount,
	}
	for _, bus := range d.Buses {
		layout.Buses = append(layout.Buses, mmio.BusWindow{Start: uintptr(bus.Start), End: uintptr(bus.End), Bit: bus.Bit})
	}
	return layout, r.Device, int64(r.Offset), nil
}
