package vmm

import (
	"sort"

	"extmem/kernel"
	"extmem/kernel/kfmt"
	"extmem/kernel/mm"
)

// region is a coalesced range of linear address space and the blocks
// allocated inside it.
type region struct {
	linearStart, linearEnd uintptr
	caps                   mm.Caps
	targets                mm.Target
	busMask                uint32

	// freeHead is the start of the lowest free slot and maxFreeSlot the
	// size of the largest one. Both are recomputed after every list
	// mutation.
	freeHead    uintptr
	maxFreeSlot uintptr

	blocks blockList
}

// RegionInfo is a read-only snapshot of a region.
type RegionInfo struct {
	LinearStart, LinearEnd uintptr
	Size                   uintptr
	Caps                   mm.Caps
	Targets                mm.Target
	BusMask                uint32
	FreeHead               uintptr
	MaxFreeSlot            uintptr
	BlockCount             int
}

// New builds a Manager from cfg. The hardware regions are sorted, shrunk so
// that they exclude the reserved ranges and finally adjacent regions with
// identical caps and targets are coalesced.
func New(cfg Config) (*Manager, *kernel.Error) {
	if cfg.HAL == nil || !mm.IsPowerOfTwo(cfg.PageSize) || len(cfg.Regions) == 0 {
		return nil, ErrInvalidConfig
	}

	hwRegions, err := validateRegions(cfg.Regions, cfg.PageSize)
	if err != nil {
		return nil, err
	}

	hwRegions = deductReserved(hwRegions, cfg.Reserved, cfg.PageSize)
	hwRegions = coalesce(hwRegions)

	m := &Manager{
		hw:        cfg.HAL,
		pageSize:  cfg.PageSize,
		physLimit: make(map[mm.Target]uintptr, len(cfg.PhysicalLimit)),
	}
	m.cs.Masker = cfg.HAL

	for t, limit := range cfg.PhysicalLimit {
		m.physLimit[t] = limit
	}

	for _, hw := range hwRegions {
		r := &region{
			linearStart: hw.LinearStart,
			linearEnd:   hw.LinearEnd,
			caps:        hw.Caps,
			targets:     hw.Targets,
			busMask:     hw.BusMask,
			blocks:      newBlockList(hw.LinearStart, hw.LinearEnd),
		}
		r.recomputeFreeSlots()
		m.regions = append(m.regions, r)
	}

	m.printRegions(len(cfg.Regions))
	return m, nil
}

// validateRegions returns an address sorted copy of regions after checking
// alignment, bounds, caps and targets of every entry and that no two entries
// overlap.
func validateRegions(regions []HWRegion, pageSize uintptr) ([]HWRegion, *kernel.Error) {
	sorted := make([]HWRegion, len(regions))
	copy(sorted, regions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LinearStart < sorted[j].LinearStart })

	for i, r := range sorted {
		switch {
		case r.LinearStart >= r.LinearEnd,
			!mm.IsAligned(r.LinearStart, pageSize),
			!mm.IsAligned(r.LinearEnd, pageSize),
			!r.Caps.Known(),
			!r.Targets.Valid():
			return nil, ErrInvalidConfig
		case i > 0 && sorted[i-1].LinearEnd > r.LinearStart:
			return nil, ErrInvalidConfig
		}
	}

	return sorted, nil
}

// deductReserved moves the start of every region that overlaps a reserved
// range past the (page rounded) end of that range. Regions that end up empty
// are dropped.
func deductReserved(regions []HWRegion, reserved []ReservedRange, pageSize uintptr) []HWRegion {
	out := regions[:0]
	for _, r := range regions {
		for _, res := range reserved {
			if res.Start >= res.End || res.Start >= r.LinearEnd || res.End <= r.LinearStart {
				continue
			}

			if newStart := mm.AlignUp(res.End, pageSize); newStart > r.LinearStart {
				r.LinearStart = newStart
			}
			if r.LinearStart > r.LinearEnd {
				r.LinearStart = r.LinearEnd
			}
		}

		if r.LinearStart < r.LinearEnd {
			out = append(out, r)
		}
	}
	return out
}

// coalesce merges address-contiguous neighbours that share caps and targets.
// The bus masks of merged regions are combined.
func coalesce(regions []HWRegion) []HWRegion {
	if len(regions) == 0 {
		return regions
	}

	out := []HWRegion{regions[0]}
	for _, r := range regions[1:] {
		last := &out[len(out)-1]
		if last.LinearEnd == r.LinearStart && last.Caps == r.Caps && last.Targets == r.Targets {
			last.LinearEnd = r.LinearEnd
			last.BusMask |= r.BusMask
			continue
		}
		out = append(out, r)
	}
	return out
}

// recomputeFreeSlots rescans the gaps of the region and refreshes freeHead
// and maxFreeSlot.
func (r *region) recomputeFreeSlots() {
	r.freeHead = r.linearEnd
	r.maxFreeSlot = 0

	r.blocks.gaps(func(_ int32, start, end uintptr) bool {
		if end == start {
			return true
		}
		if r.freeHead == r.linearEnd {
			r.freeHead = start
		}
		if size := end - start; size > r.maxFreeSlot {
			r.maxFreeSlot = size
		}
		return true
	})
}

// matches returns true if the region serves every capability in caps and
// every target in target.
func (r *region) matches(caps mm.Caps, target mm.Target) bool {
	return r.caps.Contains(caps) && r.targets.Contains(target)
}

// servesKind returns true if the region can be accessed through the given
// bus view.
func (r *region) servesKind(kind mm.AddrKind) bool {
	if kind == mm.AddrInstruction {
		return r.caps&mm.CapExec != 0
	}
	return r.caps&(mm.CapRead|mm.CapWrite) != 0
}

func (r *region) info() RegionInfo {
	return RegionInfo{
		LinearStart: r.linearStart,
		LinearEnd:   r.linearEnd,
		Size:        r.linearEnd - r.linearStart,
		Caps:        r.caps,
		Targets:     r.targets,
		BusMask:     r.busMask,
		FreeHead:    r.freeHead,
		MaxFreeSlot: r.maxFreeSlot,
		BlockCount:  r.blocks.count,
	}
}

// MaxFreeBlock returns the size of the largest free slot across all regions
// that serve caps and target. It returns ErrNoSuchRegion if no region
// qualifies.
func (m *Manager) MaxFreeBlock(caps mm.Caps, target mm.Target) (uintptr, *kernel.Error) {
	if caps.Validate() != nil || !target.Valid() {
		return 0, ErrInvalidArg
	}

	state := m.cs.Enter()
	defer m.cs.Exit(state)

	var (
		found   bool
		maxSize uintptr
	)
	for _, r := range m.regions {
		if !r.matches(caps, target) {
			continue
		}
		found = true
		if r.maxFreeSlot > maxSize {
			maxSize = r.maxFreeSlot
		}
	}

	if !found {
		return 0, ErrNoSuchRegion
	}
	return maxSize, nil
}

// Regions returns a snapshot of the coalesced regions in address order.
func (m *Manager) Regions() []RegionInfo {
	state := m.cs.Enter()
	defer m.cs.Exit(state)

	out := make([]RegionInfo, 0, len(m.regions))
	for _, r := range m.regions {
		out = append(out, r.info())
	}
	return out
}

// printRegions logs the registry layout produced by New.
func (m *Manager) printRegions(hwCount int) {
	kfmt.Printf("[vmm] %d hardware regions coalesced into %d, page size: 0x%x\n", hwCount, len(m.regions), m.pageSize)
	for i, r := range m.regions {
		kfmt.Printf("[vmm] region %d: [0x%08x - 0x%08x), size: 0x%x, caps: %s, targets: %s, bus: 0x%x\n",
			i, r.linearStart, r.linearEnd, r.linearEnd-r.linearStart, r.caps, r.targets, r.busMask)
	}
}
