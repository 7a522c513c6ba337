package platform

// builtins maps platform names to functions returning a fresh description.
var builtins = map[string]func() *Description{
	"unified-64k": unified64k,
	"split-bus":   splitBus,
	"bank-window": bankWindow,
}

// unified64k is a dual-core part with one MMU table shared by flash and
// external RAM. Every linear page can be reached from the data bus and from
// the instruction bus.
func unified64k() *Description {
	return &Description{
		Name:            "unified-64k",
		PageSize:        64 << 10,
		Cores:           2,
		MMUs:            1,
		DataBase:        0x3c000000,
		InstructionBase: 0x42000000,
		Regions: []Region{
			{Start: 0x0, End: 0x1000000, Caps: []string{"exec", "read", "write", "8bit", "32bit"}, Targets: []string{"flash", "psram"}, Bus: 0x3},
			{Start: 0x1000000, End: 0x2000000, Caps: []string{"exec", "read", "write", "8bit", "32bit"}, Targets: []string{"flash", "psram"}, Bus: 0x3},
		},
		Reserved: []Reserved{
			{Name: "irom", Start: 0x0, End: 0x52000},
			{Name: "drom", Start: 0x52000, End: 0x61a40},
		},
		Buses: []Bus{
			{Start: 0x3c000000, End: 0x3e000000, Bit: 0x1},
			{Start: 0x42000000, End: 0x44000000, Bit: 0x2},
		},
		PhysicalLimit: map[string]Address{
			"flash": 1 << 30,
			"ram":   1 << 30,
		},
		MMIO: &Registers{
			Device:       "/dev/uio0",
			TableOffset:  0x0,
			TableStride:  0x800,
			TableEntries: 512,
			CacheCtrl:    0x800,
			BusCtrl:      0x810,
			Invalidate:   0x820,
			Writeback:    0x830,
		},
	}
}

// splitBus has separate instruction and data regions with their own MMU
// table per core. Instruction space only reaches flash.
func splitBus() *Description {
	return &Description{
		Name:            "split-bus",
		PageSize:        64 << 10,
		Cores:           2,
		MMUs:            2,
		DataBase:        0x3f400000,
		InstructionBase: 0x40000000,
		Regions: []Region{
			{Start: 0x400000, End: 0xc00000, Caps: []string{"exec", "read", "32bit"}, Targets: []string{"flash"}, Bus: 0x1},
			{Start: 0x0, End: 0x400000, Caps: []string{"read", "8bit", "32bit"}, Targets: []string{"flash"}, Bus: 0x2},
			{Start: 0xc00000, End: 0x1000000, Caps: []string{"read", "write", "8bit", "32bit"}, Targets: []string{"ram"}, Bus: 0x4},
		},
		Reserved: []Reserved{
			{Name: "drom", Start: 0x0, End: 0x30000},
			{Name: "irom", Start: 0x400000, End: 0x4a0000},
		},
		Buses: []Bus{
			{Start: 0x3f400000, End: 0x3f800000, Bit: 0x2},
			{Start: 0x40400000, End: 0x40c00000, Bit: 0x1},
			{Start: 0x40000000, End: 0x40400000, Bit: 0x4},
		},
		PhysicalLimit: map[string]Address{
			"flash": 16 << 20,
			"ram":   4 << 20,
		},
	}
}

// bankWindow reaches 4Mb of external RAM through a 128Kb window of four
// 32Kb banks.
func bankWindow() *Description {
	return &Description{
		Name:     "bank-window",
		PageSize: 32 << 10,
		Cores:    2,
		MMUs:     2,
		Himem: &BankWindow{
			BlockSize:    32 << 10,
			PhysBlocks:   128,
			PhysBankBase: 0x80,
			WindowBlocks: 4,
			WindowBank:   0x7c,
			WindowBase:   0x3f800000 + 0x3e0000,
		},
	}
}
