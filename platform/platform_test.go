package platform

import (
	"testing"

	"github.com/stretchr/testify/require"

	"extmem/kernel/mm"
	"extmem/kernel/mm/himem"
	"extmem/kernel/mm/vmm"
)

func TestParseAddress(t *testing.T) {
	specs := []struct {
		in  string
		exp Address
	}{
		{"4096", 4096},
		{"0x3c000000", 0x3c000000},
		{"64Kb", 64 << 10},
		{"4 MB", 4 << 20},
		{" 0x10Kb ", 16 << 10},
	}

	for _, spec := range specs {
		got, err := ParseAddress(spec.in)
		require.NoError(t, err, spec.in)
		require.Equal(t, spec.exp, got, spec.in)
	}

	_, err := ParseAddress("lots")
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	d, err := Load("testdata/board.yaml")
	require.NoError(t, err)

	require.Equal(t, "board", d.Name)
	require.Equal(t, Address(64<<10), d.PageSize)
	require.Equal(t, Address(16<<20), d.Regions[1].End)
	require.Equal(t, Address(0x3c000000), d.DataBase)

	fake := d.FakeHAL()
	cfg, err := d.VMMConfig(fake)
	require.NoError(t, err)
	require.Equal(t, uintptr(64<<10), cfg.PageSize)
	require.Len(t, cfg.Regions, 2)
	require.Equal(t, mm.CapExec|mm.CapRead|mm.Cap32Bit, cfg.Regions[0].Caps)
	require.Equal(t, mm.TargetRAM, cfg.Regions[1].Targets)
	require.Equal(t, uintptr(16<<20), cfg.PhysicalLimit[mm.TargetFlash])
	require.Equal(t, []vmm.ReservedRange{{Name: "irom", Start: 0, End: 0x2f000}}, cfg.Reserved)

	space, kerr := vmm.New(cfg)
	require.Nil(t, kerr)
	regions := space.Regions()
	require.Len(t, regions, 2)
	require.Equal(t, uintptr(0x30000), regions[0].LinearStart)

	hcfg, err := d.HimemConfig(fake)
	require.NoError(t, err)
	require.Equal(t, mm.Size(32<<10), hcfg.BlockSize)
	require.Equal(t, uintptr(0x3f800000), hcfg.WindowBase)

	alloc, kerr := himem.New(hcfg)
	require.Nil(t, kerr)
	require.Equal(t, mm.Size(2<<20), alloc.PhysSize())
}

func TestParseErrors(t *testing.T) {
	specs := map[string]string{
		"missing name":     "page_size: 4096\ncores: 1\nmmus: 1\n",
		"bad page size":    "name: x\npage_size: 3000\ncores: 1\nmmus: 1\n",
		"no cores":         "name: x\npage_size: 4096\nmmus: 1\n",
		"nothing to map":   "name: x\npage_size: 4096\ncores: 1\nmmus: 1\n",
		"bad address":      "name: x\npage_size: huge\n",
		"address sequence": "name: x\npage_size: [1]\n",
		"bad caps":         "name: x\npage_size: 4096\ncores: 1\nmmus: 1\nregions:\n  - {start: 0, end: 0x1000, caps: [fly], targets: [ram]}\n",
		"bad targets":      "name: x\npage_size: 4096\ncores: 1\nmmus: 1\nregions:\n  - {start: 0, end: 0x1000, caps: [read], targets: [tape]}\n",
		"bad limit":        "name: x\npage_size: 4096\ncores: 1\nmmus: 1\nregions:\n  - {start: 0, end: 0x1000, caps: [read], targets: [ram]}\nphysical_limit:\n  tape: 0x1000\n",
	}

	for name, spec := range specs {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(spec))
			require.Error(t, err)
		})
	}

	_, err := Load("testdata/missing.yaml")
	require.Error(t, err)
}

func TestBuiltins(t *testing.T) {
	require.Equal(t, []string{"bank-window", "split-bus", "unified-64k"}, Names())

	_, err := Lookup("nope")
	require.ErrorIs(t, err, ErrUnknownPlatform)

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			d, err := Lookup(name)
			require.NoError(t, err)
			require.NoError(t, d.Validate())

			fake := d.FakeHAL()
			if len(d.Regions) != 0 {
				cfg, err := d.VMMConfig(fake)
				require.NoError(t, err)

				_, kerr := vmm.New(cfg)
				require.Nil(t, kerr)
			}

			if d.Himem == nil {
				_, err = d.HimemConfig(fake)
				require.ErrorIs(t, err, ErrNoBankWindow)
				return
			}

			cfg, err := d.HimemConfig(fake)
			require.NoError(t, err)
			_, kerr := himem.New(cfg)
			require.Nil(t, kerr)
		})
	}
}

func TestLookupReturnsCopies(t *testing.T) {
	a, err := Lookup("unified-64k")
	require.NoError(t, err)
	a.Regions[0].Bus = 0

	b, err := Lookup("unified-64k")
	require.NoError(t, err)
	require.Equal(t, uint32(0x3), b.Regions[0].Bus)
}

func TestUnifiedRegionsCoalesce(t *testing.T) {
	d, err := Lookup("unified-64k")
	require.NoError(t, err)

	cfg, err := d.VMMConfig(d.FakeHAL())
	require.NoError(t, err)

	space, kerr := vmm.New(cfg)
	require.Nil(t, kerr)

	regions := space.Regions()
	require.Len(t, regions, 1)
	require.Equal(t, uintptr(0x70000), regions[0].LinearStart)
	require.Equal(t, uintptr(0x2000000), regions[0].LinearEnd)
}

func TestMMIOLayout(t *testing.T) {
	d, err := Lookup("unified-64k")
	require.NoError(t, err)

	layout, device, offset, err := d.MMIOLayout()
	require.NoError(t, err)
	require.Equal(t, "/dev/uio0", device)
	require.Zero(t, offset)
	require.Equal(t, uint32(512), layout.TableEntries)
	require.Equal(t, [2]uintptr{0x3c000000, 0x42000000}, layout.VirtualBase)
	require.Len(t, layout.Buses, 2)

	d, err = Lookup("split-bus")
	require.NoError(t, err)
	_, _, _, err = d.MMIOLayout()
	require.ErrorIs(t, err, ErrNoRegisterLayout)
}
