package mm

import "testing"

func TestAlignment(t *testing.T) {
	specs := []struct {
		addr, align    uintptr
		expUp, expDown uintptr
		expAligned     bool
		expPageCount   uintptr
	}{
		{0, 0x1000, 0, 0, true, 0},
		{1, 0x1000, 0x1000, 0, false, 1},
		{0x1000, 0x1000, 0x1000, 0x1000, true, 1},
		{0x1001, 0x1000, 0x2000, 0x1000, false, 2},
		{0x2fff, 0x1000, 0x3000, 0x2000, false, 3},
		{0x18000, 0x10000, 0x20000, 0x10000, false, 2},
	}

	for specIndex, spec := range specs {
		if got := AlignUp(spec.addr, spec.align); got != spec.expUp {
			t.Errorf("[spec %d] expected AlignUp to return 0x%x; got 0x%x", specIndex, spec.expUp, got)
		}
		if got := AlignDown(spec.addr, spec.align); got != spec.expDown {
			t.Errorf("[spec %d] expected AlignDown to return 0x%x; got 0x%x", specIndex, spec.expDown, got)
		}
		if got := IsAligned(spec.addr, spec.align); got != spec.expAligned {
			t.Errorf("[spec %d] expected IsAligned to return %t; got %t", specIndex, spec.expAligned, got)
		}
		if got := PageCount(spec.addr, spec.align); got != spec.expPageCount {
			t.Errorf("[spec %d] expected PageCount to return %d; got %d", specIndex, spec.expPageCount, got)
		}
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, v := range []uintptr{1, 2, 0x1000, 0x10000, 0x8000} {
		if !IsPowerOfTwo(v) {
			t.Errorf("expected 0x%x to be a power of two", v)
		}
	}
	for _, v := range []uintptr{0, 3, 0x1001, 0x18000} {
		if IsPowerOfTwo(v) {
			t.Errorf("expected 0x%x not to be a power of two", v)
		}
	}
}

func TestSizeString(t *testing.T) {
	specs := []struct {
		size Size
		exp  string
	}{
		{0, "0 bytes"},
		{100, "100 bytes"},
		{32 * Kb, "32Kb"},
		{4 * Mb, "4Mb"},
		{Mb + Kb, "1025Kb"},
	}

	for specIndex, spec := range specs {
		if got := spec.size.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}
