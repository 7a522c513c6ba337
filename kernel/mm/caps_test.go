package mm

import "testing"

func TestNewCaps(t *testing.T) {
	specs := []struct {
		flags  []Caps
		exp    Caps
		expErr bool
	}{
		{[]Caps{CapRead, CapWrite}, CapRead | CapWrite, false},
		{[]Caps{CapExec}, CapExec | Cap32Bit, false},
		{[]Caps{CapExec, CapRead}, CapExec | CapRead | Cap32Bit, false},
		{[]Caps{CapExec, CapWrite}, 0, true},
		{nil, 0, true},
		{[]Caps{Caps(1 << 7)}, 0, true},
	}

	for specIndex, spec := range specs {
		got, err := NewCaps(spec.flags...)
		if spec.expErr {
			if err != ErrInvalidCaps {
				t.Errorf("[spec %d] expected ErrInvalidCaps; got %v", specIndex, err)
			}
			continue
		}

		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}
		if got != spec.exp {
			t.Errorf("[spec %d] expected caps %s; got %s", specIndex, spec.exp, got)
		}
	}
}

func TestCapsValidate(t *testing.T) {
	if err := CapExec.Validate(); err != ErrInvalidCaps {
		t.Fatal("expected execute without 32-bit access to be rejected")
	}
	if err := (CapExec | Cap32Bit | CapRead).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCapsContains(t *testing.T) {
	region := CapRead | CapWrite | Cap8Bit | Cap32Bit

	if !region.Contains(CapRead | CapWrite) {
		t.Error("expected region caps to contain read|write")
	}
	if region.Contains(CapExec | Cap32Bit) {
		t.Error("expected region caps not to contain exec")
	}
	if !region.Contains(0) {
		t.Error("expected every set to contain the empty set")
	}
}

func TestParseCaps(t *testing.T) {
	got, err := ParseCaps([]string{"read", " Write ", "8bit"})
	if err != nil {
		t.Fatal(err)
	}
	if exp := CapRead | CapWrite | Cap8Bit; got != exp {
		t.Fatalf("expected %s; got %s", exp, got)
	}

	if _, err = ParseCaps([]string{"exec", "write"}); err != ErrInvalidCaps {
		t.Fatalf("expected ErrInvalidCaps; got %v", err)
	}
	if _, err = ParseCaps([]string{"bogus"}); err != ErrInvalidCaps {
		t.Fatalf("expected ErrInvalidCaps; got %v", err)
	}

	if exp, got := "exec|read|32bit", (CapExec | CapRead | Cap32Bit).String(); got != exp {
		t.Fatalf("expected %q; got %q", exp, got)
	}
}

func TestTarget(t *testing.T) {
	both := TargetFlash | TargetRAM

	if !TargetFlash.Single() || both.Single() || Target(0).Single() {
		t.Error("unexpected Single() result")
	}
	if !both.Contains(TargetRAM) || TargetFlash.Contains(TargetRAM) {
		t.Error("unexpected Contains() result")
	}
	if Target(1 << 5).Valid() {
		t.Error("expected unknown target bits to be invalid")
	}
	if exp, got := "flash|ram", both.String(); got != exp {
		t.Errorf("expected %q; got %q", exp, got)
	}

	parsed, err := ParseTarget([]string{"psram", "flash"})
	if err != nil {
		t.Fatal(err)
	}
	if parsed != both {
		t.Errorf("expected %s; got %s", both, parsed)
	}
	if _, err = ParseTarget(nil); err != ErrInvalidTarget {
		t.Errorf("expected ErrInvalidTarget; got %v", err)
	}
}

func TestKindForCaps(t *testing.T) {
	if KindForCaps(CapExec|Cap32Bit) != AddrInstruction {
		t.Error("expected executable caps to select the instruction bus")
	}
	if KindForCaps(CapRead) != AddrData {
		t.Error("expected data caps to select the data bus")
	}
}

func TestCapsKnown(t *testing.T) {
	specs := []struct {
		caps Caps
		exp  bool
	}{
		{0, false},
		{CapExec | CapWrite, true},
		{CapRead | Cap8Bit, true},
		{Caps(1 << 9), false},
	}

	for specIndex, spec := range specs {
		if got := spec.caps.Known(); got != spec.exp {
			t.Errorf("[spec %d] expected Known() to return %t; got %t", specIndex, spec.exp, got)
		}
	}
}
