package mm

import (
	"math/bits"
	"strings"

	"extmem/kernel"
)

// Target identifies the backing physical-memory device family of an address.
// Hardware regions may serve several targets; a mapping names exactly one.
type Target uint8

const (
	// TargetFlash selects flash-like backing storage.
	TargetFlash Target = 1 << iota

	// TargetRAM selects RAM-like backing storage.
	TargetRAM

	targetMask = TargetFlash | TargetRAM
)

var (
	// ErrInvalidTarget is returned when a target set is empty, uses unknown
	// bits or names more than one device where exactly one is required.
	ErrInvalidTarget = &kernel.Error{Module: "mm", Message: "invalid memory target", Kind: kernel.KindInvalidArg}
)

// Valid returns true if t is a non-empty set of known targets.
func (t Target) Valid() bool {
	return t != 0 && t&^targetMask == 0
}

// Single returns true if t names exactly one known target.
func (t Target) Single() bool {
	return t.Valid() && bits.OnesCount8(uint8(t)) == 1
}

// Contains returns true if t is a superset of other.
func (t Target) Contains(other Target) bool {
	return t&other == other
}

// String implements fmt.Stringer for Target.
func (t Target) String() string {
	var parts []string
	if t&TargetFlash != 0 {
		parts = append(parts, "flash")
	}
	if t&TargetRAM != 0 {
		parts = append(parts, "ram")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseTarget converts a list of target names into a target set.
func ParseTarget(names []string) (Target, *kernel.Error) {
	var t Target
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "flash":
			t |= TargetFlash
		case "ram", "psram":
			t |= TargetRAM
		default:
			return 0, ErrInvalidTarget
		}
	}
	if !t.Valid() {
		return 0, ErrInvalidTarget
	}
	return t, nil
}

// AddrKind selects the bus view of a linear address.
type AddrKind uint8

const (
	// AddrData selects the data bus view.
	AddrData AddrKind = iota

	// AddrInstruction selects the instruction bus view.
	AddrInstruction
)

// String implements fmt.Stringer for AddrKind.
func (k AddrKind) String() string {
	if k == AddrInstruction {
		return "instruction"
	}
	return "data"
}

// KindForCaps returns the bus view used by a range with the given caps.
func KindForCaps(c Caps) AddrKind {
	if c&CapExec != 0 {
		return AddrInstruction
	}
	return AddrData
}
