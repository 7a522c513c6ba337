package mm

import (
	"strings"

	"extmem/kernel"
)

// Caps describes the combination of execute/read/write and access-width
// attributes permitted for a mapped range.
type Caps uint32

const (
	// CapExec allows instruction fetches. It implies Cap32Bit and excludes
	// CapWrite.
	CapExec Caps = 1 << iota

	// CapRead allows data reads.
	CapRead

	// CapWrite allows data writes.
	CapWrite

	// Cap8Bit allows byte-wide accesses.
	Cap8Bit

	// Cap32Bit allows word-wide accesses.
	Cap32Bit

	capsMask = CapExec | CapRead | CapWrite | Cap8Bit | Cap32Bit
)

var (
	// ErrInvalidCaps is returned when a capability set violates one of the
	// construction rules.
	ErrInvalidCaps = &kernel.Error{Module: "mm", Message: "invalid capability combination", Kind: kernel.KindInvalidArg}
)

// NewCaps builds a validated capability set from the supplied flags. Requests
// for executable ranges automatically gain Cap32Bit.
func NewCaps(flags ...Caps) (Caps, *kernel.Error) {
	var c Caps
	for _, f := range flags {
		c |= f
	}

	if c&CapExec != 0 {
		c |= Cap32Bit
	}

	if err := c.Validate(); err != nil {
		return 0, err
	}
	return c, nil
}

// Validate checks that the capability set is non-empty, uses known flags
// only, does not combine execute with write and that execute implies 32-bit
// access.
func (c Caps) Validate() *kernel.Error {
	switch {
	case c == 0, c&^capsMask != 0:
		return ErrInvalidCaps
	case c&CapExec != 0 && c&CapWrite != 0:
		return ErrInvalidCaps
	case c&CapExec != 0 && c&Cap32Bit == 0:
		return ErrInvalidCaps
	}
	return nil
}

// Known returns true if c is non-empty and uses known flags only. It is used
// for hardware region descriptions which may combine exec and write.
func (c Caps) Known() bool {
	return c != 0 && c&^capsMask == 0
}

// Contains returns true if c is a superset of other.
func (c Caps) Contains(other Caps) bool {
	return c&other == other
}

// String implements fmt.Stringer for Caps.
func (c Caps) String() string {
	if c == 0 {
		return "none"
	}

	var parts []string
	for _, f := range []struct {
		flag Caps
		name string
	}{
		{CapExec, "exec"},
		{CapRead, "read"},
		{CapWrite, "write"},
		{Cap8Bit, "8bit"},
		{Cap32Bit, "32bit"},
	} {
		if c&f.flag != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseCaps converts a list of capability names (as printed by String) into a
// validated capability set.
func ParseCaps(names []string) (Caps, *kernel.Error) {
	var flags []Caps
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "exec", "x":
			flags = append(flags, CapExec)
		case "read", "r":
			flags = append(flags, CapRead)
		case "write", "w":
			flags = append(flags, CapWrite)
		case "8bit":
			flags = append(flags, Cap8Bit)
		case "32bit":
			flags = append(flags, Cap32Bit)
		default:
			return 0, ErrInvalidCaps
		}
	}
	return NewCaps(flags...)
}
