package mm

import "fmt"

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

// String implements fmt.Stringer for Size.
func (s Size) String() string {
	switch {
	case s >= Mb && s%Mb == 0:
		return fmt.Sprintf("%dMb", uint64(s/Mb))
	case s >= Kb && s%Kb == 0:
		return fmt.Sprintf("%dKb", uint64(s/Kb))
	default:
		return fmt.Sprintf("%d bytes", uint64(s))
	}
}
