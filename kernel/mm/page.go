package mm

// IsPowerOfTwo returns true if v is a non-zero power of two. Page and block
// sizes must satisfy this so that alignment can be computed with masks.
func IsPowerOfTwo(v uintptr) bool {
	return v != 0 && v&(v-1) == 0
}

// AlignUp rounds addr up to the nearest multiple of align. The align argument
// must be a power of two.
func AlignUp(addr, align uintptr) uintptr {
	return (addr + (align - 1)) & ^(align - 1)
}

// AlignDown rounds addr down to the nearest multiple of align. The align
// argument must be a power of two.
func AlignDown(addr, align uintptr) uintptr {
	return addr & ^(align - 1)
}

// IsAligned returns true if addr is a multiple of align.
func IsAligned(addr, align uintptr) bool {
	return addr&(align-1) == 0
}

// PageCount returns the number of pages of the given size needed to cover
// size bytes.
func PageCount(size, pageSize uintptr) uintptr {
	return AlignUp(size, pageSize) / pageSize
}
