package himem

// pool tracks the allocation and mapping state of a fixed number of blocks.
// Each bitmap entry i corresponds to block i of the pool.
type pool struct {
	blocks uint32

	// freeCount tracks the unallocated blocks so that requests that cannot
	// be satisfied are rejected without scanning the bitmap.
	freeCount uint32

	allocBitmap  []uint64
	mappedBitmap []uint64
}

func newPool(blocks uint32) pool {
	words := (blocks + 63) >> 6
	return pool{
		blocks:       blocks,
		freeCount:    blocks,
		allocBitmap:  make([]uint64, words),
		mappedBitmap: make([]uint64, words),
	}
}

func bitIndex(index uint32) (word uint32, mask uint64) {
	return index >> 6, 1 << (63 - (index & 63))
}

func testBit(bitmap []uint64, index uint32) bool {
	word, mask := bitIndex(index)
	return bitmap[word]&mask != 0
}

func setBit(bitmap []uint64, index uint32, set bool) {
	word, mask := bitIndex(index)
	if set {
		bitmap[word] |= mask
		return
	}
	bitmap[word] &^= mask
}

func (p *pool) allocated(index uint32) bool { return testBit(p.allocBitmap, index) }
func (p *pool) mapped(index uint32) bool    { return testBit(p.mappedBitmap, index) }

func (p *pool) setMapped(index uint32, mapped bool) {
	setBit(p.mappedBitmap, index, mapped)
}

func (p *pool) markAllocated(index uint32) {
	setBit(p.allocBitmap, index, true)
	p.freeCount--
}

func (p *pool) markFree(index uint32) {
	setBit(p.allocBitmap, index, false)
	p.freeCount++
}

// firstFree returns the n lowest free block indices. The caller must have
// checked freeCount.
func (p *pool) firstFree(n uint32) []uint32 {
	out := make([]uint32, 0, n)
	for index := uint32(0); index < p.blocks && uint32(len(out)) < n; index++ {
		if !p.allocated(index) {
			out = append(out, index)
		}
	}
	return out
}

// firstFreeRun returns the start of the lowest run of n contiguous free
// blocks.
func (p *pool) firstFreeRun(n uint32) (uint32, bool) {
	var runStart, runLen uint32
	for index := uint32(0); index < p.blocks; index++ {
		if p.allocated(index) {
			runLen = 0
			continue
		}

		if runLen == 0 {
			runStart = index
		}
		if runLen++; runLen == n {
			return runStart, true
		}
	}
	return 0, false
}
