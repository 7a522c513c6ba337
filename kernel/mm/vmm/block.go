package vmm

import "extmem/kernel/mm"

// Block describes a live allocation inside a region.
type Block struct {
	LinearStart, LinearEnd   uintptr
	VirtualStart, VirtualEnd uintptr
	Size                     uintptr
	Caps                     mm.Caps

	// PhysicalStart, PhysicalEnd and Target are only meaningful when
	// Mapped is true. Blocks obtained via Reserve carry no physical range.
	PhysicalStart, PhysicalEnd uintptr
	Target                     mm.Target
	Mapped                     bool
}

// encloses returns true if the block's physical range contains
// [paddr, paddr+size).
func (b *Block) encloses(paddr, size uintptr) bool {
	return paddr >= b.PhysicalStart && paddr+size <= b.PhysicalEnd
}

// overlaps returns true if the block's physical range intersects
// [paddr, paddr+size).
func (b *Block) overlaps(paddr, size uintptr) bool {
	return paddr < b.PhysicalEnd && paddr+size > b.PhysicalStart
}

const (
	headIndex = int32(0)
	tailIndex = int32(1)
	nilIndex  = int32(-1)
)

type blockNode struct {
	Block
	prev, next int32
}

// blockList is an address ordered, doubly linked list of blocks stored in an
// arena and linked by index. Index 0 is the zero-size head sentinel placed at
// the region start and index 1 the zero-size tail sentinel at the region end.
// Released nodes are recycled by later insertions.
type blockList struct {
	nodes    []blockNode
	freeList []int32
	count    int
}

func newBlockList(start, end uintptr) blockList {
	return blockList{
		nodes: []blockNode{
			{Block: Block{LinearStart: start, LinearEnd: start}, prev: nilIndex, next: tailIndex},
			{Block: Block{LinearStart: end, LinearEnd: end}, prev: headIndex, next: nilIndex},
		},
	}
}

// insertAfter links b after the node at index prev and returns the index of
// the new node. The caller guarantees that b fits in the gap that follows
// prev.
func (l *blockList) insertAfter(prev int32, b Block) int32 {
	var idx int32
	if n := len(l.freeList); n != 0 {
		idx = l.freeList[n-1]
		l.freeList = l.freeList[:n-1]
	} else {
		l.nodes = append(l.nodes, blockNode{})
		idx = int32(len(l.nodes) - 1)
	}

	next := l.nodes[prev].next
	l.nodes[idx] = blockNode{Block: b, prev: prev, next: next}
	l.nodes[prev].next = idx
	l.nodes[next].prev = idx
	l.count++
	return idx
}

// remove unlinks the node at index idx. Sentinels cannot be removed.
func (l *blockList) remove(idx int32) {
	if idx == headIndex || idx == tailIndex {
		return
	}

	node := &l.nodes[idx]
	l.nodes[node.prev].next = node.next
	l.nodes[node.next].prev = node.prev
	*node = blockNode{prev: nilIndex, next: nilIndex}
	l.freeList = append(l.freeList, idx)
	l.count--
}

// visit invokes fn for every non-sentinel block in address order until fn
// returns false.
func (l *blockList) visit(fn func(idx int32, b *Block) bool) {
	for idx := l.nodes[headIndex].next; idx != tailIndex; idx = l.nodes[idx].next {
		if !fn(idx, &l.nodes[idx].Block) {
			return
		}
	}
}

// gaps invokes fn for every free slot between consecutive nodes (sentinels
// included) in address order until fn returns false. prev is the index of the
// node that precedes the slot.
func (l *blockList) gaps(fn func(prev int32, start, end uintptr) bool) {
	for idx := headIndex; idx != tailIndex; idx = l.nodes[idx].next {
		start := l.nodes[idx].LinearEnd
		end := l.nodes[l.nodes[idx].next].LinearStart
		if !fn(idx, start, end) {
			return
		}
	}
}
