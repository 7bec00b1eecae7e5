package heap

import "fmt"

const (
	// sentinelBase is far above any arena offset, so sentinel references can share the link words
	sentinelBase = 1 << 62

	nextLinkOffset = WordSize
	prevLinkOffset = 2 * WordSize
)

type listHead struct {
	next int
	prev int
}

func sentinel(index int) int {
	return sentinelBase + index
}

func isSentinel(node int) bool {
	return node >= sentinelBase
}

func (h *Heap) nextFree(node int) int {
	if isSentinel(node) {
		return h.freeLists[node-sentinelBase].next
	}
	return int(h.word(node + nextLinkOffset))
}

func (h *Heap) prevFree(node int) int {
	if isSentinel(node) {
		return h.freeLists[node-sentinelBase].prev
	}
	return int(h.word(node + prevLinkOffset))
}

func (h *Heap) setNextFree(node, next int) {
	if isSentinel(node) {
		h.freeLists[node-sentinelBase].next = next
		return
	}
	h.putWord(node+nextLinkOffset, uint64(next))
}

func (h *Heap) setPrevFree(node, prev int) {
	if isSentinel(node) {
		h.freeLists[node-sentinelBase].prev = prev
		return
	}
	h.putWord(node+prevLinkOffset, uint64(prev))
}

// listIndexFor is the bucket a free block belongs in: the wilderness list if it ends at the
// epilogue, otherwise its size class
func (h *Heap) listIndexFor(block int) int {
	if h.isWilderness(block) {
		return WildernessList
	}
	return BucketFor(h.sizeOf(block))
}

func (h *Heap) insertFreeBlock(index int, block int) {
	head := sentinel(index)
	first := h.nextFree(head)

	h.setNextFree(block, first)
	h.setPrevFree(block, head)
	h.setPrevFree(first, block)
	h.setNextFree(head, block)
	h.freeBlockCount++
}

func (h *Heap) removeFreeBlock(block int) {
	next := h.nextFree(block)
	prev := h.prevFree(block)
	if next == 0 || prev == 0 {
		panic(fmt.Sprintf("attempted to remove block %d from a free list, but it is not linked", block))
	}

	h.setNextFree(prev, next)
	h.setPrevFree(next, prev)
	h.setNextFree(block, 0)
	h.setPrevFree(block, 0)
	h.freeBlockCount--
}
