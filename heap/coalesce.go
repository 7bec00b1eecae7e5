package heap

// coalesce merges a linked free block with any free neighbours and refiles the result. It
// returns the header offset of the merged block.
func (h *Heap) coalesce(block int) int {
	prevAllocated := h.isPrevAllocated(block)
	next := h.nextBlock(block)
	nextAllocated := h.isAllocated(next)

	if prevAllocated && nextAllocated {
		return block
	}

	start := block
	size := h.sizeOf(block)

	if !nextAllocated {
		size += h.sizeOf(next)
		h.removeFreeBlock(next)
	}

	if !prevAllocated {
		prev := h.prevBlock(block)
		size += h.sizeOf(prev)
		h.removeFreeBlock(prev)
		start = prev
	}

	h.removeFreeBlock(block)

	h.writeHeader(start, Header{Size: size, PrevAllocated: h.isPrevAllocated(start)})
	h.writeFooter(start)
	h.insertFreeBlock(h.listIndexFor(start), start)

	return start
}
