package heap

const noBlock = -1

// findFit returns the first free block of at least size bytes, searching from size's own class
// upward and each list from its head
func (h *Heap) findFit(size int) int {
	for index := BucketFor(size); index < NumFreeLists; index++ {
		head := sentinel(index)
		for block := h.nextFree(head); block != head; block = h.nextFree(block) {
			if h.sizeOf(block) >= size {
				return block
			}
		}
	}

	return noBlock
}

// place allocates size bytes at the start of the free block, filing any remainder large enough
// to be a block of its own
func (h *Heap) place(block int, size int) {
	wilderness := h.isWilderness(block)
	total := h.sizeOf(block)
	prevAllocated := h.isPrevAllocated(block)
	h.removeFreeBlock(block)
	h.allocationCount++

	remainder := total - size
	if remainder < MinBlockSize {
		h.writeHeader(block, Header{Size: total, Allocated: true, PrevAllocated: prevAllocated})
		h.setPrevAllocated(h.nextBlock(block), true)
		return
	}

	h.writeHeader(block, Header{Size: size, Allocated: true, PrevAllocated: prevAllocated})

	upper := block + size
	h.writeHeader(upper, Header{Size: remainder, PrevAllocated: true})
	h.writeFooter(upper)

	index := BucketFor(remainder)
	if wilderness {
		index = WildernessList
	}
	h.insertFreeBlock(index, upper)
	h.coalesce(upper)
}

// split shrinks an allocated block to size bytes and frees the tail. Tails smaller than
// MinBlockSize stay inside the block.
func (h *Heap) split(block int, size int) {
	total := h.sizeOf(block)
	remainder := total - size
	if remainder < MinBlockSize {
		return
	}

	h.writeHeader(block, Header{Size: size, Allocated: true, PrevAllocated: h.isPrevAllocated(block)})

	upper := block + size
	h.writeHeader(upper, Header{Size: remainder, PrevAllocated: true})
	h.writeFooter(upper)
	h.setPrevAllocated(h.nextBlock(upper), false)

	h.insertFreeBlock(h.listIndexFor(upper), upper)
	h.coalesce(upper)
}
