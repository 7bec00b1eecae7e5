package heap

import (
	"encoding/binary"
	"fmt"
)

func (h *Heap) word(offset int) uint64 {
	return binary.LittleEndian.Uint64(h.data[offset : offset+WordSize])
}

func (h *Heap) putWord(offset int, value uint64) {
	binary.LittleEndian.PutUint64(h.data[offset:offset+WordSize], value)
}

func (h *Heap) header(block int) Header {
	return Unpack(h.word(block))
}

func (h *Heap) sizeOf(block int) int {
	return int(h.word(block) & sizeMask)
}

func (h *Heap) isAllocated(block int) bool {
	return h.word(block)&allocatedBit != 0
}

func (h *Heap) isPrevAllocated(block int) bool {
	return h.word(block)&prevAllocatedBit != 0
}

func (h *Heap) footerOf(block int) int {
	return block + h.sizeOf(block) - WordSize
}

func (h *Heap) nextBlock(block int) int {
	return block + h.sizeOf(block)
}

// prevBlock locates the predecessor through its footer, which only free blocks carry
func (h *Heap) prevBlock(block int) int {
	if h.isPrevAllocated(block) {
		panic(fmt.Sprintf("attempted to locate the predecessor of block %d, but the predecessor is allocated", block))
	}

	return block - Unpack(h.word(block-WordSize)).Size
}

func (h *Heap) epilogue() int {
	return len(h.data) - WordSize
}

func (h *Heap) isWilderness(block int) bool {
	return h.nextBlock(block) == h.epilogue()
}

func (h *Heap) writeHeader(block int, header Header) {
	h.putWord(block, header.Pack())
}

func (h *Heap) writeFooter(block int) {
	h.putWord(h.footerOf(block), h.word(block))
}

// setPrevAllocated updates a block's prev-allocated bit, keeping a free block's footer in sync
func (h *Heap) setPrevAllocated(block int, prevAllocated bool) {
	header := h.header(block)
	header.PrevAllocated = prevAllocated
	h.writeHeader(block, header)

	if !header.Allocated && header.Size > 0 {
		h.writeFooter(block)
	}
}

func payloadOf(block int) Pointer {
	return Pointer(block + WordSize)
}

func blockOf(p Pointer) int {
	return int(p) - WordSize
}
