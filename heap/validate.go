package heap

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
)

func corruption(format string, args ...interface{}) error {
	return errors.Wrapf(ErrHeapCorruption, format, args...)
}

// Validate walks the block chain and every free list and returns an error wrapping
// ErrHeapCorruption describing the first inconsistency found.
func (h *Heap) Validate() error {
	if len(h.data) < minPageSize || len(h.data)%h.pageSize != 0 {
		return corruption("heap size %d is not a whole number of %d byte pages", len(h.data), h.pageSize)
	}

	prologue := h.header(prologueOffset)
	if prologue != (Header{Size: MinBlockSize, Allocated: true, PrevAllocated: true}) {
		return corruption("prologue header is %+v", prologue)
	}

	listed, err := h.validateFreeLists()
	if err != nil {
		return err
	}

	prevAllocated := true
	allocationCount := 0
	freeBlockCount := 0
	sizeSum := 0
	epilogue := h.epilogue()

	block := firstBlockOffset
	for block < epilogue {
		header := h.header(block)

		if header.Size < MinBlockSize || header.Size%Alignment != 0 {
			return corruption("block %d has invalid size %d", block, header.Size)
		}
		if block+header.Size > epilogue {
			return corruption("block %d of size %d runs past the epilogue at %d", block, header.Size, epilogue)
		}
		if header.PrevAllocated != prevAllocated {
			return corruption("block %d has prev-allocated %t but its predecessor has allocated %t", block, header.PrevAllocated, prevAllocated)
		}

		if header.Allocated {
			allocationCount++
			if _, ok := listed.Get(block); ok {
				return corruption("allocated block %d is linked into a free list", block)
			}
		} else {
			freeBlockCount++
			if !prevAllocated {
				return corruption("free block %d follows another free block", block)
			}

			footer := Unpack(h.word(h.footerOf(block)))
			if footer != header {
				return corruption("free block %d has header %+v but footer %+v", block, header, footer)
			}

			index, ok := listed.Get(block)
			if !ok {
				return corruption("free block %d is not in any free list", block)
			}
			if expected := h.listIndexFor(block); index != expected {
				return corruption("free block %d of size %d is in list %d but belongs in list %d", block, header.Size, index, expected)
			}
		}

		prevAllocated = header.Allocated
		sizeSum += header.Size
		block += header.Size
	}

	if block != epilogue {
		return corruption("block chain ends at %d rather than the epilogue at %d", block, epilogue)
	}
	last := h.header(epilogue)
	if last.Size != 0 || !last.Allocated || last.PrevAllocated != prevAllocated {
		return corruption("epilogue header is %+v but the last block has allocated %t", last, prevAllocated)
	}

	if firstBlockOffset+sizeSum+WordSize != len(h.data) {
		return corruption("block sizes sum to %d in a heap of %d bytes", sizeSum, len(h.data))
	}
	if freeBlockCount != listed.Count() || freeBlockCount != h.freeBlockCount {
		return corruption("found %d free blocks in the chain, %d in the free lists and %d on record", freeBlockCount, listed.Count(), h.freeBlockCount)
	}
	if allocationCount != h.allocationCount {
		return corruption("found %d allocated blocks but %d on record", allocationCount, h.allocationCount)
	}

	return nil
}

// validateFreeLists checks the links of every list and returns the list index of each linked block
func (h *Heap) validateFreeLists() (*swiss.Map[int, int], error) {
	listed := swiss.NewMap[int, int](uint32(h.freeBlockCount + 1))
	limit := len(h.data) / MinBlockSize
	epilogue := h.epilogue()

	for index := 0; index < NumFreeLists; index++ {
		head := sentinel(index)
		prev := head
		count := 0

		for node := h.nextFree(head); node != head; node = h.nextFree(node) {
			if isSentinel(node) {
				return nil, corruption("list %d links to the sentinel of list %d", index, node-sentinelBase)
			}
			if node < firstBlockOffset || node >= epilogue || (node-firstBlockOffset)%Alignment != 0 {
				return nil, corruption("list %d links to offset %d, which cannot be a block", index, node)
			}
			if h.isAllocated(node) {
				return nil, corruption("list %d links to allocated block %d", index, node)
			}
			if h.prevFree(node) != prev {
				return nil, corruption("block %d in list %d has back link %d rather than %d", node, index, h.prevFree(node), prev)
			}
			if other, ok := listed.Get(node); ok {
				return nil, corruption("block %d appears in list %d and list %d", node, other, index)
			}
			listed.Put(node, index)

			count++
			if count > limit {
				return nil, corruption("list %d does not terminate", index)
			}
			prev = node
		}

		if h.prevFree(head) != prev {
			return nil, corruption("list %d tail is %d but the sentinel points back to %d", index, prev, h.prevFree(head))
		}
		if index == WildernessList && count > 1 {
			return nil, corruption("wilderness list holds %d blocks", count)
		}
	}

	return listed, nil
}
