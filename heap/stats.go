package heap

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/segfit/memutils"
)

// BlockInfo describes a single block in the heap
type BlockInfo struct {
	// Offset is the arena offset of the block header
	Offset        int
	Size          int
	Allocated     bool
	PrevAllocated bool
	// FreeList is the index of the list holding the block, or -1 for allocated blocks
	FreeList int
}

// Payload returns the offset of the block's payload
func (b BlockInfo) Payload() Pointer {
	return payloadOf(b.Offset)
}

func (h *Heap) blockInfo(block int) BlockInfo {
	header := h.header(block)
	info := BlockInfo{
		Offset:        block,
		Size:          header.Size,
		Allocated:     header.Allocated,
		PrevAllocated: header.PrevAllocated,
		FreeList:      -1,
	}
	if !header.Allocated {
		info.FreeList = h.listIndexFor(block)
	}
	return info
}

// VisitAllBlocks calls handleBlock for every block between the prologue and the epilogue in
// address order, stopping at the first error
func (h *Heap) VisitAllBlocks(handleBlock func(info BlockInfo) error) error {
	epilogue := h.epilogue()
	for block := firstBlockOffset; block < epilogue; block = h.nextBlock(block) {
		err := handleBlock(h.blockInfo(block))
		if err != nil {
			return err
		}
	}

	return nil
}

// VisitFreeList calls handleBlock for every block in one free list, head first
func (h *Heap) VisitFreeList(index int, handleBlock func(info BlockInfo) error) error {
	if index < 0 || index >= NumFreeLists {
		return errors.Wrapf(ErrInvalidArgument, "free list index %d is out of range", index)
	}

	head := sentinel(index)
	for block := h.nextFree(head); block != head; block = h.nextFree(block) {
		err := handleBlock(h.blockInfo(block))
		if err != nil {
			return err
		}
	}

	return nil
}

// FreeListLen returns the number of blocks in one free list
func (h *Heap) FreeListLen(index int) int {
	count := 0
	_ = h.VisitFreeList(index, func(info BlockInfo) error {
		count++
		return nil
	})
	return count
}

// BlockInfoOf describes the block holding the allocation at p
func (h *Heap) BlockInfoOf(p Pointer) (BlockInfo, error) {
	err := h.checkPointer(p)
	if err != nil {
		return BlockInfo{}, err
	}

	return h.blockInfo(blockOf(p)), nil
}

// Payload returns the usable bytes of the allocation at p. The slice aliases the arena and is
// only meaningful until p is freed or resized.
func (h *Heap) Payload(p Pointer) ([]byte, error) {
	err := h.checkPointer(p)
	if err != nil {
		return nil, err
	}

	end := blockOf(p) + h.sizeOf(blockOf(p))
	return h.data[p:end:end], nil
}

// HeapBytes returns the current size of the arena
func (h *Heap) HeapBytes() int {
	return len(h.data)
}

// AllocationCount returns the number of live allocations
func (h *Heap) AllocationCount() int {
	return h.allocationCount
}

// AddStatistics adds this heap's page, allocation and byte counts to stats
func (h *Heap) AddStatistics(stats *memutils.Statistics) {
	stats.PageCount += len(h.data) / h.pageSize
	stats.HeapBytes += len(h.data)
	stats.AllocationCount += h.allocationCount

	_ = h.VisitAllBlocks(func(info BlockInfo) error {
		if info.Allocated {
			stats.AllocationBytes += info.Size
		}
		return nil
	})
}

// AddDetailedStatistics adds this heap's counts to stats, including per-block size extremes
func (h *Heap) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.PageCount += len(h.data) / h.pageSize
	stats.HeapBytes += len(h.data)

	_ = h.VisitAllBlocks(func(info BlockInfo) error {
		if info.Allocated {
			stats.AddAllocation(info.Size)
		} else {
			stats.AddFreeBlock(info.Size)
		}
		return nil
	})
}

// PrintDetailedMap writes a JSON description of the heap: totals, the block chain and the
// occupancy of each free list
func (h *Heap) PrintDetailedMap(writer *jwriter.Writer) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	h.AddDetailedStatistics(&stats)

	objState := writer.Object()
	defer objState.End()

	objState.Name("TotalBytes").Int(stats.HeapBytes)
	objState.Name("Pages").Int(stats.PageCount)
	objState.Name("Allocations").Int(stats.AllocationCount)
	objState.Name("AllocatedBytes").Int(stats.AllocationBytes)
	objState.Name("FreeBlocks").Int(stats.FreeBlockCount)
	objState.Name("FreeBytes").Int(stats.FreeBytes)

	h.printDetailedMapBlocks(&objState)

	listsObj := objState.Name("FreeLists").Object()
	for index := 0; index < NumFreeLists; index++ {
		listsObj.Name(strconv.Itoa(index)).Int(h.FreeListLen(index))
	}
	listsObj.End()
}

func (h *Heap) printDetailedMapBlocks(json *jwriter.ObjectState) {
	arrayState := json.Name("Blocks").Array()
	defer arrayState.End()

	_ = h.VisitAllBlocks(func(info BlockInfo) error {
		obj := arrayState.Object()
		defer obj.End()

		obj.Name("Offset").Int(info.Offset)
		obj.Name("Size").Int(info.Size)
		if info.Allocated {
			obj.Name("Type").String("Allocated")
			obj.Name("Payload").Int(int(info.Payload()))
		} else {
			obj.Name("Type").String("Free")
			obj.Name("FreeList").Int(info.FreeList)
		}

		return nil
	})
}
