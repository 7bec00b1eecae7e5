package heap

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/segfit/memutils"
)

const (
	// WordSize is the size in bytes of a header, footer or free list link
	WordSize int = 8
	// Alignment is the payload alignment. Every block size is a multiple of it.
	Alignment int = 64
	// MinBlockSize is the smallest block the heap will create. Remainders smaller than this
	// are left inside the allocated block rather than split off.
	MinBlockSize int = 64

	// NumFreeLists is the number of free list buckets, including the wilderness list
	NumFreeLists int = 10
	// WildernessList is the index of the bucket reserved for the wilderness block
	WildernessList int = NumFreeLists - 1

	prologueOffset   = Alignment - WordSize
	firstBlockOffset = prologueOffset + MinBlockSize

	// minPageSize is the smallest page that can hold padding, prologue, one block and the epilogue
	minPageSize = firstBlockOffset + MinBlockSize + WordSize

	allocatedBit     uint64 = 0x1
	prevAllocatedBit uint64 = 0x2
	sizeMask                = ^uint64(Alignment - 1)
)

// Pointer is the arena offset of an allocation's payload
type Pointer int

// NullPointer is returned by operations that produce no allocation
const NullPointer Pointer = 0

// Header is the decoded form of a block header (or of a free block's footer)
type Header struct {
	Size          int
	Allocated     bool
	PrevAllocated bool
}

// NewHeader builds a Header, rejecting sizes that could not be stored in a header word
func NewHeader(size int, allocated, prevAllocated bool) (Header, error) {
	if size < 0 || !memutils.IsAligned(size, Alignment) {
		return Header{}, errors.Newf("block size %d is not a non-negative multiple of %d", size, Alignment)
	}

	return Header{Size: size, Allocated: allocated, PrevAllocated: prevAllocated}, nil
}

// Pack encodes the header into a single word
func (h Header) Pack() uint64 {
	word := uint64(h.Size) & sizeMask
	if h.Allocated {
		word |= allocatedBit
	}
	if h.PrevAllocated {
		word |= prevAllocatedBit
	}
	return word
}

// Unpack decodes a header word
func Unpack(word uint64) Header {
	return Header{
		Size:          int(word & sizeMask),
		Allocated:     word&allocatedBit != 0,
		PrevAllocated: word&prevAllocatedBit != 0,
	}
}

// BlockSizeFor returns the block size used to satisfy a request for size payload bytes: the
// payload plus a header, rounded up to Alignment and never below MinBlockSize.
func BlockSizeFor(size int) int {
	blockSize := memutils.AlignUp(size+WordSize, Alignment)
	if blockSize < MinBlockSize {
		return MinBlockSize
	}
	return blockSize
}

var sizeClassMultipliers = [NumFreeLists - 2]int{1, 2, 3, 5, 8, 13, 21, 34}

// BucketFor returns the index of the size class list for a free block of the given size.
// It never returns WildernessList.
func BucketFor(size int) int {
	for index, multiplier := range sizeClassMultipliers {
		if size <= multiplier*MinBlockSize {
			return index
		}
	}

	return NumFreeLists - 2
}
