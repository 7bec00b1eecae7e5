package heap

import (
	"context"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/segfit/memutils"
	"golang.org/x/exp/slog"
)

// maxRequest keeps the block size computation for a request from overflowing
const maxRequest = math.MaxInt/2 - 2*MinBlockSize

// Malloc allocates a block with at least size bytes of 64-byte-aligned payload and returns the
// payload's offset. A size of 0 returns NullPointer and no error. When the arena cannot grow
// far enough the error code is set to ErrnoNoMemory; pages acquired along the way are kept.
func (h *Heap) Malloc(size int) (Pointer, error) {
	p, err := h.malloc(size)
	h.checkInvariants()
	return p, err
}

func (h *Heap) malloc(size int) (Pointer, error) {
	if size == 0 {
		return NullPointer, nil
	}
	if size < 0 {
		return h.fail(ErrnoInvalid, errors.Wrapf(ErrInvalidArgument, "allocation size %d is negative", size))
	}
	if size > maxRequest {
		return h.fail(ErrnoNoMemory, errors.Wrapf(ErrOutOfMemory, "allocation size %d exceeds the addressable range", size))
	}

	blockSize := BlockSizeFor(size)
	block := h.findFit(blockSize)

	for block == noBlock {
		wilderness, err := h.grow()
		if err != nil {
			h.logger.LogAttrs(context.Background(), slog.LevelWarn, "heap exhausted",
				slog.Int("Size", size),
				slog.Int("BlockSize", blockSize),
				slog.Int("HeapBytes", len(h.data)),
				slog.Any("error", err))
			return h.fail(ErrnoNoMemory, errors.Mark(errors.Wrapf(err, "failed to allocate %d bytes", size), ErrOutOfMemory))
		}

		if h.sizeOf(wilderness) >= blockSize {
			block = wilderness
		}
	}

	h.place(block, blockSize)
	return payloadOf(block), nil
}

// Free releases the allocation at p. Freeing a pointer that does not identify a live allocation
// is a fatal error: the problem is logged and Free panics with an error wrapping ErrInvalidPointer.
func (h *Heap) Free(p Pointer) {
	err := h.checkPointer(p)
	if err != nil {
		h.logger.LogAttrs(context.Background(), slog.LevelError, "invalid free",
			slog.Int("Pointer", int(p)),
			slog.Int("HeapBytes", len(h.data)),
			slog.Any("error", err))
		panic(err)
	}

	h.free(p)
	h.checkInvariants()
}

func (h *Heap) free(p Pointer) {
	block := blockOf(p)

	h.writeHeader(block, Header{Size: h.sizeOf(block), PrevAllocated: h.isPrevAllocated(block)})
	h.writeFooter(block)
	h.setPrevAllocated(h.nextBlock(block), false)
	h.allocationCount--

	h.insertFreeBlock(h.listIndexFor(block), block)
	h.coalesce(block)
}

// Realloc resizes the allocation at p. A size of 0 frees the allocation and returns NullPointer.
// Growing moves the allocation and copies the old payload; shrinking happens in place. An invalid
// pointer sets ErrnoInvalid, and a failed move leaves the original allocation untouched.
func (h *Heap) Realloc(p Pointer, size int) (Pointer, error) {
	newP, err := h.realloc(p, size)
	h.checkInvariants()
	return newP, err
}

func (h *Heap) realloc(p Pointer, size int) (Pointer, error) {
	err := h.checkPointer(p)
	if err != nil {
		return h.fail(ErrnoInvalid, err)
	}

	if size == 0 {
		h.free(p)
		return NullPointer, nil
	}
	if size < 0 {
		return h.fail(ErrnoInvalid, errors.Wrapf(ErrInvalidArgument, "allocation size %d is negative", size))
	}

	block := blockOf(p)
	current := h.sizeOf(block)
	if size > maxRequest {
		return h.fail(ErrnoNoMemory, errors.Wrapf(ErrOutOfMemory, "allocation size %d exceeds the addressable range", size))
	}
	blockSize := BlockSizeFor(size)

	switch {
	case blockSize == current:
		return p, nil
	case blockSize < current:
		h.split(block, blockSize)
		return p, nil
	}

	newP, err := h.malloc(size)
	if err != nil {
		return NullPointer, err
	}

	count := min(current-WordSize, size)
	copy(h.data[newP:int(newP)+count], h.data[p:int(p)+count])
	h.free(p)

	return newP, nil
}

// Memalign allocates size bytes whose payload offset is a multiple of alignment. The alignment
// must be a power of two no smaller than MinBlockSize; anything else sets ErrnoInvalid. A size
// of 0 returns NullPointer and no error.
func (h *Heap) Memalign(size int, alignment int) (Pointer, error) {
	p, err := h.memalign(size, alignment)
	h.checkInvariants()
	return p, err
}

func (h *Heap) memalign(size int, alignment int) (Pointer, error) {
	if alignment < MinBlockSize {
		return h.fail(ErrnoInvalid, errors.Wrapf(ErrInvalidAlignment, "alignment %d is smaller than %d", alignment, MinBlockSize))
	}
	err := memutils.CheckPow2(alignment, "alignment")
	if err != nil {
		return h.fail(ErrnoInvalid, errors.Mark(err, ErrInvalidAlignment))
	}

	if size == 0 {
		return NullPointer, nil
	}
	if size < 0 {
		return h.fail(ErrnoInvalid, errors.Wrapf(ErrInvalidArgument, "allocation size %d is negative", size))
	}
	if size > maxRequest-alignment {
		return h.fail(ErrnoNoMemory, errors.Wrapf(ErrOutOfMemory, "aligned allocation of %d bytes exceeds the addressable range", size))
	}

	blockSize := BlockSizeFor(size)
	p, err := h.malloc(size + alignment + MinBlockSize)
	if err != nil {
		return NullPointer, err
	}
	block := blockOf(p)

	if memutils.IsAligned(int(p), alignment) {
		h.split(block, blockSize)
		return p, nil
	}

	// Both offsets are multiples of 64 and differ, so the prefix is always a legal block
	alignedP := Pointer(memutils.AlignUp(int(p), alignment))
	alignedBlock := blockOf(alignedP)
	prefix := alignedBlock - block
	total := h.sizeOf(block)

	h.writeHeader(alignedBlock, Header{Size: total - prefix, Allocated: true})
	h.writeHeader(block, Header{Size: prefix, PrevAllocated: h.isPrevAllocated(block)})
	h.writeFooter(block)
	h.insertFreeBlock(BucketFor(prefix), block)
	h.coalesce(block)

	h.split(alignedBlock, blockSize)
	return alignedP, nil
}
