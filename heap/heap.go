package heap

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/segfit/arena"
	"github.com/vkngwrapper/segfit/memutils"
	"golang.org/x/exp/slog"
)

// CreateOptions configures a Heap at creation time
type CreateOptions struct {
	// CheckInvariants runs Validate after every public operation and panics if it fails. This is
	// the runtime equivalent of building with the debug_mem_utils tag.
	CheckInvariants bool
}

// Heap is a segregated-fit allocator over the region supplied by an arena.Provider. It is not
// safe for concurrent use.
type Heap struct {
	logger   *slog.Logger
	provider arena.Provider
	options  CreateOptions
	pageSize int

	data      []byte
	freeLists [NumFreeLists]listHead
	errno     Errno

	allocationCount int
	freeBlockCount  int
}

var _ memutils.Validatable = &Heap{}

// New creates a heap over an empty provider. The first page is requested immediately and
// formatted with the padding, prologue, a single wilderness block and the epilogue.
func New(logger *slog.Logger, provider arena.Provider, options CreateOptions) (*Heap, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "provider cannot be nil")
	}

	memutils.DebugCheckPow2(Alignment, "alignment")

	pageSize := provider.PageSize()
	if pageSize < minPageSize || !memutils.IsAligned(pageSize, Alignment) {
		return nil, errors.Wrapf(ErrInvalidArgument, "page size %d must be a multiple of %d and at least %d", pageSize, Alignment, minPageSize)
	}
	if provider.End() != provider.Start() {
		return nil, errors.Wrapf(ErrInvalidArgument, "provider must be empty, but already holds %d bytes", provider.End()-provider.Start())
	}

	h := &Heap{
		logger:   logger,
		provider: provider,
		options:  options,
		pageSize: pageSize,
	}
	for index := range h.freeLists {
		h.freeLists[index] = listHead{next: sentinel(index), prev: sentinel(index)}
	}

	err := h.init()
	if err != nil {
		return nil, err
	}

	return h, nil
}

func (h *Heap) init() error {
	h.logger.Debug("Heap::init", slog.Int("PageSize", h.pageSize), slog.Bool("DebugValidation", memutils.DebugEnabled))

	page, err := h.provider.Grow()
	if err != nil {
		return errors.Mark(errors.Wrap(err, "failed to acquire the initial page"), ErrOutOfMemory)
	}
	if page != 0 {
		return errors.Wrapf(ErrInvalidArgument, "provider returned initial page at offset %d", page)
	}
	wilderness, err := NewHeader(h.provider.End()-firstBlockOffset-WordSize, false, true)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "initial page cannot hold a block"), ErrInvalidArgument)
	}
	err = h.refresh()
	if err != nil {
		return err
	}

	h.writeHeader(prologueOffset, Header{Size: MinBlockSize, Allocated: true, PrevAllocated: true})

	h.writeHeader(firstBlockOffset, wilderness)
	h.writeFooter(firstBlockOffset)

	h.writeHeader(h.epilogue(), Header{Allocated: true})
	h.insertFreeBlock(WildernessList, firstBlockOffset)

	return nil
}

func (h *Heap) refresh() error {
	data := h.provider.Bytes()
	if len(data) != h.provider.End()-h.provider.Start() {
		return errors.Newf("provider returned %d bytes for a region of %d bytes", len(data), h.provider.End()-h.provider.Start())
	}
	h.data = data
	return nil
}

// grow extends the arena by one page, files the page as a free block and merges it into the
// wilderness. It returns the header offset of the resulting wilderness block.
func (h *Heap) grow() (int, error) {
	oldEpilogue := h.epilogue()
	prevAllocated := h.isPrevAllocated(oldEpilogue)

	page, err := h.provider.Grow()
	if err != nil {
		return noBlock, err
	}
	if page != len(h.data) {
		return noBlock, errors.Newf("provider grew at offset %d but the region ended at %d", page, len(h.data))
	}
	// The old epilogue word becomes the new block's header
	grown, err := NewHeader(h.provider.End()-page, false, prevAllocated)
	if err != nil {
		return noBlock, errors.Wrapf(err, "provider grew by %d bytes", h.provider.End()-page)
	}
	err = h.refresh()
	if err != nil {
		return noBlock, err
	}

	block := oldEpilogue
	h.writeHeader(block, grown)
	h.writeFooter(block)
	h.writeHeader(h.epilogue(), Header{Allocated: true})
	h.insertFreeBlock(WildernessList, block)

	wilderness := h.coalesce(block)
	h.logger.Debug("Heap::grow", slog.Int("HeapBytes", len(h.data)), slog.Int("WildernessSize", h.sizeOf(wilderness)))

	return wilderness, nil
}

// Errno returns the error code left by the most recent failing operation
func (h *Heap) Errno() Errno {
	return h.errno
}

// ResetErrno clears the error code cell
func (h *Heap) ResetErrno() {
	h.errno = ErrnoNone
}

func (h *Heap) fail(errno Errno, err error) (Pointer, error) {
	h.errno = errno
	return NullPointer, err
}

func (h *Heap) checkInvariants() {
	memutils.DebugValidate(h)

	if h.options.CheckInvariants {
		err := h.Validate()
		if err != nil {
			h.logger.LogAttrs(context.Background(), slog.LevelError, "heap invariant check failed", slog.Any("error", err))
			panic(err)
		}
	}
}
