package heap

import "github.com/cockroachdb/errors"

// checkPointer reports whether p identifies a live allocation, reading only words that lie
// inside the arena
func (h *Heap) checkPointer(p Pointer) error {
	if p == NullPointer {
		return errors.Wrap(ErrInvalidPointer, "pointer is null")
	}
	if int(p)%Alignment != 0 {
		return errors.Wrapf(ErrInvalidPointer, "pointer %d is not aligned to %d", p, Alignment)
	}

	block := blockOf(p)
	if block < firstBlockOffset {
		return errors.Wrapf(ErrInvalidPointer, "pointer %d precedes the first block", p)
	}
	if block >= h.epilogue() {
		return errors.Wrapf(ErrInvalidPointer, "pointer %d lies beyond the end of the heap", p)
	}

	header := h.header(block)
	if header.Size < MinBlockSize || header.Size%Alignment != 0 {
		return errors.Wrapf(ErrInvalidPointer, "pointer %d has a corrupt block size %d", p, header.Size)
	}
	if block+header.Size > h.epilogue() {
		return errors.Wrapf(ErrInvalidPointer, "block at pointer %d (size %d) runs past the epilogue", p, header.Size)
	}
	if !header.Allocated {
		return errors.Wrapf(ErrInvalidPointer, "pointer %d is not allocated", p)
	}

	if !header.PrevAllocated {
		footer := Unpack(h.word(block - WordSize))
		prev := block - footer.Size
		if footer.Size < MinBlockSize || prev < firstBlockOffset || h.isAllocated(prev) {
			return errors.Wrapf(ErrInvalidPointer, "pointer %d claims a free predecessor, but none exists", p)
		}
	}

	return nil
}
