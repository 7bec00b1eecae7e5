package trace

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/segfit/heap"
	"golang.org/x/exp/slog"
)

var (
	// ErrUnknownID is returned from Replay when an operation names an id that is not live
	ErrUnknownID = errors.New("trace: id is not live")
	// ErrDuplicateID is returned from Replay when an allocation reuses a live id
	ErrDuplicateID = errors.New("trace: id is already live")
	// ErrPayloadCorrupted is returned from Replay when an allocation's bytes changed behind its back
	ErrPayloadCorrupted = errors.New("trace: payload corrupted")
	// ErrMisaligned is returned from Replay when an allocation is not aligned as requested
	ErrMisaligned = errors.New("trace: misaligned allocation")
)

// ReplayOptions configures Replay
type ReplayOptions struct {
	// Logger receives per-operation debug output. It defaults to slog.Default().
	Logger *slog.Logger
	// Validate runs heap.Validate after every operation
	Validate bool
}

// Result summarizes a replay
type Result struct {
	Ops               int
	Allocs            int
	Memaligns         int
	Reallocs          int
	Frees             int
	FailedAllocations int

	LivePayloadBytes int
	PeakPayloadBytes int
	HeapBytes        int
	// PeakUtilization is the highest ratio of live payload bytes to heap bytes seen after any operation
	PeakUtilization float64
}

type liveAllocation struct {
	pointer heap.Pointer
	size    int
}

type replayer struct {
	heap   *heap.Heap
	logger *slog.Logger
	result *Result
	live   *swiss.Map[int, liveAllocation]
}

func pattern(id int, index int) byte {
	return byte(id*131 + index*7 + 1)
}

// Replay runs the trace against h. Every payload is filled with a pattern derived from its id
// and checked before the allocation is freed or resized, so overlapping blocks are detected.
// Allocations that fail with heap.ErrOutOfMemory are counted rather than treated as errors, and
// later operations on their ids are skipped. The partial result is returned alongside any error.
func Replay(h *heap.Heap, t *Trace, opts ReplayOptions) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &replayer{
		heap:   h,
		logger: logger,
		result: &Result{},
		live:   swiss.NewMap[int, liveAllocation](uint32(len(t.Ops)/2 + 1)),
	}

	for _, op := range t.Ops {
		err := r.apply(op)
		if err == nil && opts.Validate {
			err = h.Validate()
		}
		if err != nil {
			r.result.HeapBytes = h.HeapBytes()
			return r.result, errors.Wrapf(err, "operation %q (line %d)", op.String(), op.Line)
		}

		r.result.Ops++
		r.observe()
	}

	r.result.HeapBytes = h.HeapBytes()
	return r.result, nil
}

func (r *replayer) observe() {
	if r.result.LivePayloadBytes > r.result.PeakPayloadBytes {
		r.result.PeakPayloadBytes = r.result.LivePayloadBytes
	}

	utilization := float64(r.result.LivePayloadBytes) / float64(r.heap.HeapBytes())
	if utilization > r.result.PeakUtilization {
		r.result.PeakUtilization = utilization
	}
}

func (r *replayer) apply(op Op) error {
	switch op.Kind {
	case OpAlloc:
		r.result.Allocs++
		return r.allocate(op, func() (heap.Pointer, error) {
			return r.heap.Malloc(op.Size)
		})
	case OpMemalign:
		r.result.Memaligns++
		return r.allocate(op, func() (heap.Pointer, error) {
			return r.heap.Memalign(op.Size, op.Alignment)
		})
	case OpRealloc:
		r.result.Reallocs++
		return r.resize(op)
	case OpFree:
		r.result.Frees++
		return r.free(op)
	}

	return errors.Wrapf(ErrMalformed, "unknown operation %q", byte(op.Kind))
}

func (r *replayer) outOfMemory(op Op, err error) bool {
	if !errors.Is(err, heap.ErrOutOfMemory) {
		return false
	}

	r.logger.LogAttrs(context.Background(), slog.LevelDebug, "allocation failed",
		slog.String("Op", op.String()),
		slog.Int("HeapBytes", r.heap.HeapBytes()))
	r.result.FailedAllocations++
	r.heap.ResetErrno()
	return true
}

func (r *replayer) allocate(op Op, allocate func() (heap.Pointer, error)) error {
	if _, ok := r.live.Get(op.ID); ok {
		return errors.Wrapf(ErrDuplicateID, "id %d", op.ID)
	}

	p, err := allocate()
	if err != nil {
		if r.outOfMemory(op, err) {
			r.live.Put(op.ID, liveAllocation{pointer: heap.NullPointer})
			return nil
		}
		return err
	}

	if op.Kind == OpMemalign && p != heap.NullPointer && int(p)%op.Alignment != 0 {
		return errors.Wrapf(ErrMisaligned, "pointer %d is not aligned to %d", p, op.Alignment)
	}

	r.live.Put(op.ID, liveAllocation{pointer: p, size: op.Size})
	if p == heap.NullPointer {
		return nil
	}

	r.result.LivePayloadBytes += op.Size
	return r.fill(op.ID, p, 0, op.Size)
}

func (r *replayer) lookup(id int) (liveAllocation, error) {
	alloc, ok := r.live.Get(id)
	if !ok {
		return liveAllocation{}, errors.Wrapf(ErrUnknownID, "id %d", id)
	}
	return alloc, nil
}

func (r *replayer) free(op Op) error {
	alloc, err := r.lookup(op.ID)
	if err != nil {
		return err
	}
	if alloc.pointer != heap.NullPointer {
		err = r.verify(op.ID, alloc, alloc.size)
		if err != nil {
			return err
		}
	}

	r.live.Delete(op.ID)
	if alloc.pointer == heap.NullPointer {
		return nil
	}

	r.heap.Free(alloc.pointer)
	r.result.LivePayloadBytes -= alloc.size
	return nil
}

func (r *replayer) resize(op Op) error {
	alloc, err := r.lookup(op.ID)
	if err != nil {
		return err
	}
	if alloc.pointer == heap.NullPointer {
		return nil
	}

	err = r.verify(op.ID, alloc, alloc.size)
	if err != nil {
		return err
	}

	p, err := r.heap.Realloc(alloc.pointer, op.Size)
	if err != nil {
		if r.outOfMemory(op, err) {
			return r.verify(op.ID, alloc, alloc.size)
		}
		return err
	}

	r.result.LivePayloadBytes -= alloc.size
	if p == heap.NullPointer {
		r.live.Delete(op.ID)
		return nil
	}

	resized := liveAllocation{pointer: p, size: op.Size}
	err = r.verify(op.ID, resized, min(alloc.size, op.Size))
	if err != nil {
		return err
	}

	r.live.Put(op.ID, resized)
	r.result.LivePayloadBytes += op.Size
	return r.fill(op.ID, p, min(alloc.size, op.Size), op.Size)
}

func (r *replayer) fill(id int, p heap.Pointer, from, to int) error {
	payload, err := r.heap.Payload(p)
	if err != nil {
		return err
	}
	if len(payload) < to {
		return errors.Wrapf(ErrPayloadCorrupted, "id %d has %d usable bytes but requested %d", id, len(payload), to)
	}

	for i := from; i < to; i++ {
		payload[i] = pattern(id, i)
	}
	return nil
}

func (r *replayer) verify(id int, alloc liveAllocation, count int) error {
	payload, err := r.heap.Payload(alloc.pointer)
	if err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		if payload[i] != pattern(id, i) {
			return errors.Wrapf(ErrPayloadCorrupted, "id %d byte %d at pointer %d", id, i, alloc.pointer)
		}
	}
	return nil
}
