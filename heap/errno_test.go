package heap_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/segfit/heap"
)

func TestErrnoString(t *testing.T) {
	require.Equal(t, "ErrnoNone", heap.ErrnoNone.String())
	require.Equal(t, "ErrnoInvalid", heap.ErrnoInvalid.String())
	require.Equal(t, "ErrnoNoMemory", heap.ErrnoNoMemory.String())
}

func TestCheckErrnoAndNulls(t *testing.T) {
	h := newTestHeap(t)

	x, err := h.Malloc(0)
	require.NoError(t, err)
	require.Equal(t, heap.NullPointer, x)
	require.Equal(t, heap.ErrnoNone, h.Errno())

	z, err := h.Malloc(1234567891011)
	require.Error(t, err)
	require.Equal(t, heap.NullPointer, z)
	require.Equal(t, heap.ErrnoNoMemory, h.Errno())

	h.ResetErrno()
	y := mustMalloc(t, h, 100)
	ptr := mustMalloc(t, h, 30)
	w, err := h.Realloc(y, 0)
	require.NoError(t, err)
	require.Equal(t, heap.NullPointer, w)
	require.Equal(t, heap.ErrnoNone, h.Errno())
	requireFreeBlocks(t, h, 128, 1)

	invalid := []heap.Pointer{
		heap.NullPointer,
		ptr + 3,
		y,
		48,
	}
	for _, p := range invalid {
		h.ResetErrno()
		check, err := h.Realloc(p, 64)
		require.True(t, errors.Is(err, heap.ErrInvalidPointer))
		require.Equal(t, heap.NullPointer, check)
		require.Equal(t, heap.ErrnoInvalid, h.Errno())
	}

	h.ResetErrno()
	mustMalloc(t, h, 65216-8)
	check, err := h.Realloc(ptr, 999)
	require.True(t, errors.Is(err, heap.ErrOutOfMemory))
	require.Equal(t, heap.NullPointer, check)
	require.Equal(t, heap.ErrnoNoMemory, h.Errno())

	h.ResetErrno()
	a, err := h.Memalign(1, 2)
	require.True(t, errors.Is(err, heap.ErrInvalidAlignment))
	require.Equal(t, heap.NullPointer, a)
	require.Equal(t, heap.ErrnoInvalid, h.Errno())

	h.ResetErrno()
	b, err := h.Memalign(1, 111)
	require.True(t, errors.Is(err, heap.ErrInvalidAlignment))
	require.Equal(t, heap.NullPointer, b)
	require.Equal(t, heap.ErrnoInvalid, h.Errno())
}

func TestErrnoSticky(t *testing.T) {
	h := newTestHeap(t)

	_, err := h.Memalign(10, 100)
	require.Error(t, err)
	require.Equal(t, heap.ErrnoInvalid, h.Errno())

	mustMalloc(t, h, 10)
	require.Equal(t, heap.ErrnoInvalid, h.Errno())

	h.ResetErrno()
	require.Equal(t, heap.ErrnoNone, h.Errno())
}
