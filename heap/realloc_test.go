package heap_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/segfit/heap"
)

func TestReallocLargerBlock(t *testing.T) {
	h := newTestHeap(t)

	x := mustMalloc(t, h, 4)
	mustMalloc(t, h, 10)

	x, err := h.Realloc(x, 4*20)
	require.NoError(t, err)
	require.NotEqual(t, heap.NullPointer, x)

	info := blockInfo(t, h, x)
	require.True(t, info.Allocated)
	require.Equal(t, 128, info.Size)

	requireFreeBlocks(t, h, 0, 2)
	requireFreeBlocks(t, h, 64, 1)
	requireFreeBlocks(t, h, 3712, 1)
}

func TestReallocSmallerBlockSplinter(t *testing.T) {
	h := newTestHeap(t)

	x := mustMalloc(t, h, 4*20)
	y, err := h.Realloc(x, 4*16)
	require.NoError(t, err)
	require.Equal(t, x, y)

	info := blockInfo(t, h, y)
	require.True(t, info.Allocated)
	require.Equal(t, 128, info.Size)

	requireFreeBlocks(t, h, 0, 1)
	requireFreeBlocks(t, h, 3840, 1)
}

func TestReallocSmallerBlockFreeBlock(t *testing.T) {
	h := newTestHeap(t)

	x := mustMalloc(t, h, 8*8)
	y, err := h.Realloc(x, 4)
	require.NoError(t, err)
	require.Equal(t, x, y)

	info := blockInfo(t, h, y)
	require.True(t, info.Allocated)
	require.Equal(t, 64, info.Size)

	requireFreeBlocks(t, h, 0, 1)
	requireFreeBlocks(t, h, 3904, 1)
}

func TestReallocSmallerBeforeAllocatedNeighbour(t *testing.T) {
	h := newTestHeap(t)

	x := mustMalloc(t, h, 500)
	n := mustMalloc(t, h, 10)

	y, err := h.Realloc(x, 100)
	require.NoError(t, err)
	require.Equal(t, x, y)
	require.Equal(t, 128, blockInfo(t, h, y).Size)

	requireFreeBlocks(t, h, 384, 1)
	require.False(t, blockInfo(t, h, n).PrevAllocated)
}

func TestReallocSameSize(t *testing.T) {
	h := newTestHeap(t)

	mustMalloc(t, h, 100)
	x := mustMalloc(t, h, 400)

	y, err := h.Realloc(x, 400)
	require.NoError(t, err)
	require.Equal(t, x, y)

	z, err := h.Realloc(x, 399)
	require.NoError(t, err)
	require.Equal(t, y, z)

	info := blockInfo(t, h, z)
	require.True(t, info.Allocated)
	require.Equal(t, 448, info.Size)
	require.True(t, info.PrevAllocated)
}

func TestReallocPreservesPayload(t *testing.T) {
	h := newTestHeap(t)

	x := mustMalloc(t, h, 100)
	payload, err := h.Payload(x)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		payload[i] = byte(i)
	}
	mustMalloc(t, h, 1)

	y, err := h.Realloc(x, 1000)
	require.NoError(t, err)
	require.NotEqual(t, x, y)

	moved, err := h.Payload(y)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(moved), 1000)
	for i := 0; i < 100; i++ {
		require.Equal(t, byte(i), moved[i])
	}

	z, err := h.Realloc(y, 50)
	require.NoError(t, err)
	require.Equal(t, y, z)
	shrunk, err := h.Payload(z)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.Equal(t, byte(i), shrunk[i])
	}
}

func TestReallocZeroFrees(t *testing.T) {
	h := newTestHeap(t)

	y := mustMalloc(t, h, 100)
	mustMalloc(t, h, 30)

	w, err := h.Realloc(y, 0)
	require.NoError(t, err)
	require.Equal(t, heap.NullPointer, w)
	require.Equal(t, heap.ErrnoNone, h.Errno())
	requireFreeBlocks(t, h, 128, 1)
}

func TestReallocOutOfMemoryKeepsOriginal(t *testing.T) {
	h := newTestHeapWithPages(t, 1)

	x := mustMalloc(t, h, 100)
	payload, err := h.Payload(x)
	require.NoError(t, err)
	payload[0] = 0xAB

	y, err := h.Realloc(x, 8000)
	require.True(t, errors.Is(err, heap.ErrOutOfMemory))
	require.Equal(t, heap.NullPointer, y)
	require.Equal(t, heap.ErrnoNoMemory, h.Errno())

	info := blockInfo(t, h, x)
	require.True(t, info.Allocated)
	require.Equal(t, 128, info.Size)
	payload, err = h.Payload(x)
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), payload[0])
}
