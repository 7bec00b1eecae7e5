package heap_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/segfit/arena"
	"github.com/vkngwrapper/segfit/heap"
	"golang.org/x/exp/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHeap(t require.TestingT) *heap.Heap {
	return newTestHeapWithPages(t, arena.DefaultMaxPages)
}

func newTestHeapWithPages(t require.TestingT, maxPages int) *heap.Heap {
	provider, err := arena.NewMemory(maxPages)
	require.NoError(t, err)

	h, err := heap.New(testLogger(), provider, heap.CreateOptions{CheckInvariants: true})
	require.NoError(t, err)

	return h
}

// freeBlockCount counts free blocks across every list, restricted to one size unless size is 0
func freeBlockCount(t *testing.T, h *heap.Heap, size int) int {
	count := 0
	for index := 0; index < heap.NumFreeLists; index++ {
		err := h.VisitFreeList(index, func(info heap.BlockInfo) error {
			if size == 0 || info.Size == size {
				count++
			}
			return nil
		})
		require.NoError(t, err)
	}
	return count
}

func requireFreeBlocks(t *testing.T, h *heap.Heap, size int, count int) {
	require.Equal(t, count, freeBlockCount(t, h, size), "free blocks of size %d", size)
}

func mustMalloc(t *testing.T, h *heap.Heap, size int) heap.Pointer {
	p, err := h.Malloc(size)
	require.NoError(t, err)
	require.NotEqual(t, heap.NullPointer, p)
	return p
}

func blockInfo(t *testing.T, h *heap.Heap, p heap.Pointer) heap.BlockInfo {
	info, err := h.BlockInfoOf(p)
	require.NoError(t, err)
	return info
}
