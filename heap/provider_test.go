package heap_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/segfit/arena"
	mock_arena "github.com/vkngwrapper/segfit/arena/mocks"
	"github.com/vkngwrapper/segfit/heap"
	"go.uber.org/mock/gomock"
)

// delegatingProvider returns a mock that forwards to a real region, failing Grow once failAfter
// pages have been handed out
func delegatingProvider(t *testing.T, ctrl *gomock.Controller, failAfter int) *mock_arena.MockProvider {
	memory, err := arena.NewMemory(arena.DefaultMaxPages)
	require.NoError(t, err)

	provider := mock_arena.NewMockProvider(ctrl)
	provider.EXPECT().PageSize().Return(arena.PageSize).AnyTimes()
	provider.EXPECT().Start().Return(0).AnyTimes()
	provider.EXPECT().End().DoAndReturn(memory.End).AnyTimes()
	provider.EXPECT().Bytes().DoAndReturn(memory.Bytes).AnyTimes()

	pages := 0
	provider.EXPECT().Grow().DoAndReturn(func() (int, error) {
		if pages >= failAfter {
			return 0, errors.New("injected failure")
		}
		pages++
		return memory.Grow()
	}).AnyTimes()

	return provider
}

func TestNewInitialGrowFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := delegatingProvider(t, ctrl, 0)

	h, err := heap.New(testLogger(), provider, heap.CreateOptions{})
	require.Nil(t, h)
	require.True(t, errors.Is(err, heap.ErrOutOfMemory))
}

func TestNewRejectsBadPageSize(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mock_arena.NewMockProvider(ctrl)
	provider.EXPECT().PageSize().Return(100)

	_, err := heap.New(testLogger(), provider, heap.CreateOptions{})
	require.True(t, errors.Is(err, heap.ErrInvalidArgument))
}

func TestNewRejectsNonEmptyProvider(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mock_arena.NewMockProvider(ctrl)
	provider.EXPECT().PageSize().Return(arena.PageSize)
	provider.EXPECT().Start().Return(0).AnyTimes()
	provider.EXPECT().End().Return(arena.PageSize).AnyTimes()

	_, err := heap.New(testLogger(), provider, heap.CreateOptions{})
	require.True(t, errors.Is(err, heap.ErrInvalidArgument))
}

func TestGrowthFailureMidRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := delegatingProvider(t, ctrl, 2)

	h, err := heap.New(testLogger(), provider, heap.CreateOptions{CheckInvariants: true})
	require.NoError(t, err)

	p, err := h.Malloc(3 * arena.PageSize)
	require.Equal(t, heap.NullPointer, p)
	require.True(t, errors.Is(err, heap.ErrOutOfMemory))
	require.Equal(t, heap.ErrnoNoMemory, h.Errno())

	// The second page was acquired before the failure and stays in the wilderness
	require.Equal(t, 2*arena.PageSize, h.HeapBytes())
	requireFreeBlocks(t, h, 0, 1)
	requireFreeBlocks(t, h, 2*arena.PageSize-128, 1)
}

func TestGrowthAfterAllocatedTail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := delegatingProvider(t, ctrl, arena.DefaultMaxPages)

	h, err := heap.New(testLogger(), provider, heap.CreateOptions{CheckInvariants: true})
	require.NoError(t, err)

	mustMalloc(t, h, 3960)
	require.Equal(t, 0, h.FreeListLen(heap.WildernessList))

	p := mustMalloc(t, h, 10)
	require.Equal(t, heap.Pointer(arena.PageSize), p)
	info := blockInfo(t, h, p)
	require.True(t, info.PrevAllocated)
	requireFreeBlocks(t, h, arena.PageSize-64, 1)
}

// raggedProvider hands out a first page of firstPage bytes and later pages of laterPage bytes
func raggedProvider(ctrl *gomock.Controller, firstPage, laterPage int) *mock_arena.MockProvider {
	data := make([]byte, firstPage+4*laterPage)
	end := 0

	provider := mock_arena.NewMockProvider(ctrl)
	provider.EXPECT().PageSize().Return(arena.PageSize).AnyTimes()
	provider.EXPECT().Start().Return(0).AnyTimes()
	provider.EXPECT().End().DoAndReturn(func() int { return end }).AnyTimes()
	provider.EXPECT().Bytes().DoAndReturn(func() []byte { return data[:end:end] }).AnyTimes()
	provider.EXPECT().Grow().DoAndReturn(func() (int, error) {
		page := end
		if end == 0 {
			end = firstPage
		} else {
			end += laterPage
		}
		return page, nil
	}).AnyTimes()

	return provider
}

func TestNewRejectsUnalignedInitialPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := raggedProvider(ctrl, arena.PageSize+32, arena.PageSize)

	h, err := heap.New(testLogger(), provider, heap.CreateOptions{})
	require.Nil(t, h)
	require.True(t, errors.Is(err, heap.ErrInvalidArgument))
}

func TestGrowthRejectsUnalignedPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := raggedProvider(ctrl, arena.PageSize, arena.PageSize+32)

	h, err := heap.New(testLogger(), provider, heap.CreateOptions{CheckInvariants: true})
	require.NoError(t, err)

	p, err := h.Malloc(arena.PageSize)
	require.Equal(t, heap.NullPointer, p)
	require.True(t, errors.Is(err, heap.ErrOutOfMemory))
	require.Equal(t, heap.ErrnoNoMemory, h.Errno())

	// The rejected page is never formatted, so the heap still covers only its first page
	require.Equal(t, arena.PageSize, h.HeapBytes())
	require.NoError(t, h.Validate())
}
