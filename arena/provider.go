// Package arena supplies the contiguous, page-granular byte regions that a heap is carved from.
//
// A Provider starts out empty and is extended one page at a time. The live region is always
// [Start(), End()) and the storage behind it never moves, so slices handed out by Bytes remain
// valid (and keep aliasing the region) after later calls to Grow.
package arena

import "github.com/cockroachdb/errors"

//go:generate mockgen -source provider.go -destination ./mocks/provider.go -package mock_arena

const (
	// PageSize is the number of bytes added to a region by each call to Provider.Grow
	PageSize int = 4096
	// DefaultMaxPages is the capacity used when a provider is created with a page count of 0
	DefaultMaxPages int = 16
)

var (
	// ErrExhausted is returned from Grow when the region has reached its capacity
	ErrExhausted = errors.New("arena: no more pages available")
	// ErrUnsupported is returned by NewMapped on platforms without anonymous mappings
	ErrUnsupported = errors.New("arena: mapped regions are not supported on this platform")
)

// Provider is the arena growth primitive consumed by the heap.
type Provider interface {
	// Grow extends the region by exactly PageSize bytes and returns the offset of the first byte of
	// the new page. The new page is zeroed. When no more memory is available it returns an error
	// and leaves the region unchanged.
	Grow() (int, error)
	// Start returns the offset of the first byte of the region. It is always 0.
	Start() int
	// End returns the offset one past the last byte of the region.
	End() int
	// Bytes returns the live region [Start(), End()).
	Bytes() []byte
	// PageSize returns the growth granularity in bytes
	PageSize() int
}
