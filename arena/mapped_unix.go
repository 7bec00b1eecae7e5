//go:build unix

package arena

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// Mapped is a Provider backed by an anonymous private memory mapping. The whole capacity is
// reserved with a single mmap call when the Mapped is created; the kernel only commits pages
// as they are touched, so growth never copies and never moves the region.
type Mapped struct {
	data     []byte
	end      int
	maxPages int
}

var _ Provider = &Mapped{}

// NewMapped maps a region that can grow to maxPages pages. A maxPages of 0 selects DefaultMaxPages.
// The caller must call Close to release the mapping.
func NewMapped(maxPages int) (*Mapped, error) {
	if maxPages < 0 {
		return nil, errors.Newf("arena: invalid page count %d", maxPages)
	}
	if maxPages == 0 {
		maxPages = DefaultMaxPages
	}

	data, err := unix.Mmap(-1, 0, maxPages*PageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "arena: failed to map %d pages", maxPages)
	}

	return &Mapped{
		data:     data,
		maxPages: maxPages,
	}, nil
}

func (m *Mapped) Grow() (int, error) {
	if m.data == nil {
		return 0, errors.New("arena: region has been closed")
	}
	if m.end+PageSize > len(m.data) {
		return 0, errors.Wrapf(ErrExhausted, "region is already %d pages", m.maxPages)
	}

	page := m.end
	m.end += PageSize
	return page, nil
}

func (m *Mapped) Start() int { return 0 }

func (m *Mapped) End() int { return m.end }

func (m *Mapped) Bytes() []byte { return m.data[:m.end:m.end] }

func (m *Mapped) PageSize() int { return PageSize }

// MaxPages returns the number of pages the region can grow to
func (m *Mapped) MaxPages() int { return m.maxPages }

// Close unmaps the region. Any slice previously returned from Bytes must not be used afterward.
func (m *Mapped) Close() error {
	if m.data == nil {
		return nil
	}

	err := unix.Munmap(m.data)
	if errors.Is(err, unix.EINVAL) {
		err = nil
	}
	m.data = nil
	m.end = 0
	return err
}
