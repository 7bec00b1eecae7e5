package arena

import "github.com/cockroachdb/errors"

// Memory is a Provider backed by an ordinary Go byte slice. The full capacity is reserved when the
// Memory is created and pages are handed out by reslicing it.
type Memory struct {
	buf      []byte
	end      int
	maxPages int
}

var _ Provider = &Memory{}

// NewMemory creates an empty region that can grow to maxPages pages. A maxPages of 0 selects
// DefaultMaxPages.
func NewMemory(maxPages int) (*Memory, error) {
	if maxPages < 0 {
		return nil, errors.Newf("arena: invalid page count %d", maxPages)
	}
	if maxPages == 0 {
		maxPages = DefaultMaxPages
	}

	return &Memory{
		buf:      make([]byte, maxPages*PageSize),
		maxPages: maxPages,
	}, nil
}

func (m *Memory) Grow() (int, error) {
	if m.end+PageSize > len(m.buf) {
		return 0, errors.Wrapf(ErrExhausted, "region is already %d pages", m.maxPages)
	}

	page := m.end
	m.end += PageSize
	return page, nil
}

func (m *Memory) Start() int { return 0 }

func (m *Memory) End() int { return m.end }

func (m *Memory) Bytes() []byte { return m.buf[:m.end:m.end] }

func (m *Memory) PageSize() int { return PageSize }

// MaxPages returns the number of pages the region can grow to
func (m *Memory) MaxPages() int { return m.maxPages }
