//go:build !unix

package arena

// Mapped is unavailable on this platform; NewMapped always fails.
type Mapped struct {
	Memory
}

// NewMapped returns ErrUnsupported on platforms without anonymous mappings
func NewMapped(maxPages int) (*Mapped, error) {
	return nil, ErrUnsupported
}

// Close is a no-op
func (m *Mapped) Close() error { return nil }
