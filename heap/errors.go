package heap

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidArgument is returned when a size parameter is negative or otherwise unusable
	ErrInvalidArgument = errors.New("heap: invalid argument")
	// ErrInvalidAlignment is returned from Memalign when the alignment is not a power of two
	// at least as large as MinBlockSize
	ErrInvalidAlignment = errors.New("heap: alignment must be a power of two no smaller than the minimum block size")
	// ErrInvalidPointer is returned from Realloc (and carried by the panic from Free) when a
	// pointer does not identify a live allocation
	ErrInvalidPointer = errors.New("heap: invalid pointer")
	// ErrOutOfMemory is returned when the arena cannot grow far enough to satisfy a request
	ErrOutOfMemory = errors.New("heap: out of memory")
	// ErrHeapCorruption is returned from Validate when the block chain or free lists are inconsistent
	ErrHeapCorruption = errors.New("heap: corruption detected")
)

// Errno is the value of a heap's error-code cell. It is set as the last action of a failing
// public operation and is never cleared by the heap itself.
type Errno int

const (
	// ErrnoNone indicates that no operation has failed since the heap was created or ResetErrno was called
	ErrnoNone Errno = iota
	// ErrnoInvalid indicates a bad alignment or an invalid pointer passed to Realloc
	ErrnoInvalid
	// ErrnoNoMemory indicates that the arena could not be grown far enough
	ErrnoNoMemory
)

var errnoMapping = map[Errno]string{
	ErrnoNone:     "ErrnoNone",
	ErrnoInvalid:  "ErrnoInvalid",
	ErrnoNoMemory: "ErrnoNoMemory",
}

func (e Errno) String() string {
	return errnoMapping[e]
}
