// Package trace drives a heap with scripted workloads.
//
// A trace is plain text with one operation per line. Blank lines and lines starting with '#'
// are ignored.
//
//	a <id> <size>            allocate
//	m <id> <size> <align>    aligned allocate
//	r <id> <size>            resize
//	f <id>                   free
//
// Ids name allocations within a trace and may be reused once freed.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrMalformed is returned from Parse for lines that are not valid operations
var ErrMalformed = errors.New("trace: malformed operation")

// OpKind identifies the heap operation performed by an Op
type OpKind byte

const (
	OpAlloc    OpKind = 'a'
	OpMemalign OpKind = 'm'
	OpRealloc  OpKind = 'r'
	OpFree     OpKind = 'f'
)

var opKindMapping = map[OpKind]string{
	OpAlloc:    "OpAlloc",
	OpMemalign: "OpMemalign",
	OpRealloc:  "OpRealloc",
	OpFree:     "OpFree",
}

func (k OpKind) String() string {
	return opKindMapping[k]
}

var opArgCount = map[OpKind]int{
	OpAlloc:    2,
	OpMemalign: 3,
	OpRealloc:  2,
	OpFree:     1,
}

// Op is a single trace operation
type Op struct {
	Kind      OpKind
	ID        int
	Size      int
	Alignment int
	// Line is the 1-based source line, or 0 for generated operations
	Line int
}

func (o Op) String() string {
	switch o.Kind {
	case OpMemalign:
		return fmt.Sprintf("%c %d %d %d", o.Kind, o.ID, o.Size, o.Alignment)
	case OpFree:
		return fmt.Sprintf("%c %d", o.Kind, o.ID)
	default:
		return fmt.Sprintf("%c %d %d", o.Kind, o.ID, o.Size)
	}
}

// Trace is an ordered list of operations
type Trace struct {
	Ops []Op
}

// Parse reads a trace. Errors carry the offending line number and wrap ErrMalformed.
func Parse(r io.Reader) (*Trace, error) {
	t := &Trace{}
	scanner := bufio.NewScanner(r)
	line := 0

	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		op, err := parseOp(text)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		op.Line = line
		t.Ops = append(t.Ops, op)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read trace")
	}

	return t, nil
}

func parseOp(text string) (Op, error) {
	fields := strings.Fields(text)
	if len(fields[0]) != 1 {
		return Op{}, errors.Wrapf(ErrMalformed, "unknown operation %q", fields[0])
	}

	kind := OpKind(fields[0][0])
	argCount, ok := opArgCount[kind]
	if !ok {
		return Op{}, errors.Wrapf(ErrMalformed, "unknown operation %q", fields[0])
	}
	if len(fields)-1 != argCount {
		return Op{}, errors.Wrapf(ErrMalformed, "%s takes %d arguments but has %d", kind, argCount, len(fields)-1)
	}

	args := make([]int, argCount)
	for i, field := range fields[1:] {
		value, err := strconv.Atoi(field)
		if err != nil || value < 0 {
			return Op{}, errors.Wrapf(ErrMalformed, "argument %q is not a non-negative integer", field)
		}
		args[i] = value
	}

	op := Op{Kind: kind, ID: args[0]}
	if argCount > 1 {
		op.Size = args[1]
	}
	if argCount > 2 {
		op.Alignment = args[2]
	}
	return op, nil
}

// WriteTo writes the trace in the text format accepted by Parse
func (t *Trace) WriteTo(w io.Writer) (int64, error) {
	writer := bufio.NewWriter(w)
	var written int64

	for _, op := range t.Ops {
		n, err := fmt.Fprintln(writer, op.String())
		written += int64(n)
		if err != nil {
			return written, err
		}
	}

	return written, writer.Flush()
}
