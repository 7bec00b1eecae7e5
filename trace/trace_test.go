package trace_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/segfit/trace"
)

func TestParse(t *testing.T) {
	input := `# warmup
a 0 100
m 1 500 256

r 0 4000
f 1
  f 0
`
	parsed, err := trace.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, []trace.Op{
		{Kind: trace.OpAlloc, ID: 0, Size: 100, Line: 2},
		{Kind: trace.OpMemalign, ID: 1, Size: 500, Alignment: 256, Line: 3},
		{Kind: trace.OpRealloc, ID: 0, Size: 4000, Line: 5},
		{Kind: trace.OpFree, ID: 1, Line: 6},
		{Kind: trace.OpFree, ID: 0, Line: 7},
	}, parsed.Ops)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"x 1 2":          "line 1",
		"a 1":            "line 1",
		"a 1 2 3":        "line 1",
		"a 0 10\nf":      "line 2",
		"a 0 -5":         "line 1",
		"m 0 10 abc":     "line 1",
		"# ok\n\nff 1":   "line 3",
		"a 0 10\nr 0 1x": "line 2",
	}

	for input, line := range cases {
		_, err := trace.Parse(strings.NewReader(input))
		require.Error(t, err, input)
		require.True(t, errors.Is(err, trace.ErrMalformed), input)
		require.Contains(t, err.Error(), line, input)
	}
}

func TestWriteToRoundTrip(t *testing.T) {
	generated := trace.Generate(7, 200, 3000)

	var buf bytes.Buffer
	_, err := generated.WriteTo(&buf)
	require.NoError(t, err)

	parsed, err := trace.Parse(&buf)
	require.NoError(t, err)
	require.Len(t, parsed.Ops, len(generated.Ops))
	for i := range parsed.Ops {
		require.Equal(t, generated.Ops[i].String(), parsed.Ops[i].String())
	}
}

func TestGenerateIsValid(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		generated := trace.Generate(seed, 300, 2000)
		require.Len(t, generated.Ops, 300)

		live := map[int]bool{}
		for _, op := range generated.Ops {
			switch op.Kind {
			case trace.OpAlloc, trace.OpMemalign:
				require.False(t, live[op.ID])
				require.GreaterOrEqual(t, op.Size, 1)
				require.LessOrEqual(t, op.Size, 2000)
				live[op.ID] = true
			case trace.OpRealloc:
				require.True(t, live[op.ID])
			case trace.OpFree:
				require.True(t, live[op.ID])
				delete(live, op.ID)
			}
			if op.Kind == trace.OpMemalign {
				require.GreaterOrEqual(t, op.Alignment, 64)
				require.Zero(t, op.Alignment&(op.Alignment-1))
			}
		}
		require.Empty(t, live)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	require.Equal(t, trace.Generate(42, 100, 500), trace.Generate(42, 100, 500))
}
