package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"github.com/vkngwrapper/segfit/heap"
	"github.com/vkngwrapper/segfit/memutils"
	"github.com/vkngwrapper/segfit/trace"
	"golang.org/x/exp/slog"
)

type traceOutcome struct {
	path    string
	result  *trace.Result
	stats   *memutils.DetailedStatistics
	heapMap []byte
	err     error
}

func runTraces(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return errors.New("no trace files given")
	}

	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	logger := cfg.Log.newLogger(os.Stderr)

	var outcomes []traceOutcome
	for _, path := range ctx.Args().Slice() {
		outcome := runTraceFile(path, cfg, ctx.Bool(JSONFlag.Name), logger)
		if outcome.err != nil {
			logger.Error("trace failed", slog.String("Trace", path), slog.Any("error", outcome.err))
		}
		outcomes = append(outcomes, outcome)
	}

	out := ctx.App.Writer
	if out == nil {
		out = os.Stdout
	}
	renderOutcomes(out, outcomes)

	if ctx.Bool(JSONFlag.Name) {
		writeHeapMaps(out, outcomes)
	}

	for _, outcome := range outcomes {
		if outcome.err != nil {
			return errors.New("one or more traces failed")
		}
	}
	return nil
}

func runTraceFile(path string, cfg simConfig, dumpJSON bool, logger *slog.Logger) traceOutcome {
	outcome := traceOutcome{path: path}

	f, err := os.Open(path)
	if err != nil {
		outcome.err = err
		return outcome
	}
	defer f.Close()

	parsed, err := trace.Parse(f)
	if err != nil {
		outcome.err = errors.Wrapf(err, "failed to parse %s", path)
		return outcome
	}

	outcome.result, outcome.stats, outcome.heapMap, outcome.err = replay(path, parsed, cfg, dumpJSON, logger.With(slog.String("Trace", path)))
	return outcome
}

// replay runs one trace on a fresh heap. The final heap statistics and JSON heap map are
// captured before the arena is released.
func replay(path string, parsed *trace.Trace, cfg simConfig, dumpJSON bool, logger *slog.Logger) (*trace.Result, *memutils.DetailedStatistics, []byte, error) {
	provider, err := cfg.Heap.newProvider()
	if err != nil {
		return nil, nil, nil, err
	}
	defer provider.Close()

	h, err := heap.New(logger, provider, cfg.Heap.createOptions())
	if err != nil {
		return nil, nil, nil, err
	}

	result, err := trace.Replay(h, parsed, trace.ReplayOptions{
		Logger:   logger,
		Validate: cfg.Heap.CheckInvariants,
	})

	stats := &memutils.DetailedStatistics{}
	stats.Clear()
	h.AddDetailedStatistics(stats)

	var heapMap []byte
	if dumpJSON {
		writer := jwriter.NewWriter()
		objState := writer.Object()
		objState.Name("Trace").String(path)
		h.PrintDetailedMap(objState.Name("Heap"))
		objState.End()
		heapMap = writer.Bytes()
	}

	return result, stats, heapMap, err
}

func renderOutcomes(w io.Writer, outcomes []traceOutcome) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Trace", "Ops", "Failed Allocs", "Peak Payload", "Heap Bytes", "Peak Util", "Free Blocks", "Largest Free", "Status"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	var total memutils.DetailedStatistics
	total.Clear()
	totalOps := 0
	failed := false

	for _, outcome := range outcomes {
		row := []string{outcome.path, "-", "-", "-", "-", "-", "-", "-", ""}
		if outcome.result != nil {
			row[1] = strconv.Itoa(outcome.result.Ops)
			row[2] = strconv.Itoa(outcome.result.FailedAllocations)
			row[3] = strconv.Itoa(outcome.result.PeakPayloadBytes)
			row[4] = strconv.Itoa(outcome.result.HeapBytes)
			row[5] = fmt.Sprintf("%.1f%%", outcome.result.PeakUtilization*100)
			totalOps += outcome.result.Ops
		}
		if outcome.stats != nil {
			row[6] = strconv.Itoa(outcome.stats.FreeBlockCount)
			row[7] = strconv.Itoa(outcome.stats.FreeBlockSizeMax)
			total.AddDetailedStatistics(outcome.stats)
		}

		row[8] = statusString(outcome.err != nil)
		failed = failed || outcome.err != nil
		table.Append(row)
	}

	if len(outcomes) > 1 {
		table.Append([]string{
			"TOTAL",
			strconv.Itoa(totalOps),
			"", "",
			strconv.Itoa(total.HeapBytes),
			"",
			strconv.Itoa(total.FreeBlockCount),
			strconv.Itoa(total.FreeBlockSizeMax),
			statusString(failed),
		})
	}

	table.Render()
}

func statusString(failed bool) string {
	if failed {
		return color.RedString("FAIL")
	}
	return color.GreenString("PASS")
}

func writeHeapMaps(w io.Writer, outcomes []traceOutcome) {
	for _, outcome := range outcomes {
		if outcome.heapMap != nil {
			fmt.Fprintln(w, string(outcome.heapMap))
		}
	}
}
