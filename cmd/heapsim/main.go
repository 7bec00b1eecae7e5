// heapsim replays allocation traces against the segregated-fit heap and reports how it fared.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	ConfigFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	PagesFlag = &cli.IntFlag{
		Name:  "pages",
		Usage: "maximum number of arena pages (overrides Heap.MaxPages)",
	}
	MappedFlag = &cli.BoolFlag{
		Name:  "mapped",
		Usage: "back the arena with an anonymous memory mapping (overrides Heap.Mapped)",
	}
	CheckFlag = &cli.BoolFlag{
		Name:  "check",
		Usage: "validate heap invariants after every operation (overrides Heap.CheckInvariants)",
	}
	JSONFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "dump the final heap map of every trace as JSON",
	}
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "log level: DEBUG, INFO, WARN or ERROR (overrides Log.Level)",
	}

	SeedFlag = &cli.Int64Flag{
		Name:  "seed",
		Usage: "random seed",
		Value: 1,
	}
	OpsFlag = &cli.IntFlag{
		Name:  "ops",
		Usage: "number of operations to generate",
		Value: 1000,
	}
	MaxSizeFlag = &cli.IntFlag{
		Name:  "max-size",
		Usage: "largest request size to generate",
		Value: 4096,
	}
	OutputFlag = &cli.StringFlag{
		Name:  "output",
		Usage: "file to write the trace to (default stdout)",
	}
)

var configFlags = []cli.Flag{
	ConfigFileFlag,
	PagesFlag,
	MappedFlag,
	CheckFlag,
	VerbosityFlag,
}

var (
	runCommand = &cli.Command{
		Name:      "run",
		Usage:     "Replay traces against a fresh heap each",
		ArgsUsage: "<trace> [<trace>...]",
		Action:    runTraces,
		Flags:     append(append([]cli.Flag{}, configFlags...), JSONFlag),
	}
	genCommand = &cli.Command{
		Name:   "gen",
		Usage:  "Generate a random, well-formed trace",
		Action: generateTrace,
		Flags: []cli.Flag{
			SeedFlag,
			OpsFlag,
			MaxSizeFlag,
			OutputFlag,
		},
	}
	dumpConfigCommand = &cli.Command{
		Name:   "dumpconfig",
		Usage:  "Show the effective configuration",
		Action: dumpConfig,
		Flags:  configFlags,
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "heapsim",
		Usage: "segregated-fit heap simulator",
		Commands: []*cli.Command{
			runCommand,
			genCommand,
			dumpConfigCommand,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
