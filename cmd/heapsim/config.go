package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"
	"github.com/vkngwrapper/segfit/arena"
	"github.com/vkngwrapper/segfit/heap"
	"golang.org/x/exp/slog"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://pkg.go.dev/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type heapConfig struct {
	MaxPages        int
	Mapped          bool
	CheckInvariants bool
}

type logConfig struct {
	Level string
}

type simConfig struct {
	Heap heapConfig
	Log  logConfig
}

func defaultConfig() simConfig {
	return simConfig{
		Heap: heapConfig{MaxPages: arena.DefaultMaxPages},
		Log:  logConfig{Level: "WARN"},
	}
}

func loadConfigFile(file string, cfg *simConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the configuration file, if any, and applies command line overrides
func makeConfig(ctx *cli.Context) (simConfig, error) {
	cfg := defaultConfig()

	if file := ctx.String(ConfigFileFlag.Name); file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return cfg, errors.Wrap(err, "failed to load config")
		}
	}

	if ctx.IsSet(PagesFlag.Name) {
		cfg.Heap.MaxPages = ctx.Int(PagesFlag.Name)
	}
	if ctx.IsSet(MappedFlag.Name) {
		cfg.Heap.Mapped = ctx.Bool(MappedFlag.Name)
	}
	if ctx.IsSet(CheckFlag.Name) {
		cfg.Heap.CheckInvariants = ctx.Bool(CheckFlag.Name)
	}
	if ctx.IsSet(VerbosityFlag.Name) {
		cfg.Log.Level = ctx.String(VerbosityFlag.Name)
	}

	if cfg.Heap.MaxPages < 0 {
		return cfg, errors.Newf("MaxPages must not be negative, got %d", cfg.Heap.MaxPages)
	}
	if _, err := cfg.Log.level(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c logConfig) level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(strings.ToUpper(c.Level)))
	if err != nil {
		return level, errors.Wrapf(err, "invalid log level %q", c.Level)
	}
	return level, nil
}

func (c logConfig) newLogger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

type arenaProvider interface {
	arena.Provider
	io.Closer
}

type memoryProvider struct {
	*arena.Memory
}

func (memoryProvider) Close() error { return nil }

func (c heapConfig) newProvider() (arenaProvider, error) {
	if c.Mapped {
		mapped, err := arena.NewMapped(c.MaxPages)
		if err != nil {
			return nil, err
		}
		return mapped, nil
	}

	memory, err := arena.NewMemory(c.MaxPages)
	if err != nil {
		return nil, err
	}
	return memoryProvider{memory}, nil
}

func (c heapConfig) createOptions() heap.CreateOptions {
	return heap.CreateOptions{CheckInvariants: c.CheckInvariants}
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}

	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := ctx.App.Writer
	if dump == nil {
		dump = os.Stdout
	}
	_, err = dump.Write(out)
	return err
}
