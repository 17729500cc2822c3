package pcfg

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Environment keys read by LoadOptions
const (
	EnvMaxTrees      = "PCFG_MAX_TREES"
	EnvMaxChartCells = "PCFG_MAX_CHART_CELLS"
	EnvDebug         = "PCFG_DEBUG"
)

// DefaultMaxTrees bounds the number of derivation trees returned for one
// input
const DefaultMaxTrees = 1024

// Options controls the operational limits and the debug output of a Parser
type Options struct {
	// MaxTrees is the maximum number of derivation trees returned per input.
	// Values <= 0 mean DefaultMaxTrees
	MaxTrees int

	// MaxChartCells bounds (number of spans) * (number of non-terminals).
	// 0 means unlimited
	MaxChartCells int

	// Debug prints the CNF conversion steps, chart and CYK rows
	Debug bool

	// Logger receives debug and warning output. nil means log.Default()
	Logger *log.Logger
}

// DefaultOptions returns the options used by the package level Parse
func DefaultOptions() Options {
	return Options{MaxTrees: DefaultMaxTrees}
}

// LoadOptions builds Options from the process environment. Keys missing from
// the environment are looked up in the given .env files, in order
func LoadOptions(filenames ...string) (Options, error) {
	opts := DefaultOptions()

	fileValues := map[string]string{}
	if len(filenames) > 0 {
		values, err := godotenv.Read(filenames...)
		if err != nil {
			return opts, errors.Wrap(err, "LoadOptions")
		}
		fileValues = values
	}
	lookup := func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok {
			return value, true
		}
		value, ok := fileValues[key]
		return value, ok
	}

	if value, ok := lookup(EnvMaxTrees); ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			return opts, errors.Wrapf(err, "LoadOptions: %s", EnvMaxTrees)
		}
		opts.MaxTrees = n
	}
	if value, ok := lookup(EnvMaxChartCells); ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			return opts, errors.Wrapf(err, "LoadOptions: %s", EnvMaxChartCells)
		}
		if n < 0 {
			return opts, errors.Errorf("LoadOptions: %s must not be negative", EnvMaxChartCells)
		}
		opts.MaxChartCells = n
	}
	if value, ok := lookup(EnvDebug); ok {
		debug, err := strconv.ParseBool(value)
		if err != nil {
			return opts, errors.Wrapf(err, "LoadOptions: %s", EnvDebug)
		}
		opts.Debug = debug
	}
	return opts, nil
}

func (o Options) maxTrees() int {
	if o.MaxTrees <= 0 {
		return DefaultMaxTrees
	}
	return o.MaxTrees
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}
