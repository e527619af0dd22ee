// Package contractenv is the contract-facing surface of the environment
// layer: a per-invocation access handle, free functions over an instance and
// the harness that drives one invocation.
//
// Both surfaces are thin wrappers around instance.Instance and behave
// identically; pick whichever reads better in contract code.
package contractenv

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wasmenv/contractenv/instance"
	"github.com/wasmenv/contractenv/types"
)

// Environment is the host capability an invocation runs against.
type Environment = types.Environment

// Instance is the per-invocation access point.
type Instance = instance.Instance

// Config configures instances and the simulated host.
type Config = types.Config

// Entry is the body of one invocation.
type Entry func(Access) error

// Execute runs entry as one invocation against env. A fresh instance sized
// by cfg.Buffer is created for it and discarded afterwards. Fatal violations
// and gas exhaustion are logged and returned as errors.
func Execute(env Environment, cfg Config, logger zerolog.Logger, entry Entry) error {
	err := instance.Run(env, func(inst *instance.Instance) error {
		return entry(NewAccess(inst))
	}, instance.WithConfig(cfg.Buffer))

	var fatal *types.FatalError
	switch {
	case err == nil:
	case errors.As(err, &fatal):
		logger.Error().
			Str("op", fatal.Op).
			Stringer("kind", fatal.Kind).
			Err(fatal.Err).
			Msg("invocation aborted")
	case errors.Is(err, types.ErrOutOfGas):
		logger.Warn().Err(err).Msg("invocation ran out of gas")
	default:
		logger.Debug().Err(err).Msg("invocation failed")
	}
	return err
}

// NewLogger builds the logger described by cfg, writing to w (stderr when nil).
func NewLogger(cfg types.LogConfig, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		level = l
	}
	switch cfg.Format {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
