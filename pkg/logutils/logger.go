// Package logutils builds the process logger.
package logutils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Stderr is the File value that selects a human-readable console log on
// stderr instead of a JSON file.
const Stderr = "-"

// Options configures New.
type Options struct {
	// Level is one of: trace, debug, info, warn, error, fatal.
	Level string
	// File is the JSON log path, or Stderr. Empty writes JSON to stdout.
	File string
	// Version is stamped on every line.
	Version string
	// Console overrides where Stderr output goes.
	Console io.Writer
}

// Rotation limits for the JSON log file.
const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

// New returns the process logger and a closer for its output. File logs are
// rotated once they reach maxSizeMB.
func New(opts Options) (zerolog.Logger, func(), error) {
	closer := func() {}

	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Logger{}, closer, err
	}

	var writer io.Writer = os.Stdout
	switch opts.File {
	case "":
	case Stderr:
		out := opts.Console
		if out == nil {
			out = os.Stderr
		}
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	default:
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		}
		closer = func() { _ = rotator.Close() }
		writer = rotator
	}

	ctx := zerolog.New(writer).With().Timestamp()
	if opts.Version != "" {
		ctx = ctx.Str("version", opts.Version)
	}

	return ctx.Logger().Level(lvl), closer, nil
}
