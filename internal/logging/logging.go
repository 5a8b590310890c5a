// Package logging builds the loggers used across the application.
//
// Loggers write to stderr and, when a log file is configured, to a
// size-rotated file as well. Each subsystem gets its own prefix so a
// shared log file stays greppable.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures log output.
type Options struct {
	// File is the path to the rotated log file. Empty disables file output.
	File string

	// MaxSizeMB is the size at which the log file rotates (default: 10).
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep (default: 3).
	MaxBackups int

	// Quiet suppresses stderr output, keeping only the file writer.
	Quiet bool
}

// New returns a logger with the given prefix, writing per opts.
// A nil opts gives a plain stderr logger.
func New(prefix string, opts *Options) *log.Logger {
	if opts == nil {
		return log.New(os.Stderr, prefix, log.LstdFlags)
	}

	var writers []io.Writer
	if !opts.Quiet {
		writers = append(writers, os.Stderr)
	}
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		maxBackups := opts.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 3
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
		})
	}

	switch len(writers) {
	case 0:
		return log.New(io.Discard, prefix, log.LstdFlags)
	case 1:
		return log.New(writers[0], prefix, log.LstdFlags)
	default:
		return log.New(io.MultiWriter(writers...), prefix, log.LstdFlags)
	}
}
