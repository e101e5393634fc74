// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging builds the daemon's structured logger. Output goes to
// stderr, to a size-rotated file, or both.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New
type Options struct {
	Name       string
	Level      string
	JSON       bool
	Stderr     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger wraps the root hclog logger and the rotating file it may own
type Logger struct {
	hclog.Logger
	file *lumberjack.Logger
}

// New creates the root logger. At least one of Stderr or File must be set;
// when neither is, stderr is used.
func New(opts Options) (*Logger, error) {
	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		return nil, fmt.Errorf("invalid log level %q", opts.Level)
	}

	var (
		writers []io.Writer
		file    *lumberjack.Logger
	)
	if opts.File != "" {
		file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, file)
	}
	if opts.Stderr || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	var out io.Writer = writers[0]
	if len(writers) > 1 {
		out = io.MultiWriter(writers...)
	}

	name := opts.Name
	if name == "" {
		name = "nautilus"
	}

	l := hclog.New(&hclog.LoggerOptions{
		Name:            name,
		Level:           level,
		Output:          out,
		JSONFormat:      opts.JSON,
		IncludeLocation: level <= hclog.Debug,
		Color:           hclog.ColorOff,
	})
	return &Logger{Logger: l, file: file}, nil
}

// Close closes the rotating log file, if any
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Rotate starts a new log file, if a file is configured
func (l *Logger) Rotate() error {
	if l.file == nil {
		return nil
	}
	return l.file.Rotate()
}
