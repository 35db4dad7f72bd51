package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	serial "github.com/luhtfiimanal/go-buffered-serial"
)

// newLogger builds the CLI logger: human readable on a terminal, JSON
// otherwise, and mirrored to a rotating file when one is configured.
func newLogger(cfg serial.LogConfig, stderr *os.File) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		level = l
	}

	var console io.Writer = stderr
	if isatty.IsTerminal(stderr.Fd()) || isatty.IsCygwinTerminal(stderr.Fd()) {
		console = zerolog.ConsoleWriter{Out: stderr, TimeFormat: "15:04:05.000"}
	}

	var closer io.Closer = nopCloser{}
	out := console
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		out = zerolog.MultiLevelWriter(console, lj)
		closer = lj
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
