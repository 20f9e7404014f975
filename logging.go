package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// NewLogger builds the process logger: colored console output plus the
// optional JSON file and GELF sinks. The returned func closes the sinks.
func NewLogger(cfg LogConfig, console io.Writer) (zerolog.Logger, func(), error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}}
	var closers []io.Closer

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, f)
		closers = append(closers, f)
	}
	if cfg.Gelf != "" {
		gw, err := gelf.NewWriter(cfg.Gelf)
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
			return zerolog.Nop(), nil, fmt.Errorf("connecting gelf writer: %w", err)
		}
		writers = append(writers, gw)
		closers = append(closers, gw)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}
	return logger, closeAll, nil
}
