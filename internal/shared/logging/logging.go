// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/ontario-health/healthmap/internal/shared/config"
	"github.com/rs/zerolog"
)

// New returns a JSON logger, or a console logger when pretty output is
// requested or the environment is development.
func New(cfg config.LogConfig, env string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Pretty || env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return NewWithWriter(out, cfg.Level)
}

// NewWithWriter returns a logger writing to w at the named level.
// Unknown levels fall back to info.
func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Component derives a child logger tagged with a component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
