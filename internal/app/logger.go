package app

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-encounter-engine/internal/config"
)

// NewLogger writes JSON in prod and a console format everywhere else.
func NewLogger(cfg config.Config, component string) zerolog.Logger {
	return newLogger(os.Stdout, cfg, component)
}

func newLogger(out io.Writer, cfg config.Config, component string) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	w := out
	if !cfg.IsProd() {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", component).
		Str("env", cfg.Env).
		Logger()
}
