// Package logger builds the zerolog loggers used across quill.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const permission = 0600

// Build collects logger options before Make creates the logger.
type Build struct {
	writer  io.Writer
	path    string
	level   string
	console bool
}

// New starts a logger build that writes JSON to stderr at info level.
func New() *Build {
	return &Build{writer: os.Stderr, level: "info"}
}

// FromWriter sends log output to w.
func (b *Build) FromWriter(w io.Writer) *Build {
	b.writer = w
	return b
}

// FromPath appends log output to the file at path.
func (b *Build) FromPath(path string) *Build {
	b.path = path
	return b
}

// Level sets the minimum level ("debug", "info", "warn", "error", "disabled").
// Unknown values keep info.
func (b *Build) Level(level string) *Build {
	if strings.TrimSpace(level) != "" {
		b.level = level
	}
	return b
}

// Console switches to human-readable output.
func (b *Build) Console(on bool) *Build {
	b.console = on
	return b
}

// Make creates the logger. The returned closer releases the log file, if any.
func (b *Build) Make() (zerolog.Logger, io.Closer, error) {
	w := b.writer
	var closer io.Closer = nopCloser{}
	if b.path != "" {
		f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		w = zerolog.SyncWriter(f)
		closer = f
	}
	if b.console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: b.path != ""}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(b.level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), closer, nil
}

// Nop returns a logger that discards everything. Used by tests and as a default.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
