// Package logging builds the zerolog logger shared by the CLI, the TUI and the
// reordering coordinator.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const permission = 0o644

type Build struct {
	writer  io.Writer
	path    string
	level   zerolog.Level
	console bool
}

// Logger wraps the configured zerolog.Logger together with the file it writes to, if
// any. Close is a no-op for writer-backed loggers.
type Logger struct {
	zerolog.Logger
	file *os.File
}

func New() *Build {
	return &Build{writer: os.Stderr, level: zerolog.WarnLevel}
}

func (b *Build) FromPath(path string) *Build {
	b.path = strings.TrimSpace(path)
	return b
}

func (b *Build) FromWriter(w io.Writer) *Build {
	if w != nil {
		b.writer = w
	}
	return b
}

// Level accepts zerolog level names; unknown or empty names keep the current level.
func (b *Build) Level(name string) *Build {
	if lvl, err := ParseLevel(name); err == nil {
		b.level = lvl
	}
	return b
}

// Console switches to zerolog's human-readable writer.
func (b *Build) Console(on bool) *Build {
	b.console = on
	return b
}

func (b *Build) Make() (*Logger, error) {
	out := &Logger{}
	w := b.writer
	if b.path != "" {
		f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		out.file = f
		w = zerolog.SyncWriter(f)
	}
	if b.console && out.file == nil {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	out.Logger = zerolog.New(w).Level(b.level).With().Timestamp().Logger()
	return out, nil
}

func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

func ParseLevel(name string) (zerolog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return zerolog.NoLevel, errEmptyLevel
	}
	if name == "warning" {
		name = "warn"
	}
	return zerolog.ParseLevel(name)
}

type levelError string

func (e levelError) Error() string { return string(e) }

const errEmptyLevel = levelError("empty log level")
