package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const timeFormat = "15:04:05.000"

// New builds a zerolog logger. Development environments get a console
// writer; anything else emits JSON. Output goes to stderr unless writers
// are given, since stdout carries the verdict.
func New(env, level string, writers ...io.Writer) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	zerolog.DurationFieldUnit = time.Millisecond

	var output io.Writer
	if len(writers) > 0 {
		output = io.MultiWriter(writers...)
	} else if strings.EqualFold(env, "development") || strings.EqualFold(env, "dev") {
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: timeFormat}
	} else {
		output = os.Stderr
	}

	return zerolog.New(output).With().Timestamp().Logger().Level(lvl), nil
}

// ParseLevel maps a level name to a zerolog level, defaulting to warn
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		return zerolog.WarnLevel, nil
	}
	return zerolog.ParseLevel(strings.ToLower(level))
}
