package common

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type LoggerType uint8

const (
	ConsoleLogger LoggerType = iota
	JSONLogger
)

// LogOptions configures the package loggers.
type LogOptions struct {
	Level  zerolog.Level
	Type   LoggerType
	Output io.Writer
}

var (
	Root    zerolog.Logger
	Engine  zerolog.Logger
	Journal zerolog.Logger
	FFI     zerolog.Logger
)

func init() {
	InitLogging(LogOptions{Level: zerolog.WarnLevel})
}

func ParseLogLevel(level string) (zerolog.Level, error) {
	return zerolog.ParseLevel(level)
}

// InitLogging replaces the root and component loggers.
func InitLogging(opts LogOptions) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Type == ConsoleLogger {
		out = zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}
	}
	Root = zerolog.New(out).Level(opts.Level).With().Timestamp().Logger()
	Engine = Root.With().Str("component", "engine").Logger()
	Journal = Root.With().Str("component", "journal").Logger()
	FFI = Root.With().Str("component", "ffi").Logger()
}

// formatDuration formats a duration with 2 decimal places.
// Returns a string like "1.23 ms" (no padding).
func formatDuration(d time.Duration) string {
	ms := float64(d) / float64(time.Millisecond)

	// Handle durations >= 1 second
	if ms >= 1000 {
		sec := ms / 1000
		return fmt.Sprintf("%.2f s", sec)
	} else if ms < 0.01 {
		// Sub-0.01 ms: show in microseconds
		us := ms * 1000
		return fmt.Sprintf("%.2f us", us)
	}
	return fmt.Sprintf("%.2f ms", ms)
}

// LogDuration logs a message on l with the elapsed time since start.
func LogDuration(l zerolog.Logger, start time.Time, format string, args ...interface{}) {
	l.Debug().Str("elapsed", formatDuration(time.Since(start))).Msgf(format, args...)
}
