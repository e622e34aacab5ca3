package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level is the minimum severity a logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a level name to a Level. Unknown names fall back to
// info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format selects the handler encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatText
)

// ParseFormat maps a format name to a Format. Unknown names fall back
// to JSON.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "text", "console":
		return FormatText
	default:
		return FormatJSON
	}
}

// Output wraps the destination writer so configs stay comparable.
type Output struct {
	writer io.Writer
}

// NewOutput wraps an io.Writer for use in a Config.
func NewOutput(w io.Writer) Output {
	return Output{writer: w}
}

// OutputStdout writes to standard output.
func OutputStdout() Output {
	return Output{writer: os.Stdout}
}

// OutputStderr writes to standard error.
func OutputStderr() Output {
	return Output{writer: os.Stderr}
}

// Writer returns the wrapped destination.
func (o Output) Writer() io.Writer {
	if o.writer == nil {
		return os.Stdout
	}
	return o.writer
}

// Config holds logger construction options.
type Config struct {
	Level     Level
	Format    Format
	Output    Output
	AddSource bool
}

// DefaultConfig logs at info level as JSON on stdout.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: OutputStdout(),
	}
}
