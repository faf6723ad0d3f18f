// Package logger builds the structured loggers used by the thread pool and
// its command-line driver.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LevelTrace sits below slog.LevelDebug; levelOff is above anything we emit.
const (
	LevelTrace = slog.Level(-8)
	levelOff   = slog.Level(12)
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ParseSeverity maps a severity name (trace, debug, info, warning, error,
// off) to a slog level. Matching is case-insensitive.
func ParseSeverity(severity string) (slog.Level, error) {
	switch strings.ToUpper(severity) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARNING", "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	case "OFF":
		return levelOff, nil
	}
	return 0, fmt.Errorf("unknown log severity %q", severity)
}

// New returns a logger writing to w at the given severity in the given
// format (text or json).
func New(w io.Writer, severity, format string) (*slog.Logger, error) {
	level, err := ParseSeverity(severity)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevel,
	}

	var h slog.Handler
	switch strings.ToLower(format) {
	case FormatText, "":
		h = slog.NewTextHandler(w, opts)
	case FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return slog.New(h), nil
}

// replaceLevel prints LevelTrace as TRACE instead of slog's "DEBUG-4".
func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) > 0 {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}
