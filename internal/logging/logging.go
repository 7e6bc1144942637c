// Package logging builds the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseLevel maps DEBUG, INFO, WARN or ERROR to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// New returns a logger writing to w. The text format is rendered by zerolog's
// console writer; json is slog's own JSON output.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch format {
	case "", "text", "plain":
		// The console writer reads JSON and expects the message under "message".
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key != slog.MessageKey {
				return a
			}
			if a.Value.Kind() == slog.KindString {
				return slog.Any(zerolog.MessageFieldName, a.Value)
			}
			return slog.String(zerolog.MessageFieldName, fmt.Sprint(a.Value.Any()))
		}
		h = slog.NewJSONHandler(&zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    true,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					return strings.ToUpper(ll)
				}
				return "????"
			},
		}, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("log format %q is not supported", format)
	}
	return slog.New(h), nil
}

// Setup builds the logger and installs it as the slog default.
func Setup(w io.Writer, level, format string) (*slog.Logger, error) {
	logger, err := New(w, level, format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
