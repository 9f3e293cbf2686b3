package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

// NewLogger returns a slog.Logger backed by a charmbracelet handler.
// format is one of text, json or logfmt.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl := log.InfoLevel
	if level != "" {
		var err error
		if lvl, err = log.ParseLevel(level); err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
	}

	var f log.Formatter
	switch strings.ToLower(format) {
	case "", "text":
		f = log.TextFormatter
	case "json":
		f = log.JSONFormatter
	case "logfmt":
		f = log.LogfmtFormatter
	default:
		return nil, fmt.Errorf("log format %q is not supported", format)
	}

	h := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Formatter:       f,
		ReportTimestamp: true,
	})

	return slog.New(h), nil
}

// SetupLogger installs the logger as the slog default.
func SetupLogger(w io.Writer, level, format string) error {
	l, err := NewLogger(w, level, format)
	if err != nil {
		return err
	}

	slog.SetDefault(l)
	return nil
}
