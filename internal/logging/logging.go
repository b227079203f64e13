// Package logging builds the structured logger handed to every component.
package logging

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, errors.Newf("unknown log level %q", level)
}

func New(level string, w io.Writer) (*slog.Logger, error) {
	parsed, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: parsed})
	return slog.New(handler), nil
}
