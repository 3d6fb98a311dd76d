package logging

import (
	"log/slog"
	"os"
)

// Setup installs the process-wide slog default. level takes the slog
// names (debug, info, warn, error) in any case and falls back to info
// on anything unknown. format is "text" for local runs; everything
// else means JSON. Logs go to stderr so command output stays clean.
func Setup(level, format string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler = slog.NewJSONHandler(os.Stderr, opts)
	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
