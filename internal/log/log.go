// Package log configures the process-wide slog logger.
package log

import (
	"log/slog"
	"os"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Init sets up the global logger at the given level ("debug", "info",
// "warn", "error"). Unknown levels fall back to info. JSON output is
// selected when RASPBOT_ENV=production, text otherwise.
func Init(level string) {
	once.Do(func() {
		var lvl slog.Level
		switch level {
		case "debug":
			lvl = slog.LevelDebug
		case "warn":
			lvl = slog.LevelWarn
		case "error":
			lvl = slog.LevelError
		default:
			lvl = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{Level: lvl}
		if os.Getenv("RASPBOT_ENV") == "production" {
			logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
		} else {
			logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
		}
		slog.SetDefault(logger)
	})
}

// L returns the global logger, initializing it at info level if Init
// was never called.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}
