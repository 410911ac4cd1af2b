package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Production gets JSON lines for ingestion;
// anything else gets the text handler for readable local output.
func New(env string) *slog.Logger {
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(handler)
}
