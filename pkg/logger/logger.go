package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/jamolstroy/jamolstroy-service/config"
)

// NewLogger creates a slog logger configured from the service config.
// Format is either "text" or "json", level is taken from JST_LOG_LEVEL.
func NewLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.GetSlogLevel(),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		"environment", cfg.Environment,
	)
}
