package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger: JSON in production (or when
// LOG_FORMAT=json forces it), human-readable text everywhere else.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg.IsProduction() || (cfg != nil && cfg.LogFormat == "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
