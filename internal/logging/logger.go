package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"tramboard/internal/config"
)

// New returns the process logger: coloured output in dev, JSON otherwise.
func New(w io.Writer, cfg *config.Config, version string) *slog.Logger {
	if cfg.AppEnv == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"version", version,
		"stop_id", cfg.StopID,
	)
}
