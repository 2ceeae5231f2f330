package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/aigent-dev/aigent/internal/config"
	"github.com/aigent-dev/aigent/pkg/models"
)

// newLogger builds the process-wide structured logger per the loaded
// config's logging section.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// decodeBody unmarshals e's body into v, surfacing an EvtError body as
// a regular error first.
func decodeBody(e models.Event, v any) error {
	if e.Kind == models.EvtError {
		return eventError(e)
	}
	if len(e.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// detachedSysProcAttr starts the spawned daemon in its own session, so
// it outlives the CLI invocation that launched it and isn't killed by
// a terminal hangup.
func detachedSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
