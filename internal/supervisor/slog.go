// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package supervisor

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/clipsight/clipsight/internal/logging"
)

// zerologHandler forwards slog records to the process logger so the
// supervisor's lifecycle events share one output stream.
type zerologHandler struct {
	attrs []slog.Attr
}

// NewSlogLogger returns an *slog.Logger backed by the zerolog process
// logger, for libraries that speak slog.
func NewSlogLogger() *slog.Logger {
	return slog.New(&zerologHandler{})
}

func (h *zerologHandler) Enabled(_ context.Context, level slog.Level) bool {
	return zerologLevel(level) >= logging.Logger().GetLevel()
}

func (h *zerologHandler) Handle(_ context.Context, record slog.Record) error {
	logger := logging.Logger()
	ev := logger.WithLevel(zerologLevel(record.Level))
	for _, attr := range h.attrs {
		ev = ev.Any(attr.Key, attr.Value.Any())
	}
	record.Attrs(func(attr slog.Attr) bool {
		ev = ev.Any(attr.Key, attr.Value.Any())
		return true
	})
	ev.Msg(record.Message)
	return nil
}

func (h *zerologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &zerologHandler{attrs: merged}
}

func (h *zerologHandler) WithGroup(string) slog.Handler { return h }

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
