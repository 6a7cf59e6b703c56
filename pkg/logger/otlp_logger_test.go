package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	level   slog.Level
	records []slog.Record
}

func (h *recordingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *recordingHandler) Handle(_ context.Context, record slog.Record) error {
	h.records = append(h.records, record)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *recordingHandler) WithGroup(string) slog.Handler { return h }

func TestMultiHandlerFansOutToEveryHandler(t *testing.T) {
	first := &recordingHandler{level: slog.LevelDebug}
	second := &recordingHandler{level: slog.LevelDebug}

	logger := slog.New(NewMultiHandler(first, second))
	logger.Info("order placed", "order_id", "abc")

	require.Len(t, first.records, 1)
	require.Len(t, second.records, 1)
	require.Equal(t, "order placed", first.records[0].Message)
}

func TestMultiHandlerRespectsPerHandlerLevel(t *testing.T) {
	verbose := &recordingHandler{level: slog.LevelDebug}
	errorsOnly := &recordingHandler{level: slog.LevelError}

	logger := slog.New(NewMultiHandler(verbose, errorsOnly))
	logger.Info("cache warmed")

	require.Len(t, verbose.records, 1)
	require.Empty(t, errorsOnly.records)
}

func TestMultiHandlerEnabledWhenAnyHandlerIs(t *testing.T) {
	handler := NewMultiHandler(
		&recordingHandler{level: slog.LevelError},
		&recordingHandler{level: slog.LevelInfo},
	)

	require.True(t, handler.Enabled(context.Background(), slog.LevelInfo))
	require.False(t, handler.Enabled(context.Background(), slog.LevelDebug))
}
