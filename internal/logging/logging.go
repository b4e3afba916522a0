// Package logging sets up a log/slog.Logger the way sanjay900-VIIPER's
// internal/log package does: a custom "trace" level below Debug, stdout for
// normal records, stderr for errors, and an optional raw hex-dump logger for
// command-channel request/response frames.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// LevelTrace is a custom level below slog.LevelDebug for per-frame tracing
// of the command channel.
const LevelTrace slog.Level = -8

// ParseLevel maps a config/CLI level name to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch s {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// errorSplitHandler routes records at or above LevelError to stderr and
// everything else to stdout, so stderr can be redirected separately for
// error monitoring without losing normal logs.
type errorSplitHandler struct {
	level  slog.Level
	stdout slog.Handler
	stderr slog.Handler
}

func (h *errorSplitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *errorSplitHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return h.stderr.Handle(ctx, r)
	}
	return h.stdout.Handle(ctx, r)
}

func (h *errorSplitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &errorSplitHandler{level: h.level, stdout: h.stdout.WithAttrs(attrs), stderr: h.stderr.WithAttrs(attrs)}
}

func (h *errorSplitHandler) WithGroup(name string) slog.Handler {
	return &errorSplitHandler{level: h.level, stdout: h.stdout.WithGroup(name), stderr: h.stderr.WithGroup(name)}
}

// Setup builds the process logger. If file is non-empty, all records go to
// that file instead of stdout/stderr. Returns the logger and a closer for
// any opened file.
func Setup(levelName, file string) (*slog.Logger, io.Closer, error) {
	level := ParseLevel(levelName)

	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})
		return slog.New(h), f, nil
	}

	opts := &slog.HandlerOptions{Level: level}
	h := &errorSplitHandler{
		level:  level,
		stdout: slog.NewTextHandler(os.Stdout, opts),
		stderr: slog.NewTextHandler(os.Stderr, opts),
	}
	return slog.New(h), io.NopCloser(nil), nil
}

// RawLogger records raw command-channel frames at trace level.
type RawLogger struct {
	logger *slog.Logger
}

// NewRaw wraps a *slog.Logger for raw frame tracing.
func NewRaw(logger *slog.Logger) *RawLogger {
	return &RawLogger{logger: logger}
}

// Log emits one hex-dumped frame. dir is "req" or "resp".
func (r *RawLogger) Log(dir string, data []byte) {
	if r == nil || r.logger == nil || len(data) == 0 {
		return
	}
	r.logger.Log(context.Background(), LevelTrace, "frame", "dir", dir, "bytes", len(data), "hex", hexString(data))
}

func hexString(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*3)
	for i, x := range b {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, digits[x>>4], digits[x&0x0f])
	}
	return string(out)
}
