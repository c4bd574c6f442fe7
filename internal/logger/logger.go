package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/Domenick1991/flightmanager/config"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	AccountIDKey contextKey = "account_id"
)

var defaultLogger atomic.Pointer[slog.Logger]

func init() {
	defaultLogger.Store(New(os.Stdout, os.Getenv("LOG_LEVEL")))
}

// New builds a JSON logger writing to w at the given level name.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
}

// Init replaces the process logger using the log section of the config.
func Init(cfg config.LogConfig, service string) *slog.Logger {
	l := New(os.Stdout, cfg.Level).With("service", service)
	defaultLogger.Store(l)
	slog.SetDefault(l)
	return l
}

func SetDefault(l *slog.Logger) {
	defaultLogger.Store(l)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Default() *slog.Logger {
	return defaultLogger.Load()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func WithAccountID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, AccountIDKey, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithContext returns the default logger annotated with request scoped values.
func WithContext(ctx context.Context) *slog.Logger {
	l := Default()
	if id := RequestID(ctx); id != "" {
		l = l.With("request_id", id)
	}
	if id, ok := ctx.Value(AccountIDKey).(int64); ok {
		l = l.With("account_id", id)
	}
	return l
}

func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }

func InfoContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}

func DebugContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}
