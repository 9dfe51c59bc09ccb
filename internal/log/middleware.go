package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ctxKey struct{}

// Middleware stores logger in each request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the stored logger or one over slog.Default.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return &Logger{Logger: slog.Default(), component: ComponentApp}
}

// StructuredLogger emits the bot's recurring events with consistent fields.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(l *Logger) *StructuredLogger {
	return &StructuredLogger{logger: l}
}

// LogHTTPEnd logs a finished request; 4xx at warn, 5xx at error.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, f *Fields) {
	level := slog.LevelInfo
	for i := 0; i+1 < len(f.kv); i += 2 {
		if f.kv[i] != FieldStatusCode {
			continue
		}
		if status, ok := f.kv[i+1].(int); ok {
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
		}
	}
	sl.logger.Log(ctx, level, "HTTP request completed", f.Args()...)
}

func (sl *StructuredLogger) LogRunFinalized(ctx context.Context, chatID int64, period string, complete bool, recipients int) {
	sl.logger.InfoContext(ctx, "Report run finalized",
		NewFields().
			WithOperation(OpFinalize).
			WithChatID(chatID).
			WithPeriod(period).
			add(FieldComplete, complete).
			add(FieldRecipients, recipients).
			Args()...)
}

func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, f *Fields) {
	if f == nil {
		f = NewFields()
	}
	sl.logger.ErrorContext(ctx, msg, f.WithError(err).WithOperation(operation).Args()...)
}
