package logging

import (
	"context"
)

type ctxKey string

// Context keys for the trace information the context processor records.
const (
	TraceIDKey   ctxKey = "trace_id"
	SpanIDKey    ctxKey = "span_id"
	RequestIDKey ctxKey = "request_id"
	UserIDKey    ctxKey = "user_id"
)

var traceKeys = []ctxKey{TraceIDKey, SpanIDKey, RequestIDKey, UserIDKey}

// ContextFields returns the trace information carried by ctx as record
// fields. Keys without a value are omitted.
func ContextFields(ctx context.Context) map[string]any {
	fields := make(map[string]any)
	for _, key := range traceKeys {
		if v := stringValue(ctx, key); v != "" {
			fields[string(key)] = v
		}
	}
	return fields
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

func GetTraceID(ctx context.Context) string   { return stringValue(ctx, TraceIDKey) }
func GetSpanID(ctx context.Context) string    { return stringValue(ctx, SpanIDKey) }
func GetRequestID(ctx context.Context) string { return stringValue(ctx, RequestIDKey) }
func GetUserID(ctx context.Context) string    { return stringValue(ctx, UserIDKey) }

func SetTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func SetSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, SpanIDKey, spanID)
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

type loggerKey struct{}

// FromContext returns the Logger stored in ctx, or a Logger without writers.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*Logger); ok && l != nil {
			return l
		}
	}
	return NewNop()
}

// ToContext stores logger in ctx.
func ToContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}
