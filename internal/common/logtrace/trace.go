package logtrace

import (
	"context"
	"os"
)

type requestIDContextKey struct{}

// RequestIDKey is the context key under which middleware stores the
// request ID.
var RequestIDKey = requestIDContextKey{}

// RequestIDFromContext extracts the request ID from the context.
// Returns an empty string if the context is nil or carries no request ID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, ok := ctx.Value(RequestIDKey).(string)
	if !ok {
		return ""
	}
	return r
}

// IsTraceEnabled reports whether verbose route tracing is enabled.
// Controlled by the CHARTBRIDGE_TRACE environment variable.
func IsTraceEnabled() bool {
	return os.Getenv("CHARTBRIDGE_TRACE") != ""
}
