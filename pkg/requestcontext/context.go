// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services and the evaluation engine read them
// without importing net/http.
//
// Usage in services (read values):
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//	userType := requestcontext.UserType(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithUserType(ctx, "VIP")
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	subjectKey     struct{}
	userTypeKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeySubject     = subjectKey{}
	ContextKeyUserType    = userTypeKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Caller identity
// -----------------------------------------------------------------------------

// Subject retrieves the authenticated subject (token "sub" claim) from the context.
func Subject(ctx context.Context) string {
	if sub, ok := ctx.Value(ContextKeySubject).(string); ok {
		return sub
	}
	return ""
}

// WithSubject injects the authenticated subject into the context.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ContextKeySubject, subject)
}

// UserType retrieves the caller's customer segment (e.g. "VIP") from the context.
func UserType(ctx context.Context) string {
	if t, ok := ctx.Value(ContextKeyUserType).(string); ok {
		return t
	}
	return ""
}

// WithUserType injects the caller's customer segment into the context.
func WithUserType(ctx context.Context, userType string) context.Context {
	return context.WithValue(ctx, ContextKeyUserType, userType)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like consumers and tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that don't run the full HTTP middleware chain
//   - Consumers that need consistent time while handling one event
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
