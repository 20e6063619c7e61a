// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets the values; services and stores read them without importing net/http.
//
//	did := requestcontext.SubjectDID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject fixed values:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type (
	subjectDIDKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

var (
	ContextKeySubjectDID  = subjectDIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// SubjectDID retrieves the authenticated DID from the context, or "".
func SubjectDID(ctx context.Context) string {
	if did, ok := ctx.Value(ContextKeySubjectDID).(string); ok {
		return did
	}
	return ""
}

// WithSubjectDID injects the authenticated DID into the context.
func WithSubjectDID(ctx context.Context, did string) context.Context {
	return context.WithValue(ctx, ContextKeySubjectDID, did)
}

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

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Workers use it to keep one "now" across a sweep; tests use it to pin the clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
