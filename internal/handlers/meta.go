package handlers

import (
	"context"

	"github.com/serroba/formguard/internal/ratelimit"
)

type (
	requestMetaKey struct{}
	attemptKey     struct{}
)

// RequestMeta holds HTTP request metadata used for throttling and analytics.
type RequestMeta struct {
	// VisitorID identifies the browser across requests. It is the server-side
	// counterpart of an origin-scoped store: every limiter key embeds it.
	VisitorID string
	ClientIP  string
	UserAgent string
	Referrer  string
}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return v
	}

	return RequestMeta{}
}

// ContextWithAttempt stores the attempt recorded by the throttling middleware.
func ContextWithAttempt(ctx context.Context, res ratelimit.Result) context.Context {
	return context.WithValue(ctx, attemptKey{}, res)
}

// AttemptFromContext returns the attempt recorded for this request, if any.
func AttemptFromContext(ctx context.Context) (ratelimit.Result, bool) {
	res, ok := ctx.Value(attemptKey{}).(ratelimit.Result)

	return res, ok
}
