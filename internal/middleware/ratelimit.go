package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/formguard/internal/handlers"
	"github.com/serroba/formguard/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
	HeaderRetry     = "Retry-After"
)

// Throttle returns a Huma middleware that records one attempt per request for
// operations carrying a ratelimit.EndpointConfig in their metadata. Requests
// beyond the budget are answered with 429 and never reach the handler.
//
// The limiter key combines the configured action with the visitor id set by
// RequestMeta, so Throttle must run after it.
func Throttle(api huma.API, registry *ratelimit.Registry, logger *zap.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		cfg := ratelimit.GetEndpointConfig(ctx)
		if cfg == nil || cfg.Action == "" {
			next(ctx)

			return
		}

		path := getOperationPath(ctx)

		if cfg.Disabled {
			logger.Debug("throttling disabled for endpoint",
				zap.String("path", path), zap.String("method", ctx.Method()))
			next(ctx)

			return
		}

		meta := handlers.RequestMetaFromContext(ctx.Context())
		if meta.VisitorID == "" {
			logger.Error("missing visitor id for throttled endpoint", zap.String("path", path))
			_ = huma.WriteErr(api, ctx, http.StatusBadRequest, "missing visitor id")

			return
		}

		key := ratelimit.ActionKey(cfg.Action, meta.VisitorID)

		limiter, err := registry.Limiter(ctx.Context(), key)
		if err != nil {
			logger.Error("failed to build limiter", zap.String("key", key), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error", err)

			return
		}

		res := limiter.RecordAttempt(ctx.Context())

		ctx.SetHeader(HeaderLimit, strconv.Itoa(limiter.Config().MaxAttempts))
		ctx.SetHeader(HeaderRemaining, strconv.Itoa(res.Remaining))
		ctx.SetHeader(HeaderReset, strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			retryIn := limiter.TimeRemaining(res.ResetAt)

			logger.Warn("throttled request",
				zap.String("path", path),
				zap.String("method", ctx.Method()),
				zap.String("action", cfg.Action),
				zap.Int("attempts", res.AttemptCount),
				zap.String("client_ip", meta.ClientIP),
			)

			ctx.SetHeader(HeaderRetry, strconv.Itoa(retryAfterSeconds(res.ResetAt, limiter.Now())))
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests,
				fmt.Sprintf("too many attempts, try again in %s", retryIn))

			return
		}

		ctx = huma.WithContext(ctx, handlers.ContextWithAttempt(ctx.Context(), res))

		next(ctx)
	}
}

// getOperationPath extracts the path from the operation, if available.
func getOperationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}

func retryAfterSeconds(resetAt, now time.Time) int {
	return max(1, int(math.Ceil(resetAt.Sub(now).Seconds())))
}
