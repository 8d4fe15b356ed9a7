package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/formguard/internal/handlers"
)

const (
	// VisitorCookie carries the visitor id that scopes every limiter key.
	VisitorCookie = "fg_visitor"

	visitorCookieMaxAge = 365 * 24 * time.Hour
	maxVisitorIDLength  = 64
)

// RequestMeta is a middleware that identifies the visitor and adds client IP,
// user-agent, and referrer to the request context. A visitor without a valid
// cookie gets a fresh id from newVisitorID and a Set-Cookie header.
func RequestMeta(_ huma.API, newVisitorID func() string) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		visitor := visitorFromCookie(ctx)
		if visitor == "" {
			visitor = newVisitorID()
			ctx.AppendHeader("Set-Cookie", visitorCookie(visitor, ctx.TLS() != nil).String())
		}

		meta := handlers.RequestMeta{
			VisitorID: visitor,
			ClientIP:  extractClientIP(ctx),
			UserAgent: ctx.Header("User-Agent"),
			Referrer:  ctx.Header("Referer"),
		}

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)
		ctx = huma.WithContext(ctx, newCtx)

		next(ctx)
	}
}

func visitorFromCookie(ctx huma.Context) string {
	header := ctx.Header("Cookie")
	if header == "" {
		return ""
	}

	cookies, err := http.ParseCookie(header)
	if err != nil {
		return ""
	}

	for _, c := range cookies {
		if c.Name == VisitorCookie && validVisitorID(c.Value) {
			return c.Value
		}
	}

	return ""
}

// validVisitorID accepts the URL-safe alphabet used by nanoid. Anything else
// could collide with the key separator or bloat storage keys.
func validVisitorID(id string) bool {
	if id == "" || len(id) > maxVisitorIDLength {
		return false
	}

	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}

	return true
}

func visitorCookie(id string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     VisitorCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(visitorCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func extractClientIP(ctx huma.Context) string {
	// Check X-Forwarded-For first (may contain multiple IPs)
	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		// Take the first IP (original client)
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}

		return strings.TrimSpace(xff)
	}

	if xri := ctx.Header("X-Real-IP"); xri != "" {
		return xri
	}

	addr := ctx.RemoteAddr()

	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return ip
}
