package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/formguard/internal/ratelimit"
	"go.uber.org/zap"
)

// AttemptsHandler exposes the limiter of each visitor and action.
type AttemptsHandler struct {
	registry *ratelimit.Registry
	logger   *zap.Logger
}

// NewAttemptsHandler creates a new attempts handler.
func NewAttemptsHandler(registry *ratelimit.Registry, logger *zap.Logger) *AttemptsHandler {
	return &AttemptsHandler{registry: registry, logger: logger}
}

func (h *AttemptsHandler) RecordAttempt(ctx context.Context, req *ActionRequest) (*AttemptResponse, error) {
	limiter, err := h.limiter(ctx, req.Action)
	if err != nil {
		return nil, err
	}

	res := limiter.RecordAttempt(ctx)

	resp := &AttemptResponse{}
	resp.Body.Allowed = res.Allowed
	resp.Body.AttemptCount = res.AttemptCount
	resp.Body.Remaining = res.Remaining
	resp.Body.ResetAt = res.ResetAt

	if !res.Allowed {
		resp.Body.RetryIn = limiter.TimeRemaining(res.ResetAt)
	}

	return resp, nil
}

func (h *AttemptsHandler) GetStatus(ctx context.Context, req *ActionRequest) (*StatusResponse, error) {
	limiter, err := h.limiter(ctx, req.Action)
	if err != nil {
		return nil, err
	}

	status := limiter.Status(ctx)

	resp := &StatusResponse{}
	resp.Body.AttemptCount = status.AttemptCount
	resp.Body.Remaining = status.Remaining
	resp.Body.CanProceed = status.CanProceed

	if !status.ResetAt.IsZero() {
		resp.Body.ResetAt = &status.ResetAt
		resp.Body.RetryIn = limiter.TimeRemaining(status.ResetAt)
	}

	return resp, nil
}

func (h *AttemptsHandler) Reset(ctx context.Context, req *ActionRequest) (*struct{}, error) {
	limiter, err := h.limiter(ctx, req.Action)
	if err != nil {
		return nil, err
	}

	limiter.Reset(ctx)

	return nil, nil
}

func (h *AttemptsHandler) limiter(ctx context.Context, action string) (*ratelimit.Limiter, error) {
	meta := RequestMetaFromContext(ctx)
	if meta.VisitorID == "" {
		return nil, huma.Error400BadRequest("missing visitor id")
	}

	key := ratelimit.ActionKey(action, meta.VisitorID)

	limiter, err := h.registry.Limiter(ctx, key)
	if err != nil {
		h.logger.Error("failed to build limiter",
			zap.String("key", key),
			zap.Error(err),
		)

		return nil, huma.Error500InternalServerError("failed to load rate limit")
	}

	return limiter, nil
}
