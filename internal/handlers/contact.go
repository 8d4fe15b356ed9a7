package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// ActionContactForm names the throttled contact form submission.
const ActionContactForm = "contact_form"

// ContactHandler accepts demo form submissions. Throttling happens before the
// handler runs; a request that reaches it was within budget.
type ContactHandler struct {
	logger *zap.Logger
}

// NewContactHandler creates a new contact handler.
func NewContactHandler(logger *zap.Logger) *ContactHandler {
	return &ContactHandler{logger: logger}
}

func (h *ContactHandler) Submit(ctx context.Context, req *ContactRequest) (*ContactResponse, error) {
	meta := RequestMetaFromContext(ctx)

	resp := &ContactResponse{Status: http.StatusAccepted}
	resp.Body.Status = "accepted"

	if res, ok := AttemptFromContext(ctx); ok {
		resp.Body.Remaining = res.Remaining
	}

	h.logger.Info("contact form submitted",
		zap.String("visitor", meta.VisitorID),
		zap.String("clientIp", meta.ClientIP),
		zap.Int("messageLength", len(req.Body.Message)),
	)

	return resp, nil
}
