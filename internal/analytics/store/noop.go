package store

import (
	"context"

	"github.com/serroba/formguard/internal/analytics"
	"go.uber.org/zap"
)

// Noop is a no-op implementation of analytics.Store that logs events.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new no-op analytics store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveLimitExceeded(_ context.Context, event *analytics.LimitExceededEvent) error {
	n.logger.Info("limit exceeded event received",
		zap.String("action", event.Action),
		zap.String("key", event.StorageKey),
		zap.Int("attempts", event.AttemptCount),
		zap.Int("maxAttempts", event.MaxAttempts),
		zap.Time("resetAt", event.ResetAt),
	)

	return nil
}

func (n *Noop) SaveDiagnostic(_ context.Context, event *analytics.DiagnosticEvent) error {
	n.logger.Info("diagnostic event received",
		zap.String("key", event.StorageKey),
		zap.String("kind", event.Kind),
		zap.String("message", event.Message),
		zap.Time("occurredAt", event.OccurredAt),
	)

	return nil
}

var _ analytics.Store = (*Noop)(nil)
