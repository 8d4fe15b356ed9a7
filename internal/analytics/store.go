package analytics

import "context"

// Store defines the interface for persisting analytics events.
type Store interface {
	SaveLimitExceeded(ctx context.Context, event *LimitExceededEvent) error
	SaveDiagnostic(ctx context.Context, event *DiagnosticEvent) error
}
