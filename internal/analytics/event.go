package analytics

import "time"

// LimitExceededEvent is emitted when a visitor exhausts the attempt budget for an action.
type LimitExceededEvent struct {
	Action       string    `json:"action"`
	StorageKey   string    `json:"storageKey"`
	AttemptCount int       `json:"attemptCount"`
	MaxAttempts  int       `json:"maxAttempts"`
	ResetAt      time.Time `json:"resetAt"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// DiagnosticEvent is emitted when a limiter discards corrupted state or loses its storage.
type DiagnosticEvent struct {
	StorageKey string    `json:"storageKey"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}
