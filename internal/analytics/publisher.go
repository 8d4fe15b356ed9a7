package analytics

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/serroba/formguard/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	TopicLimitExceeded = "ratelimit.exceeded"
	TopicDiagnostic    = "ratelimit.diagnostic"
)

// Publisher publishes analytics events.
type Publisher struct {
	publisher message.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewPublisher creates a new analytics publisher.
func NewPublisher(publisher message.Publisher, logger *zap.Logger) *Publisher {
	return &Publisher{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// PublishLimitExceeded publishes a limit exceeded event.
func (p *Publisher) PublishLimitExceeded(event *LimitExceededEvent) error {
	return p.publish(TopicLimitExceeded, event)
}

// PublishDiagnostic publishes a diagnostic event.
func (p *Publisher) PublishDiagnostic(event *DiagnosticEvent) error {
	return p.publish(TopicDiagnostic, event)
}

// LimitExceededHook adapts the publisher to ratelimit.WithOnLimitExceeded.
// Publish failures are logged and never reach the limiter.
func (p *Publisher) LimitExceededHook(maxAttempts int) func(ratelimit.Result) {
	return func(res ratelimit.Result) {
		action, _ := ratelimit.SplitActionKey(res.Key)

		err := p.PublishLimitExceeded(&LimitExceededEvent{
			Action:       action,
			StorageKey:   res.Key,
			AttemptCount: res.AttemptCount,
			MaxAttempts:  maxAttempts,
			ResetAt:      res.ResetAt,
			OccurredAt:   p.now(),
		})
		if err != nil {
			p.logger.Error("failed to publish limit exceeded event",
				zap.String("key", res.Key),
				zap.Error(err),
			)
		}
	}
}

// Report adapts the publisher to ratelimit.WithReporter.
func (p *Publisher) Report(err error) {
	event := &DiagnosticEvent{
		Kind:       ratelimit.Kind(err),
		Message:    err.Error(),
		OccurredAt: p.now(),
	}

	var (
		corrupted   *ratelimit.CorruptedStateError
		persistence *ratelimit.PersistenceError
	)

	switch {
	case errors.As(err, &corrupted):
		event.StorageKey = corrupted.Key
	case errors.As(err, &persistence):
		event.StorageKey = persistence.Key
	}

	if pubErr := p.PublishDiagnostic(event); pubErr != nil {
		p.logger.Error("failed to publish diagnostic event",
			zap.String("key", event.StorageKey),
			zap.Error(pubErr),
		)
	}
}

// Shutdown closes the underlying publisher.
func (p *Publisher) Shutdown() error {
	return p.publisher.Close()
}

func (p *Publisher) publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(uuid.NewString(), payload)

	return p.publisher.Publish(topic, msg)
}
