package analytics

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Consumer consumes analytics events and persists them to the store.
type Consumer struct {
	subscriber message.Subscriber
	store      Store
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewConsumer creates a new analytics consumer.
func NewConsumer(subscriber message.Subscriber, store Store, logger *zap.Logger) *Consumer {
	return &Consumer{
		subscriber: subscriber,
		store:      store,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Start begins consuming messages from both topics.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	exceededMsgs, err := c.subscriber.Subscribe(ctx, TopicLimitExceeded)
	if err != nil {
		return c.abort(err)
	}

	diagnosticMsgs, err := c.subscriber.Subscribe(ctx, TopicDiagnostic)
	if err != nil {
		return c.abort(err)
	}

	go c.consumeLoop(ctx, exceededMsgs, diagnosticMsgs)

	return nil
}

// abort releases a failed Start. done is closed because no loop will run.
func (c *Consumer) abort(err error) error {
	c.cancel()
	close(c.done)

	return err
}

func (c *Consumer) consumeLoop(ctx context.Context, exceededMsgs, diagnosticMsgs <-chan *message.Message) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-exceededMsgs:
			if !ok {
				return
			}

			c.handleLimitExceeded(ctx, msg)
		case msg, ok := <-diagnosticMsgs:
			if !ok {
				return
			}

			c.handleDiagnostic(ctx, msg)
		}
	}
}

func (c *Consumer) handleLimitExceeded(ctx context.Context, msg *message.Message) {
	var event LimitExceededEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		c.logger.Error("failed to unmarshal limit exceeded event",
			zap.String("messageId", msg.UUID),
			zap.Error(err),
		)
		msg.Nack()

		return
	}

	if err := c.store.SaveLimitExceeded(ctx, &event); err != nil {
		c.logger.Error("failed to save limit exceeded event",
			zap.String("key", event.StorageKey),
			zap.Error(err),
		)
		msg.Nack()

		return
	}

	msg.Ack()

	c.logger.Debug("processed limit exceeded event",
		zap.String("key", event.StorageKey),
	)
}

func (c *Consumer) handleDiagnostic(ctx context.Context, msg *message.Message) {
	var event DiagnosticEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		c.logger.Error("failed to unmarshal diagnostic event",
			zap.String("messageId", msg.UUID),
			zap.Error(err),
		)
		msg.Nack()

		return
	}

	if err := c.store.SaveDiagnostic(ctx, &event); err != nil {
		c.logger.Error("failed to save diagnostic event",
			zap.String("key", event.StorageKey),
			zap.Error(err),
		)
		msg.Nack()

		return
	}

	msg.Ack()

	c.logger.Debug("processed diagnostic event",
		zap.String("key", event.StorageKey),
		zap.String("kind", event.Kind),
	)
}

// Shutdown stops the consumer and waits for in-flight messages to complete.
func (c *Consumer) Shutdown() error {
	if c.cancel != nil {
		c.cancel()
	}

	<-c.done

	return c.subscriber.Close()
}
