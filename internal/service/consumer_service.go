package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-tutor-be/internal/mapper"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/events"
	"ai-tutor-be/pkg/learning"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v5"
)

// EventPublisher is the outbound event bus
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains forwarded gaps into the Progress Store
type consumerService struct {
	subscriber   message.Subscriber
	topicName    string
	progressRepo contract.ProgressRepository
	events       EventPublisher // Optional
	maxRetries   uint
	newBackOff   func() backoff.BackOff
	mapper       *mapper.ConceptualGapMapper
	logger       logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	progressRepo contract.ProgressRepository,
	eventPublisher EventPublisher,
	maxRetries int,
	log logger.ILogger,
) IConsumerService {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &consumerService{
		subscriber:   subscriber,
		topicName:    topicName,
		progressRepo: progressRepo,
		events:       eventPublisher,
		maxRetries:   uint(maxRetries),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
		mapper: mapper.NewConceptualGapMapper(),
		logger: log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var gap learning.ConceptualGap
	if err := json.Unmarshal(msg.Payload, &gap); err != nil {
		cs.logger.Error("PROGRESS", "Failed to unmarshal forwarded gap", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	record := cs.mapper.FromDomain(&gap)
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, cs.progressRepo.AppendGap(ctx, record)
	},
		backoff.WithBackOff(cs.newBackOff()),
		backoff.WithMaxTries(cs.maxRetries),
		backoff.WithNotify(func(err error, next time.Duration) {
			cs.logger.Warn("PROGRESS", "Progress Store write failed, retrying", map[string]interface{}{
				"gap":     gap.Key.String(),
				"attempt": attempt,
				"retry":   next.String(),
				"error":   err.Error(),
			})
		}),
	)
	if err != nil {
		// Progress forwarding is best effort; the session ledger still has the gap
		cs.logger.Error("PROGRESS", "Dropping gap after retries", map[string]interface{}{
			"gap":      gap.Key.String(),
			"attempts": attempt,
			"error":    err.Error(),
		})
		msg.Ack()
		return
	}

	if cs.events != nil {
		if err := cs.events.Publish(ctx, events.NewGapRecorded(gap, time.Now())); err != nil {
			cs.logger.Warn("PROGRESS", "Failed to publish gap event", map[string]interface{}{
				"gap":   gap.Key.String(),
				"error": err.Error(),
			})
		}
	}

	cs.logger.Info("PROGRESS", "Gap recorded", map[string]interface{}{
		"gap":         gap.Key.String(),
		"severity":    gap.Severity,
		"occurrences": gap.Occurrences,
	})
	msg.Ack()
}
