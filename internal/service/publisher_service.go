package service

import (
	"context"
	"encoding/json"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/learning"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

type IPublisherService interface {
	Publish(ctx context.Context, payload []byte) error
}

type publisherService struct {
	topicName string
	publisher message.Publisher
}

func NewPublisherService(topicName string, publisher message.Publisher) IPublisherService {
	return &publisherService{
		topicName: topicName,
		publisher: publisher,
	}
}

func (s *publisherService) Publish(ctx context.Context, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return s.publisher.Publish(s.topicName, msg)
}

// GapForwarder hands finalized gaps to the progress consumer through the
// in-process topic. Forward never blocks on the Progress Store.
type GapForwarder struct {
	publisher IPublisherService
	logger    logger.ILogger
}

func NewGapForwarder(publisher IPublisherService, log logger.ILogger) *GapForwarder {
	return &GapForwarder{publisher: publisher, logger: log}
}

func (f *GapForwarder) Forward(gap learning.ConceptualGap) {
	payload, err := json.Marshal(gap)
	if err != nil {
		f.logger.Error("PROGRESS", "Failed to encode gap for forwarding", map[string]interface{}{
			"gap":   gap.Key.String(),
			"error": err.Error(),
		})
		return
	}
	if err := f.publisher.Publish(context.Background(), payload); err != nil {
		f.logger.Error("PROGRESS", "Failed to forward gap", map[string]interface{}{
			"gap":   gap.Key.String(),
			"error": err.Error(),
		})
	}
}
